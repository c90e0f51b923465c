package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Kafka struct {
		Broker       string
		TriggerTopic string
		EventsTopic  string
		GroupID      string
	}
	DB struct {
		DSN string
	}
	Email struct {
		SMTPServer string
		SMTPPort   int
		Username   string
		Password   string
		FromName   string
	}
	Telegram struct {
		BotToken         string
		EscalationChatID int64
		RateLimit        int
	}
	API struct {
		Port     string
		BasePath string
	}
	Logging struct {
		Dir   string
		Level string
	}
	Sweep struct {
		Interval       time.Duration
		Timeout        time.Duration
		Workers        int
		RunOnStart     bool
		ChannelTimeout time.Duration
		Location       *time.Location
	}
	Escalation struct {
		PolicyID int64
	}
}

// Load reads environment variables, applies defaults, and returns a Config.
func Load() (Config, error) {
	// Load .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("failed to load .env file: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from the given lookup function.
func FromEnv(getenv func(string) string) (Config, error) {
	var cfg Config

	// Kafka settings
	cfg.Kafka.Broker = getenv("KAFKA_BROKER")
	cfg.Kafka.TriggerTopic = getenv("KAFKA_TRIGGER_TOPIC")
	cfg.Kafka.EventsTopic = getenv("KAFKA_EVENTS_TOPIC")
	cfg.Kafka.GroupID = getenv("KAFKA_GROUP_ID")

	// Database DSN
	cfg.DB.DSN = getenv("DB_DSN")

	// Email settings
	cfg.Email.SMTPServer = getenv("EMAIL_SMTP_SERVER")
	if p, err := strconv.Atoi(getenv("EMAIL_SMTP_PORT")); err == nil {
		cfg.Email.SMTPPort = p
	}
	cfg.Email.Username = getenv("EMAIL_USERNAME")
	cfg.Email.Password = getenv("EMAIL_PASSWORD")
	cfg.Email.FromName = getenv("EMAIL_FROM_NAME")

	// Telegram settings
	cfg.Telegram.BotToken = getenv("TELEGRAM_BOT_TOKEN")
	if id, err := strconv.ParseInt(getenv("TELEGRAM_ESCALATION_CHAT_ID"), 10, 64); err == nil {
		cfg.Telegram.EscalationChatID = id
	}
	if rl, err := strconv.Atoi(getenv("TELEGRAM_RATE_LIMIT")); err == nil {
		cfg.Telegram.RateLimit = rl
	}

	// API settings
	cfg.API.Port = getenv("API_PORT")
	cfg.API.BasePath = getenv("API_BASE_PATH")

	// Logging settings
	cfg.Logging.Dir = getenv("LOG_DIR")
	cfg.Logging.Level = getenv("LOG_LEVEL")

	// Sweep settings
	var invalid []string
	if v := getenv("SWEEP_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			invalid = append(invalid, "SWEEP_INTERVAL")
		}
		cfg.Sweep.Interval = d
	}
	if v := getenv("SWEEP_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			invalid = append(invalid, "SWEEP_TIMEOUT")
		}
		cfg.Sweep.Timeout = d
	}
	if v := getenv("CHANNEL_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			invalid = append(invalid, "CHANNEL_TIMEOUT")
		}
		cfg.Sweep.ChannelTimeout = d
	}
	if w, err := strconv.Atoi(getenv("SWEEP_WORKERS")); err == nil {
		cfg.Sweep.Workers = w
	}
	if b, err := strconv.ParseBool(getenv("SWEEP_ON_START")); err == nil {
		cfg.Sweep.RunOnStart = b
	}
	if tz := getenv("TIMEZONE"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			invalid = append(invalid, "TIMEZONE")
		}
		cfg.Sweep.Location = loc
	}

	// Escalation policy reference
	if v := getenv("ESCALATION_POLICY_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			invalid = append(invalid, "ESCALATION_POLICY_ID")
		}
		cfg.Escalation.PolicyID = id
	}

	// Validate required settings
	missing := []string{}
	if cfg.DB.DSN == "" {
		missing = append(missing, "DB_DSN")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required configurations: %v", missing)
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid configurations: %v", invalid)
	}

	// Apply defaults
	if cfg.API.Port == "" {
		cfg.API.Port = ":8080"
	}
	if cfg.API.BasePath == "" {
		cfg.API.BasePath = "/api/v0"
	}
	if cfg.Kafka.TriggerTopic == "" {
		cfg.Kafka.TriggerTopic = "maintenance_sweep"
	}
	if cfg.Kafka.EventsTopic == "" {
		cfg.Kafka.EventsTopic = "maintenance_events"
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = "maintenance-service"
	}
	if cfg.Telegram.RateLimit == 0 {
		cfg.Telegram.RateLimit = 20
	}
	if cfg.Logging.Dir == "" {
		cfg.Logging.Dir = "logs"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Sweep.Interval == 0 {
		cfg.Sweep.Interval = 24 * time.Hour
	}
	if cfg.Sweep.Timeout == 0 {
		cfg.Sweep.Timeout = 30 * time.Minute
	}
	if cfg.Sweep.ChannelTimeout == 0 {
		cfg.Sweep.ChannelTimeout = 10 * time.Second
	}
	if cfg.Sweep.Workers <= 0 {
		cfg.Sweep.Workers = 4
	}
	if cfg.Sweep.Location == nil {
		cfg.Sweep.Location = time.Local
	}

	return cfg, nil
}
