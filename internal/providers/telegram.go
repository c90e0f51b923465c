package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"golang.org/x/time/rate"

	"maintenance-service/internal/logging"
	"maintenance-service/internal/models"
	"maintenance-service/internal/utils"
)

// ChannelChat is the registry name of the chat channel.
const ChannelChat = "chat"

type messageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*tgmodels.Message, error)
}

// TelegramChannel posts messages to Telegram chats through one shared bot.
type TelegramChannel struct {
	bot     messageSender
	limiter *rate.Limiter
	logger  *logging.Logger
	retries int
	delay   time.Duration
}

// NewTelegramChannel builds the chat channel; ratePerSecond bounds the
// outgoing message rate across all chats.
func NewTelegramChannel(token string, ratePerSecond int, logger *logging.Logger) (*TelegramChannel, error) {
	b, err := bot.New(token)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Telegram bot: %w", err)
	}
	return newTelegramChannel(b, ratePerSecond, logger), nil
}

func newTelegramChannel(sender messageSender, ratePerSecond int, logger *logging.Logger) *TelegramChannel {
	if ratePerSecond <= 0 {
		ratePerSecond = 1
	}
	return &TelegramChannel{
		bot:     sender,
		limiter: rate.NewLimiter(rate.Limit(float64(ratePerSecond)), ratePerSecond),
		logger:  logger,
		retries: 3,
		delay:   time.Second,
	}
}

func (t *TelegramChannel) Name() string { return ChannelChat }

// Send posts msg to r.ChatID.
func (t *TelegramChannel) Send(ctx context.Context, r models.Recipient, msg models.Message) error {
	if r.ChatID == 0 {
		return fmt.Errorf("recipient %q has no chat id: %w", r.Name, ErrNoAddress)
	}

	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("telegram rate limit exceeded: %w", err)
	}

	text := fmt.Sprintf("*%s*\n%s", bot.EscapeMarkdown(msg.Subject), bot.EscapeMarkdown(msg.Body))

	return utils.Retry(ctx, t.logger, t.retries, t.delay, func() error {
		params := &bot.SendMessageParams{
			ChatID:    r.ChatID,
			Text:      text,
			ParseMode: tgmodels.ParseModeMarkdown,
		}
		if _, err := t.bot.SendMessage(ctx, params); err != nil {
			return fmt.Errorf("failed to send Telegram message to chat_id %d: %w", r.ChatID, err)
		}
		return nil
	})
}
