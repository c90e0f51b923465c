package providers

import (
	"context"
	"fmt"

	"maintenance-service/internal/config"
	"maintenance-service/internal/models"
	"maintenance-service/pkg/email"
)

// ChannelEmail is the registry name of the email channel.
const ChannelEmail = "email"

type sendMailFunc func(server string, port int, username, password, from, to, subject, body string) error

// EmailChannel sends messages over SMTP using the configured relay.
type EmailChannel struct {
	cfg      config.Config
	sendMail sendMailFunc
}

func NewEmailChannel(cfg config.Config) *EmailChannel {
	return &EmailChannel{cfg: cfg, sendMail: email.Send}
}

func (e *EmailChannel) Name() string { return ChannelEmail }

// Send delivers msg to r.Email. net/smtp has no context support, so the
// call runs in its own goroutine and Send returns when ctx expires.
func (e *EmailChannel) Send(ctx context.Context, r models.Recipient, msg models.Message) error {
	if r.Email == "" {
		return fmt.Errorf("recipient %q has no email address: %w", r.Name, ErrNoAddress)
	}

	smtpServer := e.cfg.Email.SMTPServer
	smtpPort := e.cfg.Email.SMTPPort
	username := e.cfg.Email.Username
	password := e.cfg.Email.Password

	if smtpServer == "" || smtpPort == 0 || username == "" || password == "" {
		return fmt.Errorf("missing Email configuration: SMTPServer, SMTPPort, Username, or Password is empty")
	}

	done := make(chan error, 1)
	go func() {
		done <- e.sendMail(smtpServer, smtpPort, username, password, e.cfg.Email.FromName, r.Email, msg.Subject, msg.Body)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send email to %s: %w", r.Email, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("email to %s abandoned: %w", r.Email, ctx.Err())
	}
}
