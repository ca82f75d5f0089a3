package notification

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string

	// From address put on every outgoing message
	From string
}

// SMTPSink delivers messages over SMTP
type SMTPSink struct {
	client *mail.Client
	from   string
}

func NewSMTPSink(cfg SMTPConfig) (*SMTPSink, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("error while creating smtp client. Err: %w", err)
	}

	return &SMTPSink{client: client, from: cfg.From}, nil
}

func (s *SMTPSink) Send(ctx context.Context, msg Message) error {
	m := mail.NewMsg()
	if err := m.From(s.from); err != nil {
		return fmt.Errorf("invalid from address: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Body)

	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("error while sending mail. Err: %w", err)
	}

	return nil
}
