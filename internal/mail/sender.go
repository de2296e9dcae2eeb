package mail

import (
	"context"
	"fmt"

	"github.com/CopperGroup/bytecraft/internal/config"
	gomail "github.com/wneessen/go-mail"
)

type Message struct {
	FromName string
	From     string
	To       string
	Subject  string
	HTML     string
}

// Sender delivers a rendered message. Implementations must not retry: the
// caller records the send only after Send returns nil.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPSender sends through an authenticated SMTP relay.
type SMTPSender struct {
	client *gomail.Client
}

func NewSMTPSender(cfg config.MailConfig) (*SMTPSender, error) {
	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}

	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}

	return &SMTPSender{client: client}, nil
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m := gomail.NewMsg()
	if err := m.FromFormat(msg.FromName, msg.From); err != nil {
		return fmt.Errorf("set from: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return fmt.Errorf("set to %q: %w", msg.To, err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(gomail.TypeTextHTML, msg.HTML)

	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}
