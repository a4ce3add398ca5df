package mail

import (
	"context"
	"fmt"
	"time"

	"failboard/config"
	"failboard/internal/models"

	gomail "github.com/wneessen/go-mail"
)

// Sender delivers one rendered e-mail.
type Sender interface {
	Send(ctx context.Context, tpl models.EmailTemplate, to string, vars map[string]any) error
}

type SMTPSender struct {
	client *gomail.Client
	from   string
	appURL string
}

func NewSMTPSender(cfg *config.Config) (*SMTPSender, error) {
	opts := []gomail.Option{
		gomail.WithPort(cfg.SMTPPort),
		gomail.WithTimeout(10 * time.Second),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	}
	if cfg.SMTPUser != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.SMTPUser),
			gomail.WithPassword(cfg.SMTPPassword),
		)
	}
	client, err := gomail.NewClient(cfg.SMTPHost, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}
	return &SMTPSender{client: client, from: cfg.MailFrom, appURL: cfg.AppURL}, nil
}

func (s *SMTPSender) Send(ctx context.Context, tpl models.EmailTemplate, to string, vars map[string]any) error {
	vars = withDefault(vars, "appURL", s.appURL)
	subject, body, err := Render(tpl, vars)
	if err != nil {
		return err
	}

	m := gomail.NewMsg()
	if err := m.From(s.from); err != nil {
		return fmt.Errorf("invalid from address: %w", err)
	}
	if err := m.To(to); err != nil {
		return fmt.Errorf("invalid recipient %q: %w", to, err)
	}
	m.Subject(subject)
	m.SetBodyString(gomail.TypeTextHTML, body)

	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("%w: smtp send: %v", models.ErrRemoteUnavailable, err)
	}
	return nil
}

func withDefault(vars map[string]any, key string, value any) map[string]any {
	out := make(map[string]any, len(vars)+1)
	for k, v := range vars {
		out[k] = v
	}
	if _, ok := out[key]; !ok {
		out[key] = value
	}
	return out
}
