package mail

import (
	"context"

	"failboard/internal/models"

	"go.uber.org/zap"
)

// LogSender renders the e-mail and logs it instead of sending. It stands in
// for SMTP when no server is configured.
type LogSender struct {
	log *zap.Logger
}

func NewLogSender(log *zap.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(_ context.Context, tpl models.EmailTemplate, to string, vars map[string]any) error {
	subject, _, err := Render(tpl, vars)
	if err != nil {
		return err
	}
	s.log.Info("email not sent, smtp disabled",
		zap.String("to", to),
		zap.String("template", string(tpl)),
		zap.String("subject", subject))
	return nil
}
