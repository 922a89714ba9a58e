package notify

import (
	"context"
	"log/slog"
)

// LogMailer writes mail to the log instead of delivering it. It is the
// default until an SMTP or provider-backed Mailer is configured.
type LogMailer struct {
	Logger *slog.Logger
}

func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.Logger.Info("outbound mail",
		"to", msg.To,
		"subject", msg.Subject,
		"body", msg.Body,
	)
	return nil
}
