package mail

import (
	"context"

	"go.uber.org/zap"
)

type logMailer struct {
	from string
	log  *zap.Logger
}

// NewLogMailer returns a Mailer that writes messages to the log instead of
// delivering them. Intended for local development when SMTP is disabled.
func NewLogMailer(from string, log *zap.Logger) Mailer {
	if log == nil {
		log = zap.NewNop()
	}
	return &logMailer{from: from, log: log}
}

func (m *logMailer) Send(_ context.Context, msg Message) error {
	from, recipients, err := resolveEnvelope(msg, m.from)
	if err != nil {
		return err
	}

	body := msg.Body
	if body == "" {
		body = msg.HTMLBody
	}

	m.log.Info("email not delivered (smtp disabled)",
		zap.String("from", from),
		zap.Strings("to", recipients),
		zap.String("subject", msg.Subject),
		zap.String("body", body),
	)
	return nil
}
