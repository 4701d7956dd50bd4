package mail

import (
	"context"

	"github.com/aximilate/ctrl/internal/logging"
)

// LogSender writes the code to the log instead of sending mail. Used in
// development so the flow works without an SMTP relay.
type LogSender struct {
	logger logging.Logger
}

func NewLogSender(logger logging.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) SendCode(ctx context.Context, to, code, purpose string) error {
	s.logger.Info(ctx, "verification code issued", "to", to, "purpose", purpose, "code", code)
	return nil
}
