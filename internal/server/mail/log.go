package mail

import (
	"context"

	"github.com/dmitrijs2005/lostfound/internal/logging"
)

// LogSender only logs messages. It is the development transport.
type LogSender struct {
	log logging.Logger
}

func NewLogSender(log logging.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.log.Info(ctx, "mail (log transport)", "to", msg.To, "subject", msg.Subject)
	s.log.Debug(ctx, "mail body", "to", msg.To, "body", msg.HTMLBody)
	return nil
}
