package logger

import (
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Cron adapts a slog.Logger to the cron.Logger interface. Cron's chatty
// Info output is demoted to debug.
type Cron struct {
	log *slog.Logger
}

var _ cron.Logger = Cron{}

// NewCron returns a cron logger tagged with the component name.
func NewCron(base *slog.Logger, component string) Cron {
	if base == nil {
		base = slog.New(slog.DiscardHandler)
	}
	return Cron{log: base.With("component", component)}
}

// Info logs routine scheduler events.
func (c Cron) Info(msg string, keysAndValues ...any) {
	c.log.Debug(msg, keysAndValues...)
}

// Error logs scheduler failures such as recovered job panics.
func (c Cron) Error(err error, msg string, keysAndValues ...any) {
	c.log.Error(msg, append([]any{"error", err}, keysAndValues...)...)
}
