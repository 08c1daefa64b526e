package orchestrator

import "github.com/rs/zerolog"

// Level is the severity of a user notification.
type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Notifier receives the user facing signals of a dispatch.
type Notifier interface {
	// Badge sets the pending link count shown for a context.
	Badge(contextID string, count int)
	// Notify shows a message to the user.
	Notify(level Level, message string)
}

// LogNotifier writes notifications to a logger.
type LogNotifier struct {
	Logger zerolog.Logger
}

func (n LogNotifier) Badge(contextID string, count int) {
	n.Logger.Debug().Str("context", contextID).Int("count", count).Msg("Badge updated")
}

func (n LogNotifier) Notify(level Level, message string) {
	if level == LevelError {
		n.Logger.Error().Msg(message)
		return
	}
	n.Logger.Info().Msg(message)
}

type nopNotifier struct{}

func (nopNotifier) Badge(string, int)    {}
func (nopNotifier) Notify(Level, string) {}
