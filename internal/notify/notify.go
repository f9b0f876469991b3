// Package notify defines the user-facing notification surface used by the
// coordinators. The rendering layer supplies a real implementation; the
// engine only depends on the interface, injected at construction.
package notify

import "github.com/rs/zerolog"

// Level classifies a notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notifier surfaces user-visible messages (toasts, banners). Implementations
// must be safe for concurrent use; coordinators call Notify from background
// goroutines.
type Notifier interface {
	Notify(level Level, message string)
}

// LogNotifier is the fallback notifier that writes notifications to the log.
// Used by the CLI and anywhere no UI surface is attached.
type LogNotifier struct {
	log zerolog.Logger
}

// NewLogNotifier creates a notifier backed by the given logger.
func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(level Level, message string) {
	switch level {
	case LevelError:
		n.log.Error().Str("notification", message).Msg("user notification")
	case LevelWarning:
		n.log.Warn().Str("notification", message).Msg("user notification")
	default:
		n.log.Info().Str("notification", message).Msg("user notification")
	}
}
