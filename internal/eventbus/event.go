package eventbus

import (
	"log/slog"
	"time"
)

// Event is a notification published on the bus.
type Event struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	Payload   map[string]string `json:"payload"`
}

// Listener handles an event.
type Listener func(Event)

// LogListener returns a listener that writes every event to logger.
func LogListener(logger *slog.Logger) Listener {
	return func(e Event) {
		attrs := make([]any, 0, len(e.Payload)+2)
		attrs = append(attrs, slog.String("event_id", e.ID), slog.String("event_type", e.Type))
		for k, v := range e.Payload {
			attrs = append(attrs, slog.String(k, v))
		}
		logger.Info("event", attrs...)
	}
}
