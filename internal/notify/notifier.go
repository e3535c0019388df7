package notify

import (
	"context"
	"log"
)

type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// Notifier delivers human-readable terminal-state messages to wherever the
// host wants them surfaced.
type Notifier interface {
	Notify(ctx context.Context, kind Kind, message string) error
}

// LogNotifier writes notifications to the process logger. It is the fallback
// sink when no external notification backend is configured.
type LogNotifier struct {
	logger *log.Logger
}

func NewLogNotifier(logger *log.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, kind Kind, message string) error {
	if n.logger != nil {
		n.logger.Printf("notification kind=%s message=%q", kind, message)
	}
	return nil
}
