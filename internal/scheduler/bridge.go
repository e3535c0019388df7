package scheduler

import (
	"context"
	"fmt"

	"github.com/ram-tewari/neo-alexandria-sub020/internal/domain"
	"github.com/ram-tewari/neo-alexandria-sub020/internal/notify"
)

// runBridge is the notification bridge: the single consumer of the terminal
// event channel. It fans each event out to the notifier and the caller's
// callbacks, keeping notification work off the goroutines driving records.
func (s *Scheduler) runBridge() {
	defer close(s.bridgeDone)
	for event := range s.events {
		s.dispatch(event)
	}
}

func (s *Scheduler) dispatch(event domain.Event) {
	ctx := context.Background()

	switch event.Kind {
	case domain.EventCompleted:
		message := fmt.Sprintf("resource ingested: %s", event.Item.Payload.Describe())
		if s.notifier != nil {
			if err := s.notifier.Notify(ctx, notify.KindSuccess, message); err != nil && s.logger != nil {
				s.logger.Printf("notifier error item_id=%s: %v", event.Item.ID, err)
			}
		}
		if s.callbacks.OnCompleted != nil {
			s.callbacks.OnCompleted(event.Item)
		}
	case domain.EventFailed:
		message := fmt.Sprintf("ingestion failed for %s: %s", event.Item.Payload.Describe(), event.Error)
		if s.notifier != nil {
			if err := s.notifier.Notify(ctx, notify.KindError, message); err != nil && s.logger != nil {
				s.logger.Printf("notifier error item_id=%s: %v", event.Item.ID, err)
			}
		}
		if s.callbacks.OnFailed != nil {
			s.callbacks.OnFailed(event.Item, event.Error)
		}
	}
}
