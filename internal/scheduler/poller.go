package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/ram-tewari/neo-alexandria-sub020/internal/domain"
)

// poll drives one item through the Processing stage: query the ingestion
// service at a fixed interval until it reports a terminal state or the
// overall deadline elapses. Query transport errors are transient and do not
// touch the record; the deadline is wall-clock, so a burst of transient
// errors cannot stretch it.
func (s *Scheduler) poll(ctx context.Context, itemID, externalID string) {
	defer s.runners.Done()

	started := time.Now()
	timer := time.NewTimer(s.config.PollInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		report, err := s.service.Status(ctx, externalID)
		if ctx.Err() != nil {
			return
		}

		if err == nil && report.Terminal {
			if report.Success {
				s.completeFromPoll(itemID)
			} else {
				message := report.Error
				if message == "" {
					message = "ingestion service reported failure"
				}
				s.failFromPoll(itemID, message)
			}
			return
		}

		if err == nil {
			s.items.Update(itemID, func(it *domain.Item) {
				if it.Status == domain.StatusProcessing {
					it.Stage = report.Stage
				}
			})
		} else if s.logger != nil {
			s.logger.Printf("status poll error item_id=%s external_id=%s: %v", itemID, externalID, err)
		}

		if time.Since(started) >= s.config.PollTimeout {
			s.failFromPoll(itemID, fmt.Sprintf("ingestion timed out after %s", s.config.PollTimeout))
			return
		}
		timer.Reset(s.config.PollInterval)
	}
}

func (s *Scheduler) completeFromPoll(itemID string) {
	s.mu.Lock()
	if _, ok := s.inFlight[itemID]; !ok {
		s.mu.Unlock()
		return
	}
	s.detachLocked(itemID)
	s.items.Update(itemID, func(it *domain.Item) {
		it.Status = domain.StatusCompleted
		it.Progress = 100
		it.Stage = ""
		it.ErrorMessage = ""
	})
	item, ok := s.items.Get(itemID)
	s.mu.Unlock()

	if ok {
		s.emit(domain.Event{Kind: domain.EventCompleted, Item: item})
	}
}

func (s *Scheduler) failFromPoll(itemID, message string) {
	s.mu.Lock()
	if _, ok := s.inFlight[itemID]; !ok {
		s.mu.Unlock()
		return
	}
	s.detachLocked(itemID)
	s.items.Update(itemID, func(it *domain.Item) {
		it.Status = domain.StatusFailed
		it.ErrorMessage = message
		it.Stage = ""
	})
	item, ok := s.items.Get(itemID)
	s.mu.Unlock()

	if s.logger != nil {
		s.logger.Printf("processing failed item_id=%s error=%q", itemID, message)
	}
	if ok {
		s.emit(domain.Event{Kind: domain.EventFailed, Item: item, Error: message})
	}
}
