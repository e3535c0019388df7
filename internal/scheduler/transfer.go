package scheduler

import (
	"context"

	"github.com/ram-tewari/neo-alexandria-sub020/internal/domain"
)

// transfer drives one item through the Active stage: submit the payload to
// the ingestion service, stream progress into the record, then either hand
// off to the poller or mark the failure. The concurrency slot is released on
// every exit path.
func (s *Scheduler) transfer(ctx context.Context, itemID string) {
	defer s.runners.Done()

	item, ok := s.items.Get(itemID)
	if !ok {
		// Removed between admission and goroutine start; cancel already
		// released the slot along with the handle.
		return
	}

	externalID, err := s.service.Submit(ctx, item.Payload, func(percent int) {
		s.items.Update(itemID, func(it *domain.Item) {
			// Progress is only meaningful while transferring, and it never
			// moves backwards; late or out-of-order reports are dropped.
			if it.Status != domain.StatusActive {
				return
			}
			if percent > it.Progress && percent <= 100 {
				it.Progress = percent
			}
		})
	})

	if ctx.Err() != nil {
		// Cancelled mid-transfer or shutting down. The record was removed by
		// cancel (or is intentionally left as-is on Close); either way no
		// failure is recorded and nothing is notified.
		s.mu.Lock()
		s.detachLocked(itemID)
		s.admitLocked()
		s.mu.Unlock()
		return
	}

	if err != nil {
		s.failFromTransfer(itemID, err.Error())
		return
	}

	s.handOffToPoller(ctx, itemID, externalID)
}

// handOffToPoller performs the Active -> Processing transition: pin progress
// to 100, store the external id, release the slot, and start polling. From
// this point the poller is the only component mutating the record.
func (s *Scheduler) handOffToPoller(ctx context.Context, itemID, externalID string) {
	s.mu.Lock()
	handle, ok := s.inFlight[itemID]
	if !ok {
		// Cancelled while the submit call was completing.
		s.mu.Unlock()
		return
	}
	if handle.holdsSlot {
		handle.holdsSlot = false
		s.active--
	}
	s.items.Update(itemID, func(it *domain.Item) {
		it.Status = domain.StatusProcessing
		it.Progress = 100
		it.ExternalID = externalID
		it.ErrorMessage = ""
	})
	s.admitLocked()
	s.runners.Add(1)
	s.mu.Unlock()

	go s.poll(ctx, itemID, externalID)
}

func (s *Scheduler) failFromTransfer(itemID, message string) {
	s.mu.Lock()
	if _, ok := s.inFlight[itemID]; !ok {
		// Cancelled; the record is gone and cancellation never notifies.
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
	s.admitLocked()
	s.mu.Unlock()

	if s.logger != nil {
		s.logger.Printf("transfer failed item_id=%s error=%q", itemID, message)
	}
	if ok {
		s.emit(domain.Event{Kind: domain.EventFailed, Item: item, Error: message})
	}
}
