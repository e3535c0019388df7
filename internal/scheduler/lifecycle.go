package scheduler

import "github.com/ram-tewari/neo-alexandria-sub020/internal/domain"

// Retry moves a failed item back to pending and re-triggers admission. Any
// other state is a caller error: failures are the only recoverable terminal
// state, and recovery is always explicit.
func (s *Scheduler) Retry(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items.Get(id)
	if !ok {
		return ErrNotFound
	}
	if item.Status != domain.StatusFailed {
		return ErrNotRetryable
	}

	s.items.Update(id, func(it *domain.Item) {
		it.Status = domain.StatusPending
		it.Progress = 0
		it.Stage = ""
		it.ErrorMessage = ""
		it.ExternalID = ""
	})
	s.admitLocked()
	return nil
}

// Cancel signals the item's in-flight operation, frees its slot if it held
// one, and removes the record. Cancelled items are removed, not failed, so
// no notification is emitted. Terminal records have no operation left to
// signal; for them Cancel is plain removal.
func (s *Scheduler) Cancel(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items.Get(id); !ok {
		return ErrNotFound
	}
	s.cancelLocked(id)
	s.admitLocked()
	return nil
}

// ClearCompleted removes every completed record and returns the count.
func (s *Scheduler) ClearCompleted() int {
	return s.items.RemoveWhere(func(item domain.Item) bool {
		return item.Status == domain.StatusCompleted
	})
}

// ClearAll cancels every non-terminal record and removes everything.
func (s *Scheduler) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, item := range s.items.Snapshot() {
		s.cancelLocked(item.ID)
	}
}

// cancelLocked removes the record and its handle as one atomic step; the
// in-flight goroutine observes the missing handle and backs off without
// touching the store again. Callers must hold s.mu.
func (s *Scheduler) cancelLocked(id string) {
	if handle, ok := s.inFlight[id]; ok {
		handle.cancel()
	}
	s.detachLocked(id)
	s.items.Remove(id)
}
