package store

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ram-tewari/neo-alexandria-sub020/internal/domain"
)

// Store is the single source of truth for submission records. Insertion order
// is preserved so admission can stay FIFO among pending items. All mutations
// happen under the lock; readers always get copies, never live records.
type Store struct {
	mu    sync.RWMutex
	items map[string]*domain.Item
	order []string
}

func New() *Store {
	return &Store{
		items: make(map[string]*domain.Item),
	}
}

// Enqueue creates a pending record for the payload and returns a copy of it.
func (s *Store) Enqueue(payload domain.Payload) domain.Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	item := &domain.Item{
		ID:        uuid.NewString(),
		Payload:   payload,
		Status:    domain.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.items[item.ID] = item
	s.order = append(s.order, item.ID)
	return *item
}

// Get returns a copy of the record, if present.
func (s *Store) Get(id string) (domain.Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return domain.Item{}, false
	}
	return *item, true
}

// Update applies the mutation atomically. Unknown ids are a no-op so updates
// racing with concurrent removal stay idempotent.
func (s *Store) Update(id string, apply func(*domain.Item)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return false
	}
	apply(item)
	item.UpdatedAt = time.Now().UTC()
	return true
}

// Remove deletes the record. Unknown ids are a no-op.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(id)
}

// RemoveWhere deletes every record matching the predicate and returns how
// many were removed.
func (s *Store) RemoveWhere(match func(domain.Item) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for _, id := range append([]string(nil), s.order...) {
		item, ok := s.items[id]
		if !ok {
			continue
		}
		if match(*item) && s.removeLocked(id) {
			removed++
		}
	}
	return removed
}

// Snapshot returns copies of all records in insertion order.
func (s *Store) Snapshot() []domain.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]domain.Item, 0, len(s.order))
	for _, id := range s.order {
		if item, ok := s.items[id]; ok {
			items = append(items, *item)
		}
	}
	return items
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *Store) removeLocked(id string) bool {
	if _, ok := s.items[id]; !ok {
		return false
	}
	delete(s.items, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}
