package store

import (
	"fmt"
	"testing"

	"github.com/ram-tewari/neo-alexandria-sub020/internal/domain"
)

func TestEnqueuePreservesInsertionOrder(t *testing.T) {
	s := New()

	ids := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		item := s.Enqueue(domain.Payload{RemoteURL: fmt.Sprintf("https://example.com/%d", i)})
		ids = append(ids, item.ID)
	}

	snapshot := s.Snapshot()
	if len(snapshot) != 5 {
		t.Fatalf("expected 5 records, got %d", len(snapshot))
	}
	for i, item := range snapshot {
		if item.ID != ids[i] {
			t.Fatalf("position %d: expected %s, got %s", i, ids[i], item.ID)
		}
		if item.Status != domain.StatusPending {
			t.Fatalf("expected pending status, got %s", item.Status)
		}
	}
}

func TestUpdateUnknownIDIsNoOp(t *testing.T) {
	s := New()
	if s.Update("missing", func(item *domain.Item) { item.Progress = 50 }) {
		t.Fatalf("expected update of unknown id to report false")
	}
	if s.Remove("missing") {
		t.Fatalf("expected remove of unknown id to report false")
	}
}

func TestUpdateMutatesStoredRecord(t *testing.T) {
	s := New()
	item := s.Enqueue(domain.Payload{LocalPath: "/tmp/notes.pdf"})

	ok := s.Update(item.ID, func(it *domain.Item) {
		it.Status = domain.StatusActive
		it.Progress = 40
	})
	if !ok {
		t.Fatalf("expected update to succeed")
	}

	stored, ok := s.Get(item.ID)
	if !ok {
		t.Fatalf("expected record to exist")
	}
	if stored.Status != domain.StatusActive || stored.Progress != 40 {
		t.Fatalf("unexpected record after update: %+v", stored)
	}
	if !stored.UpdatedAt.After(item.UpdatedAt) && !stored.UpdatedAt.Equal(item.UpdatedAt) {
		t.Fatalf("expected UpdatedAt to advance")
	}
}

func TestSnapshotReturnsCopies(t *testing.T) {
	s := New()
	item := s.Enqueue(domain.Payload{RemoteURL: "https://example.com/a"})

	snapshot := s.Snapshot()
	snapshot[0].Status = domain.StatusFailed
	snapshot[0].ErrorMessage = "mutated outside the store"

	stored, _ := s.Get(item.ID)
	if stored.Status != domain.StatusPending || stored.ErrorMessage != "" {
		t.Fatalf("snapshot mutation leaked into the store: %+v", stored)
	}
}

func TestRemoveWhere(t *testing.T) {
	s := New()
	for i := 0; i < 4; i++ {
		item := s.Enqueue(domain.Payload{RemoteURL: fmt.Sprintf("https://example.com/%d", i)})
		if i%2 == 0 {
			s.Update(item.ID, func(it *domain.Item) {
				it.Status = domain.StatusCompleted
				it.Progress = 100
			})
		}
	}

	removed := s.RemoveWhere(func(item domain.Item) bool {
		return item.Status == domain.StatusCompleted
	})
	if removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}
	if s.Len() != 2 {
		t.Fatalf("expected 2 remaining, got %d", s.Len())
	}
	for _, item := range s.Snapshot() {
		if item.Status == domain.StatusCompleted {
			t.Fatalf("completed record survived RemoveWhere")
		}
	}
}
