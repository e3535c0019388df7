package scheduler

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/ram-tewari/neo-alexandria-sub020/internal/domain"
	"github.com/ram-tewari/neo-alexandria-sub020/internal/ingest"
	"github.com/ram-tewari/neo-alexandria-sub020/internal/notify"
	"github.com/ram-tewari/neo-alexandria-sub020/internal/store"
)

var (
	ErrNotFound     = errors.New("scheduler: item not found")
	ErrNotRetryable = errors.New("scheduler: item is not in a failed state")
)

const eventBuffer = 64

type Config struct {
	MaxConcurrent int
	PollInterval  time.Duration
	PollTimeout   time.Duration
}

// Callbacks are optional hooks invoked by the notification bridge for every
// terminal transition. Cancelled items invoke neither.
type Callbacks struct {
	OnCompleted func(item domain.Item)
	OnFailed    func(item domain.Item, message string)
}

// Scheduler owns the item store, the concurrency budget, and every per-item
// goroutine. Slot accounting and the per-item cancellation handles share one
// mutex so overlapping admission triggers can never over-admit and a
// cancelled item can never be resurrected by a stale goroutine.
type Scheduler struct {
	service   ingest.Service
	notifier  notify.Notifier
	config    Config
	callbacks Callbacks
	logger    *log.Logger

	mu       sync.Mutex
	items    *store.Store
	active   int
	inFlight map[string]*itemHandle
	closed   bool

	baseCtx    context.Context
	baseCancel context.CancelFunc
	runners    sync.WaitGroup
	events     chan domain.Event
	bridgeDone chan struct{}
}

// itemHandle is the cancellation token for the operation currently driving an
// item: the transfer call while Active, the poll timer while Processing. A
// handle exists if and only if the item is in one of those two states.
type itemHandle struct {
	cancel    context.CancelFunc
	holdsSlot bool
}

func New(
	service ingest.Service,
	notifier notify.Notifier,
	config Config,
	callbacks Callbacks,
	logger *log.Logger,
) *Scheduler {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 3
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 5 * time.Second
	}
	if config.PollTimeout <= 0 {
		config.PollTimeout = 300 * time.Second
	}

	baseCtx, baseCancel := context.WithCancel(context.Background())
	s := &Scheduler{
		service:    service,
		notifier:   notifier,
		config:     config,
		callbacks:  callbacks,
		logger:     logger,
		items:      store.New(),
		inFlight:   make(map[string]*itemHandle),
		baseCtx:    baseCtx,
		baseCancel: baseCancel,
		events:     make(chan domain.Event, eventBuffer),
		bridgeDone: make(chan struct{}),
	}
	go s.runBridge()
	return s
}

// AddPayload enqueues a local file for ingestion and returns the item id.
func (s *Scheduler) AddPayload(path string) string {
	return s.add(domain.Payload{LocalPath: path})
}

// AddReference enqueues a remote locator for ingestion and returns the item id.
func (s *Scheduler) AddReference(url string) string {
	return s.add(domain.Payload{RemoteURL: url})
}

func (s *Scheduler) add(payload domain.Payload) string {
	item := s.items.Enqueue(payload)

	s.mu.Lock()
	s.admitLocked()
	s.mu.Unlock()

	return item.ID
}

// Snapshot returns copies of all records in insertion order.
func (s *Scheduler) Snapshot() []domain.Item {
	return s.items.Snapshot()
}

// Get returns a copy of one record.
func (s *Scheduler) Get(id string) (domain.Item, bool) {
	return s.items.Get(id)
}

// Close cancels every in-flight operation and waits for all scheduler
// goroutines to stop. Records keep whatever state they were in; no failure is
// synthesized for interrupted transfers.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		<-s.bridgeDone
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.baseCancel()
	s.runners.Wait()
	close(s.events)
	<-s.bridgeDone
}

// admitLocked scans pending items in insertion order and starts transfers
// while slots remain. The slot is taken here, under the lock, before the
// transfer goroutine exists, so two overlapping triggers cannot both claim
// the last slot. Callers must hold s.mu.
func (s *Scheduler) admitLocked() {
	if s.closed {
		return
	}
	for _, item := range s.items.Snapshot() {
		if s.active >= s.config.MaxConcurrent {
			return
		}
		if item.Status != domain.StatusPending {
			continue
		}
		if _, running := s.inFlight[item.ID]; running {
			continue
		}
		ok := s.items.Update(item.ID, func(it *domain.Item) {
			it.Status = domain.StatusActive
			it.Progress = 0
			it.ErrorMessage = ""
		})
		if !ok {
			continue
		}

		ctx, cancel := context.WithCancel(s.baseCtx)
		s.inFlight[item.ID] = &itemHandle{cancel: cancel, holdsSlot: true}
		s.active++
		s.runners.Add(1)
		go s.transfer(ctx, item.ID)
	}
}

// detachLocked drops the handle and frees its slot if it still holds one.
// Callers must hold s.mu.
func (s *Scheduler) detachLocked(id string) {
	handle, ok := s.inFlight[id]
	if !ok {
		return
	}
	delete(s.inFlight, id)
	if handle.holdsSlot {
		s.active--
	}
}

func (s *Scheduler) emit(event domain.Event) {
	s.events <- event
}
