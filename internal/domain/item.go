package domain

import "time"

type ItemStatus string

const (
	StatusPending    ItemStatus = "pending"
	StatusActive     ItemStatus = "active"
	StatusProcessing ItemStatus = "processing"
	StatusCompleted  ItemStatus = "completed"
	StatusFailed     ItemStatus = "failed"
)

// Terminal reports whether no further automatic transition occurs.
func (s ItemStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Payload identifies the content of a submission. Exactly one field is set:
// LocalPath for content already on disk, RemoteURL for content the ingestion
// service fetches itself.
type Payload struct {
	LocalPath string `json:"local_path,omitempty"`
	RemoteURL string `json:"remote_url,omitempty"`
}

func (p Payload) Remote() bool {
	return p.RemoteURL != ""
}

// Describe returns the human-readable name of the payload for notifications.
func (p Payload) Describe() string {
	if p.Remote() {
		return p.RemoteURL
	}
	return p.LocalPath
}

// Item is the canonical submission record tracked by the scheduler.
type Item struct {
	ID           string     `json:"id"`
	Payload      Payload    `json:"payload"`
	Status       ItemStatus `json:"status"`
	Progress     int        `json:"progress"`
	Stage        string     `json:"stage,omitempty"`
	ErrorMessage string     `json:"error,omitempty"`
	ExternalID   string     `json:"external_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

type EventKind string

const (
	EventCompleted EventKind = "completed"
	EventFailed    EventKind = "failed"
)

// Event is pushed by the scheduler for every terminal transition. Cancelled
// items never produce an event.
type Event struct {
	Kind  EventKind
	Item  Item
	Error string
}
