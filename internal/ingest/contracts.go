package ingest

import (
	"context"

	"github.com/ram-tewari/neo-alexandria-sub020/internal/domain"
)

// ProgressFunc receives transfer progress percentages in [0,100] while a
// submission is uploading.
type ProgressFunc func(percent int)

// StatusReport mirrors the status payload reported by the ingestion service
// for a submitted resource.
type StatusReport struct {
	Stage    string `json:"stage"`
	Terminal bool   `json:"terminal"`
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
}

// Service is the external pipeline the scheduler submits resources to. Submit
// blocks until the service accepted or rejected the payload; Status queries a
// previously accepted submission by its external id.
type Service interface {
	Submit(ctx context.Context, payload domain.Payload, progress ProgressFunc) (externalID string, err error)
	Status(ctx context.Context, externalID string) (StatusReport, error)
}
