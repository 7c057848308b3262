package ingest

import (
	"context"

	"github.com/claude/fitbridge/internal/models"
)

// SampleStore persists raw samples idempotently and reports how many rows
// were new.
type SampleStore interface {
	InsertSamples(ctx context.Context, userID int, samples []models.RawSample) (int64, error)
}

// Result holds the outcome of an ingest operation.
type Result struct {
	MetricsReceived int      `json:"metrics_received"`
	MetricsInserted int64    `json:"metrics_inserted"`
	MetricsSkipped  int64    `json:"metrics_skipped"`
	MetricsRejected int      `json:"metrics_rejected"`
	RejectedNames   []string `json:"rejected_names,omitempty"`
	Malformed       int      `json:"malformed,omitempty"`

	Message string `json:"message,omitempty"`
}
