package hae

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	ingesthae "github.com/claude/fitbridge/internal/ingest/hae"
	"github.com/claude/fitbridge/internal/models"
)

// Reader issues one health_metrics query per metric kind.
type Reader struct {
	client *Client
	log    *slog.Logger
}

// NewReader creates a Reader over client.
func NewReader(client *Client, log *slog.Logger) *Reader {
	return &Reader{client: client, log: log}
}

// Read queries each kind in turn. Daily buckets of additive kinds are
// summarized by the server; everything else is returned unaggregated and
// bucketed by the caller.
func (r *Reader) Read(ctx context.Context, kinds []models.MetricKind, tr models.TimeRange, width models.BucketWidth) ([]models.RawSample, error) {
	if err := tr.Validate(); err != nil {
		return nil, err
	}

	var out []models.RawSample
	for _, kind := range kinds {
		name, ok := ingesthae.NameForKind(kind)
		if !ok {
			return nil, fmt.Errorf("%w: no HAE metric for %s", models.ErrInvalidArgument, kind)
		}
		aggregate := width == models.BucketDay && kind.Additive()

		raw, err := r.client.QueryMetricsWithRetry(ctx, tr.Start, tr.End, name, aggregate)
		if err != nil {
			return nil, fmt.Errorf("querying %s: %w", name, err)
		}
		samples, err := r.decode(raw, kind)
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", name, err)
		}
		out = append(out, samples...)
	}
	return out, nil
}

func (r *Reader) decode(raw json.RawMessage, kind models.MetricKind) ([]models.RawSample, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var payload models.HAEPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}

	var out []models.RawSample
	for _, m := range payload.Data.Metrics {
		samples, _, ok := ingesthae.ToSamples(m, r.log)
		if !ok {
			continue
		}
		for _, s := range samples {
			if s.Kind == kind {
				out = append(out, s)
			}
		}
	}
	return out, nil
}
