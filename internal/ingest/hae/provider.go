package hae

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/claude/fitbridge/internal/ingest"
	"github.com/claude/fitbridge/internal/metrics"
	"github.com/claude/fitbridge/internal/models"
)

var errAggregatedSleep = errors.New("aggregated sleep data has no stage segments")

// ToSamples converts the data points of one HAE metric to raw samples.
// Points that cannot be decoded or fail validation are logged and counted in
// skipped. A metric name outside the supported set yields ok=false.
func ToSamples(m models.HAEMetric, log *slog.Logger) (samples []models.RawSample, skipped int, ok bool) {
	kind, ok := KindForName(m.Name)
	if !ok {
		return nil, 0, false
	}

	samples = make([]models.RawSample, 0, len(m.Data))
	for _, raw := range m.Data {
		s, err := convertDataPoint(kind, raw)
		if err == nil {
			err = s.Validate()
		}
		if err != nil {
			log.Warn("skipping data point", "metric", m.Name, "error", err)
			metrics.RecordMalformed(kind.String())
			skipped++
			continue
		}
		samples = append(samples, s)
	}
	return samples, skipped, true
}

// convertDataPoint decodes a data point according to the metric's shape.
func convertDataPoint(kind models.MetricKind, raw json.RawMessage) (models.RawSample, error) {
	switch DetectMetricShape(nameByKind[kind]) {
	case ShapeMinAvgMax:
		var dp models.HAEHeartRateDataPoint
		if err := json.Unmarshal(raw, &dp); err != nil {
			return models.RawSample{}, fmt.Errorf("%w: parsing min/avg/max: %v", models.ErrMalformedSample, err)
		}
		return dp.Sample(), nil

	case ShapeSleepStage:
		if DetectSleepFormat(raw) == SleepFormatAggregated {
			return models.RawSample{}, fmt.Errorf("%w: %v", models.ErrMalformedSample, errAggregatedSleep)
		}
		var st models.HAESleepStage
		if err := json.Unmarshal(raw, &st); err != nil {
			return models.RawSample{}, fmt.Errorf("%w: parsing sleep stage: %v", models.ErrMalformedSample, err)
		}
		return st.Sample(), nil

	default:
		var dp models.HAEMetricDataPoint
		if err := json.Unmarshal(raw, &dp); err != nil {
			return models.RawSample{}, fmt.Errorf("%w: parsing qty: %v", models.ErrMalformedSample, err)
		}
		return dp.Sample(kind), nil
	}
}

// Provider processes Health Auto Export REST API payloads.
type Provider struct {
	store ingest.SampleStore
	log   *slog.Logger
}

// NewProvider creates a new HAE ingest provider.
func NewProvider(store ingest.SampleStore, log *slog.Logger) *Provider {
	return &Provider{store: store, log: log}
}

// Ingest converts an HAE JSON payload and stores the accepted samples.
func (p *Provider) Ingest(ctx context.Context, payload *models.HAEPayload, userID int) (*ingest.Result, error) {
	result := &ingest.Result{}
	rejectedSet := map[string]bool{}

	var all []models.RawSample
	for _, m := range payload.Data.Metrics {
		samples, skipped, ok := ToSamples(m, p.log)
		if !ok {
			if !rejectedSet[m.Name] {
				result.RejectedNames = append(result.RejectedNames, m.Name)
				rejectedSet[m.Name] = true
			}
			result.MetricsRejected += len(m.Data)
			continue
		}
		result.MetricsReceived += len(m.Data)
		result.Malformed += skipped
		all = append(all, samples...)
	}

	if len(all) > 0 {
		inserted, err := p.store.InsertSamples(ctx, userID, all)
		if err != nil {
			return result, fmt.Errorf("inserting samples: %w", err)
		}
		result.MetricsInserted = inserted
		result.MetricsSkipped = int64(len(all)) - inserted
	}

	if len(result.RejectedNames) > 0 {
		result.Message = fmt.Sprintf(
			"Some metrics were rejected because they are not supported: %v. Accepted metrics are stored.",
			result.RejectedNames)
	}
	return result, nil
}
