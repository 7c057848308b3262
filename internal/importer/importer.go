// Package importer backfills raw samples from a Health Auto Export AutoSync
// directory.
package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/claude/fitbridge/internal/ingest"
	"github.com/claude/fitbridge/internal/ingest/hae"
	"github.com/claude/fitbridge/internal/models"
)

// Stats tracks import progress.
type Stats struct {
	FilesProcessed int `json:"files_processed"`
	FilesSkipped   int `json:"files_skipped"`
	FilesErrored   int `json:"files_errored"`

	SamplesRead       int   `json:"samples_read"`
	SamplesInserted   int64 `json:"samples_inserted"`
	SamplesDuplicated int64 `json:"samples_duplicated"`
	SamplesMalformed  int   `json:"samples_malformed"`

	RejectedMetrics []string `json:"rejected_metrics,omitempty"`
}

// Importer reads .hae files from an AutoSync directory and stores their samples.
type Importer struct {
	store  ingest.SampleStore
	log    *slog.Logger
	userID int
	dryRun bool
	decode func(path string) ([]byte, error)
	stats  Stats
}

// New creates a new Importer writing samples for userID.
func New(store ingest.SampleStore, userID int, log *slog.Logger, dryRun bool) *Importer {
	return &Importer{store: store, userID: userID, log: log, dryRun: dryRun, decode: ReadHAEFile}
}

// Import processes every .hae file under AutoSync/HealthMetrics. Metric
// directories without a matching kind are reported in RejectedMetrics.
func (imp *Importer) Import(ctx context.Context, autoSyncDir string) (*Stats, error) {
	healthDir := filepath.Join(autoSyncDir, "HealthMetrics")
	entries, err := os.ReadDir(healthDir)
	if err != nil {
		return &imp.stats, fmt.Errorf("reading %s: %w", healthDir, err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		kind, ok := hae.KindForName(name)
		if !ok {
			imp.stats.RejectedMetrics = append(imp.stats.RejectedMetrics, name)
			imp.log.Info("skipping unsupported metric", "metric", name)
			continue
		}
		if err := imp.importMetricDir(ctx, filepath.Join(healthDir, name), kind); err != nil {
			return &imp.stats, fmt.Errorf("importing %s: %w", name, err)
		}
	}
	return &imp.stats, nil
}

// importMetricDir imports all .hae files in a single metric's directory.
func (imp *Importer) importMetricDir(ctx context.Context, dir string, kind models.MetricKind) error {
	files, err := filepath.Glob(filepath.Join(dir, "*.hae"))
	if err != nil {
		return err
	}
	sort.Strings(files)

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}

		data, err := imp.decode(f)
		if err != nil {
			imp.log.Warn("decompress failed", "file", f, "error", err)
			imp.stats.FilesErrored++
			continue
		}

		var file models.HAEFileMetric
		if err := json.Unmarshal(data, &file); err != nil {
			imp.log.Warn("parse failed", "file", f, "error", err)
			imp.stats.FilesErrored++
			continue
		}

		samples := imp.convert(kind, file.Data)
		if len(samples) == 0 {
			imp.stats.FilesSkipped++
			continue
		}

		imp.stats.FilesProcessed++
		imp.stats.SamplesRead += len(samples)
		if imp.dryRun {
			continue
		}

		inserted, err := imp.store.InsertSamples(ctx, imp.userID, samples)
		if err != nil {
			return fmt.Errorf("inserting from %s: %w", filepath.Base(f), err)
		}
		imp.stats.SamplesInserted += inserted
		imp.stats.SamplesDuplicated += int64(len(samples)) - inserted
	}
	return nil
}

// convert maps file data points to samples, dropping points without a
// value and points that fail validation.
func (imp *Importer) convert(kind models.MetricKind, points []models.HAEFileDataPoint) []models.RawSample {
	var out []models.RawSample
	for i := range points {
		dp := &points[i]

		// Active energy files hold kJ and kcal duplicates of each reading.
		if kind == models.MetricCalories && dp.Unit != "" && dp.Unit != "kcal" {
			continue
		}

		var value float64
		var ok bool
		if kind == models.MetricSleepSegment {
			var code int
			code, ok = dp.SleepStageCode()
			value = float64(code)
		} else {
			value, ok = dp.Value()
		}
		if !ok {
			continue
		}

		s := models.RawSample{
			Kind:   kind,
			Start:  models.AppleTimestampToTime(dp.Start),
			End:    models.AppleTimestampToTime(dp.End),
			Value:  value,
			Source: dp.SourceName(),
		}
		if err := s.Validate(); err != nil {
			imp.log.Warn("skipping data point", "kind", kind, "error", err)
			imp.stats.SamplesMalformed++
			continue
		}
		out = append(out, s)
	}
	return out
}
