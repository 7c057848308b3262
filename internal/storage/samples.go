package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/claude/fitbridge/internal/models"
)

// insertBatchSize keeps each INSERT well below the 65535 parameter limit.
const insertBatchSize = 1000

const sampleColumns = 6

// InsertSamples batch-inserts raw samples. Returns the number actually
// inserted (duplicates are skipped via ON CONFLICT DO NOTHING).
func (db *DB) InsertSamples(ctx context.Context, userID int, samples []models.RawSample) (int64, error) {
	var total int64
	for start := 0; start < len(samples); start += insertBatchSize {
		end := min(start+insertBatchSize, len(samples))
		n, err := db.insertBatch(ctx, userID, samples[start:end])
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func (db *DB) insertBatch(ctx context.Context, userID int, samples []models.RawSample) (int64, error) {
	query := `INSERT INTO raw_samples (user_id, kind, start_time, end_time, value, source)
VALUES `
	args := make([]any, 0, len(samples)*sampleColumns)
	valueStrings := make([]string, 0, len(samples))

	for i, s := range samples {
		base := i * sampleColumns
		valueStrings = append(valueStrings, fmt.Sprintf(
			"($%d,$%d,$%d,$%d,$%d,$%d)",
			base+1, base+2, base+3, base+4, base+5, base+6,
		))
		args = append(args, userID, s.Kind.String(), s.Start, s.End, s.Value, s.Source)
	}

	query += strings.Join(valueStrings, ",") + " ON CONFLICT DO NOTHING"

	tag, err := db.Pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("inserting samples: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ReadSamples returns the raw samples of the given kinds starting within r,
// ordered by start time.
func (db *DB) ReadSamples(ctx context.Context, userID int, kinds []models.MetricKind, r models.TimeRange) ([]models.RawSample, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT kind, start_time, end_time, value, source
		 FROM raw_samples
		 WHERE user_id = $1 AND kind = ANY($2) AND start_time >= $3 AND start_time <= $4
		 ORDER BY start_time ASC`,
		userID, kindNames(kinds), r.Start, r.End)
	if err != nil {
		return nil, fmt.Errorf("querying samples: %w", err)
	}
	defer rows.Close()

	return scanSamples(rows)
}

// ReadBuckets sums an additive kind into buckets of width whose boundaries
// fall on wall-clock hours or days in the named time zone. Each bucket is
// returned as one sample spanning the bucket.
func (db *DB) ReadBuckets(ctx context.Context, userID int, kind models.MetricKind, r models.TimeRange, width models.BucketWidth, loc *time.Location) ([]models.RawSample, error) {
	if width != models.BucketHour && width != models.BucketDay {
		return nil, fmt.Errorf("%w: bucket width %s", models.ErrInvalidArgument, width)
	}
	if loc == nil {
		loc = time.UTC
	}

	rows, err := db.Pool.Query(ctx,
		`SELECT date_trunc($1, start_time AT TIME ZONE $2) AS bucket, SUM(value)
		 FROM raw_samples
		 WHERE user_id = $3 AND kind = $4 AND start_time >= $5 AND start_time <= $6
		 GROUP BY bucket
		 ORDER BY bucket ASC`,
		width.String(), loc.String(), userID, kind.String(), r.Start, r.End)
	if err != nil {
		return nil, fmt.Errorf("querying %s buckets: %w", width, err)
	}
	defer rows.Close()

	var result []models.RawSample
	for rows.Next() {
		var wall time.Time
		var sum float64
		if err := rows.Scan(&wall, &sum); err != nil {
			return nil, fmt.Errorf("scanning bucket: %w", err)
		}
		// The bucket is a zone-less wall time; pin it back to loc.
		start := time.Date(wall.Year(), wall.Month(), wall.Day(), wall.Hour(), 0, 0, 0, loc)
		end := start.Add(time.Hour)
		if width == models.BucketDay {
			end = start.AddDate(0, 0, 1)
		}
		result = append(result, models.RawSample{Kind: kind, Start: start, End: end, Value: sum})
	}
	return result, rows.Err()
}

func kindNames(kinds []models.MetricKind) []string {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}
	return names
}

func scanSamples(rows pgx.Rows) ([]models.RawSample, error) {
	var result []models.RawSample
	for rows.Next() {
		var s models.RawSample
		var kind string
		if err := rows.Scan(&kind, &s.Start, &s.End, &s.Value, &s.Source); err != nil {
			return nil, fmt.Errorf("scanning sample row: %w", err)
		}
		k, err := models.ParseMetricKind(kind)
		if err != nil {
			return nil, fmt.Errorf("scanning sample row: %w", err)
		}
		s.Kind = k
		result = append(result, s)
	}
	return result, rows.Err()
}
