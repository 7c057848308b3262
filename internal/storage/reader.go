package storage

import (
	"context"
	"time"

	"github.com/claude/fitbridge/internal/models"
)

// SampleReader reads one user's samples, bucketing additive kinds in SQL.
type SampleReader struct {
	db     *DB
	userID int
	loc    *time.Location
}

// NewSampleReader binds db to a user and a calendar location.
func NewSampleReader(db *DB, userID int, loc *time.Location) *SampleReader {
	return &SampleReader{db: db, userID: userID, loc: loc}
}

// Read returns samples for kinds over r. Bucketed reads are only pushed to
// the database for additive kinds in a named zone; other kinds come back raw.
func (r *SampleReader) Read(ctx context.Context, kinds []models.MetricKind, tr models.TimeRange, width models.BucketWidth) ([]models.RawSample, error) {
	if err := tr.Validate(); err != nil {
		return nil, err
	}

	var raw []models.MetricKind
	var out []models.RawSample
	for _, k := range kinds {
		if width == models.BucketNone || !k.Additive() || !r.namedZone() {
			raw = append(raw, k)
			continue
		}
		buckets, err := r.db.ReadBuckets(ctx, r.userID, k, tr, width, r.loc)
		if err != nil {
			return nil, err
		}
		out = append(out, buckets...)
	}

	if len(raw) > 0 {
		samples, err := r.db.ReadSamples(ctx, r.userID, raw, tr)
		if err != nil {
			return nil, err
		}
		out = append(out, samples...)
	}
	return out, nil
}

// namedZone reports whether loc has a name PostgreSQL can resolve.
func (r *SampleReader) namedZone() bool {
	return r.loc != nil && r.loc != time.Local && r.loc.String() != "Local"
}
