// Package pipeline runs the read-aggregate-format flow for one request.
//
// Reads that depend on each other run in sequence. A failed primary read
// fails the whole call; a failed secondary read is replaced by an empty
// result so the primary data still reaches the caller.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/claude/fitbridge/internal/aggregate"
	"github.com/claude/fitbridge/internal/format"
	"github.com/claude/fitbridge/internal/metrics"
	"github.com/claude/fitbridge/internal/models"
	"github.com/claude/fitbridge/internal/sleep"
	"github.com/claude/fitbridge/internal/timerange"
)

// Reader returns raw samples for the given kinds over r. A width other than
// BucketNone asks the source to pre-aggregate into buckets of that width.
type Reader interface {
	Read(ctx context.Context, kinds []models.MetricKind, r models.TimeRange, width models.BucketWidth) ([]models.RawSample, error)
}

// Pipeline holds the stateless components shared by all requests.
type Pipeline struct {
	reader Reader
	clock  timerange.Calculator
	agg    *aggregate.Aggregator
	sleep  *sleep.Grouper
	format format.Formatter
	log    *slog.Logger
}

// New creates a Pipeline reading from reader. Windows come from clock and
// buckets use its location.
func New(reader Reader, clock timerange.Calculator, log *slog.Logger) *Pipeline {
	if clock.Location == nil {
		clock.Location = time.Local
	}
	loc := clock.Location
	return &Pipeline{
		reader: reader,
		clock:  clock,
		agg:    aggregate.New(loc, log),
		sleep:  sleep.NewGrouper(loc, log),
		format: format.NewFormatter(loc),
		log:    log,
	}
}

// Location returns the calendar location used for bucketing.
func (p *Pipeline) Location() *time.Location {
	return p.clock.Location
}

// Now returns the pipeline clock's current time.
func (p *Pipeline) Now() time.Time {
	return p.clock.Current()
}

// DetailedSteps returns the structured list contract for the last
// numberOfDays days. Daily totals are the primary read; hourly totals are
// read afterwards from a separate query and dropped if that read fails.
func (p *Pipeline) DetailedSteps(ctx context.Context, auth AuthContext, numberOfDays int) (days []models.DailyMetric, err error) {
	defer func() { metrics.RecordRun("detailed_steps", err) }()

	w, err := p.clock.Windows(numberOfDays)
	if err != nil {
		return nil, err
	}
	if err := authorize(auth, models.MetricSteps); err != nil {
		return nil, err
	}

	dailySamples, err := p.read(ctx, []models.MetricKind{models.MetricSteps}, w.Daily, models.BucketDay)
	if err != nil {
		return nil, fmt.Errorf("reading daily steps: %w", err)
	}
	daily := p.agg.Daily(dailySamples, w.Daily)

	// Unlike the daily read, a failed hourly read degrades instead of failing the call.
	hourlySamples, err := degrade(ctx, p.log, "hourly_steps",
		p.readFn(ctx, []models.MetricKind{models.MetricSteps}, w.Daily, models.BucketHour))
	if err != nil {
		return nil, err
	}
	hourly := p.agg.Hourly(hourlySamples, w.Daily)

	return format.StepList(aggregate.Merge(daily, hourly)), nil
}

// SleepAndTodaySteps returns the document contract. Today's steps are the
// primary read; a failed sleep read yields an empty sleepData array.
func (p *Pipeline) SleepAndTodaySteps(ctx context.Context, auth AuthContext, numberOfDays int) (doc format.Document, err error) {
	defer func() { metrics.RecordRun("sleep_and_today_steps", err) }()

	w, err := p.clock.Windows(numberOfDays)
	if err != nil {
		return format.Document{}, err
	}
	if err := authorize(auth, models.MetricSteps, models.MetricSleepSegment); err != nil {
		return format.Document{}, err
	}

	todaySamples, err := p.read(ctx, []models.MetricKind{models.MetricSteps}, w.Today, models.BucketDay)
	if err != nil {
		return format.Document{}, fmt.Errorf("reading today's steps: %w", err)
	}
	today := format.TodaySteps{
		Date:  p.clock.DayKey(w.Today.Start),
		Steps: int64(math.Round(p.agg.Sum(todaySamples, w.Today))),
	}

	sleepSamples, err := degrade(ctx, p.log, "sleep_segments",
		p.readFn(ctx, []models.MetricKind{models.MetricSleepSegment}, w.Sleep, models.BucketNone))
	if err != nil {
		return format.Document{}, err
	}

	return p.format.Document(today, p.sleep.Group(sleepSamples)), nil
}

// SleepNights returns nightly summaries for the sleep window of the last
// numberOfDays days, newest first.
func (p *Pipeline) SleepNights(ctx context.Context, auth AuthContext, numberOfDays int) (nights []models.NightlySleepSummary, err error) {
	defer func() { metrics.RecordRun("sleep_nights", err) }()

	w, err := p.clock.Windows(numberOfDays)
	if err != nil {
		return nil, err
	}
	if err := authorize(auth, models.MetricSleepSegment); err != nil {
		return nil, err
	}

	samples, err := p.read(ctx, []models.MetricKind{models.MetricSleepSegment}, w.Sleep, models.BucketNone)
	if err != nil {
		return nil, fmt.Errorf("reading sleep segments: %w", err)
	}
	return p.sleep.Group(samples), nil
}

// SleepConsistency summarizes timing regularity over the last numberOfDays nights.
func (p *Pipeline) SleepConsistency(ctx context.Context, auth AuthContext, numberOfDays int) (sleep.Consistency, error) {
	nights, err := p.SleepNights(ctx, auth, numberOfDays)
	if err != nil {
		return sleep.Consistency{}, err
	}
	return sleep.ComputeConsistency(nights, p.clock.Location), nil
}

// snapshotReads are independent of each other and run concurrently.
var snapshotReads = [][]models.MetricKind{
	{models.MetricSteps, models.MetricDistance, models.MetricCalories},
	{models.MetricHeartRate},
	{models.MetricWeight, models.MetricHeight},
	{models.MetricSleepSegment},
}

// Snapshot returns the single-shot fitness summary for the last week. It is
// one logical query: any failed read fails the snapshot.
func (p *Pipeline) Snapshot(ctx context.Context, auth AuthContext) (snap models.FitnessSnapshot, err error) {
	defer func() { metrics.RecordRun("snapshot", err) }()

	w, err := p.clock.Windows(timerange.DefaultDays)
	if err != nil {
		return models.FitnessSnapshot{}, err
	}
	if err := authorize(auth, models.AllMetricKinds...); err != nil {
		return models.FitnessSnapshot{}, err
	}

	results := make([][]models.RawSample, len(snapshotReads))
	g, gctx := errgroup.WithContext(ctx)
	for i, kinds := range snapshotReads {
		g.Go(func() error {
			samples, err := p.read(gctx, kinds, w.Snapshot, models.BucketNone)
			if err != nil {
				return err
			}
			results[i] = samples
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return models.FitnessSnapshot{}, fmt.Errorf("reading fitness snapshot: %w", err)
	}

	var all []models.RawSample
	for _, r := range results {
		all = append(all, r...)
	}
	byKind := aggregate.ByKind(all)
	sleepMinutes := sleep.SpanMinutes(p.sleep.Segments(byKind[models.MetricSleepSegment]))
	return p.agg.Snapshot(byKind, w.Snapshot, sleepMinutes), nil
}

func (p *Pipeline) read(ctx context.Context, kinds []models.MetricKind, r models.TimeRange, width models.BucketWidth) ([]models.RawSample, error) {
	samples, err := p.reader.Read(ctx, kinds, r, width)
	for _, k := range kinds {
		metrics.RecordRead(k.String(), err)
	}
	if err != nil {
		return nil, &models.ReadError{Kinds: kinds, Err: err}
	}
	return samples, nil
}

// readFn defers a read so it can be handed to degrade.
func (p *Pipeline) readFn(ctx context.Context, kinds []models.MetricKind, r models.TimeRange, width models.BucketWidth) func() ([]models.RawSample, error) {
	return func() ([]models.RawSample, error) {
		return p.read(ctx, kinds, r, width)
	}
}

// degrade runs a secondary read and maps an upstream failure to the zero
// value. Cancellation and other errors still propagate.
func degrade[T any](ctx context.Context, log *slog.Logger, what string, fn func() (T, error)) (T, error) {
	v, err := fn()
	if err == nil {
		return v, nil
	}
	var zero T
	if ctxErr := ctx.Err(); ctxErr != nil {
		return zero, ctxErr
	}
	if !errors.Is(err, models.ErrUpstreamRead) {
		return zero, err
	}
	log.Warn("secondary read failed, using empty result", "read", what, "error", err)
	metrics.RecordDegraded(what)
	return zero, nil
}
