// Package timerange derives the day-aligned query windows used by the pipeline.
package timerange

import (
	"fmt"
	"time"

	"github.com/claude/fitbridge/internal/models"
)

// DefaultDays is the window length used when the caller does not pick one.
const DefaultDays = 7

// MaxDays bounds the window length a caller may request.
const MaxDays = 366

// snapshotWindow is how far back the single-shot fitness snapshot looks.
const snapshotWindow = 7 * 24 * time.Hour

// Windows holds the ranges for one pipeline invocation.
type Windows struct {
	Daily    models.TimeRange
	Today    models.TimeRange
	Sleep    models.TimeRange
	Snapshot models.TimeRange
}

// Calculator computes windows in a fixed location. A nil Now uses time.Now.
type Calculator struct {
	Location *time.Location
	Now      func() time.Time
}

// New returns a Calculator for loc using the wall clock.
func New(loc *time.Location) Calculator {
	return Calculator{Location: loc, Now: time.Now}
}

func (c Calculator) loc() *time.Location {
	if c.Location == nil {
		return time.Local
	}
	return c.Location
}

// Current returns the current instant in the calculator's location.
func (c Calculator) Current() time.Time {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	return now().In(c.loc())
}

// CheckDays reports ErrInvalidArgument unless 1 <= n <= MaxDays.
func CheckDays(n int) error {
	if n <= 0 {
		return fmt.Errorf("%w: numberOfDays must be positive, got %d", models.ErrInvalidArgument, n)
	}
	if n > MaxDays {
		return fmt.Errorf("%w: numberOfDays must be at most %d, got %d", models.ErrInvalidArgument, MaxDays, n)
	}
	return nil
}

// Windows returns the daily, today, sleep and snapshot ranges for the last
// numberOfDays days.
func (c Calculator) Windows(numberOfDays int) (Windows, error) {
	if err := CheckDays(numberOfDays); err != nil {
		return Windows{}, err
	}

	now := c.Current()
	y, m, d := now.Date()
	loc := c.loc()

	endOfDay := time.Date(y, m, d, 23, 59, 59, 0, loc)

	return Windows{
		Daily: models.TimeRange{
			Start: time.Date(y, m, d-(numberOfDays-1), 0, 0, 0, 0, loc),
			End:   time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), loc),
		},
		Today: models.TimeRange{
			Start: time.Date(y, m, d, 0, 0, 0, 0, loc),
			End:   endOfDay,
		},
		Sleep: models.TimeRange{
			Start: time.Date(y, m, d-numberOfDays, 0, 0, 0, 0, loc),
			End:   endOfDay,
		},
		Snapshot: models.TimeRange{
			Start: now.Add(-snapshotWindow),
			End:   now,
		},
	}, nil
}

// DayKey formats the local calendar date of t.
func (c Calculator) DayKey(t time.Time) string {
	return t.In(c.loc()).Format(models.DateLayout)
}

// Days lists the calendar dates from r.Start through r.End inclusive, in
// loc, ascending.
func Days(r models.TimeRange, loc *time.Location) []string {
	start := r.Start.In(loc)
	end := r.End.In(loc)
	if start.After(end) {
		return nil
	}

	var days []string
	y, m, d := start.Date()
	endKey := end.Format(models.DateLayout)
	for i := 0; ; i++ {
		key := time.Date(y, m, d+i, 0, 0, 0, 0, loc).Format(models.DateLayout)
		days = append(days, key)
		if key == endKey {
			return days
		}
	}
}
