package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/claude/fitbridge/internal/metrics"
	"github.com/claude/fitbridge/internal/models"
	"github.com/claude/fitbridge/internal/pipeline"
)

// ErrNoRecords is returned when there is nothing to submit.
var ErrNoRecords = errors.New("no health data to send")

// Source provides the aggregated results a sync submits.
type Source interface {
	DetailedSteps(ctx context.Context, auth pipeline.AuthContext, numberOfDays int) ([]models.DailyMetric, error)
	Snapshot(ctx context.Context, auth pipeline.AuthContext) (models.FitnessSnapshot, error)
	Location() *time.Location
	Now() time.Time
}

// Sender submits a batch of records and reports how many were accepted.
type Sender interface {
	SendHealthData(ctx context.Context, records []Record) (int, error)
}

// Result summarizes one sync.
type Result struct {
	DeviceID         string   `json:"deviceId"`
	Days             int      `json:"days"`
	StepRecords      int      `json:"stepRecords"`
	HeartbeatRecords int      `json:"heartbeatRecords"`
	Sent             int      `json:"sent"`
	Accepted         int      `json:"accepted"`
	DryRun           bool     `json:"dryRun,omitempty"`
	Warnings         []string `json:"warnings,omitempty"`
	Records          []Record `json:"-"`
}

// Submitter builds records from the pipeline and submits them.
type Submitter struct {
	source Source
	sender Sender
	state  *StateDB
	log    *slog.Logger
	dryRun bool
}

// SubmitterOption configures a Submitter.
type SubmitterOption func(*Submitter)

// WithState records every run in state.
func WithState(state *StateDB) SubmitterOption {
	return func(s *Submitter) { s.state = state }
}

// WithDryRun builds records without sending them.
func WithDryRun(dryRun bool) SubmitterOption {
	return func(s *Submitter) { s.dryRun = dryRun }
}

// NewSubmitter creates a Submitter.
func NewSubmitter(source Source, sender Sender, log *slog.Logger, opts ...SubmitterOption) *Submitter {
	s := &Submitter{source: source, sender: sender, log: log}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sync reads the detailed steps for numberOfDays days and the fitness
// snapshot, then submits everything collected in one batch. A failed step
// read aborts; a failed snapshot only drops the heartbeat record.
func (s *Submitter) Sync(ctx context.Context, auth pipeline.AuthContext, deviceID string, numberOfDays int) (*Result, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("%w: device id is required", models.ErrInvalidArgument)
	}
	started := s.source.Now()
	begin := time.Now()
	result := &Result{DeviceID: deviceID, Days: numberOfDays, DryRun: s.dryRun}

	days, err := s.source.DetailedSteps(ctx, auth, numberOfDays)
	if err != nil {
		return nil, fmt.Errorf("reading steps: %w", err)
	}

	var snapshot *models.FitnessSnapshot
	snap, err := s.source.Snapshot(ctx, auth)
	switch {
	case err == nil:
		snapshot = &snap
	case ctx.Err() != nil:
		return nil, ctx.Err()
	default:
		s.log.Warn("fitness snapshot failed, sending steps only", "device", deviceID, "error", err)
		result.Warnings = append(result.Warnings, fmt.Sprintf("fitness snapshot unavailable: %v", err))
	}

	records := BuildRecords(deviceID, days, snapshot, s.source.Now(), s.source.Location())
	if len(records) == 0 {
		return nil, ErrNoRecords
	}
	result.Records = records
	for _, r := range records {
		if r.DataType == DataTypeHeartbeat {
			result.HeartbeatRecords++
		} else {
			result.StepRecords++
		}
	}
	result.Sent = len(records)

	if s.dryRun {
		s.log.Info("dry-run: would send records", "device", deviceID, "records", len(records))
		return result, nil
	}

	accepted, sendErr := s.sender.SendHealthData(ctx, records)
	result.Accepted = accepted
	metrics.RecordSync(result.Sent, accepted, time.Since(begin).Seconds())

	if s.state != nil {
		run := Run{DeviceID: deviceID, StartedAt: started, Sent: result.Sent, Accepted: accepted}
		if sendErr != nil {
			run.Err = sendErr.Error()
		}
		if err := s.state.RecordRun(ctx, run); err != nil {
			s.log.Warn("failed to record sync run", "device", deviceID, "error", err)
		}
	}

	if sendErr != nil {
		return result, fmt.Errorf("sending records: %w", sendErr)
	}
	s.log.Info("sync complete", "device", deviceID, "sent", result.Sent, "accepted", accepted)
	return result, nil
}
