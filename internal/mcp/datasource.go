package mcp

import (
	"context"

	"github.com/claude/fitbridge/internal/format"
	"github.com/claude/fitbridge/internal/models"
	"github.com/claude/fitbridge/internal/pipeline"
	"github.com/claude/fitbridge/internal/sleep"
)

// DataSource abstracts the aggregation layer for MCP tools. Both
// *pipeline.Pipeline (local) and HTTPClient (remote via REST API) satisfy
// this interface.
type DataSource interface {
	DetailedSteps(ctx context.Context, auth pipeline.AuthContext, numberOfDays int) ([]models.DailyMetric, error)
	SleepAndTodaySteps(ctx context.Context, auth pipeline.AuthContext, numberOfDays int) (format.Document, error)
	SleepNights(ctx context.Context, auth pipeline.AuthContext, numberOfDays int) ([]models.NightlySleepSummary, error)
	SleepConsistency(ctx context.Context, auth pipeline.AuthContext, numberOfDays int) (sleep.Consistency, error)
	Snapshot(ctx context.Context, auth pipeline.AuthContext) (models.FitnessSnapshot, error)
}

var _ DataSource = (*pipeline.Pipeline)(nil)
