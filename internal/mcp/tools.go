package mcp

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/claude/fitbridge/internal/models"
	"github.com/claude/fitbridge/internal/pipeline"
	"github.com/claude/fitbridge/internal/timerange"
)

// daysArg returns the days argument, defaulting to a week. Fractional
// values are rejected rather than truncated.
func daysArg(req mcp.CallToolRequest) (int, error) {
	v, ok := req.GetArguments()["days"]
	if !ok || v == nil {
		return timerange.DefaultDays, nil
	}
	f, ok := v.(float64)
	if !ok || f != math.Trunc(f) {
		return 0, fmt.Errorf("%w: days must be a whole number", models.ErrInvalidArgument)
	}
	if f < 1 || f > timerange.MaxDays {
		return 0, fmt.Errorf("%w: days must be between 1 and %d", models.ErrInvalidArgument, timerange.MaxDays)
	}
	return int(f), nil
}

// toolError turns a data source failure into a tool-level error result.
func (h *handlers) toolError(tool string, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, models.ErrInvalidArgument),
		errors.Is(err, models.ErrNotAuthenticated),
		errors.Is(err, models.ErrPermissionDenied):
		return mcp.NewToolResultError(err.Error())
	}
	h.log.Error("mcp "+tool, "error", err)
	return mcp.NewToolResultError("query failed: " + err.Error())
}

func jsonResult(v any) *mcp.CallToolResult {
	result, err := mcp.NewToolResultJSON(v)
	if err != nil {
		return mcp.NewToolResultError("serialization failed")
	}
	return result
}

var daysOption = mcp.WithNumber("days",
	mcp.Description("Number of days ending today, including today. Defaults to 7."),
	mcp.Min(1),
	mcp.Max(timerange.MaxDays),
)

var toolGetDailySteps = mcp.NewTool("get_daily_steps",
	mcp.WithDescription("Daily step totals with per-hour detail, newest day first. Days without steps are included with a zero total."),
	daysOption,
)

var toolGetSleepSummary = mcp.NewTool("get_sleep_summary",
	mcp.WithDescription("Today's step count plus nightly sleep summaries (bedtime, wake time, light/deep/REM minutes and segments). Sleep data is empty if it could not be read."),
	daysOption,
)

var toolGetSleepNights = mcp.NewTool("get_sleep_nights",
	mcp.WithDescription("Nightly sleep summaries with every classified segment, newest night first."),
	daysOption,
)

var toolGetSleepConsistency = mcp.NewTool("get_sleep_consistency",
	mcp.WithDescription("Average sleep duration, stage minutes, bedtime and wake time, and their standard deviation in hours."),
	daysOption,
)

var toolGetFitnessSnapshot = mcp.NewTool("get_fitness_snapshot",
	mcp.WithDescription("Single summary of the last 7 days: steps, distance, calories, average heart rate, latest weight and height, and total sleep minutes."),
)

func (h *handlers) getDailySteps(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	days, err := daysArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	steps, err := h.ds.DetailedSteps(ctx, pipeline.AuthFromContext(ctx), days)
	if err != nil {
		return h.toolError("get_daily_steps", err), nil
	}
	return jsonResult(steps), nil
}

func (h *handlers) getSleepSummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	days, err := daysArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := h.ds.SleepAndTodaySteps(ctx, pipeline.AuthFromContext(ctx), days)
	if err != nil {
		return h.toolError("get_sleep_summary", err), nil
	}
	return jsonResult(doc), nil
}

func (h *handlers) getSleepNights(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	days, err := daysArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	nights, err := h.ds.SleepNights(ctx, pipeline.AuthFromContext(ctx), days)
	if err != nil {
		return h.toolError("get_sleep_nights", err), nil
	}
	if nights == nil {
		nights = []models.NightlySleepSummary{}
	}
	return jsonResult(nights), nil
}

func (h *handlers) getSleepConsistency(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	days, err := daysArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	c, err := h.ds.SleepConsistency(ctx, pipeline.AuthFromContext(ctx), days)
	if err != nil {
		return h.toolError("get_sleep_consistency", err), nil
	}
	return jsonResult(c), nil
}

func (h *handlers) getFitnessSnapshot(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap, err := h.ds.Snapshot(ctx, pipeline.AuthFromContext(ctx))
	if err != nil {
		return h.toolError("get_fitness_snapshot", err), nil
	}
	return jsonResult(snap), nil
}
