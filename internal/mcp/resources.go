package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/claude/fitbridge/internal/pipeline"
	"github.com/claude/fitbridge/internal/timerange"
)

func (h *handlers) today(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	doc, err := h.ds.SleepAndTodaySteps(ctx, pipeline.AuthFromContext(ctx), timerange.DefaultDays)
	if err != nil {
		return nil, err
	}
	data, err := doc.JSON()
	if err != nil {
		return nil, err
	}
	return textContents(req.Params.URI, data), nil
}

func (h *handlers) snapshot(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	snap, err := h.ds.Snapshot(ctx, pipeline.AuthFromContext(ctx))
	if err != nil {
		h.log.Warn("snapshot resource failed", "error", err)
		return nil, err
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, err
	}
	return textContents(req.Params.URI, data), nil
}

func textContents(uri string, data []byte) []mcp.ResourceContents {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}
}
