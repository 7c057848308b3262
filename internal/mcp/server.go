package mcp

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/claude/fitbridge/internal/pipeline"
)

// New creates an MCP server with all tools and resources registered.
func New(ds DataSource, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("FitBridge", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("FitBridge health data server. Query daily steps with hourly detail, nightly sleep, sleep consistency, and a weekly fitness snapshot. Data is limited to the scopes granted to the session."),
	)

	h := &handlers{ds: ds, log: log}

	s.AddTools(
		server.ServerTool{Tool: toolGetDailySteps, Handler: h.getDailySteps},
		server.ServerTool{Tool: toolGetSleepSummary, Handler: h.getSleepSummary},
		server.ServerTool{Tool: toolGetSleepNights, Handler: h.getSleepNights},
		server.ServerTool{Tool: toolGetSleepConsistency, Handler: h.getSleepConsistency},
		server.ServerTool{Tool: toolGetFitnessSnapshot, Handler: h.getFitnessSnapshot},
	)

	s.AddResources(
		server.ServerResource{Resource: resToday, Handler: h.today},
		server.ServerResource{Resource: resSnapshot, Handler: h.snapshot},
	)

	return s
}

// NewHTTPHandler serves s over streamable HTTP. The session established by
// the surrounding auth middleware is handed to every tool call.
func NewHTTPHandler(s *server.MCPServer) http.Handler {
	return server.NewStreamableHTTPServer(s,
		server.WithHTTPContextFunc(func(ctx context.Context, r *http.Request) context.Context {
			return pipeline.WithAuth(ctx, pipeline.AuthFromContext(r.Context()))
		}),
	)
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	ds  DataSource
	log *slog.Logger
}

var resToday = mcp.NewResource(
	"fitbridge://today",
	"Today",
	mcp.WithResourceDescription("Today's step count and the last week of nightly sleep"),
	mcp.WithMIMEType("application/json"),
)

var resSnapshot = mcp.NewResource(
	"fitbridge://snapshot",
	"Fitness Snapshot",
	mcp.WithResourceDescription("Steps, distance, calories, heart rate, body measurements and sleep over the last 7 days"),
	mcp.WithMIMEType("application/json"),
)
