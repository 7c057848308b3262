package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/claude/fitbridge/internal/ingest"
	"github.com/claude/fitbridge/internal/models"
	"github.com/claude/fitbridge/internal/pipeline"
	"github.com/claude/fitbridge/internal/storage"
	"github.com/claude/fitbridge/internal/upload"
)

// Ingester stores an HAE payload for a user.
type Ingester interface {
	Ingest(ctx context.Context, payload *models.HAEPayload, userID int) (*ingest.Result, error)
}

// ImportLogStore records and lists ingest runs.
type ImportLogStore interface {
	InsertImportLog(ctx context.Context, log storage.ImportLog) (int64, error)
	FinishImportLog(ctx context.Context, id int64, log storage.ImportLog, started time.Time, err error) error
	QueryImportLogs(ctx context.Context, userID, limit int) ([]storage.ImportLog, error)
}

// Syncer submits aggregated results to the backend.
type Syncer interface {
	Sync(ctx context.Context, auth pipeline.AuthContext, deviceID string, numberOfDays int) (*upload.Result, error)
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	pipeline *pipeline.Pipeline
	log      *slog.Logger
	apiKey   string
	scopes   []models.MetricKind
	router   chi.Router

	ingest     Ingester
	importLogs ImportLogStore
	ingestUser int

	sync       Syncer
	syncDevice string
	syncDays   int
}

// New creates a new Server with all routes configured. The API key grants
// the given metric scopes.
func New(p *pipeline.Pipeline, apiKey string, scopes []models.MetricKind, log *slog.Logger) *Server {
	s := &Server{
		pipeline: p,
		log:      log,
		apiKey:   apiKey,
		scopes:   scopes,
		router:   chi.NewRouter(),
		syncDays: 7,
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)

	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(APIKeyAuth(s.apiKey, s.scopes))
		r.Get("/steps", s.handleSteps)
		r.Get("/summary", s.handleSummary)
		r.Get("/sleep", s.handleSleep)
		r.Get("/sleep/consistency", s.handleSleepConsistency)
		r.Get("/fitness", s.handleFitness)
		r.Post("/sync", s.handleSync)
		r.Post("/ingest", s.handleIngest)
		r.Get("/imports", s.handleImportLogs)
	})
}

// SetIngest enables POST /api/v1/ingest, storing samples for userID. When
// logs is non-nil every run is recorded and listed at GET /api/v1/imports.
func (s *Server) SetIngest(i Ingester, logs ImportLogStore, userID int) {
	s.ingest = i
	s.importLogs = logs
	s.ingestUser = userID
}

// SetSync enables POST /api/v1/sync with a default device and day count.
func (s *Server) SetSync(sy Syncer, deviceID string, days int) {
	s.sync = sy
	s.syncDevice = deviceID
	if days > 0 {
		s.syncDays = days
	}
}

// SetMCP mounts an MCP transport at /mcp behind the API key check.
func (s *Server) SetMCP(h http.Handler) {
	s.router.With(APIKeyAuth(s.apiKey, s.scopes)).Handle("/mcp", h)
}
