package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/claude/fitbridge/internal/models"
	"github.com/claude/fitbridge/internal/pipeline"
	"github.com/claude/fitbridge/internal/storage"
	"github.com/claude/fitbridge/internal/timerange"
	"github.com/claude/fitbridge/internal/upload"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSteps(w http.ResponseWriter, r *http.Request) {
	days, err := parseDays(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	result, err := s.pipeline.DetailedSteps(r.Context(), pipeline.AuthFromContext(r.Context()), days)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	days, err := parseDays(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	doc, err := s.pipeline.SleepAndTodaySteps(r.Context(), pipeline.AuthFromContext(r.Context()), days)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleSleep(w http.ResponseWriter, r *http.Request) {
	days, err := parseDays(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	nights, err := s.pipeline.SleepNights(r.Context(), pipeline.AuthFromContext(r.Context()), days)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if nights == nil {
		nights = []models.NightlySleepSummary{}
	}
	writeJSON(w, http.StatusOK, nights)
}

func (s *Server) handleSleepConsistency(w http.ResponseWriter, r *http.Request) {
	days, err := parseDays(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	c, err := s.pipeline.SleepConsistency(r.Context(), pipeline.AuthFromContext(r.Context()), days)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleFitness(w http.ResponseWriter, r *http.Request) {
	snap, err := s.pipeline.Snapshot(r.Context(), pipeline.AuthFromContext(r.Context()))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type syncRequest struct {
	DeviceID string `json:"deviceId"`
	Days     int    `json:"days"`
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if s.sync == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "sync backend not configured"})
		return
	}

	req := syncRequest{DeviceID: s.syncDevice, Days: s.syncDays}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
			return
		}
	}
	if req.DeviceID == "" {
		req.DeviceID = s.syncDevice
	}

	result, err := s.sync.Sync(r.Context(), pipeline.AuthFromContext(r.Context()), req.DeviceID, req.Days)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if s.ingest == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "ingest requires the postgres source"})
		return
	}

	var payload models.HAEPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	started := time.Now()
	var logID int64
	if s.importLogs != nil {
		id, err := s.importLogs.InsertImportLog(r.Context(), storage.ImportLog{
			UserID: s.ingestUser,
			Source: "hae_rest",
			Status: storage.ImportRunning,
		})
		if err != nil {
			s.log.Warn("failed to create import log", "error", err)
		}
		logID = id
	}

	result, err := s.ingest.Ingest(r.Context(), &payload, s.ingestUser)

	if logID != 0 {
		entry := storage.ImportLog{UserID: s.ingestUser, Source: "hae_rest"}
		if result != nil {
			entry.SamplesReceived = result.MetricsReceived
			entry.SamplesInserted = result.MetricsInserted
			if meta, mErr := json.Marshal(result); mErr == nil {
				raw := json.RawMessage(meta)
				entry.Metadata = &raw
			}
		}
		if lErr := s.importLogs.FinishImportLog(r.Context(), logID, entry, started, err); lErr != nil {
			s.log.Warn("failed to update import log", "id", logID, "error", lErr)
		}
	}

	if err != nil {
		s.log.Error("ingest error", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleImportLogs(w http.ResponseWriter, r *http.Request) {
	if s.importLogs == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "import logs require the postgres source"})
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	logs, err := s.importLogs.QueryImportLogs(r.Context(), s.ingestUser, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if logs == nil {
		logs = []storage.ImportLog{}
	}
	writeJSON(w, http.StatusOK, logs)
}

// statusFor maps pipeline errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, models.ErrUpstreamRead), errors.Is(err, upload.ErrRejected):
		return http.StatusBadGateway
	case errors.Is(err, upload.ErrNoRecords):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// parseDays reads the days query parameter, defaulting to a week. Values
// outside 1..timerange.MaxDays are rejected.
func parseDays(r *http.Request) (int, error) {
	v := r.URL.Query().Get("days")
	if v == "" {
		return timerange.DefaultDays, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: days must be an integer, got %q", models.ErrInvalidArgument, v)
	}
	if err := timerange.CheckDays(n); err != nil {
		return 0, err
	}
	return n, nil
}
