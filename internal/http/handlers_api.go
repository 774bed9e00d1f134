package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"networth/internal/core"
	applog "networth/internal/log"
	"networth/internal/sections"
	"networth/internal/session"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// errMalformedRequest marks client input the API cannot decode.
var errMalformedRequest = errors.New("malformed request")

// statusForError maps domain and storage errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, errMalformedRequest):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrValidationRejected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, sections.ErrNotFound),
		errors.Is(err, sections.ErrUnavailable),
		errors.Is(err, sections.ErrIndexOutOfRange),
		errors.Is(err, session.ErrIndexOutOfRange):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// failJSON logs err with the request logger and writes the mapped status.
// Server-side failures keep their details out of the response body.
func (s *Server) failJSON(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusForError(err)
	logger := applog.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "API request failed",
			applog.FieldOperation, op,
			applog.FieldError, err,
			applog.FieldStatusCode, status,
			applog.FieldErrorType, applog.ErrorTypeStorage)
		writeJSONError(w, status, http.StatusText(status))
		return
	}
	logger.WarnContext(r.Context(), "API request rejected",
		applog.FieldOperation, op,
		applog.FieldError, err,
		applog.FieldStatusCode, status)
	writeJSONError(w, status, err.Error())
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: decode body: %v", errMalformedRequest, err)
	}
	return nil
}

// handleGetData returns the whole document.
func (s *Server) handleGetData(w http.ResponseWriter, r *http.Request) {
	all, err := s.store.ReadAll(r.Context())
	if err != nil {
		s.failJSON(w, r, applog.OpRead, fmt.Errorf("get data: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, all)
}

// handleGetSection returns the first section whose name matches sectionName.
func (s *Server) handleGetSection(w http.ResponseWriter, r *http.Request) {
	name := sanitizeInput(r.URL.Query().Get("sectionName"))
	if name == "" {
		s.failJSON(w, r, applog.OpRead, fmt.Errorf("%w: sectionName is required", errMalformedRequest))
		return
	}
	sec, err := s.store.ReadByName(r.Context(), name)
	if err != nil {
		s.failJSON(w, r, applog.OpRead, fmt.Errorf("get section %q: %w", name, err))
		return
	}
	writeJSON(w, http.StatusOK, sec)
}

// handleSaveSection replaces the section at sectionIndex with the request body.
func (s *Server) handleSaveSection(w http.ResponseWriter, r *http.Request) {
	index, err := parseIndex(r.URL.Query().Get("sectionIndex"))
	if err != nil {
		s.failJSON(w, r, applog.OpSave, fmt.Errorf("sectionIndex: %w", err))
		return
	}
	var sec core.Section
	if err := decodeJSONBody(w, r, &sec); err != nil {
		s.failJSON(w, r, applog.OpSave, err)
		return
	}
	sec = core.RecalculateSection(sec)
	if err := s.store.SaveSection(r.Context(), index, sec); err != nil {
		s.failJSON(w, r, applog.OpSave, fmt.Errorf("save section %d: %w", index, err))
		return
	}
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Section saved via API",
		applog.FieldSection, sec.Name,
		applog.FieldSectionIndex, index,
		applog.FieldTotalValue, sec.TotalValue.String())
	writeJSON(w, http.StatusOK, sec)
}

// handleSaveData replaces the whole document with the request body.
func (s *Server) handleSaveData(w http.ResponseWriter, r *http.Request) {
	var all []core.Section
	if err := decodeJSONBody(w, r, &all); err != nil {
		s.failJSON(w, r, applog.OpSave, err)
		return
	}
	if all == nil {
		s.failJSON(w, r, applog.OpSave, fmt.Errorf("%w: body must be a JSON array", errMalformedRequest))
		return
	}
	all = core.Recalculate(all)
	if err := s.store.SaveAll(r.Context(), all); err != nil {
		s.failJSON(w, r, applog.OpSave, fmt.Errorf("save data: %w", err))
		return
	}
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Document replaced via API", "sections", len(all))
	writeJSON(w, http.StatusOK, all)
}

// handleNetWorth summarises the stored document.
func (s *Server) handleNetWorth(w http.ResponseWriter, r *http.Request) {
	all, err := s.store.ReadAll(r.Context())
	if err != nil {
		s.failJSON(w, r, applog.OpRead, fmt.Errorf("net worth: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, core.NetWorth(core.Recalculate(all)))
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Truncate(time.Second).String(),
	})
}

// handleReady reports ready when templates are loaded and the store answers.
// An empty store is still ready.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]string)

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	switch _, err := s.store.ReadAll(ctx); {
	case err == nil:
		checks["store"] = "ok"
	case sections.IsNoData(err):
		checks["store"] = "ok: no data"
	default:
		checks["store"] = "failed: " + strings.TrimSpace(err.Error())
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics provides request and security counters in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	traceMetrics := s.tracer.GetMetrics()
	rateLimitMetrics := s.limiter.GetMetrics()
	securityMetrics := s.detector.GetMetrics()

	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "# HELP http_requests_total Total number of HTTP requests\n")
	fmt.Fprintf(w, "# TYPE http_requests_total counter\n")
	fmt.Fprintf(w, "http_requests_total %d\n\n", traceMetrics.TotalRequests)

	fmt.Fprintf(w, "# HELP rate_limit_hits_total Total rate limit hits\n")
	fmt.Fprintf(w, "# TYPE rate_limit_hits_total counter\n")
	fmt.Fprintf(w, "rate_limit_hits_total %d\n\n", rateLimitMetrics.TotalHits)

	fmt.Fprintf(w, "# HELP active_rate_limit_clients Currently tracked rate limit clients\n")
	fmt.Fprintf(w, "# TYPE active_rate_limit_clients gauge\n")
	fmt.Fprintf(w, "active_rate_limit_clients %d\n\n", rateLimitMetrics.ClientCount)

	fmt.Fprintf(w, "# HELP suspicious_requests_total Total suspicious requests detected\n")
	fmt.Fprintf(w, "# TYPE suspicious_requests_total counter\n")
	fmt.Fprintf(w, "suspicious_requests_total %d\n\n", securityMetrics.SuspiciousRequests)

	fmt.Fprintf(w, "# HELP working_sections Sections in the editing session\n")
	fmt.Fprintf(w, "# TYPE working_sections gauge\n")
	fmt.Fprintf(w, "working_sections %d\n\n", len(s.session.Snapshot()))

	fmt.Fprintf(w, "# HELP uptime_seconds Application uptime in seconds\n")
	fmt.Fprintf(w, "# TYPE uptime_seconds gauge\n")
	fmt.Fprintf(w, "uptime_seconds %.0f\n", time.Since(s.started).Seconds())
}
