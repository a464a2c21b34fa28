// Package http exposes the hash engine over HTTP.
//
// Every path other than /health and /metrics, with any method, is the hash
// endpoint. Its query string carries the password and cost parameters:
//
//	GET /?password=hunter2&cpu=3&mem=4096&sleep=250
//
// A successful response is the PHC-encoded hash as text/plain.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/opentrusty/passhash/internal/audit"
	"github.com/opentrusty/passhash/internal/hasher"
	"github.com/opentrusty/passhash/internal/observability/logger"
	"github.com/opentrusty/passhash/internal/observability/metrics"
	"github.com/opentrusty/passhash/internal/params"
)

const (
	healthPath  = "/health"
	metricsPath = "/metrics"
)

// Engine computes one hash per request.
type Engine interface {
	Execute(ctx context.Context, req params.HashRequest) (string, error)
}

// OutcomeRecorder counts finished hash requests.
type OutcomeRecorder interface {
	RecordOutcome(ctx context.Context, outcome string)
}

type noopRecorder struct{}

func (noopRecorder) RecordOutcome(context.Context, string) {}

// Handler holds HTTP handlers and dependencies
type Handler struct {
	engine      Engine
	auditLogger audit.Logger
	outcomes    OutcomeRecorder
	serviceName string
}

// NewHandler creates a new HTTP handler. outcomes may be nil.
func NewHandler(engine Engine, auditLogger audit.Logger, outcomes OutcomeRecorder, serviceName string) *Handler {
	if outcomes == nil {
		outcomes = noopRecorder{}
	}
	return &Handler{
		engine:      engine,
		auditLogger: auditLogger,
		outcomes:    outcomes,
		serviceName: serviceName,
	}
}

// RouterConfig holds router settings
type RouterConfig struct {
	RequestTimeout time.Duration
	CORSOrigins    []string

	// Metrics serves /metrics when non-nil.
	Metrics http.Handler
}

// NewRouter creates a new HTTP router
func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(StashQuery)
	r.Use(TracingMiddleware())
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	if len(cfg.CORSOrigins) > 0 {
		r.Use(CORSMiddleware(cfg.CORSOrigins))
	}
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}

	r.Get(healthPath, h.HealthCheck)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, metricsPath, cfg.Metrics)
	}

	r.Handle("/*", http.HandlerFunc(h.Hash))

	return r
}

// HealthCheck returns the health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": h.serviceName,
	})
}

// Hash resolves the query string, runs the engine and writes the PHC string.
// The derivation is not abandoned when the client goes away.
func (h *Handler) Hash(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := params.ResolveQuery(RawQuery(r))
	if err != nil {
		slog.WarnContext(ctx, "hash request rejected",
			logger.Component("http"),
			logger.Outcome(metrics.OutcomeRejected),
			logger.ErrorType(errorTypeParse),
			logger.Error(err),
		)
		h.record(r, audit.TypeHashRejected, metrics.OutcomeRejected, nil, err.Error())
		respondText(w, http.StatusBadRequest, err.Error())
		return
	}

	encoded, err := h.engine.Execute(ctx, req)
	switch {
	case err == nil:
		h.record(r, audit.TypeHashIssued, metrics.OutcomeIssued, &req, "")
		respondText(w, http.StatusOK, encoded)

	case errors.Is(err, hasher.ErrInvalidParameters):
		slog.WarnContext(ctx, "hash request rejected", append(costAttrs(req),
			logger.Component("http"),
			logger.Outcome(metrics.OutcomeRejected),
			logger.ErrorType(errorTypeInvalidParameters),
			logger.Error(err),
		)...)
		h.record(r, audit.TypeHashRejected, metrics.OutcomeRejected, &req, err.Error())
		respondText(w, http.StatusUnprocessableEntity, err.Error())

	default:
		slog.ErrorContext(ctx, "hash request failed", append(costAttrs(req),
			logger.Component("http"),
			logger.Outcome(metrics.OutcomeFailed),
			logger.ErrorType(errorTypeInternal),
			logger.Error(err),
		)...)
		h.record(r, audit.TypeHashFailed, metrics.OutcomeFailed, &req, hasher.ErrInternal.Error())
		respondText(w, http.StatusInternalServerError, hasher.ErrInternal.Error())
	}
}

// Values of the error_type log attribute
const (
	errorTypeParse             = "parse"
	errorTypeInvalidParameters = "invalid_parameters"
	errorTypeInternal          = "internal"
)

func costAttrs(req params.HashRequest) []any {
	return []any{
		logger.TimeCost(req.TimeCost),
		logger.MemoryKiB(req.MemoryKiB),
		logger.Parallelism(req.Parallelism),
		logger.DelayMS(req.DelayMillis()),
	}
}

func (h *Handler) record(r *http.Request, eventType, outcome string, req *params.HashRequest, reason string) {
	ctx := r.Context()
	h.outcomes.RecordOutcome(ctx, outcome)

	if h.auditLogger == nil {
		return
	}

	event := audit.Event{
		Type:      eventType,
		RequestID: middleware.GetReqID(ctx),
		Reason:    reason,
		IPAddress: getIPAddress(r),
		UserAgent: r.UserAgent(),
	}
	if req != nil {
		event.Metadata = map[string]any{
			"time_cost":   req.TimeCost,
			"memory_kib":  req.MemoryKiB,
			"parallelism": req.Parallelism,
			"delay_ms":    req.DelayMillis(),
		}
	}
	h.auditLogger.Log(ctx, event)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func getIPAddress(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
