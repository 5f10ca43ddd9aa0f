package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
)

type contextKey string

const requestIDContextKey contextKey = "requestID"

// RootMessage is the fixed greeting served from GET /.
const RootMessage = "🚀 FuelTrackr API running"

const (
	defaultReadinessTimeout = 2 * time.Second
	// unreachableDetail is all callers learn about a failed readiness ping.
	unreachableDetail = "database unreachable"
)

var errDatabaseNotConfigured = errors.New("database is not configured")

// Pinger reports whether the database answers a liveness command.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves the endpoints owned by the bootstrap layer itself.
type Handler struct {
	db               Pinger
	readinessTimeout time.Duration
	logger           *zap.Logger

	clock func() time.Time
}

// HandlerOption configures Handler behaviour.
type HandlerOption func(*Handler)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.clock = clock
	}
}

// WithLogger sets the logger that records readiness failures.
func WithLogger(logger *zap.Logger) HandlerOption {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithReadinessTimeout bounds the database ping issued by Ready.
func WithReadinessTimeout(timeout time.Duration) HandlerOption {
	return func(h *Handler) {
		if timeout > 0 {
			h.readinessTimeout = timeout
		}
	}
}

// NewHandler constructs a Handler. db may be nil, in which case Ready always
// reports the service as unavailable.
func NewHandler(db Pinger, opts ...HandlerOption) *Handler {
	h := &Handler{
		db:               db,
		readinessTimeout: defaultReadinessTimeout,
		logger:           zap.NewNop(),
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Root answers with the static greeting regardless of dependency state.
func (h *Handler) Root(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, rootResponse{Msg: RootMessage})
}

// Health reports process liveness.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Timestamp: h.clock(),
	})
}

// Ready pings the database and reports 503 while it is unreachable.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	err := errDatabaseNotConfigured
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), h.readinessTimeout)
		err = h.db.Ping(ctx)
		cancel()
	}

	if err != nil {
		h.logger.Warn("readiness check failed",
			zap.Error(err),
			zap.String("request_id", requestIDFromContext(r.Context())),
		)
		WriteJSON(w, http.StatusServiceUnavailable, readinessResponse{
			Status: "unavailable",
			Detail: unreachableDetail,
		})
		return
	}
	WriteJSON(w, http.StatusOK, readinessResponse{Status: "ok"})
}

// NotFound writes the JSON 404 envelope.
func NotFound(w http.ResponseWriter, _ *http.Request) {
	WriteError(w, http.StatusNotFound, "Not Found")
}

// MethodNotAllowed writes the JSON 405 envelope.
func MethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	WriteError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
}

func requestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDContextKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// RequestIDFromContext returns the request ID assigned by RequestID, if any.
func RequestIDFromContext(ctx context.Context) string {
	return requestIDFromContext(ctx)
}

type rootResponse struct {
	Msg string `json:"msg"`
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type readinessResponse struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// WriteJSON encodes payload with the given status.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}

// WriteError writes the {"detail": ...} error envelope the frontend reads.
func WriteError(w http.ResponseWriter, status int, detail string) {
	WriteJSON(w, status, errorResponse{Detail: detail})
}
