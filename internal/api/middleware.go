package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Option configures the middleware stack returned by Middlewares.
type Option func(*stackConfig)

// WithLogging controls whether access logs are emitted.
func WithLogging(enabled bool) Option {
	return func(cfg *stackConfig) {
		cfg.enableLogging = enabled
	}
}

type stackConfig struct {
	enableLogging bool
}

// Middlewares returns the standard stack, outermost first: access logging,
// panic recovery. Rate limiting is applied per route group with RateLimit.
func Middlewares(logger *zap.Logger, opts ...Option) []func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := stackConfig{enableLogging: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	var stack []func(http.Handler) http.Handler
	if cfg.enableLogging {
		stack = append(stack, func(next http.Handler) http.Handler {
			return loggingMiddleware(logger, next)
		})
	}
	stack = append(stack, func(next http.Handler) http.Handler {
		return recoveryMiddleware(logger, next)
	})
	return stack
}

func loggingMiddleware(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		requestID := requestIDFromContext(r.Context())
		logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", duration),
			zap.String("remote_addr", r.RemoteAddr),
			zap.String("request_id", requestID),
		)
	})
}

func recoveryMiddleware(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.Error("panic recovered",
					zap.Any("error", rec),
					zap.String("path", r.URL.Path),
					zap.String("request_id", requestIDFromContext(r.Context())),
				)
				WriteError(w, http.StatusInternalServerError, "Internal Server Error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// maxRequestIDLength bounds client-supplied request IDs.
const maxRequestIDLength = 128

// RequestID propagates X-Request-ID from the client or assigns a fresh one,
// and echoes it on the response. Client IDs longer than maxRequestIDLength or
// containing anything but printable ASCII are replaced.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if !validRequestID(requestID) {
			requestID = generateRequestID()
		}
		ctx := contextWithRequestID(r.Context(), requestID)

		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}

func generateRequestID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 10)
	}
	return hex.EncodeToString(buf)
}

func contextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey, id)
}

type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
