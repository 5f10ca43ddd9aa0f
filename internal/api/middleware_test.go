package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func chain(stack []func(http.Handler) http.Handler, h http.Handler) http.Handler {
	for i := len(stack) - 1; i >= 0; i-- {
		h = stack[i](h)
	}
	return h
}

func TestLoggingMiddleware(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	var called bool
	handler := loggingMiddleware(zap.New(core), http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusAccepted)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
	req = req.WithContext(contextWithRequestID(req.Context(), "req-1"))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if !called {
		t.Fatalf("expected handler to be called")
	}
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d", rec.Code)
	}

	entries := logs.FilterMessage("request completed").All()
	if len(entries) != 1 {
		t.Fatalf("expected one access log entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["status"] != int64(http.StatusAccepted) || fields["request_id"] != "req-1" || fields["path"] != "/api/users/me" {
		t.Fatalf("unexpected log fields %v", fields)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	logger := zaptest.NewLogger(t)
	handler := recoveryMiddleware(logger, http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(errors.New("boom"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 after panic, got %d", rec.Code)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	t.Run("propagates client id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "client-supplied")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if seen != "client-supplied" || rec.Header().Get("X-Request-ID") != "client-supplied" {
			t.Fatalf("expected client request id to propagate, got %q / %q", seen, rec.Header().Get("X-Request-ID"))
		}
	})

	t.Run("replaces oversized id", func(t *testing.T) {
		long := strings.Repeat("a", maxRequestIDLength+1)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", long)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if seen == long || len(seen) != 32 {
			t.Fatalf("expected oversized id to be replaced, got %q", seen)
		}
		if rec.Header().Get("X-Request-ID") != seen {
			t.Fatalf("expected response header to echo replacement id")
		}
	})

	t.Run("accepts id at the length limit", func(t *testing.T) {
		limit := strings.Repeat("b", maxRequestIDLength)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", limit)
		handler.ServeHTTP(httptest.NewRecorder(), req)

		if seen != limit {
			t.Fatalf("expected id at the limit to propagate, got %q", seen)
		}
	})

	t.Run("replaces id with non printable characters", func(t *testing.T) {
		for _, id := range []string{"abc\x01def", "two words", "caf\u00e9"} {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("X-Request-ID", id)
			handler.ServeHTTP(httptest.NewRecorder(), req)

			if seen == id || len(seen) != 32 {
				t.Fatalf("expected %q to be replaced, got %q", id, seen)
			}
		}
	})

	t.Run("generates id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		if len(seen) != 32 {
			t.Fatalf("expected 32 hex chars, got %q", seen)
		}
		if rec.Header().Get("X-Request-ID") != seen {
			t.Fatalf("expected response header to echo generated id")
		}
	})
}

func TestRequestIDFromEmptyContext(t *testing.T) {
	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Fatalf("expected empty id, got %q", got)
	}
}

func TestResponseRecorderWriteHeader(t *testing.T) {
	underlying := httptest.NewRecorder()
	rec := &responseRecorder{ResponseWriter: underlying}
	rec.WriteHeader(http.StatusTeapot)

	if rec.status != http.StatusTeapot {
		t.Fatalf("expected status to be recorded")
	}
	if underlying.Code != http.StatusTeapot {
		t.Fatalf("expected status to propagate to ResponseWriter")
	}
}

func TestMiddlewaresStack(t *testing.T) {
	if got := len(Middlewares(zaptest.NewLogger(t))); got != 2 {
		t.Fatalf("expected logging and recovery, got %d middlewares", got)
	}
	if got := len(Middlewares(zaptest.NewLogger(t), WithLogging(false))); got != 1 {
		t.Fatalf("expected only recovery middleware, got %d", got)
	}
}

func TestMiddlewaresToleratesNilLogger(t *testing.T) {
	handler := chain(Middlewares(nil), http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 after panic, got %d", rec.Code)
	}
}
