package application

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func text(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, body)
	}
}

func serve(h http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestNewAppIsEmptyAndConfiguring(t *testing.T) {
	app := NewApp("FuelTrackr API", zaptest.NewLogger(t))

	assert.Equal(t, "FuelTrackr API", app.Title())
	assert.Equal(t, StateConfiguring, app.State())
	assert.Empty(t, app.middlewares)
	assert.Empty(t, app.routes)
	assert.Empty(t, app.mounts)
	assert.Empty(t, app.hooks)

	rec := serve(app.Handler(), http.MethodGet, "/")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNewAppToleratesNilLogger(t *testing.T) {
	app := NewApp("untitled", nil)
	app.OnStartup(func(context.Context) { panic("boom") })

	assert.NotPanics(t, func() { app.Startup(context.Background()) })
	assert.Equal(t, StateServing, app.State())
}

func TestMiddlewareOrder(t *testing.T) {
	app := NewApp("t", zaptest.NewLogger(t))
	tag := func(prefix string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, prefix)
				next.ServeHTTP(w, r)
			})
		}
	}
	app.Use(tag("outer;"))
	app.Use(tag("inner;"))
	app.Get("/", text("handler"))

	rec := serve(app.Handler(), http.MethodGet, "/")
	assert.Equal(t, "outer;inner;handler", rec.Body.String())
}

func TestMountRoutesByPrefix(t *testing.T) {
	app := NewApp("t", zaptest.NewLogger(t))
	app.Get("/", text("root"))
	app.Mount("/api/users", text("users"))
	app.Mount("/api/travels/", text("travels"))
	app.Mount("api/admin", text("admin"))
	h := app.Handler()

	cases := map[string]string{
		"/":                      "root",
		"/api/users":             "users",
		"/api/users/me":          "users",
		"/api/travels/me":        "travels",
		"/api/travels/2024/logs": "travels",
		"/api/admin/users":       "admin",
	}
	for target, want := range cases {
		rec := serve(h, http.MethodGet, target)
		assert.Equal(t, want, rec.Body.String(), target)
	}

	assert.Equal(t, http.StatusNotFound, serve(h, http.MethodGet, "/api/usersx").Code)
}

func TestMountSamePrefixLastWins(t *testing.T) {
	app := NewApp("t", zaptest.NewLogger(t))
	app.Mount("/api/users", text("first"))
	app.Mount("/api/users", text("second"))

	require.Len(t, app.mountOrder, 1)
	assert.Equal(t, "second", serve(app.Handler(), http.MethodGet, "/api/users/me").Body.String())
}

func TestCustomNotFoundAndMethodNotAllowed(t *testing.T) {
	app := NewApp("t", zaptest.NewLogger(t))
	app.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, "missing")
	})
	app.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusMethodNotAllowed)
		_, _ = io.WriteString(w, "nope")
	})
	app.Get("/", text("root"))
	h := app.Handler()

	assert.Equal(t, "missing", serve(h, http.MethodGet, "/unknown").Body.String())
	assert.Equal(t, "nope", serve(h, http.MethodPost, "/").Body.String())
}

func TestRegistrationAfterBuildPanics(t *testing.T) {
	app := NewApp("t", zaptest.NewLogger(t))
	first := app.Handler()

	assert.Panics(t, func() { app.Get("/late", text("late")) })
	assert.Panics(t, func() { app.Mount("/late", text("late")) })
	assert.Panics(t, func() { app.Use(func(h http.Handler) http.Handler { return h }) })
	assert.Panics(t, func() { app.OnStartup(func(context.Context) {}) })
	assert.Same(t, first, app.Handler())
}

func TestStartupRunsHooksOnceInOrder(t *testing.T) {
	app := NewApp("t", zaptest.NewLogger(t))

	var calls []int
	var stateDuringHook State
	app.OnStartup(func(context.Context) {
		calls = append(calls, 1)
		stateDuringHook = app.State()
	})
	app.OnStartup(func(context.Context) { panic("hook failure") })
	app.OnStartup(func(context.Context) { calls = append(calls, 3) })

	app.Startup(context.Background())
	app.Startup(context.Background())

	assert.Equal(t, []int{1, 3}, calls)
	assert.Equal(t, StateConfiguring, stateDuringHook)
	assert.Equal(t, StateServing, app.State())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "unconfigured", StateUnconfigured.String())
	assert.Equal(t, "configuring", StateConfiguring.String())
	assert.Equal(t, "serving", StateServing.String())
	assert.Equal(t, "State(7)", State(7).String())
}
