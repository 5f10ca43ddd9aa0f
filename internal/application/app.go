package application

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// State is the lifecycle phase of an App.
type State int32

const (
	StateUnconfigured State = iota
	StateConfiguring
	StateServing
)

func (s State) String() string {
	switch s {
	case StateUnconfigured:
		return "unconfigured"
	case StateConfiguring:
		return "configuring"
	case StateServing:
		return "serving"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Hook runs once during Startup. Hooks own their failures: anything that goes
// wrong inside must be logged by the hook itself, and a panic is recovered and
// logged by the App.
type Hook func(ctx context.Context)

type route struct {
	method  string
	pattern string
	handler http.Handler
}

// App collects middleware, routes, mounted routers and startup hooks, and turns
// them into a single http.Handler. Registration is only allowed until Handler
// has been called for the first time.
type App struct {
	title  string
	logger *zap.Logger

	mu               sync.Mutex
	middlewares      []func(http.Handler) http.Handler
	routes           []route
	mounts           map[string]http.Handler
	mountOrder       []string
	hooks            []Hook
	notFound         http.HandlerFunc
	methodNotAllowed http.HandlerFunc
	handler          http.Handler

	state       atomic.Int32
	startupOnce sync.Once

	server *http.Server
	addr   string
}

// NewApp returns an empty App in the configuring state.
func NewApp(title string, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{
		title:  title,
		logger: logger,
		mounts: make(map[string]http.Handler),
	}
	a.state.Store(int32(StateConfiguring))
	return a
}

// Title returns the display title given at construction.
func (a *App) Title() string {
	return a.title
}

// State reports the current lifecycle phase.
func (a *App) State() State {
	return State(a.state.Load())
}

// Use appends middleware. The first middleware added runs outermost.
func (a *App) Use(middlewares ...func(http.Handler) http.Handler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.mustConfigure("Use")
	a.middlewares = append(a.middlewares, middlewares...)
}

// Handle registers handler for method and pattern.
func (a *App) Handle(method, pattern string, handler http.Handler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.mustConfigure("Handle")
	a.routes = append(a.routes, route{method: method, pattern: pattern, handler: handler})
}

// Get registers a GET handler.
func (a *App) Get(pattern string, handler http.HandlerFunc) {
	a.Handle(http.MethodGet, pattern, handler)
}

// Mount delegates every path under prefix to router. Mounting the same prefix
// twice keeps the last router.
func (a *App) Mount(prefix string, router http.Handler) {
	prefix = "/" + strings.Trim(prefix, "/")

	a.mu.Lock()
	defer a.mu.Unlock()
	a.mustConfigure("Mount")
	if _, exists := a.mounts[prefix]; !exists {
		a.mountOrder = append(a.mountOrder, prefix)
	}
	a.mounts[prefix] = router
}

// NotFound sets the handler for unmatched paths.
func (a *App) NotFound(handler http.HandlerFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.mustConfigure("NotFound")
	a.notFound = handler
}

// MethodNotAllowed sets the handler for known paths hit with the wrong method.
func (a *App) MethodNotAllowed(handler http.HandlerFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.mustConfigure("MethodNotAllowed")
	a.methodNotAllowed = handler
}

// OnStartup registers a hook to run once before the app serves traffic.
func (a *App) OnStartup(hook Hook) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.mustConfigure("OnStartup")
	a.hooks = append(a.hooks, hook)
}

// Handler builds the router on first use and returns it.
func (a *App) Handler() http.Handler {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.handler == nil {
		a.handler = a.build()
	}
	return a.handler
}

// Startup runs every registered hook in order and then moves the App to
// StateServing, whatever the hooks did. Calls after the first are no-ops.
func (a *App) Startup(ctx context.Context) {
	a.startupOnce.Do(func() {
		a.mu.Lock()
		hooks := append([]Hook(nil), a.hooks...)
		a.mu.Unlock()

		a.logger.Info("starting application", zap.String("title", a.title), zap.Int("startup_hooks", len(hooks)))
		for i, hook := range hooks {
			a.runHook(ctx, i, hook)
		}
		a.state.Store(int32(StateServing))
	})
}

func (a *App) runHook(ctx context.Context, index int, hook Hook) {
	defer func() {
		if rec := recover(); rec != nil {
			a.logger.Error("startup hook panicked", zap.Int("hook", index), zap.Any("panic", rec))
		}
	}()
	hook(ctx)
}

// mustConfigure must be called with a.mu held.
func (a *App) mustConfigure(op string) {
	if a.handler != nil {
		panic(fmt.Sprintf("application: %s called after the handler was built", op))
	}
}

func (a *App) build() http.Handler {
	r := chi.NewRouter()
	r.Use(a.middlewares...)

	if a.notFound != nil {
		r.NotFound(a.notFound)
	}
	if a.methodNotAllowed != nil {
		r.MethodNotAllowed(a.methodNotAllowed)
	}

	for _, rt := range a.routes {
		r.Method(rt.method, rt.pattern, rt.handler)
	}
	for _, prefix := range a.mountOrder {
		r.Mount(prefix, a.mounts[prefix])
	}
	return r
}
