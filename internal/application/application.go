package application

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/fueltrackr/fueltrackr-api/internal/api"
	"github.com/fueltrackr/fueltrackr-api/internal/config"
	"github.com/fueltrackr/fueltrackr-api/internal/metrics"
	"github.com/fueltrackr/fueltrackr-api/internal/routes"
)

var errNoServer = errors.New("application has no HTTP server configured")

// Dependencies are the collaborators New wires into the application. Any
// route group left nil answers 501 until it is provided.
type Dependencies struct {
	Database Pinger
	Routes   routes.Set
	Metrics  *metrics.Metrics
}

// New assembles the FuelTrackr application from cfg: middleware and CORS
// policy, the root and health endpoints, the /api route groups, and the
// database startup check.
func New(cfg config.Config, logger *zap.Logger, deps Dependencies) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	corsMiddleware, err := api.CORS(cfg.CORS, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to configure CORS: %w", err)
	}

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = deps.Metrics
		if m == nil {
			m = metrics.New()
		}
	}

	app := NewApp(cfg.Title, logger)

	if cfg.TrustProxyHeaders {
		app.Use(chimiddleware.RealIP)
	}
	app.Use(api.RequestID, corsMiddleware)
	if m != nil {
		app.Use(m.Instrument)
	}
	app.Use(api.Middlewares(logger, api.WithLogging(cfg.EnableRequestLogging))...)
	app.NotFound(api.NotFound)
	app.MethodNotAllowed(api.MethodNotAllowed)

	handler := api.NewHandler(deps.Database, api.WithLogger(logger))
	app.Get("/", handler.Root)
	app.Get("/healthz", handler.Health)
	app.Get("/readyz", handler.Ready)
	if m != nil {
		app.Handle(http.MethodGet, "/metrics", m.Handler())
	}

	// Only the /api groups are limited; the root and health endpoints answer
	// every call. One limiter is shared so a client's budget spans all groups.
	limit := api.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst)
	for _, group := range deps.Routes.Groups() {
		app.Mount(group.Prefix, limit(group.Router))
	}

	app.OnStartup(DatabaseCheck(deps.Database, logger, cfg.Database.StartupPingTimeout, m))

	app.server = NewServer(cfg, app.Handler())
	return app, nil
}

// NewServer creates and configures an HTTP server from the provided configuration.
func NewServer(cfg config.Config, handler http.Handler) *http.Server {
	addr := cfg.Port
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// Start runs the startup hooks, binds the listening socket and serves in a
// goroutine. Bind errors are returned; errors while serving are fatal.
func (a *App) Start(ctx context.Context) error {
	if a.server == nil {
		return errNoServer
	}

	a.Startup(ctx)

	ln, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", a.server.Addr, err)
	}
	a.addr = ln.Addr().String()

	go func() {
		a.logger.Info("server listening", zap.String("addr", a.addr))
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("server error", zap.Error(err))
		}
	}()
	return nil
}

// Server returns the HTTP server instance for shutdown handling.
func (a *App) Server() *http.Server {
	return a.server
}

// Addr returns the bound listen address once Start has succeeded.
func (a *App) Addr() string {
	return a.addr
}
