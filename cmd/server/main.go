package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"github.com/fueltrackr/fueltrackr-api/internal/application"
	"github.com/fueltrackr/fueltrackr-api/internal/config"
	"github.com/fueltrackr/fueltrackr-api/internal/database"
	"github.com/fueltrackr/fueltrackr-api/internal/logging"
	"github.com/fueltrackr/fueltrackr-api/internal/metrics"
	"github.com/fueltrackr/fueltrackr-api/internal/routes"
)

var signalNotify = signal.Notify

func main() {
	kingpinApp := kingpin.New("fueltrackr-api", "FuelTrackr API - fuel and travel log service")
	configFile := kingpinApp.Flag("config", "Path to YAML configuration file").String()
	envFile := kingpinApp.Flag("env-file", "Path to a dotenv file (default .env, optional)").String()
	port := kingpinApp.Flag("port", "HTTP port exposed by the service").String()
	mongoURI := kingpinApp.Flag("mongo-uri", "MongoDB connection string").String()
	rateLimitRPSFlag := kingpinApp.Flag("rate-limit-rps", "Requests per second allowed per client (set 0 to disable)").Default("-1").Float64()
	rateLimitBurstFlag := kingpinApp.Flag("rate-limit-burst", "Burst capacity for rate limiter (set 0 to disable)").Default("-1").Int()

	kingpin.MustParse(kingpinApp.Parse(os.Args[1:]))

	overrides := &config.CLIOverrides{
		ConfigFile: *configFile,
		EnvFile:    *envFile,
	}

	if *port != "" {
		overrides.Port = port
	}

	if *mongoURI != "" {
		overrides.MongoURI = mongoURI
	}

	if *rateLimitRPSFlag >= 0 {
		overrides.RateLimitRPS = rateLimitRPSFlag
	}

	if *rateLimitBurstFlag >= 0 {
		overrides.RateLimitBurst = rateLimitBurstFlag
	}

	cfg, err := config.Load(overrides)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx := context.Background()

	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("failed to configure database client", zap.Error(err))
	}

	app, err := application.New(cfg, logger, application.Dependencies{
		Database: db,
		Routes:   routes.Set{},
		Metrics:  metrics.New(),
	})
	if err != nil {
		logger.Fatal("failed to initialize application", zap.Error(err))
	}

	if err := app.Start(ctx); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}

	shutdown(app.Server(), cfg.ShutdownGracePeriod, logger)

	disconnectCtx, cancel := context.WithTimeout(ctx, cfg.ShutdownGracePeriod)
	defer cancel()
	if err := db.Disconnect(disconnectCtx); err != nil {
		logger.Warn("database disconnect failed", zap.Error(err))
	}
}

func shutdown(server *http.Server, timeout time.Duration, logger *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signalNotify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		if closeErr := server.Close(); closeErr != nil {
			logger.Error("forced close failed", zap.Error(closeErr))
		}
	}
}
