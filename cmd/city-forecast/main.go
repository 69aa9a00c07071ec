package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	httpapi "github.com/i474232898/city-forecast/internal/api/http"
	"github.com/i474232898/city-forecast/internal/config"
	"github.com/i474232898/city-forecast/internal/directory"
	"github.com/i474232898/city-forecast/internal/forecast"
	"github.com/i474232898/city-forecast/internal/remote"
	"github.com/i474232898/city-forecast/internal/scheduler"
	"github.com/i474232898/city-forecast/internal/store"
)

func main() {
	bootLogger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}

	// Load configuration.
	cfg, err := config.Load(bootLogger)
	if err != nil {
		bootLogger.Fatal("failed to load config", zap.Error(err))
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		bootLogger.Fatal("failed to build logger", zap.Error(err))
	}
	defer func() { _ = logger.Sync() }()

	// Shared HTTP client for outbound calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	// One requester per remote service so each gets its own breaker and limiter.
	directoryRequester := remote.NewRequester(remote.Config{
		Name:   "opendatasoft",
		Client: httpClient,
		RPS:    cfg.OutboundRPS,
		Burst:  cfg.OutboundBurst,
	}, logger)
	forecastRequester := remote.NewRequester(remote.Config{
		Name:   "openweathermap",
		Client: httpClient,
		RPS:    cfg.OutboundRPS,
		Burst:  cfg.OutboundBurst,
	}, logger)

	directoryClient := directory.NewClient(directoryRequester, cfg.DirectoryBaseURL, cfg.DirectoryDataset, logger)
	forecastClient := forecast.NewClient(forecastRequester, cfg.ForecastBaseURL, cfg.OpenWeatherAPIKey, cfg.ForecastUnits, logger)
	forecastService := forecast.NewService(forecastClient, logger)

	// Directory sessions, one per presentation screen.
	sessions := store.NewMemoryStore(cfg.SessionMax, cfg.SessionIdleTTL, logger)
	controllerCfg := directory.ControllerConfig{
		PageSize:    cfg.DirectoryPageSize,
		SearchLimit: cfg.DirectorySearchLimit,
	}
	newController := func() *directory.Controller {
		return directory.NewController(directoryClient, controllerCfg, logger)
	}

	sched := scheduler.New(sessions, cfg.SessionSweepInterval, logger)
	if err := sched.Start(); err != nil {
		logger.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "city-forecast",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		ErrorHandler:          httpapi.ErrorHandler,
	})

	// Global middleware
	app.Use(fiberlogger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":   "ok",
			"service":  "city-forecast",
			"sessions": sessions.Len(),
		})
	})

	// API routes.
	httpapi.RegisterRoutes(app, httpapi.Deps{
		Sessions:      sessions,
		NewController: newController,
		Forecasts:     forecastService,
		Logger:        logger,
	})

	go func() {
		logger.Info("http server listening", zap.String("port", cfg.Port))
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Error("fiber server stopped", zap.Error(err))
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("error during shutdown", zap.Error(err))
	}
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	return cfg.Build()
}
