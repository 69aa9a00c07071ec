package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/i474232898/city-forecast/internal/directory"
	"github.com/i474232898/city-forecast/internal/forecast"
)

type AppConfig struct {
	Port     string `validate:"required,numeric"`
	LogLevel string `validate:"required,oneof=debug info warn error"`

	// HTTPTimeout bounds every outbound request.
	HTTPTimeout time.Duration `validate:"gt=0"`

	OpenWeatherAPIKey string
	ForecastBaseURL   string `validate:"required,url"`
	ForecastUnits     string `validate:"required,oneof=standard metric imperial"`

	DirectoryBaseURL     string `validate:"required,url"`
	DirectoryDataset     string `validate:"required"`
	DirectoryPageSize    int    `validate:"gte=1"`
	DirectorySearchLimit int    `validate:"gte=1"`

	// Outbound rate limit shared by both remote services (0 = unlimited).
	OutboundRPS   float64 `validate:"gte=0"`
	OutboundBurst int     `validate:"gte=0"`

	// Directory session retention.
	SessionMax           int           `validate:"gte=0"` // 0 = unlimited
	SessionIdleTTL       time.Duration `validate:"gte=0"` // 0 = never expire
	SessionSweepInterval time.Duration `validate:"gt=0"`
}

var validate = validator.New()

// Load reads configuration from the environment (and a .env file when present)
// with sensible defaults.
func Load(logger *zap.Logger) (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file loaded", zap.Error(err))
	}
	cfg := &AppConfig{}

	cfg.Port = getenvDefault("PORT", "8080")
	cfg.LogLevel = getenvDefault("LOG_LEVEL", "info")

	var err error
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "10s"); err != nil {
		return nil, err
	}

	cfg.OpenWeatherAPIKey = os.Getenv("OPENWEATHER_API_KEY")
	cfg.ForecastBaseURL = getenvDefault("FORECAST_BASE_URL", forecast.DefaultBaseURL)
	cfg.ForecastUnits = getenvDefault("FORECAST_UNITS", forecast.DefaultUnits)

	cfg.DirectoryBaseURL = getenvDefault("DIRECTORY_BASE_URL", directory.DefaultBaseURL)
	cfg.DirectoryDataset = getenvDefault("DIRECTORY_DATASET", directory.DefaultDataset)
	cfg.DirectoryPageSize = getenvInt("DIRECTORY_PAGE_SIZE", directory.DefaultPageSize)
	cfg.DirectorySearchLimit = getenvInt("DIRECTORY_SEARCH_LIMIT", directory.DefaultSearchLimit)

	cfg.OutboundRPS = getenvFloat("OUTBOUND_RPS", 5)
	cfg.OutboundBurst = getenvInt("OUTBOUND_BURST", 10)

	cfg.SessionMax = getenvInt("SESSION_MAX", 1000)
	if cfg.SessionIdleTTL, err = getenvDuration("SESSION_IDLE_TTL", "30m"); err != nil {
		return nil, err
	}
	if cfg.SessionSweepInterval, err = getenvDuration("SESSION_SWEEP_INTERVAL", "5m"); err != nil {
		return nil, err
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if cfg.OpenWeatherAPIKey == "" {
		logger.Warn("OPENWEATHER_API_KEY is not set; forecast requests will fail")
	}

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
