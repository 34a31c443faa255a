// Package app provides the core application initialization and lifecycle management.
package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/omipheo/home-advisor-scraping/internal/auth"
	"github.com/omipheo/home-advisor-scraping/internal/cache"
	"github.com/omipheo/home-advisor-scraping/internal/captcha"
	"github.com/omipheo/home-advisor-scraping/internal/config"
	"github.com/omipheo/home-advisor-scraping/internal/fetch"
	"github.com/omipheo/home-advisor-scraping/internal/ratelimit"
)

// Application holds shared dependencies and manages their lifecycle.
//
// It is created once at startup and shared across all CLI commands.
// Use Close() to ensure proper resource cleanup on shutdown.
type Application struct {
	Config      *config.Config
	Logger      *zerolog.Logger
	Cache       cache.Cache
	RateLimiter ratelimit.RateLimiter
	HTTPClient  *http.Client
	Fetcher     *fetch.Fetcher
	Captcha     *captcha.Client
	startTime   time.Time
}

// New creates and initializes an Application with all shared dependencies:
// logging per the config, the in-memory body cache, the per-domain rate
// limiter, the HTTP client, the enrichment fetcher, and the CAPTCHA
// solver client (disabled when no key is available).
//
// The browser session is deliberately not created here; it is owned by a
// single run, not shared across commands.
func New(ctx context.Context, cfg *config.Config) (*Application, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	logLevel := zerolog.ErrorLevel // default: suppress non-verbose info logs
	switch cfg.LogLevel {
	case "debug":
		logLevel = zerolog.DebugLevel
	case "info":
		logLevel = zerolog.InfoLevel
	case "warn":
		logLevel = zerolog.WarnLevel
	case "error":
		logLevel = zerolog.ErrorLevel
	}
	zerolog.SetGlobalLevel(logLevel)

	var logWriter io.Writer
	if cfg.JSONLog {
		logWriter = os.Stderr
	} else {
		logWriter = zerolog.NewConsoleWriter()
	}

	logger := log.Output(logWriter).With().Timestamp().Logger()
	log.Logger = logger

	logger.Debug().
		Str("level", cfg.LogLevel).
		Bool("json", cfg.JSONLog).
		Msg("Logger initialized")

	memCache := cache.NewMemoryCache(cfg.CacheMaxSizeBytes)
	logger.Debug().
		Int64("max_size_bytes", cfg.CacheMaxSizeBytes).
		Msg("Memory cache initialized")

	rateLimiter := ratelimit.NewDomainLimiter(cfg.FetchRateLimitRPS, cfg.FetchRateLimitBurst)
	logger.Debug().
		Float64("rps", cfg.FetchRateLimitRPS).
		Int("burst", cfg.FetchRateLimitBurst).
		Msg("Rate limiter initialized")

	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			DisableKeepAlives:   false,
		},
	}

	fetcher := fetch.New(httpClient, rateLimiter, memCache, cfg.UserAgent)

	// Key resolution order: flag, environment, OS keyring.
	captchaKey := cfg.CaptchaAPIKey
	if captchaKey == "" {
		captchaKey = auth.LoadCaptchaKey()
	}
	solver := captcha.New(captchaKey)
	if solver.Enabled() {
		logger.Debug().Msg("Captcha solver configured")
	} else {
		logger.Debug().Msg("No captcha key, challenges will wait or need manual solving")
	}

	app := &Application{
		Config:      cfg,
		Logger:      &logger,
		Cache:       memCache,
		RateLimiter: rateLimiter,
		HTTPClient:  httpClient,
		Fetcher:     fetcher,
		Captcha:     solver,
		startTime:   time.Now(),
	}

	logger.Debug().Msg("Application initialized")
	return app, nil
}

// Close gracefully shuts down the application's shared resources. Errors
// during shutdown are logged but do not prevent other shutdown steps.
func (a *Application) Close(ctx context.Context) error {
	a.Logger.Debug().Msg("Shutting down application")

	if a.Cache != nil {
		a.Cache.Close()
	}
	if a.HTTPClient != nil {
		a.HTTPClient.CloseIdleConnections()
	}

	a.Logger.Debug().Dur("uptime", time.Since(a.startTime)).Msg("Shutdown complete")
	return nil
}

// Uptime returns how long the application has been running.
func (a *Application) Uptime() time.Duration {
	return time.Since(a.startTime)
}
