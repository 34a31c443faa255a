package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// Config holds application configuration values
type Config struct {
	// Logging
	LogLevel string
	JSONLog  bool

	// Run
	StartPage  int
	PagesLimit int // 0 = detect from the site
	BatchSize  int

	// Browser
	Headless   bool
	Stealth    bool
	ChromePath string
	Proxy      string
	UserAgent  string // empty = rotate from the built-in Chrome pool

	// Timeouts
	HTTPTimeout     time.Duration
	PageLoadTimeout time.Duration

	// Durable store
	SheetID         string
	CredentialsFile string
	CSVPath         string // optional local export alongside the sheet

	// CAPTCHA solving
	CaptchaAPIKey string

	// Enrichment fetches
	FetchRateLimitRPS   float64
	FetchRateLimitBurst int
	CacheMaxSizeBytes   int64
}

// Load builds a Config by combining defaults, environment variables, and CLI
// flags. Caller should pass the command so flags can be read.
func Load(cmd *cobra.Command) (*Config, error) {
	cfg := &Config{
		LogLevel:            DefaultLogLevel,
		JSONLog:             DefaultJSONLog,
		StartPage:           DefaultStartPage,
		BatchSize:           DefaultBatchSize,
		Headless:            DefaultHeadless,
		Stealth:             DefaultStealth,
		HTTPTimeout:         DefaultHTTPTimeout,
		PageLoadTimeout:     DefaultPageLoadTimeout,
		FetchRateLimitRPS:   DefaultFetchRateLimitRPS,
		FetchRateLimitBurst: DefaultFetchRateLimitBurst,
		CacheMaxSizeBytes:   DefaultCacheMaxSizeBytes,
	}

	// Environment overrides
	if v := os.Getenv(CaptchaKeyEnvVar); v != "" {
		cfg.CaptchaAPIKey = v
	}
	if v := os.Getenv("HASCRAPE_CHROME_PATH"); v != "" {
		cfg.ChromePath = v
	}
	if v := os.Getenv("HASCRAPE_PROXY"); v != "" {
		cfg.Proxy = v
	}

	// CLI flags win over environment
	if cmd != nil {
		readFlags(cmd, cfg)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func readFlags(cmd *cobra.Command, cfg *Config) {
	flags := cmd.Flags()

	if v, err := flags.GetBool("verbose"); err == nil && v {
		cfg.LogLevel = "debug"
	}
	if v, err := flags.GetBool("quiet"); err == nil && v {
		cfg.LogLevel = "error"
	}
	if v, err := flags.GetBool("json-log"); err == nil && v {
		cfg.JSONLog = true
	}
	if v, err := flags.GetInt("start-page"); err == nil && v > 0 {
		cfg.StartPage = v
	}
	if v, err := flags.GetInt("pages"); err == nil && v > 0 {
		cfg.PagesLimit = v
	}
	if v, err := flags.GetBool("headed"); err == nil && v {
		cfg.Headless = false
	}
	if v, err := flags.GetBool("no-stealth"); err == nil && v {
		cfg.Stealth = false
	}
	if v, err := flags.GetString("proxy"); err == nil && v != "" {
		cfg.Proxy = v
	}
	if v, err := flags.GetString("user-agent"); err == nil && v != "" {
		cfg.UserAgent = v
	}
	if v, err := flags.GetString("timeout"); err == nil && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.HTTPTimeout = d
		}
	}
	if v, err := flags.GetString("sheet-id"); err == nil && v != "" {
		cfg.SheetID = v
	}
	if v, err := flags.GetString("credentials"); err == nil && v != "" {
		cfg.CredentialsFile = v
	}
	if v, err := flags.GetString("csv"); err == nil && v != "" {
		cfg.CSVPath = v
	}
	if v, err := flags.GetString("captcha-key"); err == nil && v != "" {
		cfg.CaptchaAPIKey = v
	}
}
