package config

import "time"

// Default constants for application configuration
const (
	DefaultLogLevel        = "info"
	DefaultJSONLog         = false
	DefaultHTTPTimeout     = 30 * time.Second
	DefaultPageLoadTimeout = 20 * time.Second
	DefaultStartPage       = 1
	DefaultBatchSize       = 10

	DefaultHeadless = true
	DefaultStealth  = true

	DefaultFetchRateLimitRPS   = 5.0
	DefaultFetchRateLimitBurst = 10

	DefaultCacheMaxSizeBytes = 50 * 1024 * 1024 // 50MB of fetched website bodies

	DefaultSheetRetryAttempts = 3
	DefaultSheetRetryBackoff  = 2 * time.Second

	// DebugArtifactPath receives the first page's rendered markup for
	// offline selector inspection.
	DebugArtifactPath = "debug_page1.html"

	// CaptchaKeyEnvVar is consulted when no --captcha-key flag is given.
	CaptchaKeyEnvVar = "CAPTCHA_API_KEY"
)
