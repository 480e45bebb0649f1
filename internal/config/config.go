package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration.
type Config struct {
	Env      string
	HTTPAddr string
	BaseURL  string

	DBDSN     string
	JWTSecret string

	LogLevel string

	RateLimitRPM int
	SessionDays  int

	EmailAPIURL    string
	EmailAPIKey    string
	EmailTimeoutMS int

	MatchAPIURL    string
	MatchAPIKey    string
	MatchTimeoutMS int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Env = strings.TrimSpace(os.Getenv("IH_ENV"))
	if cfg.Env == "" {
		return nil, fmt.Errorf("IH_ENV is required")
	}
	if cfg.Env != "dev" && cfg.Env != "prod" {
		return nil, fmt.Errorf("IH_ENV must be one of: dev, prod (got: %s)", cfg.Env)
	}

	cfg.HTTPAddr = getEnvOrDefault("IH_HTTP_ADDR", ":8080")

	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("IH_BASE_URL")), "/")
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("IH_BASE_URL is required")
	}

	cfg.DBDSN = strings.TrimSpace(os.Getenv("IH_DB_DSN"))
	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("IH_DB_DSN is required")
	}

	cfg.JWTSecret = os.Getenv("IH_JWT_SECRET")
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("IH_JWT_SECRET is required")
	}
	if cfg.Env == "prod" && len(cfg.JWTSecret) < 32 {
		return nil, fmt.Errorf("IH_JWT_SECRET must be at least 32 characters (currently %d)", len(cfg.JWTSecret))
	}

	cfg.LogLevel = getEnvOrDefault("IH_LOG_LEVEL", "info")
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("IH_LOG_LEVEL must be one of: debug, info, warn, error (got: %s)", cfg.LogLevel)
	}

	var err error
	cfg.RateLimitRPM, err = getEnvIntOrDefault("IH_RATE_LIMIT_RPM", 120)
	if err != nil {
		return nil, err
	}

	cfg.SessionDays, err = getEnvIntOrDefault("IH_SESSION_DAYS", 7)
	if err != nil {
		return nil, err
	}

	// Email delivery is optional in dev; the notifier logs and skips sending
	// when no API URL is configured.
	cfg.EmailAPIURL = strings.TrimSpace(os.Getenv("IH_EMAIL_API_URL"))
	cfg.EmailAPIKey = os.Getenv("IH_EMAIL_API_KEY")
	cfg.EmailTimeoutMS, err = getEnvIntOrDefault("IH_EMAIL_TIMEOUT_MS", 2000)
	if err != nil {
		return nil, err
	}
	if cfg.EmailTimeoutMS <= 0 || cfg.EmailTimeoutMS > 30000 {
		return nil, fmt.Errorf("IH_EMAIL_TIMEOUT_MS must be between 1 and 30000 (got: %d)", cfg.EmailTimeoutMS)
	}

	cfg.MatchAPIURL = strings.TrimSpace(os.Getenv("IH_MATCH_API_URL"))
	cfg.MatchAPIKey = os.Getenv("IH_MATCH_API_KEY")
	cfg.MatchTimeoutMS, err = getEnvIntOrDefault("IH_MATCH_TIMEOUT_MS", 10000)
	if err != nil {
		return nil, err
	}
	if cfg.MatchTimeoutMS <= 0 || cfg.MatchTimeoutMS > 60000 {
		return nil, fmt.Errorf("IH_MATCH_TIMEOUT_MS must be between 1 and 60000 (got: %d)", cfg.MatchTimeoutMS)
	}

	return cfg, nil
}

// IsDev returns true if running in development mode.
func (c *Config) IsDev() bool {
	return c.Env == "dev"
}

// RedactedValues returns a map of config values with secrets redacted.
func (c *Config) RedactedValues() map[string]string {
	return map[string]string{
		"IH_ENV":              c.Env,
		"IH_HTTP_ADDR":        c.HTTPAddr,
		"IH_BASE_URL":         c.BaseURL,
		"IH_DB_DSN":           redactDSN(c.DBDSN),
		"IH_JWT_SECRET":       "[REDACTED]",
		"IH_LOG_LEVEL":        c.LogLevel,
		"IH_RATE_LIMIT_RPM":   fmt.Sprintf("%d", c.RateLimitRPM),
		"IH_SESSION_DAYS":     fmt.Sprintf("%d", c.SessionDays),
		"IH_EMAIL_API_URL":    c.EmailAPIURL,
		"IH_EMAIL_API_KEY":    "[REDACTED]",
		"IH_EMAIL_TIMEOUT_MS": fmt.Sprintf("%d", c.EmailTimeoutMS),
		"IH_MATCH_API_URL":    c.MatchAPIURL,
		"IH_MATCH_API_KEY":    "[REDACTED]",
		"IH_MATCH_TIMEOUT_MS": fmt.Sprintf("%d", c.MatchTimeoutMS),
	}
}

func redactDSN(dsn string) string {
	if start := strings.Index(dsn, "://"); start != -1 {
		if end := strings.Index(dsn[start+3:], "@"); end != -1 {
			return dsn[:start+3] + "[REDACTED]" + dsn[start+3+end:]
		}
	}
	return dsn
}

func getEnvOrDefault(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvIntOrDefault(key string, defaultValue int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer (got: %q)", key, value)
	}
	return parsed, nil
}
