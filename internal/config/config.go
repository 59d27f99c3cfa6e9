package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Rate limiter strategies.
const (
	RateLimitSliding = "sliding"
	RateLimitFixed   = "fixed"
)

// Hard upper bound for STACKING_MAX_COMBINABLE; subset enumeration is 2^n.
const maxStackingCandidates = 20

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	CORSAllowedOrigins []string

	StackingMaxCombinable   int
	CatalogFetchConcurrency int
	CatalogQueryTimeout     time.Duration
	CatalogCacheTTL         time.Duration

	CatalogBreakerMinRequests  int
	CatalogBreakerFailureRatio float64
	CatalogBreakerOpenFor      time.Duration

	RateLimitStrategy string
	RateLimitWindow   time.Duration
	RateLimitMax      int

	LogFormat        string
	LogLevel         string
	MetricsNamespace string
	MetricsEnabled   bool
	MetricsBuckets   string
	TracingEnabled   bool
	OTLPEndpoint     string
	TracingSampling  float64

	SecurityHeaders bool
	HSTSMaxAge      int

	ShutdownGrace time.Duration
}

// Load reads configuration from the environment, after applying a .env file
// when one exists. Malformed optional values fall back to their defaults;
// every violated requirement is reported in the returned error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}
	src := source{k}

	cfg := &Config{
		AppEnv:             src.asString("APP_ENV", "development"),
		Port:               src.asString("PORT", "8080"),
		DatabaseURL:        src.asString("DATABASE_URL", ""),
		RedisURL:           src.asString("REDIS_URL", ""),
		CORSAllowedOrigins: src.asList("CORS_ALLOWED_ORIGINS"),

		StackingMaxCombinable:   src.asInt("STACKING_MAX_COMBINABLE", 12),
		CatalogFetchConcurrency: max(src.asInt("CATALOG_FETCH_CONCURRENCY", 4), 1),
		CatalogQueryTimeout:     src.asDuration("CATALOG_QUERY_TIMEOUT", 2*time.Second),
		CatalogCacheTTL:         src.asDuration("CATALOG_CACHE_TTL", 0),

		CatalogBreakerMinRequests:  src.asInt("CATALOG_BREAKER_MIN_REQUESTS", 10),
		CatalogBreakerFailureRatio: src.asFloat("CATALOG_BREAKER_FAILURE_RATIO", 0.5),
		CatalogBreakerOpenFor:      src.asDuration("CATALOG_BREAKER_OPEN_FOR", 30*time.Second),

		RateLimitStrategy: strings.ToLower(src.asString("RATE_LIMIT_STRATEGY", RateLimitSliding)),
		RateLimitWindow:   src.asDuration("RATE_LIMIT_WINDOW", time.Minute),
		RateLimitMax:      max(src.asInt("RATE_LIMIT_MAX", 120), 0),

		LogFormat:        src.asString("OBS_LOG_FORMAT", "json"),
		LogLevel:         src.asString("OBS_LOG_LEVEL", "info"),
		MetricsNamespace: src.asString("OBS_METRICS_NAMESPACE", "grocery"),
		MetricsEnabled:   src.asBool("OBS_ENABLE_PROMETHEUS", true),
		MetricsBuckets:   src.asString("OBS_METRICS_BUCKETS_MS", ""),
		TracingEnabled:   src.asBool("OBS_ENABLE_TRACING", false),
		OTLPEndpoint:     src.asString("OBS_OTLP_ENDPOINT", ""),
		TracingSampling:  src.asFloat("OBS_TRACING_SAMPLING_RATIO", 1.0),

		SecurityHeaders: src.asBool("SECURITY_HEADERS_ENABLED", true),
		HSTSMaxAge:      max(src.asInt("SECURITY_HSTS_MAX_AGE", 0), 0),

		ShutdownGrace: src.asDuration("SHUTDOWN_GRACE", 10*time.Second),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.RedisURL == "" {
		errs = append(errs, errors.New("REDIS_URL is required"))
	}
	if c.StackingMaxCombinable < 2 || c.StackingMaxCombinable > maxStackingCandidates {
		errs = append(errs, fmt.Errorf("STACKING_MAX_COMBINABLE must be between 2 and %d", maxStackingCandidates))
	}
	if c.RateLimitStrategy != RateLimitSliding && c.RateLimitStrategy != RateLimitFixed {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_STRATEGY must be %q or %q", RateLimitSliding, RateLimitFixed))
	}
	if c.CatalogBreakerFailureRatio <= 0 || c.CatalogBreakerFailureRatio > 1 {
		errs = append(errs, errors.New("CATALOG_BREAKER_FAILURE_RATIO must be in (0, 1]"))
	}
	return errors.Join(errs...)
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// RateLimitEnabled reports whether requests are rate limited.
func (c *Config) RateLimitEnabled() bool {
	return c.RateLimitMax > 0 && c.RateLimitWindow > 0
}

// source reads trimmed environment values from koanf with typed fallbacks.
type source struct{ k *koanf.Koanf }

func (s source) asString(key, fallback string) string {
	if v := strings.TrimSpace(s.k.String(key)); v != "" {
		return v
	}
	return fallback
}

func (s source) asList(key string) []string {
	var out []string
	for _, part := range strings.Split(s.k.String(key), ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func (s source) asInt(key string, fallback int) int {
	v, err := strconv.Atoi(s.asString(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func (s source) asFloat(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(s.asString(key, ""), 64)
	if err != nil {
		return fallback
	}
	return v
}

func (s source) asDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(s.asString(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func (s source) asBool(key string, fallback bool) bool {
	switch strings.ToLower(s.asString(key, "")) {
	case "1", "t", "true", "yes", "on":
		return true
	case "0", "f", "false", "no", "off":
		return false
	}
	return fallback
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
