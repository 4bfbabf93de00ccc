package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config carries the runtime configuration for the API and worker binaries.
type Config struct {
	AppEnv string
	Port   string

	DatabaseURL string
	RedisURL    string

	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	CORSAllowedOrigins []string

	// Platform economics.
	PlatformFeePercentage int64
	TrialDays             int
	BillingStrategy       string
	CurrencyCode          string
	DirectPayout          bool

	// PayPal REST credentials.
	PayPalClientID string
	PayPalSecret   string
	PayPalBaseURL  string
	PayPalTimeout  time.Duration

	AssetsDir     string
	PublicBaseURL string

	IdempotencyTTL time.Duration

	RateLimitRequests int
	RateLimitWindow   time.Duration

	AuthRateLimitRequests int64
	AuthRateLimitWindow   time.Duration

	EmailFrom          string
	NotifyEmailEnabled bool

	OTLPEndpoint string
}

// Load reads configuration from the environment, consulting an optional .env
// file first.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", nil), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:                valueOrDefault(k.String("APP_ENV"), "development"),
		Port:                  valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:           k.String("DATABASE_URL"),
		RedisURL:              valueOrDefault(k.String("REDIS_URL"), "redis://localhost:6379/0"),
		JWTSecret:             k.String("JWT_SECRET"),
		AccessTokenTTL:        parseDuration(k.String("ACCESS_TOKEN_TTL"), 15*time.Minute),
		RefreshTokenTTL:       parseDuration(k.String("REFRESH_TOKEN_TTL"), 720*time.Hour),
		CORSAllowedOrigins:    splitAndTrim(valueOrDefault(k.String("CORS_ALLOWED_ORIGINS"), "*")),
		PlatformFeePercentage: parseInt64(k.String("PLATFORM_FEE_PERCENTAGE"), 10),
		TrialDays:             int(parseInt64(k.String("TRIAL_DAYS"), 30)),
		BillingStrategy:       valueOrDefault(k.String("BILLING_STRATEGY"), "calendar"),
		CurrencyCode:          valueOrDefault(k.String("CURRENCY_CODE"), "USD"),
		DirectPayout:          parseBool(k.String("DIRECT_PAYOUT"), false),
		PayPalClientID:        k.String("PAYPAL_CLIENT_ID"),
		PayPalSecret:          k.String("PAYPAL_SECRET"),
		PayPalBaseURL:         valueOrDefault(k.String("PAYPAL_BASE_URL"), "https://api-m.sandbox.paypal.com"),
		PayPalTimeout:         parseDuration(k.String("PAYPAL_TIMEOUT"), 10*time.Second),
		AssetsDir:             valueOrDefault(k.String("ASSETS_DIR"), "./data/assets"),
		PublicBaseURL:         valueOrDefault(k.String("PUBLIC_BASE_URL"), "http://localhost:8080"),
		IdempotencyTTL:        parseDuration(k.String("IDEMPOTENCY_TTL"), 24*time.Hour),
		RateLimitRequests:     int(parseInt64(k.String("RATE_LIMIT_REQUESTS"), 120)),
		RateLimitWindow:       parseDuration(k.String("RATE_LIMIT_WINDOW"), time.Minute),
		AuthRateLimitRequests: parseInt64(k.String("AUTH_RATE_LIMIT_REQUESTS"), 10),
		AuthRateLimitWindow:   parseDuration(k.String("AUTH_RATE_LIMIT_WINDOW"), time.Minute),
		EmailFrom:             valueOrDefault(k.String("EMAIL_FROM"), "no-reply@pustaka.example"),
		NotifyEmailEnabled:    parseBool(k.String("NOTIFY_EMAIL_ENABLED"), false),
		OTLPEndpoint:          k.String("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MustLoad loads the configuration or panics.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests builds a config suitable for unit tests without touching the
// environment.
func LoadForTests() *Config {
	return &Config{
		AppEnv:                "test",
		Port:                  "0",
		JWTSecret:             "test-secret-test-secret-test-secret",
		AccessTokenTTL:        15 * time.Minute,
		RefreshTokenTTL:       720 * time.Hour,
		CORSAllowedOrigins:    []string{"*"},
		PlatformFeePercentage: 10,
		TrialDays:             30,
		BillingStrategy:       "calendar",
		CurrencyCode:          "USD",
		PayPalBaseURL:         "https://api-m.sandbox.paypal.com",
		PayPalTimeout:         10 * time.Second,
		AssetsDir:             "./data/assets",
		PublicBaseURL:         "http://localhost:8080",
		IdempotencyTTL:        24 * time.Hour,
		RateLimitRequests:     120,
		RateLimitWindow:       time.Minute,
		AuthRateLimitRequests: 10,
		AuthRateLimitWindow:   time.Minute,
		EmailFrom:             "no-reply@pustaka.example",
	}
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.PlatformFeePercentage < 0 || c.PlatformFeePercentage >= 100 {
		return fmt.Errorf("PLATFORM_FEE_PERCENTAGE must be in [0,100): got %d", c.PlatformFeePercentage)
	}
	switch c.BillingStrategy {
	case "calendar", "anniversary":
	default:
		return fmt.Errorf("BILLING_STRATEGY must be calendar or anniversary: got %q", c.BillingStrategy)
	}
	return nil
}

// IsProduction reports whether the app runs with production settings.
func (c *Config) IsProduction() bool { return c.AppEnv == "production" }

func valueOrDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func splitAndTrim(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func parseDuration(v string, def time.Duration) time.Duration {
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func parseInt64(v string, def int64) int64 {
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func parseBool(v string, def bool) bool {
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
