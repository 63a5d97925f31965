package config

import (
	"errors"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Application
	AppName      string
	AppEnv       string
	AppURL       string
	Port         string
	SupportEmail string

	// Database (optional driver switch via ENV, default: sqlite)
	DBDriver     string
	DBConnection string

	// Security
	JWTSecret            string
	JWTExpiry            time.Duration
	TokenMagicLinkExpiry time.Duration

	// OAuth
	GoogleClientID     string
	GoogleClientSecret string
	GitHubClientID     string
	GitHubClientSecret string

	// Email
	EmailFrom    string
	ResendAPIKey string

	// Payment
	PaymentProvider string // "stripe" or "polar"
	// Payment - Stripe
	StripeSecretKey     string
	StripeWebhookSecret string
	StripePriceIDPro    string
	// Payment - Polar
	PolarAPIKey        string
	PolarWebhookSecret string
	PolarSandboxMode   bool
	PolarProductIDPro  string

	// Webhook de-duplication (optional, in-memory when empty)
	RedisURL        string
	WebhookEventTTL time.Duration

	// Observability (optional)
	SentryDSN string

	// Storage (S3-compatible, optional: image uploads are disabled without a bucket)
	S3Region              string
	S3Bucket              string
	S3AccessKey           string
	S3SecretKey           string
	S3Endpoint            string
	S3PresignExpiryPublic time.Duration
}

const defaultDBConnection = "./data/utellme.db?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"

func Load() *Config {
	loadDotEnv()

	cfg := &Config{
		// Application
		AppName:      envString("APP_NAME", "uTellMe"),
		AppEnv:       envRequired("APP_ENV"), // Required: 'development' or 'production'
		AppURL:       envRequired("APP_URL"), // Required: base URL for email links and OAuth redirects
		Port:         envString("PORT", "8090"),
		SupportEmail: envString("SUPPORT_EMAIL", "hello@utellme.app"),

		// Database
		DBDriver:     envString("DB_DRIVER", "sqlite"),
		DBConnection: envString("DB_CONNECTION", defaultDBConnection),

		// Security
		JWTSecret:            envRequired("JWT_SECRET"),
		JWTExpiry:            envDuration("JWT_EXPIRY", 720*time.Hour),               // 30 days
		TokenMagicLinkExpiry: envDuration("TOKEN_MAGIC_LINK_EXPIRY", 10*time.Minute), // 10 minutes

		// OAuth
		GoogleClientID:     envString("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: envString("GOOGLE_CLIENT_SECRET", ""),
		GitHubClientID:     envString("GITHUB_CLIENT_ID", ""),
		GitHubClientSecret: envString("GITHUB_CLIENT_SECRET", ""),

		// Email (RESEND_API_KEY optional in development, required in production)
		EmailFrom:    envString("EMAIL_FROM", "noreply@utellme.app"),
		ResendAPIKey: envString("RESEND_API_KEY", ""),

		// Payment
		PaymentProvider:     envString("PAYMENT_PROVIDER", "stripe"),
		StripeSecretKey:     envString("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: envString("STRIPE_WEBHOOK_SECRET", ""),
		StripePriceIDPro:    envString("STRIPE_PRICE_ID_PRO", ""),
		PolarAPIKey:         envString("POLAR_API_KEY", ""),
		PolarWebhookSecret:  envString("POLAR_WEBHOOK_SECRET", ""),
		PolarSandboxMode:    envBool("POLAR_SANDBOX_MODE", envString("APP_ENV", "development") == "development"),
		PolarProductIDPro:   envString("POLAR_PRODUCT_ID_PRO", ""),

		RedisURL:        envString("REDIS_URL", ""),
		WebhookEventTTL: envDuration("WEBHOOK_EVENT_TTL", 72*time.Hour),

		// Observability
		SentryDSN: envString("SENTRY_DSN", ""),

		// Storage
		S3Region:              envString("S3_REGION", "us-east-1"),
		S3Bucket:              envString("S3_BUCKET", ""),
		S3AccessKey:           envString("S3_ACCESS_KEY", ""),
		S3SecretKey:           envString("S3_SECRET_KEY", ""),
		S3Endpoint:            envString("S3_ENDPOINT", ""),                           // Optional: for non-AWS providers
		S3PresignExpiryPublic: envDuration("S3_PRESIGN_EXPIRY_PUBLIC", 168*time.Hour), // Default: 7 days
	}

	// Production: validate required services
	if cfg.IsProduction() {
		if err := validateProduction(cfg); err != nil {
			slog.Error("invalid production configuration",
				"error", err,
				"hint", "set APP_ENV=development for local testing with email log mode")
			os.Exit(1)
		}
	}

	return cfg
}

// LoadDatabase reads only the database settings, for tooling that must not
// require the full application environment.
func LoadDatabase() (driver, connection string) {
	loadDotEnv()
	return envString("DB_DRIVER", "sqlite"), envString("DB_CONNECTION", defaultDBConnection)
}

func loadDotEnv() {
	// Load .env file if it exists
	err := godotenv.Load()
	if err != nil {
		slog.Info("no .env file found, using environment variables")
	}
}

// validateProduction ensures all required services are configured for production deployments.
// Development allows email to use log mode and unsigned Polar webhooks for easier local testing.
func validateProduction(cfg *Config) error {
	if cfg.ResendAPIKey == "" {
		return errors.New("production deployment requires RESEND_API_KEY")
	}
	if cfg.PaymentProvider == "polar" && cfg.PolarWebhookSecret == "" {
		return errors.New("production deployment with PAYMENT_PROVIDER=polar requires POLAR_WEBHOOK_SECRET")
	}
	return nil
}

func envString(key, def string) string {
	value := os.Getenv(key)
	if value == "" {
		value = def
	}
	return value
}

func envBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("config invalid bool, using default", "key", key, "value", v, "default", def)
		return def
	}
	return b
}

func envDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("config invalid duration, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}

func envRequired(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	slog.Error("config required env var missing", "key", key)
	os.Exit(1)
	return ""
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// StorageEnabled reports whether an object store is configured for image uploads.
func (c *Config) StorageEnabled() bool {
	return c.S3Bucket != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

// Sanitized returns a copy of the config with only public/safe fields.
// All secrets and credentials are excluded.
func (c *Config) Sanitized() *Config {
	return &Config{
		AppName:      c.AppName,
		AppEnv:       c.AppEnv,
		AppURL:       c.AppURL,
		Port:         c.Port,
		SupportEmail: c.SupportEmail,

		EmailFrom: c.EmailFrom,

		GoogleClientID: c.GoogleClientID,
		GitHubClientID: c.GitHubClientID,

		PaymentProvider: c.PaymentProvider,
	}
}
