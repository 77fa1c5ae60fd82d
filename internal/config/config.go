package config

import (
	"fmt"
	"slices"
	"time"

	pkgconfig "github.com/utafrali/storefront/pkg/config"
	"github.com/utafrali/storefront/pkg/database"
	"github.com/utafrali/storefront/pkg/tracing"
)

const (
	defaultJWTSecret   = "change-this-to-a-secure-secret"
	minInviteSecretLen = 32
)

// Store drivers.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverFile     = "file"
)

// Notification channels.
const (
	NotifyChannelLog     = "log"
	NotifyChannelEmail   = "email"
	NotifyChannelWebhook = "webhook"
)

// Config holds all configuration for the review service.
type Config struct {
	Environment    string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
	ServiceVersion string `env:"SERVICE_VERSION" envDefault:"dev"`

	// HTTP server
	HTTPPort     int      `env:"REVIEW_HTTP_PORT" envDefault:"8012"`
	PprofAllowed []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"127.0.0.1/32,::1/128" envSeparator:","`

	// Review store
	StoreDriver string `env:"STORE_DRIVER" envDefault:"postgres"`
	StoreFile   string `env:"STORE_FILE" envDefault:"data/reviews.json"`

	// PostgreSQL
	PostgresHost     string        `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort     int           `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser     string        `env:"POSTGRES_USER" envDefault:"ecommerce"`
	PostgresPass     string        `env:"POSTGRES_PASSWORD" envDefault:"ecommerce_secret"`
	PostgresDB       string        `env:"REVIEW_DB_NAME" envDefault:"review_db"`
	PostgresSSL      string        `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	PostgresMaxConns int32         `env:"POSTGRES_MAX_CONNS" envDefault:"10"`
	SlowQuery        time.Duration `env:"SLOW_QUERY_THRESHOLD" envDefault:"200ms"`

	// Redis rating cache; empty disables it.
	RedisURL  string        `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	RatingTTL time.Duration `env:"RATING_CACHE_TTL" envDefault:"5m"`

	// Kafka; disabling it turns event publishing into a no-op.
	KafkaEnabled          bool     `env:"KAFKA_ENABLED" envDefault:"true"`
	KafkaBrokers          []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	InviteConsumerEnabled bool     `env:"INVITE_CONSUMER_ENABLED" envDefault:"false"`

	// Review invites
	InviteSecret string        `env:"REVIEW_INVITE_SECRET"`
	InviteTTL    time.Duration `env:"REVIEW_INVITE_TTL" envDefault:"720h"`
	NodeID       int64         `env:"SNOWFLAKE_NODE_ID" envDefault:"1"`

	// Moderation
	ReportThreshold int `env:"REVIEW_REPORT_THRESHOLD" envDefault:"3"`

	// Admin auth
	AdminPasswordHash string        `env:"ADMIN_PASSWORD_HASH"`
	JWTSecret         string        `env:"JWT_SECRET" envDefault:"change-this-to-a-secure-secret"`
	JWTExpiry         time.Duration `env:"JWT_ACCESS_TOKEN_EXPIRY" envDefault:"8h"`

	// Admin notifications
	NotifyChannel    string   `env:"NOTIFY_CHANNEL" envDefault:"log"`
	NotifyWebhookURL string   `env:"NOTIFY_WEBHOOK_URL"`
	NotifyEmailFrom  string   `env:"NOTIFY_EMAIL_FROM"`
	NotifyEmailTo    []string `env:"NOTIFY_EMAIL_TO" envSeparator:","`
	AWSRegion        string   `env:"AWS_REGION" envDefault:"eu-central-1"`
	AWSAccessKey     string   `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretKey     string   `env:"AWS_SECRET_ACCESS_KEY"`

	// Rate limiting (requests per second per client IP)
	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"5"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"10"`
	// Peers allowed to report the client address via X-Forwarded-For.
	TrustedProxies []string `env:"TRUSTED_PROXY_CIDRS" envSeparator:","`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// Tracing
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from environment variables and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load review config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate fails fast on configuration the service must not start with.
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if !slices.Contains([]string{StoreDriverPostgres, StoreDriverFile}, c.StoreDriver) {
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreDriverPostgres, StoreDriverFile, c.StoreDriver)
	}
	if c.StoreDriver == StoreDriverFile && c.StoreFile == "" {
		return fmt.Errorf("STORE_FILE is required when STORE_DRIVER=file")
	}

	if c.InviteConsumerEnabled && !c.KafkaEnabled {
		return fmt.Errorf("INVITE_CONSUMER_ENABLED requires KAFKA_ENABLED")
	}

	if c.InviteSecret == "" {
		return fmt.Errorf("REVIEW_INVITE_SECRET is required")
	}
	if c.InviteTTL <= 0 {
		return fmt.Errorf("REVIEW_INVITE_TTL must be positive, got %s", c.InviteTTL)
	}
	if c.NodeID < 0 || c.NodeID > 1023 {
		return fmt.Errorf("SNOWFLAKE_NODE_ID must be between 0 and 1023, got %d", c.NodeID)
	}
	if c.ReportThreshold < 1 {
		return fmt.Errorf("REVIEW_REPORT_THRESHOLD must be at least 1, got %d", c.ReportThreshold)
	}
	if c.AdminPasswordHash == "" {
		return fmt.Errorf("ADMIN_PASSWORD_HASH is required")
	}

	switch c.NotifyChannel {
	case NotifyChannelLog:
	case NotifyChannelWebhook:
		if c.NotifyWebhookURL == "" {
			return fmt.Errorf("NOTIFY_WEBHOOK_URL is required when NOTIFY_CHANNEL=webhook")
		}
	case NotifyChannelEmail:
		if c.NotifyEmailFrom == "" || len(c.NotifyEmailTo) == 0 {
			return fmt.Errorf("NOTIFY_EMAIL_FROM and NOTIFY_EMAIL_TO are required when NOTIFY_CHANNEL=email")
		}
	default:
		return fmt.Errorf("unknown NOTIFY_CHANNEL %q", c.NotifyChannel)
	}

	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %v", c.OTELSampleRate)
	}

	// Outside development, secrets must be explicitly set and strong.
	if c.Environment != "development" {
		if len(c.InviteSecret) < minInviteSecretLen {
			return fmt.Errorf("REVIEW_INVITE_SECRET must be at least %d bytes long, got %d", minInviteSecretLen, len(c.InviteSecret))
		}
		if c.JWTSecret == defaultJWTSecret {
			return fmt.Errorf("JWT_SECRET must be explicitly set via environment variable in %q mode", c.Environment)
		}
		if len(c.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters long, got %d", len(c.JWTSecret))
		}
	}
	return nil
}

// Postgres returns the connection settings for database.NewPostgresPool.
func (c *Config) Postgres() *database.PostgresConfig {
	return &database.PostgresConfig{
		Host:            c.PostgresHost,
		Port:            c.PostgresPort,
		User:            c.PostgresUser,
		Password:        c.PostgresPass,
		DBName:          c.PostgresDB,
		SSLMode:         c.PostgresSSL,
		MaxConns:        c.PostgresMaxConns,
		MinConns:        2,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
	}
}

// Tracing returns the OpenTelemetry settings for tracing.InitTracer.
func (c *Config) Tracing(service string) tracing.Config {
	return tracing.Config{
		ServiceName:    service,
		ServiceVersion: c.ServiceVersion,
		Environment:    c.Environment,
		OTLPEndpoint:   c.OTELEndpoint,
		SampleRate:     c.OTELSampleRate,
		Enabled:        c.OTELEnabled,
	}
}
