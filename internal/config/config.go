package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lm-legal/payments/internal/types"
	"github.com/spf13/viper"
)

type Configuration struct {
	Deployment DeploymentConfig `validate:"required"`
	Server     ServerConfig     `validate:"required"`
	Logging    LoggingConfig    `validate:"required"`
	Postgres   PostgresConfig   `validate:"required"`
	Auth       AuthConfig       `validate:"required"`
	Stripe     StripeConfig
	PayPal     PayPalConfig   `mapstructure:"paypal"`
	Checkout   CheckoutConfig `validate:"required"`
	Invoice    InvoiceConfig  `validate:"required"`
	S3         S3Config
	EventBus   EventBusConfig `mapstructure:"event_bus" validate:"required"`
	Kafka      KafkaConfig
	Outbox     OutboxConfig `validate:"required"`
	Cache      CacheConfig
	Email      EmailConfig
	Sentry     SentryConfig
	Pyroscope  PyroscopeConfig
}

type DeploymentConfig struct {
	Mode types.RunMode `validate:"required,oneof=local api consumer"`
}

type ServerConfig struct {
	Address         string        `validate:"required"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

type LoggingConfig struct {
	Level types.LogLevel `validate:"required"`
}

type PostgresConfig struct {
	Host                   string `validate:"required"`
	Port                   int    `validate:"required"`
	User                   string `validate:"required"`
	Password               string
	DBName                 string `mapstructure:"dbname" validate:"required"`
	SSLMode                string `mapstructure:"sslmode"`
	MaxOpenConns           int    `mapstructure:"max_open_conns"`
	MaxIdleConns           int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `mapstructure:"conn_max_lifetime_minutes"`
}

type AuthConfig struct {
	Secret string `validate:"required"`
}

// StripeConfig configures the card checkout gateway
type StripeConfig struct {
	Enabled       bool
	SecretKey     string `mapstructure:"secret_key" validate:"required_if=Enabled true"`
	WebhookSecret string `mapstructure:"webhook_secret" validate:"required_if=Enabled true"`
}

// PayPalConfig configures the wallet/redirect gateway
type PayPalConfig struct {
	Enabled      bool
	BaseURL      string `mapstructure:"base_url" validate:"required_if=Enabled true"`
	ClientID     string `mapstructure:"client_id" validate:"required_if=Enabled true"`
	ClientSecret string `mapstructure:"client_secret" validate:"required_if=Enabled true"`
	WebhookID    string `mapstructure:"webhook_id" validate:"required_if=Enabled true"`
	BrandName    string `mapstructure:"brand_name"`
}

type CheckoutConfig struct {
	SuccessURL      string        `mapstructure:"success_url" validate:"required"`
	CancelURL       string        `mapstructure:"cancel_url" validate:"required"`
	ProviderTimeout time.Duration `mapstructure:"provider_timeout" validate:"required"`
	SessionTTL      time.Duration `mapstructure:"session_ttl" validate:"required,min=30m,max=24h"`
	PendingGrace    time.Duration `mapstructure:"pending_grace"`
	MaxAmount       float64       `mapstructure:"max_amount"`
	DefaultMethod   string        `mapstructure:"default_method"`
}

type InvoiceConfig struct {
	Prefix         string        `validate:"required"`
	SellerName     string        `mapstructure:"seller_name"`
	SellerAddress  string        `mapstructure:"seller_address"`
	ArtifactDir    string        `mapstructure:"artifact_dir"`
	DownloadExpiry time.Duration `mapstructure:"download_expiry"`
	// Timezone decides the calendar year an invoice is numbered in
	Timezone string `mapstructure:"timezone" validate:"omitempty,timezone"`
}

// Location returns the invoice timezone, UTC when none is configured
func (c InvoiceConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}

type S3Config struct {
	Enabled   bool
	Region    string `validate:"required_if=Enabled true"`
	Bucket    string `validate:"required_if=Enabled true"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// EventBusConfig configures the transport and the consumer retry policy
type EventBusConfig struct {
	Provider        types.EventBusProvider `validate:"required,oneof=memory kafka"`
	MaxRetries      int                    `mapstructure:"max_retries"`
	InitialInterval time.Duration          `mapstructure:"initial_interval"`
	MaxInterval     time.Duration          `mapstructure:"max_interval"`
	Multiplier      float64
	MaxElapsedTime  time.Duration `mapstructure:"max_elapsed_time"`
}

type KafkaConfig struct {
	Brokers       []string
	ConsumerGroup string `mapstructure:"consumer_group"`
	ClientID      string `mapstructure:"client_id"`
	TLS           bool
	UseSASL       bool   `mapstructure:"use_sasl"`
	SASLMechanism string `mapstructure:"sasl_mechanism"`
	SASLUser      string `mapstructure:"sasl_user"`
	SASLPassword  string `mapstructure:"sasl_password"`
}

type OutboxConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval" validate:"required"`
	BatchSize    int           `mapstructure:"batch_size" validate:"required,min=1"`
}

type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

type EmailConfig struct {
	Enabled     bool
	APIKey      string `mapstructure:"api_key"`
	FromAddress string `mapstructure:"from_address"`
	ReplyTo     string `mapstructure:"reply_to"`
}

type SentryConfig struct {
	Enabled     bool
	DSN         string
	Environment string
	SampleRate  float64 `mapstructure:"sample_rate"`
}

type PyroscopeConfig struct {
	Enabled         bool
	ServerAddress   string `mapstructure:"server_address"`
	ApplicationName string `mapstructure:"application_name"`
	BasicAuthUser   string `mapstructure:"basic_auth_user"`
	BasicAuthPass   string `mapstructure:"basic_auth_pass"`
}

func NewConfig() (*Configuration, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/lm")

	// LM_POSTGRES_HOST overrides postgres.host
	v.SetEnvPrefix("LM")
	v.SetEnvKeyReplacer(strings.NewReplacer(
		".", "_",
		"-", "_",
	))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, err
		}
		fmt.Printf("No config file found, using defaults and environment: %v\n", err)
	} else {
		fmt.Printf("Using config file: %s\n", v.ConfigFileUsed())
	}

	var config Configuration
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// setDefaults registers every key so AutomaticEnv can override keys absent from the file
func setDefaults(v *viper.Viper) {
	v.SetDefault("deployment.mode", types.ModeLocal)
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("logging.level", types.LogLevelInfo)
	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "lm")
	v.SetDefault("postgres.password", "")
	v.SetDefault("postgres.dbname", "lm")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.max_open_conns", 20)
	v.SetDefault("postgres.max_idle_conns", 5)
	v.SetDefault("postgres.conn_max_lifetime_minutes", 30)
	v.SetDefault("auth.secret", "")
	v.SetDefault("stripe.enabled", false)
	v.SetDefault("stripe.secret_key", "")
	v.SetDefault("stripe.webhook_secret", "")
	v.SetDefault("paypal.enabled", false)
	v.SetDefault("paypal.base_url", "https://api-m.sandbox.paypal.com")
	v.SetDefault("paypal.client_id", "")
	v.SetDefault("paypal.client_secret", "")
	v.SetDefault("paypal.webhook_id", "")
	v.SetDefault("paypal.brand_name", "LM")
	v.SetDefault("checkout.success_url", "http://localhost:3000/payment/success")
	v.SetDefault("checkout.cancel_url", "http://localhost:3000/payment/cancel")
	v.SetDefault("checkout.provider_timeout", 10*time.Second)
	v.SetDefault("checkout.session_ttl", 30*time.Minute)
	v.SetDefault("checkout.pending_grace", 15*time.Minute)
	v.SetDefault("checkout.max_amount", 10000)
	v.SetDefault("checkout.default_method", types.PaymentMethodCard)
	v.SetDefault("invoice.prefix", "LM")
	v.SetDefault("invoice.seller_name", "LM")
	v.SetDefault("invoice.seller_address", "")
	v.SetDefault("invoice.artifact_dir", "./data/invoices")
	v.SetDefault("invoice.download_expiry", 30*time.Minute)
	v.SetDefault("invoice.timezone", "Europe/Berlin")
	v.SetDefault("s3.enabled", false)
	v.SetDefault("s3.region", "")
	v.SetDefault("s3.bucket", "")
	v.SetDefault("s3.key_prefix", "invoices")
	v.SetDefault("event_bus.provider", types.EventBusMemory)
	v.SetDefault("event_bus.max_retries", 5)
	v.SetDefault("event_bus.initial_interval", time.Second)
	v.SetDefault("event_bus.max_interval", 30*time.Second)
	v.SetDefault("event_bus.multiplier", 2.0)
	v.SetDefault("event_bus.max_elapsed_time", 2*time.Minute)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.consumer_group", "lm-payments")
	v.SetDefault("kafka.client_id", "lm-payments")
	v.SetDefault("outbox.poll_interval", time.Second)
	v.SetDefault("outbox.batch_size", 50)
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.ttl", 10*time.Minute)
	v.SetDefault("email.enabled", false)
	v.SetDefault("email.api_key", "")
	v.SetDefault("email.from_address", "invoices@lm.example")
	v.SetDefault("email.reply_to", "")
	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "local")
	v.SetDefault("sentry.sample_rate", 0.1)
	v.SetDefault("pyroscope.enabled", false)
	v.SetDefault("pyroscope.server_address", "")
	v.SetDefault("pyroscope.application_name", "lm-payments")
}

func (c Configuration) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}
	return c.Checkout.ValidateExpiry()
}

// ValidateExpiry checks that a pending payment outlives its provider session.
// Card sessions live between 30m and 24h, counted from the provider call, so
// the grace period has to cover the time until that call returns.
func (c CheckoutConfig) ValidateExpiry() error {
	if c.SessionTTL < 30*time.Minute || c.SessionTTL > 24*time.Hour {
		return fmt.Errorf("checkout.session_ttl must be between 30m and 24h, got %s", c.SessionTTL)
	}
	if c.PendingGrace < c.ProviderTimeout {
		return fmt.Errorf("checkout.pending_grace (%s) must not be shorter than checkout.provider_timeout (%s)",
			c.PendingGrace, c.ProviderTimeout)
	}
	return nil
}

// GetDefaultConfig returns a default configuration for local development
// This is useful for running scripts or other non-web applications
func GetDefaultConfig() *Configuration {
	return &Configuration{
		Deployment: DeploymentConfig{Mode: types.ModeLocal},
		Logging:    LoggingConfig{Level: types.LogLevelDebug},
	}
}

func (c PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"user=%s password=%s dbname=%s host=%s port=%d sslmode=%s",
		c.User,
		c.Password,
		c.DBName,
		c.Host,
		c.Port,
		c.SSLMode,
	)
}
