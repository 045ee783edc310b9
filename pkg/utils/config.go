package utils

import (
	"errors"
	"io/fs"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Booking  BookingConfig
	Payment  PaymentConfig
	RabbitMQ RabbitMQConfig
	Tracing  TracingConfig
}

type AppConfig struct {
	Name    string
	Env     string
	Port    string
	Debug   bool
	LogPath string
}

type DatabaseConfig struct {
	URL      string
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string
	MaxConns int32
	Migrate  bool
}

type BookingConfig struct {
	Currency         string
	PaymentTTL       time.Duration
	SweepInterval    time.Duration
	SweepBatchSize   int
	ReserveTimeout   time.Duration
	MaxRetryAttempts int
	RetryBaseDelay   time.Duration
	LedgerBackend    string
	CatalogSeedPath  string
}

type PaymentConfig struct {
	Provider      string
	DefaultMethod string
	PublicKey     string
	SecretKey     string
	ReturnURI     string
	IntentTimeout time.Duration
	// WebhookSecret guards the generic payment webhook; empty disables it.
	WebhookSecret string
}

type RabbitMQConfig struct {
	URL           string
	Exchange      string
	PaymentQueue  string
	PaymentEvents []string
}

type TracingConfig struct {
	Enabled  bool
	Endpoint string
}

const (
	LedgerBackendPostgres = "postgres"
	LedgerBackendMemory   = "memory"

	PaymentProviderStub  = "stub"
	PaymentProviderOmise = "omise"
)

func LoadConfig() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")

	viper.SetDefault("APP_NAME", "stay-booking")
	viper.SetDefault("APP_ENV", "dev")
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("DEBUG", false)
	viper.SetDefault("LOG_PATH", "logs/")

	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_MAX_CONNS", 10)
	viper.SetDefault("DB_MIGRATE", true)

	viper.SetDefault("BOOKING_CURRENCY", "THB")
	viper.SetDefault("BOOKING_PAYMENT_TTL", "30m")
	viper.SetDefault("BOOKING_SWEEP_INTERVAL", "1m")
	viper.SetDefault("BOOKING_SWEEP_BATCH_SIZE", 100)
	viper.SetDefault("BOOKING_RESERVE_TIMEOUT", "5s")
	viper.SetDefault("BOOKING_MAX_RETRY_ATTEMPTS", 3)
	viper.SetDefault("BOOKING_RETRY_BASE_DELAY", "100ms")
	viper.SetDefault("BOOKING_LEDGER_BACKEND", LedgerBackendPostgres)

	viper.SetDefault("PAYMENT_PROVIDER", PaymentProviderStub)
	viper.SetDefault("PAYMENT_DEFAULT_METHOD", "promptpay")
	viper.SetDefault("PAYMENT_INTENT_TIMEOUT", "10s")

	viper.SetDefault("RABBIT_EXCHANGE", "booking.events")
	viper.SetDefault("RABBIT_PAYMENT_QUEUE", "stay-booking.payments")
	viper.SetDefault("RABBIT_PAYMENT_EVENTS", "payment.paid,payment.failed")

	viper.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")

	// .env is optional; the environment alone is enough
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	viper.AutomaticEnv()

	config := &Config{
		App: AppConfig{
			Name:    viper.GetString("APP_NAME"),
			Env:     viper.GetString("APP_ENV"),
			Port:    viper.GetString("PORT"),
			Debug:   viper.GetBool("DEBUG"),
			LogPath: viper.GetString("LOG_PATH"),
		},
		Database: DatabaseConfig{
			URL:      viper.GetString("DATABASE_URL"),
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			Name:     viper.GetString("DB_NAME"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASS"),
			SSLMode:  viper.GetString("DB_SSLMODE"),
			MaxConns: viper.GetInt32("DB_MAX_CONNS"),
			Migrate:  viper.GetBool("DB_MIGRATE"),
		},
		Booking: BookingConfig{
			Currency:         viper.GetString("BOOKING_CURRENCY"),
			PaymentTTL:       viper.GetDuration("BOOKING_PAYMENT_TTL"),
			SweepInterval:    viper.GetDuration("BOOKING_SWEEP_INTERVAL"),
			SweepBatchSize:   viper.GetInt("BOOKING_SWEEP_BATCH_SIZE"),
			ReserveTimeout:   viper.GetDuration("BOOKING_RESERVE_TIMEOUT"),
			MaxRetryAttempts: viper.GetInt("BOOKING_MAX_RETRY_ATTEMPTS"),
			RetryBaseDelay:   viper.GetDuration("BOOKING_RETRY_BASE_DELAY"),
			LedgerBackend:    viper.GetString("BOOKING_LEDGER_BACKEND"),
			CatalogSeedPath:  viper.GetString("CATALOG_SEED_PATH"),
		},
		Payment: PaymentConfig{
			Provider:      viper.GetString("PAYMENT_PROVIDER"),
			DefaultMethod: viper.GetString("PAYMENT_DEFAULT_METHOD"),
			PublicKey:     viper.GetString("OMISE_PUBLIC_KEY"),
			SecretKey:     viper.GetString("OMISE_SECRET_KEY"),
			ReturnURI:     viper.GetString("PAYMENT_RETURN_URI"),
			IntentTimeout: viper.GetDuration("PAYMENT_INTENT_TIMEOUT"),
			WebhookSecret: viper.GetString("PAYMENT_WEBHOOK_SECRET"),
		},
		RabbitMQ: RabbitMQConfig{
			URL:           viper.GetString("RABBIT_URL"),
			Exchange:      viper.GetString("RABBIT_EXCHANGE"),
			PaymentQueue:  viper.GetString("RABBIT_PAYMENT_QUEUE"),
			PaymentEvents: SplitList(viper.GetString("RABBIT_PAYMENT_EVENTS")),
		},
		Tracing: TracingConfig{
			Enabled:  viper.GetBool("OTEL_ENABLED"),
			Endpoint: viper.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
		},
	}

	return config, nil
}
