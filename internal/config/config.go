package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/fx"
)

// Config carries process configuration resolved from the environment.
type Config struct {
	Environment string
	Port        string
	DatabaseURL string

	ServiceName    string
	ServiceVersion string

	// PaymentProviderConfigSecret protects provider credentials persisted in
	// the admin config store. Empty disables the store path; env credentials
	// still work.
	PaymentProviderConfigSecret string

	// ProviderConfigTTL bounds how long resolved provider credentials and
	// adapter instances are reused before re-resolution.
	ProviderConfigTTL time.Duration

	// EscrowHoldOnDeposit places settled funds on hold immediately instead of
	// crediting the seller's available balance.
	EscrowHoldOnDeposit bool

	Reconcile ReconcileConfig

	Webhook WebhookConfig

	Tracing TracingConfig
}

// WebhookConfig bounds inbound gateway callbacks per provider and source
// address. The limit needs headroom above steady-state delivery because
// gateways burst retries after an outage.
type WebhookConfig struct {
	RateLimit  int
	RateWindow time.Duration
}

// ReconcileConfig controls the stale-payment verification sweep.
type ReconcileConfig struct {
	Enabled      bool
	PollInterval time.Duration
	StaleAfter   time.Duration
	BatchSize    int
}

// TracingConfig controls the OTLP trace exporter.
type TracingConfig struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	SamplingRatio    float64
}

func Load() Config {
	return Config{
		Environment:                 getenv("ENVIRONMENT", "development"),
		Port:                        getenv("PORT", "8080"),
		DatabaseURL:                 os.Getenv("DATABASE_URL"),
		ServiceName:                 getenv("SERVICE_NAME", "payvault"),
		ServiceVersion:              getenv("SERVICE_VERSION", "dev"),
		PaymentProviderConfigSecret: os.Getenv("PAYMENT_PROVIDER_CONFIG_SECRET"),
		ProviderConfigTTL:           getenvDuration("PROVIDER_CONFIG_TTL", 5*time.Minute),
		EscrowHoldOnDeposit:         getenvBool("ESCROW_HOLD_ON_DEPOSIT", false),
		Reconcile: ReconcileConfig{
			Enabled:      getenvBool("RECONCILE_ENABLED", true),
			PollInterval: getenvDuration("RECONCILE_POLL_INTERVAL", 2*time.Minute),
			StaleAfter:   getenvDuration("RECONCILE_STALE_AFTER", 15*time.Minute),
			BatchSize:    getenvInt("RECONCILE_BATCH_SIZE", 50),
		},
		Webhook: WebhookConfig{
			RateLimit:  getenvInt("WEBHOOK_RATE_LIMIT", 120),
			RateWindow: getenvDuration("WEBHOOK_RATE_WINDOW", time.Minute),
		},
		Tracing: TracingConfig{
			Enabled:          getenvBool("TRACING_ENABLED", false),
			ExporterEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
			ExporterProtocol: getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"),
			SamplingRatio:    getenvFloat("TRACING_SAMPLING_RATIO", 0.1),
		},
	}
}

// IsProduction reports whether the process runs with production settings.
func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

var Module = fx.Module("config",
	fx.Provide(Load),
)

func getenv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getenvBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
