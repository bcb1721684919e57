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
	"github.com/shopspring/decimal"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	MigrateOnStart     bool
	CORSAllowedOrigins []string
	PublicBaseURL      string
	BodyLimitBytes     int64
	TrustProxy         bool

	AdminJWTSecret   string
	AdminJWTIssuer   string
	AdminJWTAudience string

	Pricing  PricingConfig
	Checkout CheckoutConfig
	Stripe   StripeConfig
	Email    EmailConfig
	Catalog  CatalogConfig
	Worker   WorkerConfig
	Obs      ObsConfig

	IdempotencyTTL     time.Duration
	WebhookReplayTTL   time.Duration
	RateLimitDiscount  int64
	RateLimitPeriod    time.Duration
	HealthProbeTimeout time.Duration
	ShutdownTimeout    time.Duration
}

// PricingConfig drives the order total calculator.
type PricingConfig struct {
	Currency              string
	TaxRate               decimal.Decimal
	TaxExemptionThreshold decimal.Decimal
	ShippingFlatFee       decimal.Decimal
	MaxQuantity           int
}

// CheckoutConfig holds the hosted checkout redirect templates. {ORDER_ID} is substituted.
type CheckoutConfig struct {
	SuccessURL string
	CancelURL  string
}

// StripeConfig configures the payment provider and its circuit breaker.
type StripeConfig struct {
	SecretKey           string
	WebhookSecret       string
	APIURL              string
	Timeout             time.Duration
	MaxRetries          int64
	BreakerMinRequests  int
	BreakerFailureRatio float64
	BreakerOpenFor      time.Duration
}

// EmailConfig configures SMTP delivery and bulk email pacing.
type EmailConfig struct {
	Enabled       bool
	SMTPHost      string
	SMTPPort      int
	SMTPUsername  string
	SMTPPassword  string
	From          string
	StoreName     string
	BatchSize     int
	BatchDelay    time.Duration
	Concurrency   int
	MaxRecipients int
}

// CatalogConfig configures product listing and caching.
type CatalogConfig struct {
	CacheTTL     time.Duration
	DefaultLimit int
	MaxLimit     int
}

// WorkerConfig configures the background task server.
type WorkerConfig struct {
	Concurrency     int
	RetryBase       time.Duration
	RedeemMaxRetry  int
	BroadcastRetry  int
	ShutdownTimeout time.Duration
}

// ObsConfig configures logging, metrics and tracing.
type ObsConfig struct {
	LogFormat        string
	LogLevel         string
	MetricsEnabled   bool
	MetricsNamespace string
	MetricsBuckets   string
	TracingEnabled   bool
	TracingExporter  string
	OTLPEndpoint     string
	SamplingRatio    float64
	PprofEnabled     bool
	PprofUser        string
	PprofPass        string
}

// Load reads configuration from environment variables and an optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}
	r := reader{k: k}

	cfg := &Config{
		AppEnv:             r.str("APP_ENV", "development"),
		Port:               r.str("PORT", "8080"),
		DatabaseURL:        r.str("DATABASE_URL", ""),
		RedisURL:           r.str("REDIS_URL", ""),
		MigrateOnStart:     r.boolean("MIGRATE_ON_START", false),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		PublicBaseURL:      strings.TrimRight(r.str("PUBLIC_BASE_URL", "http://localhost:3000"), "/"),
		BodyLimitBytes:     int64(r.integer("BODY_LIMIT_BYTES", 1<<20)),
		TrustProxy:         r.boolean("TRUST_PROXY", false),

		AdminJWTSecret:   r.str("ADMIN_JWT_SECRET", ""),
		AdminJWTIssuer:   r.str("ADMIN_JWT_ISSUER", "beaute"),
		AdminJWTAudience: r.str("ADMIN_JWT_AUDIENCE", "beaute-admin"),

		Pricing: PricingConfig{
			Currency:              strings.ToLower(r.str("CURRENCY_CODE", "cad")),
			TaxRate:               r.decimal("PRICING_TAX_RATE", "0.13"),
			TaxExemptionThreshold: r.decimal("PRICING_TAX_EXEMPTION_THRESHOLD", "9.90"),
			ShippingFlatFee:       r.decimal("SHIPPING_FLAT_FEE", "15.00"),
			MaxQuantity:           r.integer("CHECKOUT_MAX_QUANTITY", 99),
		},
		Stripe: StripeConfig{
			SecretKey:           r.str("STRIPE_SECRET_KEY", ""),
			WebhookSecret:       r.str("STRIPE_WEBHOOK_SECRET", ""),
			APIURL:              r.str("STRIPE_API_URL", ""),
			Timeout:             r.duration("STRIPE_TIMEOUT", "20s"),
			MaxRetries:          int64(r.integer("STRIPE_MAX_RETRIES", 2)),
			BreakerMinRequests:  r.integer("STRIPE_BREAKER_MIN_REQUESTS", 10),
			BreakerFailureRatio: r.float("STRIPE_BREAKER_FAILURE_RATIO", 0.5),
			BreakerOpenFor:      r.duration("STRIPE_BREAKER_OPEN_FOR", "30s"),
		},
		Email: EmailConfig{
			Enabled:       r.boolean("EMAIL_ENABLED", true),
			SMTPHost:      r.str("SMTP_HOST", ""),
			SMTPPort:      r.integer("SMTP_PORT", 587),
			SMTPUsername:  r.str("SMTP_USERNAME", ""),
			SMTPPassword:  r.str("SMTP_PASSWORD", ""),
			From:          r.str("EMAIL_FROM", "Beauté <hello@beaute.test>"),
			StoreName:     r.str("STORE_NAME", "Beauté"),
			BatchSize:     r.integer("EMAIL_BATCH_SIZE", 50),
			BatchDelay:    r.duration("EMAIL_BATCH_DELAY", "1s"),
			Concurrency:   r.integer("EMAIL_BATCH_CONCURRENCY", 10),
			MaxRecipients: r.integer("EMAIL_MAX_RECIPIENTS", 10000),
		},
		Catalog: CatalogConfig{
			CacheTTL:     r.duration("CATALOG_CACHE_TTL", "5m"),
			DefaultLimit: r.integer("CATALOG_DEFAULT_LIMIT", 24),
			MaxLimit:     r.integer("CATALOG_MAX_LIMIT", 100),
		},
		Worker: WorkerConfig{
			Concurrency:     r.integer("WORKER_CONCURRENCY", 10),
			RetryBase:       r.duration("WORKER_RETRY_BASE", "2s"),
			RedeemMaxRetry:  r.integer("WORKER_REDEEM_MAX_RETRY", 10),
			BroadcastRetry:  r.integer("WORKER_BROADCAST_MAX_RETRY", 3),
			ShutdownTimeout: r.duration("WORKER_SHUTDOWN_TIMEOUT", "30s"),
		},
		Obs: ObsConfig{
			LogFormat:        r.str("OBS_LOG_FORMAT", "json"),
			LogLevel:         r.str("OBS_LOG_LEVEL", "info"),
			MetricsEnabled:   r.boolean("OBS_ENABLE_PROMETHEUS", true),
			MetricsNamespace: r.str("OBS_METRICS_NAMESPACE", "beaute"),
			MetricsBuckets:   r.str("OBS_METRICS_BUCKETS_MS", ""),
			TracingEnabled:   r.boolean("OBS_ENABLE_TRACING", false),
			TracingExporter:  r.str("OBS_TRACING_EXPORTER", "otlp"),
			OTLPEndpoint:     r.str("OBS_OTLP_ENDPOINT", ""),
			SamplingRatio:    r.float("OBS_TRACING_SAMPLING_RATIO", 1.0),
			PprofEnabled:     r.boolean("OBS_ENABLE_PPROF", false),
			PprofUser:        r.str("SECURE_PPROF_BASIC_AUTH_USER", ""),
			PprofPass:        r.str("SECURE_PPROF_BASIC_AUTH_PASS", ""),
		},

		IdempotencyTTL:     r.duration("IDEMPOTENCY_TTL", "24h"),
		WebhookReplayTTL:   r.duration("WEBHOOK_REPLAY_TTL", "72h"),
		RateLimitDiscount:  int64(r.integer("RATE_LIMIT_DISCOUNT", 10)),
		RateLimitPeriod:    r.duration("RATE_LIMIT_PERIOD", "1m"),
		HealthProbeTimeout: r.duration("HEALTH_PROBE_TIMEOUT", "500ms"),
		ShutdownTimeout:    r.duration("SHUTDOWN_TIMEOUT", "15s"),
	}
	cfg.Checkout = CheckoutConfig{
		SuccessURL: r.str("CHECKOUT_SUCCESS_URL", cfg.PublicBaseURL+"/checkout/success?order={ORDER_ID}"),
		CancelURL:  r.str("CHECKOUT_CANCEL_URL", cfg.PublicBaseURL+"/cart?canceled={ORDER_ID}"),
	}

	if len(r.errs) > 0 {
		return nil, errors.Join(r.errs...)
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
	if c.AdminJWTSecret == "" {
		errs = append(errs, errors.New("ADMIN_JWT_SECRET is required"))
	}
	if c.Pricing.TaxRate.IsNegative() || c.Pricing.TaxRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		errs = append(errs, errors.New("PRICING_TAX_RATE must be in [0, 1)"))
	}
	if c.Pricing.ShippingFlatFee.IsNegative() {
		errs = append(errs, errors.New("SHIPPING_FLAT_FEE must not be negative"))
	}
	if c.Pricing.TaxExemptionThreshold.IsNegative() {
		errs = append(errs, errors.New("PRICING_TAX_EXEMPTION_THRESHOLD must not be negative"))
	}
	if c.Email.BatchSize <= 0 {
		errs = append(errs, errors.New("EMAIL_BATCH_SIZE must be positive"))
	}
	if c.IsProduction() && c.Stripe.SecretKey != "" && c.Stripe.WebhookSecret == "" {
		errs = append(errs, errors.New("STRIPE_WEBHOOK_SECRET is required when STRIPE_SECRET_KEY is set"))
	}
	return errors.Join(errs...)
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
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

// reader collects parse errors so a misconfigured deployment reports every bad key at once.
type reader struct {
	k    *koanf.Koanf
	errs []error
}

func (r *reader) str(key, fallback string) string {
	if v := strings.TrimSpace(r.k.String(key)); v != "" {
		return v
	}
	return fallback
}

func (r *reader) integer(key string, fallback int) int {
	raw := strings.TrimSpace(r.k.String(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return v
}

func (r *reader) float(key string, fallback float64) float64 {
	raw := strings.TrimSpace(r.k.String(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return v
}

func (r *reader) boolean(key string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(r.k.String(key))) {
	case "":
		return fallback
	case "1", "t", "true", "yes", "on":
		return true
	case "0", "f", "false", "no", "off":
		return false
	default:
		r.errs = append(r.errs, fmt.Errorf("%s: invalid boolean", key))
		return fallback
	}
}

func (r *reader) duration(key, fallback string) time.Duration {
	raw := r.str(key, fallback)
	d, err := time.ParseDuration(raw)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func (r *reader) decimal(key, fallback string) decimal.Decimal {
	raw := r.str(key, fallback)
	d, err := decimal.NewFromString(raw)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return decimal.RequireFromString(fallback)
	}
	return d
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]*string, len(env))
	for key := range env {
		if prev, ok := os.LookupEnv(key); ok {
			original[key] = &prev
		} else {
			original[key] = nil
		}
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

func restoreEnv(values map[string]*string) error {
	var errs []string
	for key, value := range values {
		var err error
		if value == nil {
			err = os.Unsetenv(key)
		} else {
			err = os.Setenv(key, *value)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
