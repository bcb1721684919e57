// Package app wires configuration into the services shared by the API and the worker.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-beaute/internal/auth"
	"github.com/noah-isme/backend-beaute/internal/catalog"
	"github.com/noah-isme/backend-beaute/internal/checkout"
	"github.com/noah-isme/backend-beaute/internal/common"
	"github.com/noah-isme/backend-beaute/internal/config"
	"github.com/noah-isme/backend-beaute/internal/db"
	dbgen "github.com/noah-isme/backend-beaute/internal/db/gen"
	"github.com/noah-isme/backend-beaute/internal/discount"
	"github.com/noah-isme/backend-beaute/internal/events"
	"github.com/noah-isme/backend-beaute/internal/lock"
	"github.com/noah-isme/backend-beaute/internal/notify"
	"github.com/noah-isme/backend-beaute/internal/obs"
	"github.com/noah-isme/backend-beaute/internal/order"
	"github.com/noah-isme/backend-beaute/internal/payment"
	"github.com/noah-isme/backend-beaute/internal/pricing"
	"github.com/noah-isme/backend-beaute/internal/queue"
	"github.com/noah-isme/backend-beaute/internal/resilience"
)

// Dependencies enumerates the services shared across entrypoints.
type Dependencies struct {
	Config  *config.Config
	Logger  zerolog.Logger
	DB      *pgxpool.Pool
	Redis   *redis.Client
	Queries *dbgen.Queries

	TaskConn   asynq.RedisConnOpt
	TaskClient *asynq.Client
	Queue      queue.Client

	Mailer      common.EmailSender
	Bus         *events.Bus
	Breaker     *resilience.Breaker
	Catalog     *catalog.Service
	Discounts   *discount.Service
	Orders      *order.Store
	Payments    payment.Provider
	Settler     *payment.Settler
	Checkout    *checkout.Service
	Broadcaster notify.Broadcaster
	Verifier    auth.Verifier

	closers []func()
}

// New connects to PostgreSQL and Redis and builds every service. Callers must Close it.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Dependencies, error) {
	d := &Dependencies{Config: cfg, Logger: logger}
	if err := d.init(ctx); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

func (d *Dependencies) init(ctx context.Context) error {
	cfg := d.Config
	if cfg.Obs.MetricsEnabled {
		RegisterMetrics(cfg.Obs.MetricsNamespace, prometheus.DefaultRegisterer)
	}

	if cfg.MigrateOnStart {
		if err := db.Migrate(cfg.DatabaseURL); err != nil {
			return err
		}
		d.Logger.Info().Msg("database migrations applied")
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := db.NewPool(connectCtx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	d.DB = pool
	d.closers = append(d.closers, pool.Close)
	d.Queries = dbgen.New(pool)

	rdb, err := NewRedis(connectCtx, cfg.RedisURL, cfg.Obs.MetricsEnabled, d.Logger)
	if err != nil {
		return err
	}
	d.Redis = rdb
	d.closers = append(d.closers, func() { _ = rdb.Close() })

	d.TaskConn, err = asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("parse task queue redis url: %w", err)
	}
	d.TaskClient = asynq.NewClient(d.TaskConn)
	d.closers = append(d.closers, func() { _ = d.TaskClient.Close() })
	d.Queue = queue.Client{
		Tasks:            d.TaskClient,
		RedeemMaxRetry:   cfg.Worker.RedeemMaxRetry,
		BroadcastRetries: cfg.Worker.BroadcastRetry,
	}

	d.Mailer = NewMailer(cfg.Email, d.Logger)
	d.Bus = &events.Bus{
		Store: d.Queries,
		Notifiers: []events.Notifier{notify.EmailNotifier{
			Mail:      d.Mailer,
			Enabled:   cfg.Email.Enabled,
			StoreName: cfg.Email.StoreName,
			Logger:    d.Logger,
		}},
	}

	d.Catalog, err = catalog.NewService(catalog.ServiceConfig{
		Queries:      d.Queries,
		Cache:        catalog.NewCache(rdb, cfg.Catalog.CacheTTL),
		DefaultLimit: cfg.Catalog.DefaultLimit,
		MaxLimit:     cfg.Catalog.MaxLimit,
		Logger:       d.Logger.With().Str("component", "catalog").Logger(),
	})
	if err != nil {
		return err
	}
	d.Discounts = &discount.Service{
		Store:  discount.NewPGStore(pool),
		Logger: d.Logger.With().Str("component", "discount").Logger(),
	}
	d.Orders = order.NewStore(pool)

	d.Breaker = resilience.NewBreaker(cfg.Stripe.BreakerMinRequests, cfg.Stripe.BreakerFailureRatio, cfg.Stripe.BreakerOpenFor).
		WithTarget("stripe").
		WithLogger(d.Logger)
	stripeProvider, err := payment.NewStripe(payment.StripeConfig{
		SecretKey:  cfg.Stripe.SecretKey,
		APIURL:     cfg.Stripe.APIURL,
		Timeout:    cfg.Stripe.Timeout,
		MaxRetries: cfg.Stripe.MaxRetries,
		Breaker:    d.Breaker,
	})
	switch {
	case errors.Is(err, payment.ErrProviderNotConfigured):
		d.Logger.Warn().Msg("STRIPE_SECRET_KEY not set; checkout sessions are disabled")
	case err != nil:
		return err
	default:
		d.Payments = stripeProvider
	}

	d.Settler = &payment.Settler{
		Orders:    d.Orders,
		Discounts: d.Discounts,
		Events:    d.Bus,
		Logger:    d.Logger.With().Str("component", "settlement").Logger(),
	}

	threshold := cfg.Pricing.TaxExemptionThreshold
	d.Checkout = &checkout.Service{
		Products:  d.Catalog,
		Discounts: d.Discounts,
		Orders:    d.Orders,
		Payments:  d.Payments,
		Events:    d.Bus,
		Config: checkout.Config{
			Currency:    cfg.Pricing.Currency,
			TaxRate:     cfg.Pricing.TaxRate,
			ShippingFee: cfg.Pricing.ShippingFlatFee,
			Calculator:  pricing.Calculator{TaxExemptionThreshold: &threshold},
			MaxQuantity: cfg.Pricing.MaxQuantity,
			SuccessURL:  cfg.Checkout.SuccessURL,
			CancelURL:   cfg.Checkout.CancelURL,
		},
		Logger: d.Logger.With().Str("component", "checkout").Logger(),
	}

	d.Broadcaster = notify.Broadcaster{
		Mail:        d.Mailer,
		Lock:        lock.Locker{R: rdb},
		Sent:        notify.RedisDeliveryLog{R: rdb},
		BatchSize:   cfg.Email.BatchSize,
		Delay:       cfg.Email.BatchDelay,
		Concurrency: cfg.Email.Concurrency,
		Logger:      d.Logger.With().Str("component", "broadcast").Logger(),
	}
	d.Verifier = auth.Verifier{
		Secret:    []byte(cfg.AdminJWTSecret),
		Issuer:    cfg.AdminJWTIssuer,
		Audience:  cfg.AdminJWTAudience,
		ClockSkew: 30 * time.Second,
	}
	return nil
}

// Close releases connections in reverse order of creation.
func (d *Dependencies) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
	d.closers = nil
}

// NewRedis opens an instrumented Redis client and verifies connectivity.
func NewRedis(ctx context.Context, url string, metrics bool, logger zerolog.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metrics {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// NewMailer returns an SMTP sender, or an in-memory outbox when SMTP is not configured.
func NewMailer(cfg config.EmailConfig, logger zerolog.Logger) common.EmailSender {
	if cfg.SMTPHost == "" {
		logger.Warn().Msg("SMTP_HOST not set; emails are kept in memory")
		return &common.InMemoryEmail{}
	}
	sender, err := notify.NewSMTPSender(notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.From,
	})
	if err != nil {
		logger.Error().Err(err).Msg("configure smtp; emails are kept in memory")
		return &common.InMemoryEmail{}
	}
	return sender
}

// RegisterMetrics registers the domain, breaker and queue collectors on reg.
func RegisterMetrics(namespace string, reg prometheus.Registerer) {
	obs.MustRegisterDomainMetrics(namespace, reg)
	resilience.MustRegisterMetrics(reg)
	queue.MustRegisterMetrics(reg)
}
