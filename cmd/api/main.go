package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/backend-beaute/internal/app"
	"github.com/noah-isme/backend-beaute/internal/audit"
	"github.com/noah-isme/backend-beaute/internal/auth"
	"github.com/noah-isme/backend-beaute/internal/catalog"
	"github.com/noah-isme/backend-beaute/internal/checkout"
	"github.com/noah-isme/backend-beaute/internal/common"
	"github.com/noah-isme/backend-beaute/internal/config"
	"github.com/noah-isme/backend-beaute/internal/discount"
	"github.com/noah-isme/backend-beaute/internal/health"
	"github.com/noah-isme/backend-beaute/internal/notify"
	"github.com/noah-isme/backend-beaute/internal/obs"
	"github.com/noah-isme/backend-beaute/internal/order"
	"github.com/noah-isme/backend-beaute/internal/payment"
	"github.com/noah-isme/backend-beaute/internal/queue"
	"github.com/noah-isme/backend-beaute/internal/ratelimit"
	"github.com/noah-isme/backend-beaute/internal/resilience"
	"github.com/noah-isme/backend-beaute/internal/security"
)

func main() {
	cfg := config.MustLoad()
	logger := obs.NewLogger(cfg.Obs.LogFormat, cfg.Obs.LogLevel).With().Str("env", cfg.AppEnv).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Obs.TracingEnabled {
		shutdown, err := obs.InitTracer(ctx, obs.TracingConfig{
			ServiceName:   "beaute-api",
			Endpoint:      cfg.Obs.OTLPEndpoint,
			Exporter:      cfg.Obs.TracingExporter,
			SamplingRatio: cfg.Obs.SamplingRatio,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	deps, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise dependencies")
	}
	defer deps.Close()

	inspector := asynq.NewInspector(deps.TaskConn)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Error().Err(err).Msg("close queue inspector")
		}
	}()

	router, err := newRouter(deps, inspector)
	if err != nil {
		logger.Fatal().Err(err).Msg("build router")
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	case <-ctx.Done():
	}

	health.SetReady(false)
	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown")
	}
}

func newRouter(deps *app.Dependencies, inspector queue.Inspector) (http.Handler, error) {
	cfg := deps.Config
	logger := deps.Logger

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if cfg.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if cfg.Obs.TracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if cfg.Obs.MetricsEnabled {
		metrics := obs.NewHTTPMetrics(cfg.Obs.MetricsNamespace, obs.ParseBucketsCSV(cfg.Obs.MetricsBuckets), prometheus.DefaultRegisterer)
		r.Use(obs.HTTPObs{Metrics: metrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.Headers{
		Enable:          true,
		EnableHSTS:      cfg.IsProduction(),
		HSTSMaxAge:      31536000,
		NoStorePrefixes: []string{"/api/v1/checkout", "/api/v1/orders", "/api/v1/admin"},
	}.Middleware)
	r.Use(security.BodyLimit{Max: cfg.BodyLimitBytes, SkipPrefixes: []string{"/api/v1/webhooks/"}}.Middleware)
	r.Use(security.CORS(strings.Join(cfg.CORSAllowedOrigins, ",")))

	if cfg.Obs.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if cfg.Obs.PprofEnabled {
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), cfg.Obs.PprofUser, cfg.Obs.PprofPass))
	}

	healthHandler := health.Handler{
		Probes: map[string]health.Probe{
			"db":    deps.DB.Ping,
			"redis": func(ctx context.Context) error { return deps.Redis.Ping(ctx).Err() },
		},
		Breakers: []*resilience.Breaker{deps.Breaker},
		Timeout:  cfg.HealthProbeTimeout,
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	discountLimiter, err := ratelimit.New(deps.Redis, "rl:discount", cfg.RateLimitDiscount, cfg.RateLimitPeriod, cfg.TrustProxy)
	if err != nil {
		return nil, err
	}
	limitDiscounts := ratelimit.Handler{
		Limiter: discountLimiter,
		OnError: func(err error) { logger.Warn().Err(err).Msg("discount rate limiter unavailable") },
	}.Middleware

	catalogHandler := &catalog.Handler{Svc: deps.Catalog}
	discountHandler := &discount.Handler{Svc: deps.Discounts}
	checkoutHandler := &checkout.Handler{Svc: deps.Checkout}
	orderHandler := &order.Handler{Orders: deps.Orders, Logger: logger}
	webhook := &payment.Webhook{
		Secret:    cfg.Stripe.WebhookSecret,
		Settler:   deps.Settler,
		Retry:     deps.Queue,
		Replay:    deps.Redis,
		ReplayTTL: cfg.WebhookReplayTTL,
	}
	idem := common.Idem{R: deps.Redis, TTL: cfg.IdempotencyTTL}
	admin := auth.Middleware{Verifier: deps.Verifier, Logger: logger}
	broadcastHandler := &notify.AdminHandler{Queue: deps.Queue, MaxRecipients: cfg.Email.MaxRecipients, Logger: logger}
	queueAdmin := &queue.AdminHandler{Inspector: inspector, Logger: logger}
	auditRecorder := audit.Recorder{Service: audit.Service{Store: deps.Queries}, Logger: logger}
	auditHandler := audit.Handler{Store: deps.Queries}
	audited := func(action, resource, idParam string) func(http.Handler) http.Handler {
		return auditRecorder.Middleware(audit.Route{Action: action, ResourceType: resource, ResourceIDParam: idParam})
	}

	r.Route("/api/v1", func(v chi.Router) {
		v.Get("/products", catalogHandler.Products)
		v.Get("/products/{id}", catalogHandler.Product)

		v.With(limitDiscounts).Post("/discounts/validate", discountHandler.Validate)

		v.Post("/checkout/quote", checkoutHandler.Quote)
		v.With(idem.Middleware).Post("/checkout/sessions", checkoutHandler.Session)

		v.Get("/orders/{id}", orderHandler.Get)

		v.Post("/webhooks/stripe", webhook.Handle)

		v.Route("/admin", func(a chi.Router) {
			a.Use(admin.RequireAdmin)
			a.With(audited("discount.create", "discount_code", "")).Post("/discount-codes", discountHandler.Create)
			a.Get("/discount-codes", discountHandler.List)
			a.With(audited("discount.update", "discount_code", "code")).Put("/discount-codes/{code}", discountHandler.Update)
			a.Get("/discount-codes/{code}/usages", discountHandler.Usages)

			a.With(audited("email.broadcast", "campaign", "")).Post("/emails/broadcast", broadcastHandler.Broadcast)

			a.Get("/queue/stats", queueAdmin.Stats)
			a.Get("/queue/archived", queueAdmin.ListArchived)
			a.With(audited("queue.replay", "task", "id")).Post("/queue/archived/{id}/run", queueAdmin.Replay)

			a.Get("/audit-logs", auditHandler.List)
		})
	})

	return r, nil
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	for _, name := range []string{"allocs", "block", "goroutine", "heap", "mutex", "threadcreate"} {
		mux.Handle("/"+name, pprof.Handler(name))
	}
	return http.StripPrefix("/debug/pprof", mux)
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
