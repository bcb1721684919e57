package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/backend-beaute/internal/app"
	"github.com/noah-isme/backend-beaute/internal/config"
	"github.com/noah-isme/backend-beaute/internal/obs"
	"github.com/noah-isme/backend-beaute/internal/queue"
)

// metricsAddr serves the worker's Prometheus collectors next to the API port.
const metricsAddr = ":9091"

func main() {
	cfg := config.MustLoad()
	logger := obs.NewLogger(cfg.Obs.LogFormat, cfg.Obs.LogLevel).With().Str("component", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Obs.TracingEnabled {
		shutdown, err := obs.InitTracer(ctx, obs.TracingConfig{
			ServiceName:   "beaute-worker",
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

	// Migrations are owned by the API process.
	cfg.MigrateOnStart = false
	deps, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise dependencies")
	}
	defer deps.Close()

	if cfg.Obs.MetricsEnabled {
		metricsSrv := &http.Server{Addr: metricsAddr, Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("metrics server stopped")
			}
		}()
		defer func() { _ = metricsSrv.Close() }()
	}

	srv := queue.NewServer(deps.TaskConn, queue.ServerConfig{
		Concurrency:     cfg.Worker.Concurrency,
		RetryBase:       cfg.Worker.RetryBase,
		ShutdownTimeout: cfg.Worker.ShutdownTimeout,
		Logger:          logger,
	})
	handlers := queue.Handlers{
		Redeemer:    deps.Settler,
		Broadcaster: deps.Broadcaster,
		Logger:      logger,
	}

	logger.Info().Int("concurrency", cfg.Worker.Concurrency).Msg("worker starting")
	if err := srv.Start(handlers.Mux()); err != nil {
		logger.Fatal().Err(err).Msg("start worker")
	}
	<-ctx.Done()
	logger.Info().Msg("worker draining")
	srv.Shutdown()
	logger.Info().Msg("worker shutdown complete")
}
