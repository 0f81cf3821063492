package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	redisadapter "github.com/robertarktes/court-reservations/internal/adapters/redis"
	"github.com/robertarktes/court-reservations/internal/app"
	"github.com/robertarktes/court-reservations/internal/config"
	httphandler "github.com/robertarktes/court-reservations/internal/http"
	"github.com/robertarktes/court-reservations/internal/idempotency"
	"github.com/robertarktes/court-reservations/internal/observability"
	"github.com/robertarktes/court-reservations/internal/outbox"
	"github.com/robertarktes/court-reservations/internal/rateLimit"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdown, err := observability.SetupOTel(context.Background(), cfg.OTLPEndpoint, "courts-api")
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdown()

	logger := observability.NewLogger(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("failed to start: %v", err)
	}
	defer a.Close()

	opts := httphandler.RouterOptions{RateLimitPerMinute: cfg.RateLimitPerMinute}
	if a.Redis != nil {
		opts.RateLimiter = rateLimit.NewRateLimiter(redisadapter.NewCache(a.Redis))
		opts.Idempotency = idempotency.NewIdempotency(redisadapter.NewIdempotency(a.Redis), cfg.IdempotencyTTL)
	} else {
		logger.Warn("no REDIS_ADDR, rate limiting and idempotent replay are disabled")
	}

	// The memory outbox is only visible to this process, so relay it here.
	if a.Memory != nil && a.Broker != nil {
		go outbox.NewPublisher(a.Memory, a.Broker, cfg.OutboxPollInterval, logger).Run(ctx)
	}

	handlers := httphandler.NewHandlers(a.Engine, a.Resolver, a.Catalog, cfg.Location, a.Ready)
	r := httphandler.SetupRouter(handlers, logger, opts)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.WithField("addr", cfg.HTTPAddr).Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("listen failed")
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutdown Server ...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("server shutdown")
		os.Exit(1)
	}
	logger.Info("Server exiting")
}
