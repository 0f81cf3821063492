package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/robertarktes/court-reservations/internal/app"
	"github.com/robertarktes/court-reservations/internal/config"
	"github.com/robertarktes/court-reservations/internal/observability"
	"github.com/robertarktes/court-reservations/internal/reservation"
	"github.com/robertarktes/court-reservations/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdownOtel, err := observability.SetupOTel(context.Background(), cfg.OTLPEndpoint, "courts-completion-worker")
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel()

	logger := observability.NewLogger(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("failed to start: %v", err)
	}
	defer a.Close()

	w := NewCompletionWorker(a.Engine, worker.DefaultRetryPolicy, logger)
	w.Run(ctx, cfg.CompletionInterval)
	logger.Info("Shutdown completion worker")
}

// CompletionWorker moves elapsed paid bookings to completed once the no-show window closes.
type CompletionWorker struct {
	engine *reservation.Engine
	retry  worker.RetryPolicy
	logger observability.Logger
}

func NewCompletionWorker(engine *reservation.Engine, retry worker.RetryPolicy, logger observability.Logger) *CompletionWorker {
	return &CompletionWorker{engine: engine, retry: retry, logger: logger}
}

func (w *CompletionWorker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.logger.WithField("interval", interval.String()).Info("completion worker started")
	w.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *CompletionWorker) tick(ctx context.Context) {
	var completed int
	err := w.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		completed, err = w.engine.CompleteElapsed(ctx)
		return err
	})
	if err != nil {
		w.logger.WithError(err).Error("failed to complete elapsed bookings after retries")
		return
	}
	if completed > 0 {
		w.logger.WithField("completed", completed).Info("completed elapsed bookings")
	}
}
