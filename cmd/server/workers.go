package main

import (
	"context"

	"github.com/vulnscan/api/internal/app"
	"github.com/vulnscan/api/internal/config"
	"github.com/vulnscan/api/internal/infra/jobs"
	"github.com/vulnscan/api/internal/infra/redis"
	"github.com/vulnscan/api/pkg/logger"
)

// Workers holds the long-running background components.
type Workers struct {
	queue      *jobs.Worker
	scheduler  *app.ScanScheduler
	bridge     *redis.EngineBridge
	reconciler *app.Reconciler
	quota      *app.QuotaService

	logger *logger.Logger
}

// NewWorkers wires the background components: the dispatch queue worker, the
// scheduler, the engine result bridge, and the quota reset schedule.
func NewWorkers(
	cfg *config.Config,
	repos *Repositories,
	services *Services,
	bridge *redis.EngineBridge,
	log *logger.Logger,
) (*Workers, error) {
	queueWorker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisAddr:     cfg.Redis.Addr(),
		RedisPassword: cfg.Redis.Password,
		RedisDB:       cfg.Redis.DB,
		Concurrency:   cfg.Dispatcher.Concurrency,
	}, services.Dispatch, log)
	if err != nil {
		return nil, err
	}

	scheduler := app.NewScanScheduler(
		repos.Target,
		repos.Scan,
		repos.Organization,
		services.Scan,
		app.ScanSchedulerConfig{
			TickInterval: cfg.Scheduler.TickInterval,
			BatchSize:    cfg.Scheduler.BatchSize,
		},
		log,
	)

	reconciler := app.NewReconciler(
		repos.Scan,
		repos.Organization,
		repos.Reconcile,
		services.Alert,
		services.Webhooks,
		services.Notifier,
		log,
	)

	return &Workers{
		queue:      queueWorker,
		scheduler:  scheduler,
		bridge:     bridge,
		reconciler: reconciler,
		quota:      services.Quota,
		logger:     log,
	}, nil
}

// Start starts all background components.
func (w *Workers) Start(ctx context.Context) error {
	if err := w.bridge.Start(ctx, w.reconciler); err != nil {
		return err
	}
	if err := w.queue.Start(); err != nil {
		return err
	}
	if err := w.quota.Start(); err != nil {
		return err
	}
	w.scheduler.Start()
	w.logger.Info("background workers started")
	return nil
}

// Stop stops all background components in reverse dependency order: no new
// work is produced before the consumers drain.
func (w *Workers) Stop() {
	w.scheduler.Stop()
	w.quota.Stop()
	w.queue.Stop()
	w.bridge.Stop()
	w.logger.Info("background workers stopped")
}
