package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/vulnscan/api/internal/metrics"
	"github.com/vulnscan/api/pkg/domain/organization"
	"github.com/vulnscan/api/pkg/domain/scan"
	"github.com/vulnscan/api/pkg/domain/target"
	"github.com/vulnscan/api/pkg/logger"
)

// ScanScheduler periodically finds targets whose cadence has elapsed and
// creates scans for them. Ticks are serialized: a tick that outlives the
// interval causes the next to be skipped, never run concurrently.
type ScanScheduler struct {
	targetRepo  target.Repository
	scanRepo    scan.Repository
	orgRepo     organization.Repository
	scanService *ScanService
	logger      *logger.Logger

	interval  time.Duration
	batchSize int
	tickMu    sync.Mutex
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// ScanSchedulerConfig holds configuration for the scan scheduler.
type ScanSchedulerConfig struct {
	// TickInterval is how often to check for due targets (default: 1 minute)
	TickInterval time.Duration
	// BatchSize is the max number of targets to process per tick (default: 50)
	BatchSize int
}

// NewScanScheduler creates a new ScanScheduler.
func NewScanScheduler(
	targetRepo target.Repository,
	scanRepo scan.Repository,
	orgRepo organization.Repository,
	scanService *ScanService,
	cfg ScanSchedulerConfig,
	log *logger.Logger,
) *ScanScheduler {
	interval := cfg.TickInterval
	if interval == 0 {
		interval = time.Minute
	}
	batchSize := cfg.BatchSize
	if batchSize == 0 {
		batchSize = 50
	}

	return &ScanScheduler{
		targetRepo:  targetRepo,
		scanRepo:    scanRepo,
		orgRepo:     orgRepo,
		scanService: scanService,
		logger:      log.With("component", "scan_scheduler"),
		interval:    interval,
		batchSize:   batchSize,
		stopCh:      make(chan struct{}),
	}
}

// Start starts the scheduler.
func (s *ScanScheduler) Start() {
	s.wg.Add(1)
	go s.run()
	s.logger.Info("scan scheduler started", "interval", s.interval, "batch_size", s.batchSize)
}

// Stop stops the scheduler gracefully, waiting for an in-flight tick.
func (s *ScanScheduler) Stop() {
	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info("scan scheduler stopped")
}

func (s *ScanScheduler) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Run immediately on start
	s.tick()

	for {
		select {
		case <-ticker.C:
			s.tick()
		case <-s.stopCh:
			return
		}
	}
}

// tick runs one scheduling pass. TryLock is the single-flight guard: if the
// previous tick is still running the new one is dropped, not queued.
func (s *ScanScheduler) tick() {
	if !s.tickMu.TryLock() {
		s.logger.Warn("previous scheduler tick still running, skipping")
		metrics.SchedulerTicksSkipped.Inc()
		return
	}
	defer s.tickMu.Unlock()

	start := time.Now()
	metrics.SchedulerTicksTotal.Inc()
	defer func() {
		metrics.SchedulerTickDuration.Observe(time.Since(start).Seconds())
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	now := time.Now().UTC()
	due, err := s.targetRepo.ListDue(ctx, now, s.batchSize)
	if err != nil {
		s.logger.Error("failed to list due targets", "error", err)
		return
	}
	if len(due) == 0 {
		return
	}

	s.logger.Info("found due targets", "count", len(due))

	for _, t := range due {
		// Targets are isolated: one target's failure never aborts the tick.
		if err := s.processTarget(ctx, t, now); err != nil {
			metrics.SchedulerTargetErrors.Inc()
			s.logger.Error("failed to schedule target",
				"target_id", t.ID.String(),
				"org_id", t.OrgID.String(),
				"error", err,
			)
		}
	}
}

func (s *ScanScheduler) processTarget(ctx context.Context, t *target.Target, now time.Time) error {
	next := t.ScanCadence.Next(now)

	// Quota pre-check. On exhaustion the schedule advances anyway
	// (skip-and-reschedule) so the target is not retried every tick for the
	// rest of the month.
	org, err := s.orgRepo.GetByID(ctx, t.OrgID)
	if err != nil {
		return err
	}
	if !org.Plan.HasQuotaRemaining(org.ScansUsedThisMonth) {
		s.logger.Info("quota exhausted, rescheduling without scan",
			"target_id", t.ID.String(),
			"org_id", t.OrgID.String(),
			"plan", string(org.Plan),
		)
		return s.targetRepo.AdvanceSchedule(ctx, t.ID, nil, next)
	}

	// Duplicate guard. An in-flight scan leaves the schedule untouched so
	// the target is retried next tick.
	inflight, err := s.scanRepo.FindRunningOrQueued(ctx, t.ID)
	if err != nil {
		return err
	}
	if inflight != nil {
		s.logger.Debug("scan already in flight, skipping",
			"target_id", t.ID.String(),
			"scan_id", inflight.ID.String(),
		)
		return nil
	}

	// Attribute the scan to the organization owner. A missing owner is an
	// upstream data integrity problem; reschedule so the scheduler does not
	// spin on it.
	owner, err := s.orgRepo.FindOwner(ctx, t.OrgID)
	if err != nil {
		return err
	}
	if owner == nil {
		s.logger.Warn("organization has no owner, skipping scheduled scan",
			"target_id", t.ID.String(),
			"org_id", t.OrgID.String(),
		)
		return s.targetRepo.AdvanceSchedule(ctx, t.ID, nil, next)
	}

	_, err = s.scanService.CreateScheduled(ctx, t, owner.UserID)
	if err != nil {
		// Both guards are re-checked atomically inside creation; losing the
		// race is a skip, not a failure.
		switch {
		case errors.Is(err, organization.ErrQuotaExceeded):
			return s.targetRepo.AdvanceSchedule(ctx, t.ID, nil, next)
		case errors.Is(err, scan.ErrDuplicateScan):
			return nil
		}
		return err
	}

	return s.targetRepo.AdvanceSchedule(ctx, t.ID, &now, next)
}
