package app

import (
	"context"
	"errors"
	"time"

	"github.com/vulnscan/api/internal/metrics"
	"github.com/vulnscan/api/pkg/domain/event"
	"github.com/vulnscan/api/pkg/domain/scan"
	"github.com/vulnscan/api/pkg/domain/shared"
	"github.com/vulnscan/api/pkg/domain/target"
	"github.com/vulnscan/api/pkg/logger"
)

// TaskPublisher publishes scan tasks on the outbound engine channel.
type TaskPublisher interface {
	PublishTask(ctx context.Context, task *event.ScanTask) error
}

// DispatchService executes one dispatch attempt per queued job: it moves the
// scan to RUNNING and hands the task to the engine. Fire and forget; the
// reconciler picks up the engine's asynchronous results. Jobs redeliver at
// least once, so every step tolerates repetition.
type DispatchService struct {
	scanRepo   scan.Repository
	targetRepo target.Repository
	publisher  TaskPublisher
	logger     *logger.Logger
}

// NewDispatchService creates a new DispatchService.
func NewDispatchService(
	scanRepo scan.Repository,
	targetRepo target.Repository,
	publisher TaskPublisher,
	log *logger.Logger,
) *DispatchService {
	return &DispatchService{
		scanRepo:   scanRepo,
		targetRepo: targetRepo,
		publisher:  publisher,
		logger:     log.With("component", "dispatch_service"),
	}
}

// Dispatch processes one dispatch job. Returning an error re-raises to the
// queue so its retry policy applies; the scan is marked FAILED first so its
// state reflects the attempt regardless of whether the job retries.
func (s *DispatchService) Dispatch(ctx context.Context, scanID string) error {
	id, err := shared.IDFromString(scanID)
	if err != nil {
		// Unparseable ids never succeed on retry.
		s.logger.Error("invalid scan id in dispatch job", "scan_id", scanID, "error", err)
		return nil
	}

	sc, err := s.scanRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, scan.ErrScanNotFound) {
			s.logger.Warn("dispatch job references unknown scan", "scan_id", scanID)
			return nil
		}
		return s.fail(ctx, id, err)
	}

	// A redelivered job for a scan that already reached a terminal state is
	// a no-op; a cancelled scan must not be resurrected.
	if sc.Status.IsTerminal() {
		s.logger.Debug("skipping dispatch for terminal scan",
			"scan_id", scanID,
			"status", string(sc.Status),
		)
		metrics.DispatchesTotal.WithLabelValues("skipped").Inc()
		return nil
	}

	if sc.Status == scan.StatusQueued {
		now := time.Now().UTC()
		progress := 0
		fields := scan.TransitionFields{StartedAt: &now, Progress: &progress}
		if err := s.scanRepo.Transition(ctx, id, scan.StatusRunning, fields); err != nil {
			// A concurrent redelivery may have won the transition; anything
			// else is a real failure.
			if !errors.Is(err, scan.ErrInvalidTransition) {
				return s.fail(ctx, id, err)
			}
		}
		metrics.ScanTransitionsTotal.WithLabelValues(string(scan.StatusRunning)).Inc()
	}

	t, err := s.targetRepo.GetByID(ctx, sc.TargetID)
	if err != nil {
		return s.fail(ctx, id, err)
	}

	task := &event.ScanTask{
		ScanID:     sc.ID.String(),
		Target:     t.Value,
		TargetType: string(t.Type),
		Profile:    string(sc.Profile),
		Modules:    sc.Modules,
		OrgID:      sc.OrgID.String(),
	}
	if err := s.publisher.PublishTask(ctx, task); err != nil {
		return s.fail(ctx, id, err)
	}

	metrics.DispatchesTotal.WithLabelValues("published").Inc()
	s.logger.Info("scan dispatched",
		"scan_id", sc.ID.String(),
		"target", t.Value,
		"profile", string(sc.Profile),
	)
	return nil
}

// fail marks the scan FAILED with the captured error and re-raises it. The
// transition is conditional, so a scan that already completed stays put.
func (s *DispatchService) fail(ctx context.Context, id shared.ID, cause error) error {
	msg := cause.Error()
	now := time.Now().UTC()
	fields := scan.TransitionFields{ErrorMessage: &msg, CompletedAt: &now}
	if terr := s.scanRepo.Transition(ctx, id, scan.StatusFailed, fields); terr != nil {
		if !errors.Is(terr, scan.ErrInvalidTransition) {
			s.logger.Error("failed to mark scan failed",
				"scan_id", id.String(),
				"error", terr,
			)
		}
	} else {
		metrics.ScanTransitionsTotal.WithLabelValues(string(scan.StatusFailed)).Inc()
	}
	metrics.DispatchesTotal.WithLabelValues("failed").Inc()
	return cause
}
