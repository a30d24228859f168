package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vulnscan/api/internal/metrics"
	"github.com/vulnscan/api/pkg/domain/scan"
	"github.com/vulnscan/api/pkg/domain/shared"
	"github.com/vulnscan/api/pkg/domain/target"
	"github.com/vulnscan/api/pkg/logger"
	"github.com/vulnscan/api/pkg/validator"
)

// DispatchQueue enqueues scan dispatch jobs on the durable queue.
type DispatchQueue interface {
	EnqueueScanDispatch(ctx context.Context, scanID string) error
}

// ScanService owns the scan creation and cancellation paths. Creation
// reserves quota and enforces the single in-flight scan per target rule in
// one transaction inside the repository; the service layers validation and
// the dispatch enqueue on top.
type ScanService struct {
	scanRepo   scan.Repository
	targetRepo target.Repository
	queue      DispatchQueue
	validator  *validator.Validator
	logger     *logger.Logger
}

// NewScanService creates a new ScanService.
func NewScanService(
	scanRepo scan.Repository,
	targetRepo target.Repository,
	queue DispatchQueue,
	v *validator.Validator,
	log *logger.Logger,
) *ScanService {
	return &ScanService{
		scanRepo:   scanRepo,
		targetRepo: targetRepo,
		queue:      queue,
		validator:  v,
		logger:     log.With("component", "scan_service"),
	}
}

// CreateScanInput is the on-demand scan creation request.
type CreateScanInput struct {
	TargetID  string   `json:"target_id" validate:"required,uuid"`
	OrgID     string   `json:"org_id" validate:"required,uuid"`
	CreatedBy string   `json:"created_by" validate:"omitempty,uuid"`
	Profile   string   `json:"profile" validate:"required,scan_profile"`
	Modules   []string `json:"modules" validate:"omitempty,min=1,dive,required"`
}

// Create creates an on-demand scan and enqueues its dispatch.
func (s *ScanService) Create(ctx context.Context, input CreateScanInput) (*scan.Scan, error) {
	if err := s.validator.Validate(input); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}

	targetID, err := shared.IDFromString(input.TargetID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid target id", shared.ErrValidation)
	}
	orgID, err := shared.IDFromString(input.OrgID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid org id", shared.ErrValidation)
	}
	var createdBy shared.ID
	if input.CreatedBy != "" {
		if createdBy, err = shared.IDFromString(input.CreatedBy); err != nil {
			return nil, fmt.Errorf("%w: invalid creator id", shared.ErrValidation)
		}
	}

	t, err := s.targetRepo.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if !t.OrgID.Equals(orgID) {
		return nil, target.ErrTargetNotFound
	}
	if target.Blocked(t.Value, t.Type) {
		return nil, fmt.Errorf("%w: target is in reserved address space", shared.ErrValidation)
	}

	profile := scan.Profile(input.Profile)
	if profile == scan.ProfileCustom && len(input.Modules) == 0 {
		return nil, fmt.Errorf("%w: custom profile requires an explicit module list", shared.ErrValidation)
	}

	return s.create(ctx, t, createdBy, profile, input.Modules, "api")
}

// CreateScheduled creates a cadence-driven scan for the scheduler, using the
// target's default profile.
func (s *ScanService) CreateScheduled(ctx context.Context, t *target.Target, createdBy shared.ID) (*scan.Scan, error) {
	return s.create(ctx, t, createdBy, t.DefaultProfile, nil, "scheduler")
}

func (s *ScanService) create(ctx context.Context, t *target.Target, createdBy shared.ID, profile scan.Profile, modules []string, origin string) (*scan.Scan, error) {
	sc, err := scan.NewScan(t.ID, t.OrgID, createdBy, profile, modules)
	if err != nil {
		return nil, err
	}

	if err := s.scanRepo.Create(ctx, scan.CreateParams{Scan: sc}); err != nil {
		switch {
		case shared.IsConflict(err):
			metrics.ScansRejectedTotal.WithLabelValues(rejectionReason(err)).Inc()
		}
		return nil, err
	}

	if err := s.queue.EnqueueScanDispatch(ctx, sc.ID.String()); err != nil {
		// The scan row exists but no job will pick it up. Mark it FAILED so
		// the target's in-flight slot frees up instead of wedging.
		s.failCreated(ctx, sc, err)
		return nil, fmt.Errorf("failed to enqueue dispatch: %w", err)
	}

	metrics.ScansCreatedTotal.WithLabelValues(origin, string(profile)).Inc()
	s.logger.Info("scan created",
		"scan_id", sc.ID.String(),
		"target_id", t.ID.String(),
		"org_id", t.OrgID.String(),
		"profile", string(profile),
		"origin", origin,
	)
	return sc, nil
}

func (s *ScanService) failCreated(ctx context.Context, sc *scan.Scan, cause error) {
	msg := cause.Error()
	now := time.Now().UTC()
	fields := scan.TransitionFields{ErrorMessage: &msg, CompletedAt: &now}
	if err := s.scanRepo.Transition(ctx, sc.ID, scan.StatusFailed, fields); err != nil {
		s.logger.Error("failed to mark scan failed after enqueue error",
			"scan_id", sc.ID.String(),
			"error", err,
		)
	}
}

// Cancel cancels a QUEUED or RUNNING scan. The engine is not stopped
// synchronously; a late result for the cancelled scan is discarded by the
// reconciler.
func (s *ScanService) Cancel(ctx context.Context, id shared.ID) error {
	now := time.Now().UTC()
	err := s.scanRepo.Transition(ctx, id, scan.StatusCancelled, scan.TransitionFields{
		CompletedAt: &now,
	})
	if err != nil {
		return err
	}
	metrics.ScanTransitionsTotal.WithLabelValues(string(scan.StatusCancelled)).Inc()
	s.logger.Info("scan cancelled", "scan_id", id.String())
	return nil
}

// Get retrieves a scan by ID.
func (s *ScanService) Get(ctx context.Context, id shared.ID) (*scan.Scan, error) {
	return s.scanRepo.GetByID(ctx, id)
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, scan.ErrDuplicateScan):
		return "duplicate"
	default:
		return "quota"
	}
}
