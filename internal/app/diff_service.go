package app

import (
	"context"
	"fmt"

	"github.com/vulnscan/api/pkg/domain/finding"
	"github.com/vulnscan/api/pkg/domain/scan"
	"github.com/vulnscan/api/pkg/domain/shared"
	"github.com/vulnscan/api/pkg/logger"
)

// DiffResult partitions a completed scan's findings against the previous
// completed scan of the same target.
type DiffResult struct {
	ScanID shared.ID `json:"scan_id"`
	// BaselineScanID is the previous completed scan used as the baseline.
	// Nil when NoBaseline is set.
	BaselineScanID *shared.ID `json:"baseline_scan_id,omitempty"`
	// NoBaseline is set when the target has no earlier completed scan; the
	// partitions are empty in that case.
	NoBaseline bool               `json:"no_baseline"`
	New        []*finding.Finding `json:"new"`
	Fixed      []*finding.Finding `json:"fixed"`
	Unchanged  int                `json:"unchanged"`
}

// DiffService compares the finding sets of two completed scans of the same
// target using content fingerprints. Pure reads; nothing is mutated.
type DiffService struct {
	scanRepo    scan.Repository
	findingRepo finding.Repository
	logger      *logger.Logger
}

// NewDiffService creates a new DiffService.
func NewDiffService(scanRepo scan.Repository, findingRepo finding.Repository, log *logger.Logger) *DiffService {
	return &DiffService{
		scanRepo:    scanRepo,
		findingRepo: findingRepo,
		logger:      log.With("component", "diff_service"),
	}
}

// Diff computes the finding diff of the scan against the most recent
// completed scan of the same target that finished before it.
func (s *DiffService) Diff(ctx context.Context, scanID shared.ID) (*DiffResult, error) {
	current, err := s.scanRepo.GetByID(ctx, scanID)
	if err != nil {
		return nil, err
	}
	if current.Status != scan.StatusCompleted {
		return nil, fmt.Errorf("%w: diff requires a completed scan, got %s", shared.ErrInvalidInput, current.Status)
	}
	if current.CompletedAt == nil {
		return nil, fmt.Errorf("%w: completed scan has no completion time", shared.ErrInternal)
	}

	baseline, err := s.scanRepo.FindPreviousCompleted(ctx, current.TargetID, *current.CompletedAt)
	if err != nil {
		return nil, err
	}
	if baseline == nil {
		return &DiffResult{ScanID: scanID, NoBaseline: true}, nil
	}

	currentFindings, err := s.findingRepo.ListByScan(ctx, scanID)
	if err != nil {
		return nil, err
	}
	baselineFindings, err := s.findingRepo.ListByScan(ctx, baseline.ID)
	if err != nil {
		return nil, err
	}

	result := diffFindings(currentFindings, baselineFindings)
	result.ScanID = scanID
	result.BaselineScanID = &baseline.ID

	s.logger.Debug("computed scan diff",
		"scan_id", scanID.String(),
		"baseline_scan_id", baseline.ID.String(),
		"new", len(result.New),
		"fixed", len(result.Fixed),
		"unchanged", result.Unchanged,
	)
	return result, nil
}

// diffFindings is the pure set-difference over fingerprints. new holds
// current findings whose fingerprint is absent from the baseline, fixed
// holds baseline findings absent from current, and unchanged is the size of
// the intersection on the current side.
func diffFindings(current, baseline []*finding.Finding) *DiffResult {
	baselinePrints := make(map[string]bool, len(baseline))
	for _, f := range baseline {
		baselinePrints[f.Fingerprint()] = true
	}
	currentPrints := make(map[string]bool, len(current))
	for _, f := range current {
		currentPrints[f.Fingerprint()] = true
	}

	result := &DiffResult{}
	for _, f := range current {
		if !baselinePrints[f.Fingerprint()] {
			result.New = append(result.New, f)
		}
	}
	for _, f := range baseline {
		if !currentPrints[f.Fingerprint()] {
			result.Fixed = append(result.Fixed, f)
		}
	}
	result.Unchanged = len(current) - len(result.New)
	return result
}
