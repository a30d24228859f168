package target

import (
	"context"
	"time"
)

// Repository is the persistence contract for targets.
type Repository interface {
	// GetByID retrieves a target by ID. Returns ErrTargetNotFound.
	GetByID(ctx context.Context, id ID) (*Target, error)

	// ListDue returns active, verified, cadence-bearing targets whose
	// next_scan_at is at or before now, up to limit.
	ListDue(ctx context.Context, now time.Time, limit int) ([]*Target, error)

	// AdvanceSchedule sets next_scan_at and, when lastScanAt is non-nil,
	// last_scan_at. The scheduler uses the nil form for the
	// skip-and-reschedule quota path.
	AdvanceSchedule(ctx context.Context, id ID, lastScanAt *time.Time, nextScanAt time.Time) error
}
