package scan

import (
	"context"
	"time"
)

// TransitionFields carries the optional columns written together with a
// status transition. Nil fields are left untouched.
type TransitionFields struct {
	Progress      *int
	CurrentModule *string
	Counts        *SeverityCounts
	ErrorMessage  *string
	StartedAt     *time.Time
	CompletedAt   *time.Time
}

// CreateParams describes a scan creation request. Creation, the duplicate
// in-flight guard, and the quota reservation are one atomic unit.
type CreateParams struct {
	Scan *Scan
}

// Repository is the persistence contract for the scan record store.
type Repository interface {
	// Create inserts the scan, reserving organization quota and enforcing
	// the single in-flight scan per target invariant in one transaction.
	// Returns organization.ErrQuotaExceeded or ErrDuplicateScan.
	Create(ctx context.Context, params CreateParams) error

	// GetByID retrieves a scan by ID. Returns ErrScanNotFound.
	GetByID(ctx context.Context, id ID) (*Scan, error)

	// Transition moves the scan to next if next is reachable from the
	// current status, applying fields in the same write. Returns
	// ErrInvalidTransition when the scan exists but the transition is not
	// reachable, ErrScanNotFound when it does not exist.
	Transition(ctx context.Context, id ID, next Status, fields TransitionFields) error

	// UpdateProgress advances the progress of a RUNNING scan. Progress is
	// monotonic; a smaller value than the stored one is a no-op. Updates on
	// non-RUNNING scans are silently dropped.
	UpdateProgress(ctx context.Context, id ID, progress int, currentModule, message string) error

	// FindRunningOrQueued returns the in-flight scan for the target, or
	// (nil, nil) when none exists.
	FindRunningOrQueued(ctx context.Context, targetID ID) (*Scan, error)

	// FindPreviousCompleted returns the most recently completed scan of the
	// target that completed strictly before the given instant, or (nil, nil).
	FindPreviousCompleted(ctx context.Context, targetID ID, before time.Time) (*Scan, error)
}
