// Package scan contains the scan entity, its lifecycle state machine, and
// the repository contract for the scan record store.
package scan

import (
	"fmt"
	"time"

	"github.com/vulnscan/api/pkg/domain/shared"
)

// ID is a type alias for shared.ID.
type ID = shared.ID

// Status represents the scan lifecycle state.
type Status string

const (
	StatusQueued    Status = "QUEUED"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
)

// IsValid returns true if the status is a known lifecycle state.
func (s Status) IsValid() bool {
	switch s {
	case StatusQueued, StatusRunning, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal returns true if no further transitions are allowed.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// transitions maps each status to the statuses reachable from it.
// QUEUED may fail directly when the dispatch sequence errors before the
// RUNNING transition is applied.
var transitions = map[Status][]Status{
	StatusQueued:  {StatusRunning, StatusFailed, StatusCancelled},
	StatusRunning: {StatusCompleted, StatusFailed, StatusCancelled},
}

// CanTransition reports whether to is reachable from from.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// PriorStatuses returns the statuses from which to is reachable. Used by the
// store to express transitions as a single conditional write.
func PriorStatuses(to Status) []Status {
	var prior []Status
	for from, nexts := range transitions {
		for _, next := range nexts {
			if next == to {
				prior = append(prior, from)
			}
		}
	}
	return prior
}

// SeverityCounts holds per-severity finding counts for a scan.
type SeverityCounts struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
	Info     int `json:"info"`
}

// Total returns the sum of all severity buckets.
func (c SeverityCounts) Total() int {
	return c.Critical + c.High + c.Medium + c.Low + c.Info
}

// Scan represents one execution attempt against a target.
type Scan struct {
	ID            ID
	TargetID      ID
	OrgID         ID
	CreatedBy     ID
	Profile       Profile
	Modules       []string
	Status        Status
	Progress      int
	CurrentModule string
	Counts        SeverityCounts
	ErrorMessage  string
	StartedAt     *time.Time
	CompletedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewScan creates a new scan in the QUEUED state.
func NewScan(targetID, orgID, createdBy ID, profile Profile, modules []string) (*Scan, error) {
	if targetID.IsZero() {
		return nil, fmt.Errorf("%w: target id is required", shared.ErrValidation)
	}
	if orgID.IsZero() {
		return nil, fmt.Errorf("%w: org id is required", shared.ErrValidation)
	}
	if !profile.IsValid() {
		return nil, fmt.Errorf("%w: unknown scan profile %q", shared.ErrValidation, profile)
	}
	if len(modules) == 0 {
		modules = profile.Modules()
	}
	now := time.Now().UTC()
	return &Scan{
		ID:        shared.NewID(),
		TargetID:  targetID,
		OrgID:     orgID,
		CreatedBy: createdBy,
		Profile:   profile,
		Modules:   modules,
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// CanTransitionTo reports whether the scan may move to next.
func (s *Scan) CanTransitionTo(next Status) bool {
	return CanTransition(s.Status, next)
}

// InFlight returns true while the scan occupies the per-target slot.
func (s *Scan) InFlight() bool {
	return s.Status == StatusQueued || s.Status == StatusRunning
}

// Errors.
var (
	ErrScanNotFound = fmt.Errorf("%w: scan not found", shared.ErrNotFound)

	// ErrInvalidTransition is returned when a requested state change is not
	// reachable from the scan's current status.
	ErrInvalidTransition = fmt.Errorf("%w: invalid scan state transition", shared.ErrConflict)

	// ErrDuplicateScan is returned when a scan is already queued or running
	// for the same target.
	ErrDuplicateScan = fmt.Errorf("%w: a scan is already in flight for this target", shared.ErrConflict)
)
