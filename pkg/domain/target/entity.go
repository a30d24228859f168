// Package target contains the scan target entity and repository contract.
package target

import (
	"fmt"
	"time"

	"github.com/vulnscan/api/pkg/domain/scan"
	"github.com/vulnscan/api/pkg/domain/shared"
)

// ID is a type alias for shared.ID.
type ID = shared.ID

// Type classifies what the target value represents.
type Type string

const (
	TypeDomain Type = "DOMAIN"
	TypeIP     Type = "IP"
	TypeCIDR   Type = "CIDR"
)

// IsValid returns true if the type is known.
func (t Type) IsValid() bool {
	switch t {
	case TypeDomain, TypeIP, TypeCIDR:
		return true
	}
	return false
}

// VerificationStatus represents domain ownership verification state.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "PENDING"
	VerificationVerified VerificationStatus = "VERIFIED"
	VerificationFailed   VerificationStatus = "FAILED"
	VerificationExpired  VerificationStatus = "EXPIRED"
)

// Cadence is the configured automatic scan frequency.
type Cadence string

const (
	CadenceNone    Cadence = "none"
	CadenceDaily   Cadence = "daily"
	CadenceWeekly  Cadence = "weekly"
	CadenceMonthly Cadence = "monthly"
)

// IsSet returns true when the target has automatic scanning enabled.
func (c Cadence) IsSet() bool {
	return c == CadenceDaily || c == CadenceWeekly || c == CadenceMonthly
}

// Next returns the next scheduled instant after now for the cadence.
// Returns the zero time for CadenceNone.
func (c Cadence) Next(now time.Time) time.Time {
	switch c {
	case CadenceDaily:
		return now.Add(24 * time.Hour)
	case CadenceWeekly:
		return now.Add(7 * 24 * time.Hour)
	case CadenceMonthly:
		return now.AddDate(0, 1, 0)
	}
	return time.Time{}
}

// Target is a domain, IP, or CIDR under an organization.
type Target struct {
	ID                 ID
	OrgID              ID
	Value              string
	Type               Type
	VerificationStatus VerificationStatus
	ScanCadence        Cadence
	DefaultProfile     scan.Profile
	IsActive           bool
	LastScanAt         *time.Time
	NextScanAt         *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// NewTarget creates a new unverified target.
func NewTarget(orgID ID, value string, typ Type) (*Target, error) {
	if value == "" {
		return nil, fmt.Errorf("%w: target value is required", shared.ErrValidation)
	}
	if !typ.IsValid() {
		return nil, fmt.Errorf("%w: unknown target type %q", shared.ErrValidation, typ)
	}
	now := time.Now().UTC()
	return &Target{
		ID:                 shared.NewID(),
		OrgID:              orgID,
		Value:              value,
		Type:               typ,
		VerificationStatus: VerificationPending,
		ScanCadence:        CadenceNone,
		DefaultProfile:     scan.ProfileStandard,
		IsActive:           true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

// Schedulable reports whether the scheduler should consider the target.
func (t *Target) Schedulable() bool {
	return t.IsActive &&
		t.VerificationStatus == VerificationVerified &&
		t.ScanCadence.IsSet()
}

// ErrTargetNotFound is returned when a target lookup misses.
var ErrTargetNotFound = fmt.Errorf("%w: target not found", shared.ErrNotFound)
