// Package organization contains the organization entity, plan tiers with
// their scan quota limits, and the repository contract.
package organization

import (
	"context"
	"fmt"
	"time"

	"github.com/vulnscan/api/pkg/domain/shared"
)

// ID is a type alias for shared.ID.
type ID = shared.ID

// Organization owns targets, scans, alert rules, and webhooks.
type Organization struct {
	ID                 ID
	Name               string
	Plan               PlanTier
	ScansUsedThisMonth int
	UsageResetAt       time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// MemberRole distinguishes owners from regular members.
type MemberRole string

const (
	RoleOwner  MemberRole = "OWNER"
	RoleAdmin  MemberRole = "ADMIN"
	RoleMember MemberRole = "MEMBER"
)

// Member is a user belonging to an organization. Only the fields the
// orchestration core needs for attribution and notification fan-out are
// modeled here; user management itself is out of scope.
type Member struct {
	UserID ID
	OrgID  ID
	Email  string
	Name   string
	Role   MemberRole
}

// Repository is the persistence contract for organizations.
type Repository interface {
	// GetByID retrieves an organization. Returns ErrOrgNotFound.
	GetByID(ctx context.Context, id ID) (*Organization, error)

	// FindOwner returns the organization's owner member, or (nil, nil) when
	// the organization has no owner. A missing owner indicates an upstream
	// data integrity problem; callers log and skip.
	FindOwner(ctx context.Context, orgID ID) (*Member, error)

	// ListMembers returns all members of the organization.
	ListMembers(ctx context.Context, orgID ID) ([]*Member, error)

	// ResetMonthlyUsage zeroes the scan usage counter for every organization
	// whose reset instant has passed. Returns the number of rows reset.
	ResetMonthlyUsage(ctx context.Context, now time.Time) (int64, error)
}

// Errors.
var (
	ErrOrgNotFound = fmt.Errorf("%w: organization not found", shared.ErrNotFound)

	// ErrQuotaExceeded is returned when an organization has used its monthly
	// scan allowance.
	ErrQuotaExceeded = fmt.Errorf("%w: monthly scan quota exceeded", shared.ErrConflict)
)
