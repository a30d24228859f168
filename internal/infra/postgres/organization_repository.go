package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vulnscan/api/pkg/domain/organization"
	"github.com/vulnscan/api/pkg/domain/shared"
)

// OrganizationRepository implements organization.Repository using PostgreSQL.
type OrganizationRepository struct {
	db *DB
}

// NewOrganizationRepository creates a new OrganizationRepository.
func NewOrganizationRepository(db *DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

// GetByID retrieves an organization.
func (r *OrganizationRepository) GetByID(ctx context.Context, id shared.ID) (*organization.Organization, error) {
	var (
		org   organization.Organization
		idStr string
		plan  string
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, plan, scans_used_this_month, usage_reset_at, created_at, updated_at
		FROM organizations
		WHERE id = $1`,
		id.String(),
	).Scan(&idStr, &org.Name, &plan, &org.ScansUsedThisMonth, &org.UsageResetAt, &org.CreatedAt, &org.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, organization.ErrOrgNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}

	if org.ID, err = shared.IDFromString(idStr); err != nil {
		return nil, fmt.Errorf("invalid organization id: %w", err)
	}
	org.Plan = organization.PlanTier(plan)

	return &org, nil
}

// FindOwner returns the organization's owner member, or (nil, nil) when none
// exists.
func (r *OrganizationRepository) FindOwner(ctx context.Context, orgID shared.ID) (*organization.Member, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT m.user_id, m.org_id, u.email, u.name, m.role
		FROM org_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.org_id = $1 AND m.role = $2
		ORDER BY m.created_at ASC
		LIMIT 1`,
		orgID.String(),
		string(organization.RoleOwner),
	)
	m, err := scanMemberRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find organization owner: %w", err)
	}
	return m, nil
}

// ListMembers returns all members of the organization.
func (r *OrganizationRepository) ListMembers(ctx context.Context, orgID shared.ID) ([]*organization.Member, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT m.user_id, m.org_id, u.email, u.name, m.role
		FROM org_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.org_id = $1
		ORDER BY m.created_at ASC`,
		orgID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list organization members: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var members []*organization.Member
	for rows.Next() {
		m, err := scanMemberRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member row: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate member rows: %w", err)
	}
	return members, nil
}

// ResetMonthlyUsage zeroes the usage counter for organizations whose reset
// instant has passed and advances the instant by one month.
func (r *OrganizationRepository) ResetMonthlyUsage(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE organizations
		SET scans_used_this_month = 0,
		    usage_reset_at = usage_reset_at + INTERVAL '1 month',
		    updated_at = $1
		WHERE usage_reset_at <= $1`,
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to reset monthly usage: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected, nil
}

func scanMemberRow(row rowScanner) (*organization.Member, error) {
	var (
		m         organization.Member
		userIDStr string
		orgIDStr  string
		role      string
	)

	err := row.Scan(&userIDStr, &orgIDStr, &m.Email, &m.Name, &role)
	if err != nil {
		return nil, err
	}

	if m.UserID, err = shared.IDFromString(userIDStr); err != nil {
		return nil, fmt.Errorf("invalid user id: %w", err)
	}
	if m.OrgID, err = shared.IDFromString(orgIDStr); err != nil {
		return nil, fmt.Errorf("invalid org id: %w", err)
	}
	m.Role = organization.MemberRole(role)

	return &m, nil
}
