package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vulnscan/api/pkg/domain/scan"
	"github.com/vulnscan/api/pkg/domain/shared"
	"github.com/vulnscan/api/pkg/domain/target"
)

// TargetRepository implements target.Repository using PostgreSQL.
type TargetRepository struct {
	db *DB
}

// NewTargetRepository creates a new TargetRepository.
func NewTargetRepository(db *DB) *TargetRepository {
	return &TargetRepository{db: db}
}

// GetByID retrieves a target by ID.
func (r *TargetRepository) GetByID(ctx context.Context, id shared.ID) (*target.Target, error) {
	row := r.db.QueryRowContext(ctx, r.selectQuery()+" WHERE id = $1", id.String())
	t, err := r.scanRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, target.ErrTargetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get target: %w", err)
	}
	return t, nil
}

// ListDue returns schedulable targets whose next scan instant has passed.
// Ordered by next_scan_at so the longest-overdue targets go first when the
// batch is capped.
func (r *TargetRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*target.Target, error) {
	rows, err := r.db.QueryContext(ctx, r.selectQuery()+`
		WHERE is_active = true
		  AND verification_status = $1
		  AND scan_cadence IN ('daily', 'weekly', 'monthly')
		  AND next_scan_at IS NOT NULL
		  AND next_scan_at <= $2
		ORDER BY next_scan_at ASC
		LIMIT $3`,
		string(target.VerificationVerified),
		now,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list due targets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var targets []*target.Target
	for rows.Next() {
		t, err := r.scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan target row: %w", err)
		}
		targets = append(targets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate target rows: %w", err)
	}
	return targets, nil
}

// AdvanceSchedule moves the target's schedule forward.
func (r *TargetRepository) AdvanceSchedule(ctx context.Context, id shared.ID, lastScanAt *time.Time, nextScanAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE targets
		SET last_scan_at = COALESCE($2, last_scan_at),
		    next_scan_at = $3,
		    updated_at = $4
		WHERE id = $1`,
		id.String(),
		nullTime(lastScanAt),
		nextScanAt,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to advance target schedule: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return target.ErrTargetNotFound
	}
	return nil
}

func (r *TargetRepository) selectQuery() string {
	return `
		SELECT id, org_id, value, type, verification_status, scan_cadence,
		       default_profile, is_active, last_scan_at, next_scan_at,
		       created_at, updated_at
		FROM targets`
}

func (r *TargetRepository) scanRow(row rowScanner) (*target.Target, error) {
	var (
		t              target.Target
		idStr          string
		orgIDStr       string
		typ            string
		verification   string
		cadence        string
		defaultProfile string
		lastScanAt     sql.NullTime
		nextScanAt     sql.NullTime
	)

	err := row.Scan(
		&idStr, &orgIDStr, &t.Value, &typ, &verification, &cadence,
		&defaultProfile, &t.IsActive, &lastScanAt, &nextScanAt,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if t.ID, err = shared.IDFromString(idStr); err != nil {
		return nil, fmt.Errorf("invalid target id: %w", err)
	}
	if t.OrgID, err = shared.IDFromString(orgIDStr); err != nil {
		return nil, fmt.Errorf("invalid org id: %w", err)
	}
	t.Type = target.Type(typ)
	t.VerificationStatus = target.VerificationStatus(verification)
	t.ScanCadence = target.Cadence(cadence)
	t.DefaultProfile = scan.Profile(defaultProfile)
	t.LastScanAt = nullTimeValue(lastScanAt)
	t.NextScanAt = nullTimeValue(nextScanAt)

	return &t, nil
}
