package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/vulnscan/api/pkg/domain/organization"
	"github.com/vulnscan/api/pkg/domain/scan"
	"github.com/vulnscan/api/pkg/domain/shared"
)

// ScanRepository implements scan.Repository using PostgreSQL.
type ScanRepository struct {
	db *DB
}

// NewScanRepository creates a new ScanRepository.
func NewScanRepository(db *DB) *ScanRepository {
	return &ScanRepository{db: db}
}

// Create inserts the scan, reserving organization quota and enforcing the
// single in-flight scan per target rule in one transaction. The organization
// row is locked first so concurrent creations serialize on the quota counter.
func (r *ScanRepository) Create(ctx context.Context, params scan.CreateParams) error {
	s := params.Scan

	return r.db.Transaction(ctx, func(tx *sql.Tx) error {
		var plan string
		var used int
		err := tx.QueryRowContext(ctx, `
			SELECT plan, scans_used_this_month
			FROM organizations
			WHERE id = $1
			FOR UPDATE`,
			s.OrgID.String(),
		).Scan(&plan, &used)
		if errors.Is(err, sql.ErrNoRows) {
			return organization.ErrOrgNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock organization: %w", err)
		}

		if !organization.PlanTier(plan).HasQuotaRemaining(used) {
			return organization.ErrQuotaExceeded
		}

		var inflight int
		err = tx.QueryRowContext(ctx, `
			SELECT COUNT(1)
			FROM scans
			WHERE target_id = $1 AND status = ANY($2)`,
			s.TargetID.String(),
			pq.Array([]string{string(scan.StatusQueued), string(scan.StatusRunning)}),
		).Scan(&inflight)
		if err != nil {
			return fmt.Errorf("failed to check in-flight scans: %w", err)
		}
		if inflight > 0 {
			return scan.ErrDuplicateScan
		}

		counts, err := toJSONB(s.Counts)
		if err != nil {
			return fmt.Errorf("failed to marshal severity counts: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO scans (
				id, target_id, org_id, created_by, profile, modules,
				status, progress, current_module, severity_counts, error_message,
				started_at, completed_at, created_at, updated_at
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
			s.ID.String(),
			s.TargetID.String(),
			s.OrgID.String(),
			nullID(&s.CreatedBy),
			string(s.Profile),
			pq.Array(s.Modules),
			string(s.Status),
			s.Progress,
			nullString(s.CurrentModule),
			counts,
			nullString(s.ErrorMessage),
			nullTime(s.StartedAt),
			nullTime(s.CompletedAt),
			s.CreatedAt,
			s.UpdatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return scan.ErrDuplicateScan
			}
			return fmt.Errorf("failed to create scan: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE organizations
			SET scans_used_this_month = scans_used_this_month + 1, updated_at = $2
			WHERE id = $1`,
			s.OrgID.String(), time.Now().UTC(),
		)
		if err != nil {
			return fmt.Errorf("failed to reserve quota: %w", err)
		}

		return nil
	})
}

// GetByID retrieves a scan by ID.
func (r *ScanRepository) GetByID(ctx context.Context, id shared.ID) (*scan.Scan, error) {
	row := r.db.QueryRowContext(ctx, r.selectQuery()+" WHERE id = $1", id.String())
	s, err := r.scanRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, scan.ErrScanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scan: %w", err)
	}
	return s, nil
}

// Transition moves the scan to next as a single conditional write. The WHERE
// clause restricts the update to statuses from which next is reachable, so
// concurrent writers cannot race the state machine.
func (r *ScanRepository) Transition(ctx context.Context, id shared.ID, next scan.Status, fields scan.TransitionFields) error {
	prior := scan.PriorStatuses(next)
	if len(prior) == 0 {
		return scan.ErrInvalidTransition
	}
	priorStrings := make([]string, len(prior))
	for i, p := range prior {
		priorStrings[i] = string(p)
	}

	var counts any
	if fields.Counts != nil {
		b, err := toJSONB(*fields.Counts)
		if err != nil {
			return fmt.Errorf("failed to marshal severity counts: %w", err)
		}
		counts = b
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE scans
		SET status = $2,
		    progress = COALESCE($3, progress),
		    current_module = COALESCE($4, current_module),
		    severity_counts = COALESCE($5, severity_counts),
		    error_message = COALESCE($6, error_message),
		    started_at = COALESCE($7, started_at),
		    completed_at = COALESCE($8, completed_at),
		    updated_at = $9
		WHERE id = $1 AND status = ANY($10)`,
		id.String(),
		string(next),
		fields.Progress,
		fields.CurrentModule,
		counts,
		fields.ErrorMessage,
		nullTime(fields.StartedAt),
		nullTime(fields.CompletedAt),
		time.Now().UTC(),
		pq.Array(priorStrings),
	)
	if err != nil {
		return fmt.Errorf("failed to transition scan: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		// Distinguish a missing scan from a state conflict.
		var exists bool
		if err := r.db.QueryRowContext(ctx,
			"SELECT EXISTS(SELECT 1 FROM scans WHERE id = $1)", id.String(),
		).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check scan existence: %w", err)
		}
		if !exists {
			return scan.ErrScanNotFound
		}
		return scan.ErrInvalidTransition
	}
	return nil
}

// UpdateProgress advances the progress of a RUNNING scan. GREATEST keeps
// progress monotonic under out-of-order delivery; updates on non-RUNNING
// scans match zero rows and are dropped.
func (r *ScanRepository) UpdateProgress(ctx context.Context, id shared.ID, progress int, currentModule, message string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE scans
		SET progress = GREATEST(progress, $2),
		    current_module = COALESCE(NULLIF($3, ''), current_module),
		    updated_at = $4
		WHERE id = $1 AND status = $5`,
		id.String(),
		progress,
		currentModule,
		time.Now().UTC(),
		string(scan.StatusRunning),
	)
	if err != nil {
		return fmt.Errorf("failed to update scan progress: %w", err)
	}
	return nil
}

// FindRunningOrQueued returns the in-flight scan for the target, or (nil, nil).
func (r *ScanRepository) FindRunningOrQueued(ctx context.Context, targetID shared.ID) (*scan.Scan, error) {
	row := r.db.QueryRowContext(ctx,
		r.selectQuery()+` WHERE target_id = $1 AND status = ANY($2) ORDER BY created_at DESC LIMIT 1`,
		targetID.String(),
		pq.Array([]string{string(scan.StatusQueued), string(scan.StatusRunning)}),
	)
	s, err := r.scanRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find in-flight scan: %w", err)
	}
	return s, nil
}

// FindPreviousCompleted returns the most recent completed scan of the target
// that finished strictly before the given instant, or (nil, nil).
func (r *ScanRepository) FindPreviousCompleted(ctx context.Context, targetID shared.ID, before time.Time) (*scan.Scan, error) {
	row := r.db.QueryRowContext(ctx,
		r.selectQuery()+` WHERE target_id = $1 AND status = $2 AND completed_at < $3 ORDER BY completed_at DESC LIMIT 1`,
		targetID.String(),
		string(scan.StatusCompleted),
		before,
	)
	s, err := r.scanRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find previous completed scan: %w", err)
	}
	return s, nil
}

func (r *ScanRepository) selectQuery() string {
	return `
		SELECT id, target_id, org_id, created_by, profile, modules,
		       status, progress, current_module, severity_counts, error_message,
		       started_at, completed_at, created_at, updated_at
		FROM scans`
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *ScanRepository) scanRow(row rowScanner) (*scan.Scan, error) {
	var (
		s             scan.Scan
		idStr         string
		targetIDStr   string
		orgIDStr      string
		createdBy     sql.NullString
		profile       string
		modules       pq.StringArray
		status        string
		currentModule sql.NullString
		counts        []byte
		errorMessage  sql.NullString
		startedAt     sql.NullTime
		completedAt   sql.NullTime
	)

	err := row.Scan(
		&idStr, &targetIDStr, &orgIDStr, &createdBy, &profile, &modules,
		&status, &s.Progress, &currentModule, &counts, &errorMessage,
		&startedAt, &completedAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if s.ID, err = shared.IDFromString(idStr); err != nil {
		return nil, fmt.Errorf("invalid scan id: %w", err)
	}
	if s.TargetID, err = shared.IDFromString(targetIDStr); err != nil {
		return nil, fmt.Errorf("invalid target id: %w", err)
	}
	if s.OrgID, err = shared.IDFromString(orgIDStr); err != nil {
		return nil, fmt.Errorf("invalid org id: %w", err)
	}
	if cb := parseNullID(createdBy); cb != nil {
		s.CreatedBy = *cb
	}
	s.Profile = scan.Profile(profile)
	s.Modules = modules
	s.Status = scan.Status(status)
	s.CurrentModule = nullStringValue(currentModule)
	if err := fromJSONB(counts, &s.Counts); err != nil {
		return nil, fmt.Errorf("invalid severity counts: %w", err)
	}
	s.ErrorMessage = nullStringValue(errorMessage)
	s.StartedAt = nullTimeValue(startedAt)
	s.CompletedAt = nullTimeValue(completedAt)

	return &s, nil
}
