package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/vulnscan/api/pkg/domain/asset"
	"github.com/vulnscan/api/pkg/domain/finding"
	"github.com/vulnscan/api/pkg/domain/scan"
	"github.com/vulnscan/api/pkg/domain/scanresult"
	"github.com/vulnscan/api/pkg/domain/shared"
)

// ReconcileRepository bundles the writes for a completed scan into one
// transaction: asset upserts, finding inserts, the result snapshot, and the
// RUNNING to COMPLETED transition all commit or roll back together.
type ReconcileRepository struct {
	db *DB
}

// NewReconcileRepository creates a new ReconcileRepository.
func NewReconcileRepository(db *DB) *ReconcileRepository {
	return &ReconcileRepository{db: db}
}

// ApplyCompleted applies a completed scan's results atomically. The status
// transition is the idempotency gate: it runs first as a conditional update,
// and when it matches zero rows (redelivery, or the scan was cancelled) the
// transaction aborts without writing anything and applied is false.
func (r *ReconcileRepository) ApplyCompleted(
	ctx context.Context,
	scanID shared.ID,
	fields scan.TransitionFields,
	assets []*asset.Asset,
	findings []*finding.Finding,
	result *scanresult.ScanResult,
) (applied bool, err error) {
	err = r.db.Transaction(ctx, func(tx *sql.Tx) error {
		ok, err := transitionTx(ctx, tx, scanID, scan.StatusCompleted, fields)
		if err != nil {
			return err
		}
		if !ok {
			return errNotApplied
		}

		for _, a := range assets {
			if err := upsertAssetTx(ctx, tx, a); err != nil {
				return err
			}
		}
		for _, f := range findings {
			if err := insertFindingTx(ctx, tx, f); err != nil {
				return err
			}
		}
		if result != nil {
			if err := insertResultTx(ctx, tx, result); err != nil {
				return err
			}
		}
		return nil
	})
	if err == errNotApplied {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// errNotApplied aborts the apply transaction when the transition gate does
// not match. Never escapes ApplyCompleted.
var errNotApplied = fmt.Errorf("reconcile apply gate did not match")

// transitionTx performs the conditional status update within a transaction,
// reporting whether a row matched.
func transitionTx(ctx context.Context, tx *sql.Tx, id shared.ID, next scan.Status, fields scan.TransitionFields) (bool, error) {
	prior := scan.PriorStatuses(next)
	priorStrings := make([]string, len(prior))
	for i, p := range prior {
		priorStrings[i] = string(p)
	}

	var counts any
	if fields.Counts != nil {
		b, err := toJSONB(*fields.Counts)
		if err != nil {
			return false, fmt.Errorf("failed to marshal severity counts: %w", err)
		}
		counts = b
	}

	res, err := tx.ExecContext(ctx, `
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
		return false, fmt.Errorf("failed to transition scan: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected > 0, nil
}
