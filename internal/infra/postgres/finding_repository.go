package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/vulnscan/api/pkg/domain/finding"
	"github.com/vulnscan/api/pkg/domain/shared"
)

// FindingRepository implements finding.Repository using PostgreSQL.
type FindingRepository struct {
	db *DB
}

// NewFindingRepository creates a new FindingRepository.
func NewFindingRepository(db *DB) *FindingRepository {
	return &FindingRepository{db: db}
}

// ListByScan returns all findings recorded for a scan.
func (r *FindingRepository) ListByScan(ctx context.Context, scanID shared.ID) ([]*finding.Finding, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, scan_id, target_id, asset_id, title, severity, category,
		       description, solution, cve_id, cvss_score, affected_component,
		       evidence, refs, metadata, status, created_at, updated_at
		FROM findings
		WHERE scan_id = $1
		ORDER BY created_at ASC`,
		scanID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list findings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var findings []*finding.Finding
	for rows.Next() {
		f, err := scanFindingRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan finding row: %w", err)
		}
		findings = append(findings, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate finding rows: %w", err)
	}
	return findings, nil
}

// insertFindingTx inserts a finding within an existing transaction. Used by
// the reconcile apply so finding writes share the completion transaction.
func insertFindingTx(ctx context.Context, tx *sql.Tx, f *finding.Finding) error {
	metadata, err := toJSONB(f.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal finding metadata: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO findings (
			id, scan_id, target_id, asset_id, title, severity, category,
			description, solution, cve_id, cvss_score, affected_component,
			evidence, refs, metadata, status, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		f.ID.String(),
		f.ScanID.String(),
		f.TargetID.String(),
		nullID(f.AssetID),
		f.Title,
		string(f.Severity),
		string(f.Category),
		nullString(f.Description),
		nullString(f.Solution),
		nullString(f.CVEID),
		nullFloat(f.CVSSScore),
		nullString(f.AffectedComponent),
		nullString(f.Evidence),
		pq.Array(f.References),
		metadata,
		string(f.Status),
		f.CreatedAt,
		f.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert finding: %w", err)
	}
	return nil
}

func scanFindingRow(row rowScanner) (*finding.Finding, error) {
	var (
		f           finding.Finding
		idStr       string
		scanIDStr   string
		targetIDStr string
		assetID     sql.NullString
		severity    string
		category    string
		description sql.NullString
		solution    sql.NullString
		cveID       sql.NullString
		cvssScore   sql.NullFloat64
		component   sql.NullString
		evidence    sql.NullString
		refs        pq.StringArray
		metadata    []byte
		status      string
	)

	err := row.Scan(
		&idStr, &scanIDStr, &targetIDStr, &assetID, &f.Title, &severity, &category,
		&description, &solution, &cveID, &cvssScore, &component,
		&evidence, &refs, &metadata, &status, &f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if f.ID, err = shared.IDFromString(idStr); err != nil {
		return nil, fmt.Errorf("invalid finding id: %w", err)
	}
	if f.ScanID, err = shared.IDFromString(scanIDStr); err != nil {
		return nil, fmt.Errorf("invalid scan id: %w", err)
	}
	if f.TargetID, err = shared.IDFromString(targetIDStr); err != nil {
		return nil, fmt.Errorf("invalid target id: %w", err)
	}
	f.AssetID = parseNullID(assetID)
	f.Severity = finding.Severity(severity)
	f.Category = finding.Category(category)
	f.Description = nullStringValue(description)
	f.Solution = nullStringValue(solution)
	f.CVEID = nullStringValue(cveID)
	f.CVSSScore = nullFloatValue(cvssScore)
	f.AffectedComponent = nullStringValue(component)
	f.Evidence = nullStringValue(evidence)
	f.References = refs
	if err := fromJSONB(metadata, &f.Metadata); err != nil {
		return nil, fmt.Errorf("invalid finding metadata: %w", err)
	}
	f.Status = finding.Status(status)

	return &f, nil
}
