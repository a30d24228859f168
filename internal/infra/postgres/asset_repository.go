package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vulnscan/api/pkg/domain/asset"
	"github.com/vulnscan/api/pkg/domain/shared"
)

// AssetRepository implements asset.Repository using PostgreSQL.
type AssetRepository struct {
	db *DB
}

// NewAssetRepository creates a new AssetRepository.
func NewAssetRepository(db *DB) *AssetRepository {
	return &AssetRepository{db: db}
}

// ListByTarget returns all assets recorded for a target.
func (r *AssetRepository) ListByTarget(ctx context.Context, targetID shared.ID) ([]*asset.Asset, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, target_id, type, value, metadata, first_seen_at, last_seen_at
		FROM assets
		WHERE target_id = $1
		ORDER BY first_seen_at ASC`,
		targetID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var assets []*asset.Asset
	for rows.Next() {
		a, err := scanAssetRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan asset row: %w", err)
		}
		assets = append(assets, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate asset rows: %w", err)
	}
	return assets, nil
}

// upsertAssetTx inserts or refreshes an asset within an existing transaction.
// Rows are unique on (target_id, type, value); a repeat sighting bumps
// last_seen_at and merges metadata instead of inserting a duplicate.
func upsertAssetTx(ctx context.Context, tx *sql.Tx, a *asset.Asset) error {
	metadata, err := toJSONB(a.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal asset metadata: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO assets (id, target_id, type, value, metadata, first_seen_at, last_seen_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (target_id, type, value) DO UPDATE
		SET last_seen_at = EXCLUDED.last_seen_at,
		    metadata = COALESCE(EXCLUDED.metadata, assets.metadata)`,
		a.ID.String(),
		a.TargetID.String(),
		string(a.Type),
		a.Value,
		metadata,
		a.FirstSeenAt,
		a.LastSeenAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert asset: %w", err)
	}
	return nil
}

func scanAssetRow(row rowScanner) (*asset.Asset, error) {
	var (
		a           asset.Asset
		idStr       string
		targetIDStr string
		typ         string
		metadata    []byte
	)

	err := row.Scan(&idStr, &targetIDStr, &typ, &a.Value, &metadata, &a.FirstSeenAt, &a.LastSeenAt)
	if err != nil {
		return nil, err
	}

	if a.ID, err = shared.IDFromString(idStr); err != nil {
		return nil, fmt.Errorf("invalid asset id: %w", err)
	}
	if a.TargetID, err = shared.IDFromString(targetIDStr); err != nil {
		return nil, fmt.Errorf("invalid target id: %w", err)
	}
	a.Type = asset.Type(typ)
	if err := fromJSONB(metadata, &a.Metadata); err != nil {
		return nil, fmt.Errorf("invalid asset metadata: %w", err)
	}

	return &a, nil
}
