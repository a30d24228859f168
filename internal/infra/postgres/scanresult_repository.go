package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/vulnscan/api/pkg/domain/scanresult"
	"github.com/vulnscan/api/pkg/domain/shared"
)

// Raw engine payloads compress well and are read rarely, so snapshots are
// stored zstd-compressed. The encoder and decoder are safe for concurrent use.
var (
	resultEncoder *zstd.Encoder
	resultDecoder *zstd.Decoder
)

func init() {
	var err error
	resultEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic(fmt.Sprintf("postgres: init zstd encoder: %v", err))
	}
	resultDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic(fmt.Sprintf("postgres: init zstd decoder: %v", err))
	}
}

// ScanResultRepository implements scanresult.Repository using PostgreSQL.
type ScanResultRepository struct {
	db *DB
}

// NewScanResultRepository creates a new ScanResultRepository.
func NewScanResultRepository(db *DB) *ScanResultRepository {
	return &ScanResultRepository{db: db}
}

// GetByScanID retrieves the snapshot for a scan, decompressing the raw payload.
func (r *ScanResultRepository) GetByScanID(ctx context.Context, scanID shared.ID) (*scanresult.ScanResult, error) {
	var (
		res        scanresult.ScanResult
		idStr      string
		scanIDStr  string
		summary    []byte
		compressed []byte
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT id, scan_id, assets_found, vulns_found, summary, raw_payload, created_at
		FROM scan_results
		WHERE scan_id = $1`,
		scanID.String(),
	).Scan(&idStr, &scanIDStr, &res.AssetsFound, &res.VulnsFound, &summary, &compressed, &res.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, scanresult.ErrResultNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scan result: %w", err)
	}

	if res.ID, err = shared.IDFromString(idStr); err != nil {
		return nil, fmt.Errorf("invalid result id: %w", err)
	}
	if res.ScanID, err = shared.IDFromString(scanIDStr); err != nil {
		return nil, fmt.Errorf("invalid scan id: %w", err)
	}
	if err := fromJSONB(summary, &res.Summary); err != nil {
		return nil, fmt.Errorf("invalid result summary: %w", err)
	}
	if len(compressed) > 0 {
		raw, err := resultDecoder.DecodeAll(compressed, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress raw payload: %w", err)
		}
		res.RawPayload = raw
	}

	return &res, nil
}

// insertResultTx inserts a snapshot within an existing transaction,
// compressing the raw payload.
func insertResultTx(ctx context.Context, tx *sql.Tx, res *scanresult.ScanResult) error {
	summary, err := toJSONB(res.Summary)
	if err != nil {
		return fmt.Errorf("failed to marshal result summary: %w", err)
	}

	var compressed []byte
	if len(res.RawPayload) > 0 {
		compressed = resultEncoder.EncodeAll(res.RawPayload, nil)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO scan_results (id, scan_id, assets_found, vulns_found, summary, raw_payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		res.ID.String(),
		res.ScanID.String(),
		res.AssetsFound,
		res.VulnsFound,
		summary,
		compressed,
		res.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert scan result: %w", err)
	}
	return nil
}
