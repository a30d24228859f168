// Package scanresult contains the immutable scan result snapshot.
package scanresult

import (
	"context"
	"fmt"
	"time"

	"github.com/vulnscan/api/pkg/domain/shared"
)

// ID is a type alias for shared.ID.
type ID = shared.ID

// Summary is the engine's aggregate view of a completed scan.
type Summary struct {
	TotalFindings  int            `json:"total_findings"`
	SeverityCounts map[string]int `json:"severity_counts"`
	RiskScore      int            `json:"risk_score"`
	SecurityScore  int            `json:"security_score"`
}

// ScanResult is an immutable snapshot of one completed scan's raw payload
// plus derived counts. Exactly one snapshot exists per COMPLETED scan.
type ScanResult struct {
	ID          ID
	ScanID      ID
	AssetsFound int
	VulnsFound  int
	Summary     Summary
	// RawPayload is the engine's full result message as JSON. Stored
	// zstd-compressed; repositories handle the codec transparently.
	RawPayload []byte
	CreatedAt  time.Time
}

// New creates a snapshot for a completed scan.
func New(scanID ID, assetsFound, vulnsFound int, summary Summary, rawPayload []byte) *ScanResult {
	return &ScanResult{
		ID:          shared.NewID(),
		ScanID:      scanID,
		AssetsFound: assetsFound,
		VulnsFound:  vulnsFound,
		Summary:     summary,
		RawPayload:  rawPayload,
		CreatedAt:   time.Now().UTC(),
	}
}

// Repository is the persistence contract for scan result snapshots.
type Repository interface {
	// GetByScanID retrieves the snapshot for a scan. Returns ErrNotFound.
	GetByScanID(ctx context.Context, scanID ID) (*ScanResult, error)
}

// ErrResultNotFound is returned when a snapshot lookup misses.
var ErrResultNotFound = fmt.Errorf("%w: scan result not found", shared.ErrNotFound)
