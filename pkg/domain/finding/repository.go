package finding

import "context"

// Repository is the persistence contract for findings. Creation happens
// inside the reconciler's transactional apply; this interface covers reads
// used by the diff engine and API surface.
type Repository interface {
	// ListByScan returns all findings recorded for a scan.
	ListByScan(ctx context.Context, scanID ID) ([]*Finding, error)
}
