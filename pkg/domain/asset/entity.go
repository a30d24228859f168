// Package asset contains the discovered asset entity and repository contract.
package asset

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/vulnscan/api/pkg/domain/shared"
)

// ID is a type alias for shared.ID.
type ID = shared.ID

// Type classifies a discovered asset.
type Type string

const (
	TypeSubdomain  Type = "SUBDOMAIN"
	TypeIP         Type = "IP"
	TypePort       Type = "PORT"
	TypeEndpoint   Type = "ENDPOINT"
	TypeTechnology Type = "TECHNOLOGY"
	TypeURL        Type = "URL"
)

var knownTypes = map[Type]bool{
	TypeSubdomain:  true,
	TypeIP:         true,
	TypePort:       true,
	TypeEndpoint:   true,
	TypeTechnology: true,
	TypeURL:        true,
}

// IsValid returns true if the type is known.
func (t Type) IsValid() bool {
	return knownTypes[t]
}

// ParseType maps an engine-reported asset type onto the enumeration,
// defaulting to ENDPOINT for unrecognized values.
func ParseType(s string) Type {
	t := Type(strings.ToUpper(strings.TrimSpace(s)))
	if knownTypes[t] {
		return t
	}
	return TypeEndpoint
}

// Asset is a discovered artifact tied to a target. Rows are unique on
// (target, type, value); repeated sightings update last_seen_at only.
type Asset struct {
	ID          ID
	TargetID    ID
	Type        Type
	Value       string
	Metadata    map[string]any
	FirstSeenAt time.Time
	LastSeenAt  time.Time
}

// Repository is the persistence contract for assets. Upserts happen inside
// the reconciler's transactional apply; this interface covers reads.
type Repository interface {
	// ListByTarget returns all assets recorded for a target.
	ListByTarget(ctx context.Context, targetID ID) ([]*Asset, error)
}

// ErrAssetNotFound is returned when an asset lookup misses.
var ErrAssetNotFound = fmt.Errorf("%w: asset not found", shared.ErrNotFound)
