// Package finding contains the vulnerability finding entity, its severity
// and category enumerations, and the repository contract.
package finding

import (
	"fmt"
	"strings"
	"time"

	"github.com/vulnscan/api/pkg/domain/shared"
)

// ID is a type alias for shared.ID.
type ID = shared.ID

// Severity represents finding severity.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
	SeverityInfo     Severity = "INFO"
)

// severityRank orders severities for comparisons; higher is worse.
var severityRank = map[Severity]int{
	SeverityCritical: 5,
	SeverityHigh:     4,
	SeverityMedium:   3,
	SeverityLow:      2,
	SeverityInfo:     1,
}

// IsValid returns true if the severity is known.
func (s Severity) IsValid() bool {
	_, ok := severityRank[s]
	return ok
}

// AtLeast reports whether s is as severe or more severe than other.
func (s Severity) AtLeast(other Severity) bool {
	return severityRank[s] >= severityRank[other]
}

// ParseSeverity maps an engine-reported severity string onto the enumeration,
// defaulting to INFO for unrecognized values.
func ParseSeverity(s string) Severity {
	sev := Severity(strings.ToUpper(strings.TrimSpace(s)))
	if sev.IsValid() {
		return sev
	}
	return SeverityInfo
}

// Status represents the triage state of a finding.
type Status string

const (
	StatusOpen          Status = "OPEN"
	StatusInProgress    Status = "IN_PROGRESS"
	StatusFixed         Status = "FIXED"
	StatusAccepted      Status = "ACCEPTED"
	StatusFalsePositive Status = "FALSE_POSITIVE"
)

// Finding is one vulnerability instance tied to a scan.
type Finding struct {
	ID                ID
	ScanID            ID
	TargetID          ID
	AssetID           *ID
	Title             string
	Severity          Severity
	Category          Category
	Description       string
	Solution          string
	CVEID             string
	CVSSScore         *float64
	AffectedComponent string
	Evidence          string
	References        []string
	Metadata          map[string]any
	Status            Status
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Fingerprint returns a stable identity for matching findings across scans
// without relying on database identifiers.
func (f *Finding) Fingerprint() string {
	return fmt.Sprintf("%s|%s|%s", f.Title, f.Category, f.AffectedComponent)
}

// ErrFindingNotFound is returned when a finding lookup misses.
var ErrFindingNotFound = fmt.Errorf("%w: finding not found", shared.ErrNotFound)
