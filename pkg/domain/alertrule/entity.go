// Package alertrule contains organization-defined alert rules and their
// matching semantics.
package alertrule

import (
	"context"
	"fmt"
	"time"

	"github.com/vulnscan/api/pkg/domain/event"
	"github.com/vulnscan/api/pkg/domain/finding"
	"github.com/vulnscan/api/pkg/domain/shared"
)

// ID is a type alias for shared.ID.
type ID = shared.ID

// Channel is a notification channel an alert rule can fan out to.
type Channel string

const (
	ChannelInApp   Channel = "IN_APP"
	ChannelEmail   Channel = "EMAIL"
	ChannelWebhook Channel = "WEBHOOK"
)

// Rule is an organization-owned alert filter. Empty filter slices match
// everything for that dimension.
type Rule struct {
	ID              ID
	OrgID           ID
	Name            string
	EventType       event.Type
	SeverityFilter  []finding.Severity
	TargetFilter    []shared.ID
	CategoryFilter  []finding.Category
	Threshold       int
	WindowMinutes   int
	Channels        []Channel
	Enabled         bool
	LastTriggeredAt *time.Time
	TriggerCount    int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Context carries the attributes of an emitted event that rules filter on.
// Count defaults to 1 when zero.
type Context struct {
	Severity finding.Severity
	TargetID shared.ID
	Category finding.Category
	Count    int
}

// Matches reports whether the rule fires for the event context. Each
// non-empty filter must include the corresponding context value, and the
// event count must reach the rule threshold.
func (r *Rule) Matches(ctx Context) bool {
	if len(r.SeverityFilter) > 0 && !containsSeverity(r.SeverityFilter, ctx.Severity) {
		return false
	}
	if len(r.TargetFilter) > 0 && !containsID(r.TargetFilter, ctx.TargetID) {
		return false
	}
	if len(r.CategoryFilter) > 0 && !containsCategory(r.CategoryFilter, ctx.Category) {
		return false
	}
	count := ctx.Count
	if count == 0 {
		count = 1
	}
	threshold := r.Threshold
	if threshold <= 0 {
		threshold = 1
	}
	return count >= threshold
}

func containsSeverity(haystack []finding.Severity, needle finding.Severity) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func containsCategory(haystack []finding.Category, needle finding.Category) bool {
	for _, c := range haystack {
		if c == needle {
			return true
		}
	}
	return false
}

func containsID(haystack []shared.ID, needle shared.ID) bool {
	for _, id := range haystack {
		if id.Equals(needle) {
			return true
		}
	}
	return false
}

// Repository is the persistence contract for alert rules.
type Repository interface {
	// ListActive returns enabled rules for the organization and event type.
	ListActive(ctx context.Context, orgID ID, eventType event.Type) ([]*Rule, error)

	// RecordTrigger increments trigger_count and sets last_triggered_at.
	RecordTrigger(ctx context.Context, id ID, at time.Time) error
}

// ErrRuleNotFound is returned when a rule lookup misses.
var ErrRuleNotFound = fmt.Errorf("%w: alert rule not found", shared.ErrNotFound)
