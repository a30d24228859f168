package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/vulnscan/api/pkg/domain/alertrule"
	"github.com/vulnscan/api/pkg/domain/event"
	"github.com/vulnscan/api/pkg/domain/finding"
	"github.com/vulnscan/api/pkg/domain/shared"
)

// AlertRuleRepository implements alertrule.Repository using PostgreSQL.
type AlertRuleRepository struct {
	db *DB
}

// NewAlertRuleRepository creates a new AlertRuleRepository.
func NewAlertRuleRepository(db *DB) *AlertRuleRepository {
	return &AlertRuleRepository{db: db}
}

// ListActive returns enabled rules for the organization and event type.
func (r *AlertRuleRepository) ListActive(ctx context.Context, orgID shared.ID, eventType event.Type) ([]*alertrule.Rule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, org_id, name, event_type, severity_filter, target_filter,
		       category_filter, threshold, window_minutes, channels, enabled,
		       last_triggered_at, trigger_count, created_at, updated_at
		FROM alert_rules
		WHERE org_id = $1 AND event_type = $2 AND enabled = true
		ORDER BY created_at ASC`,
		orgID.String(),
		string(eventType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list alert rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rules []*alertrule.Rule
	for rows.Next() {
		rule, err := scanRuleRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert rule row: %w", err)
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alert rule rows: %w", err)
	}
	return rules, nil
}

// RecordTrigger increments trigger_count and sets last_triggered_at.
func (r *AlertRuleRepository) RecordTrigger(ctx context.Context, id shared.ID, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE alert_rules
		SET trigger_count = trigger_count + 1,
		    last_triggered_at = $2,
		    updated_at = $2
		WHERE id = $1`,
		id.String(),
		at,
	)
	if err != nil {
		return fmt.Errorf("failed to record alert rule trigger: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return alertrule.ErrRuleNotFound
	}
	return nil
}

func scanRuleRow(row rowScanner) (*alertrule.Rule, error) {
	var (
		rule            alertrule.Rule
		idStr           string
		orgIDStr        string
		eventType       string
		severityFilter  pq.StringArray
		targetFilter    pq.StringArray
		categoryFilter  pq.StringArray
		channels        pq.StringArray
		lastTriggeredAt sql.NullTime
	)

	err := row.Scan(
		&idStr, &orgIDStr, &rule.Name, &eventType, &severityFilter, &targetFilter,
		&categoryFilter, &rule.Threshold, &rule.WindowMinutes, &channels, &rule.Enabled,
		&lastTriggeredAt, &rule.TriggerCount, &rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if rule.ID, err = shared.IDFromString(idStr); err != nil {
		return nil, fmt.Errorf("invalid alert rule id: %w", err)
	}
	if rule.OrgID, err = shared.IDFromString(orgIDStr); err != nil {
		return nil, fmt.Errorf("invalid org id: %w", err)
	}
	rule.EventType = event.Type(eventType)

	for _, s := range severityFilter {
		rule.SeverityFilter = append(rule.SeverityFilter, finding.Severity(s))
	}
	for _, t := range targetFilter {
		id, err := shared.IDFromString(t)
		if err != nil {
			return nil, fmt.Errorf("invalid target filter id: %w", err)
		}
		rule.TargetFilter = append(rule.TargetFilter, id)
	}
	for _, c := range categoryFilter {
		rule.CategoryFilter = append(rule.CategoryFilter, finding.Category(c))
	}
	for _, ch := range channels {
		rule.Channels = append(rule.Channels, alertrule.Channel(ch))
	}
	if lastTriggeredAt.Valid {
		rule.LastTriggeredAt = &lastTriggeredAt.Time
	}

	return &rule, nil
}
