package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/vulnscan/api/pkg/domain/event"
	"github.com/vulnscan/api/pkg/domain/shared"
	"github.com/vulnscan/api/pkg/domain/webhook"
)

// WebhookRepository implements webhook.Repository using PostgreSQL.
type WebhookRepository struct {
	db *DB
}

// NewWebhookRepository creates a new WebhookRepository.
func NewWebhookRepository(db *DB) *WebhookRepository {
	return &WebhookRepository{db: db}
}

// ListActiveForEvent returns the organization's active webhooks subscribed to
// the event type.
func (r *WebhookRepository) ListActiveForEvent(ctx context.Context, orgID shared.ID, eventType event.Type) ([]*webhook.Webhook, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, org_id, name, url, secret, event_types, active,
		       total_sent, total_failed, last_triggered_at, last_error,
		       created_at, updated_at
		FROM webhooks
		WHERE org_id = $1 AND active = true AND $2 = ANY(event_types)
		ORDER BY created_at ASC`,
		orgID.String(),
		string(eventType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhooks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var webhooks []*webhook.Webhook
	for rows.Next() {
		w, err := scanWebhookRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan webhook row: %w", err)
		}
		webhooks = append(webhooks, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate webhook rows: %w", err)
	}
	return webhooks, nil
}

// RecordDelivery updates the webhook's delivery bookkeeping. Success clears
// last_error and bumps total_sent, failure records the error and bumps
// total_failed.
func (r *WebhookRepository) RecordDelivery(ctx context.Context, id shared.ID, delivered bool, errMsg string, at time.Time) error {
	var query string
	if delivered {
		query = `
			UPDATE webhooks
			SET total_sent = total_sent + 1,
			    last_error = NULL,
			    last_triggered_at = $2,
			    updated_at = $2
			WHERE id = $1`
	} else {
		query = `
			UPDATE webhooks
			SET total_failed = total_failed + 1,
			    last_error = $3,
			    last_triggered_at = $2,
			    updated_at = $2
			WHERE id = $1`
	}

	args := []any{id.String(), at}
	if !delivered {
		args = append(args, errMsg)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to record webhook delivery: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return webhook.ErrWebhookNotFound
	}
	return nil
}

func scanWebhookRow(row rowScanner) (*webhook.Webhook, error) {
	var (
		w               webhook.Webhook
		idStr           string
		orgIDStr        string
		secret          sql.NullString
		eventTypes      pq.StringArray
		lastTriggeredAt sql.NullTime
		lastError       sql.NullString
	)

	err := row.Scan(
		&idStr, &orgIDStr, &w.Name, &w.URL, &secret, &eventTypes, &w.Active,
		&w.TotalSent, &w.TotalFailed, &lastTriggeredAt, &lastError,
		&w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if w.ID, err = shared.IDFromString(idStr); err != nil {
		return nil, fmt.Errorf("invalid webhook id: %w", err)
	}
	if w.OrgID, err = shared.IDFromString(orgIDStr); err != nil {
		return nil, fmt.Errorf("invalid org id: %w", err)
	}
	w.Secret = nullStringValue(secret)
	for _, t := range eventTypes {
		w.EventTypes = append(w.EventTypes, event.Type(t))
	}
	w.LastTriggeredAt = nullTimeValue(lastTriggeredAt)
	w.LastError = nullStringValue(lastError)

	return &w, nil
}
