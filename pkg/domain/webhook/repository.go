package webhook

import (
	"context"
	"time"

	"github.com/vulnscan/api/pkg/domain/event"
)

// Repository is the persistence contract for webhooks.
type Repository interface {
	// ListActiveForEvent returns the organization's active webhooks
	// subscribed to the event type.
	ListActiveForEvent(ctx context.Context, orgID ID, eventType event.Type) ([]*Webhook, error)

	// RecordDelivery updates the webhook's delivery bookkeeping: success
	// clears last_error and bumps total_sent, failure records the error and
	// bumps total_failed. last_triggered_at is set either way.
	RecordDelivery(ctx context.Context, id ID, delivered bool, errMsg string, at time.Time) error
}
