// Package webhook contains organization-registered webhook endpoints and
// their delivery bookkeeping contract.
package webhook

import (
	"fmt"
	"time"

	"github.com/vulnscan/api/pkg/domain/event"
	"github.com/vulnscan/api/pkg/domain/shared"
)

// ID is a type alias for shared.ID.
type ID = shared.ID

// Webhook is an organization-owned HTTP callback target.
type Webhook struct {
	ID              ID
	OrgID           ID
	Name            string
	URL             string
	// Secret, when set, is used to compute the HMAC-SHA256 payload
	// signature attached to deliveries.
	Secret          string
	EventTypes      []event.Type
	Active          bool
	TotalSent       int
	TotalFailed     int
	LastTriggeredAt *time.Time
	LastError       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewWebhook creates a new active webhook.
func NewWebhook(orgID ID, name, url string, eventTypes []event.Type) (*Webhook, error) {
	if url == "" {
		return nil, fmt.Errorf("%w: webhook url is required", shared.ErrValidation)
	}
	if len(eventTypes) == 0 {
		return nil, fmt.Errorf("%w: at least one event type is required", shared.ErrValidation)
	}
	now := time.Now().UTC()
	return &Webhook{
		ID:         shared.NewID(),
		OrgID:      orgID,
		Name:       name,
		URL:        url,
		EventTypes: eventTypes,
		Active:     true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// SubscribedTo reports whether the webhook subscribes to the event type.
func (w *Webhook) SubscribedTo(t event.Type) bool {
	for _, e := range w.EventTypes {
		if e == t {
			return true
		}
	}
	return false
}

// DeliveryResult is the per-endpoint outcome of one dispatch.
type DeliveryResult struct {
	WebhookID  ID
	URL        string
	Delivered  bool
	StatusCode int
	Error      string
	Duration   time.Duration
}

// ErrWebhookNotFound is returned when a webhook lookup misses.
var ErrWebhookNotFound = fmt.Errorf("%w: webhook not found", shared.ErrNotFound)
