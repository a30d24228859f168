package app

import (
	"context"

	"github.com/vulnscan/api/pkg/domain/notification"
	"github.com/vulnscan/api/pkg/domain/organization"
)

// Notifier delivers a notification to one organization member over the
// configured channels (in-app record, email, external). Implementations are
// best-effort: a delivery failure is returned for logging but callers never
// let it abort fan-out to the remaining recipients.
type Notifier interface {
	Notify(ctx context.Context, member *organization.Member, n *notification.Notification) error
}

// NopNotifier discards notifications. Used when no channels are configured
// and in tests.
type NopNotifier struct{}

// Notify implements Notifier.
func (NopNotifier) Notify(ctx context.Context, member *organization.Member, n *notification.Notification) error {
	return nil
}
