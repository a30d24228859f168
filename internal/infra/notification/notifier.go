// Package notification delivers alert notifications over the configured
// channels: the in-app record, email, and an optional external sender.
package notification

import (
	"context"
	"fmt"

	"github.com/vulnscan/api/pkg/domain/notification"
	"github.com/vulnscan/api/pkg/domain/organization"
	"github.com/vulnscan/api/pkg/email"
	"github.com/vulnscan/api/pkg/logger"
)

// ExternalSender posts a notification to an external provider (chat webhook
// or similar). Best-effort; failures are logged by the caller.
type ExternalSender interface {
	Send(ctx context.Context, title, body, severity string) error
}

// CompositeNotifier writes the in-app record and then fans out to email and
// the external sender. The in-app write is the only required leg; the others
// are best-effort and their failures are logged without failing the whole
// delivery.
type CompositeNotifier struct {
	repo     notification.Repository
	email    email.Sender
	external ExternalSender
	logger   *logger.Logger
}

// NewCompositeNotifier creates a CompositeNotifier. email and external may
// be nil when the channel is not configured.
func NewCompositeNotifier(
	repo notification.Repository,
	emailSender email.Sender,
	external ExternalSender,
	log *logger.Logger,
) *CompositeNotifier {
	return &CompositeNotifier{
		repo:     repo,
		email:    emailSender,
		external: external,
		logger:   log.With("component", "notifier"),
	}
}

// Notify delivers one notification to one member.
func (c *CompositeNotifier) Notify(ctx context.Context, member *organization.Member, n *notification.Notification) error {
	if err := c.repo.Create(ctx, n); err != nil {
		return fmt.Errorf("failed to create in-app notification: %w", err)
	}

	if c.email != nil && c.email.IsConfigured() && member.Email != "" {
		msg := &email.Message{
			To:      []string{member.Email},
			Subject: n.Title,
			Body:    n.Body,
		}
		if err := c.email.Send(ctx, msg); err != nil {
			c.logger.Warn("email notification failed",
				"user_id", member.UserID.String(),
				"error", err,
			)
		}
	}

	if c.external != nil {
		if err := c.external.Send(ctx, n.Title, n.Body, string(n.Severity)); err != nil {
			c.logger.Warn("external notification failed",
				"user_id", member.UserID.String(),
				"error", err,
			)
		}
	}

	return nil
}
