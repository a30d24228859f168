package postgres

import (
	"context"
	"fmt"

	"github.com/vulnscan/api/pkg/domain/notification"
)

// NotificationRepository implements notification.Repository using PostgreSQL.
type NotificationRepository struct {
	db *DB
}

// NewNotificationRepository creates a new NotificationRepository.
func NewNotificationRepository(db *DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts an in-app notification.
func (r *NotificationRepository) Create(ctx context.Context, n *notification.Notification) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO notifications (id, org_id, user_id, title, body, severity, scan_id, finding_id, read_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		n.ID.String(),
		n.OrgID.String(),
		n.UserID.String(),
		n.Title,
		n.Body,
		string(n.Severity),
		nullID(n.ScanID),
		nullID(n.FindingID),
		nullTime(n.ReadAt),
		n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}
