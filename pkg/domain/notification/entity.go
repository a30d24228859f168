// Package notification contains in-app notification records.
package notification

import (
	"context"
	"time"

	"github.com/vulnscan/api/pkg/domain/finding"
	"github.com/vulnscan/api/pkg/domain/shared"
)

// ID is a type alias for shared.ID.
type ID = shared.ID

// Notification is one in-app notification for a user.
type Notification struct {
	ID        ID
	OrgID     ID
	UserID    ID
	Title     string
	Body      string
	Severity  finding.Severity
	ScanID    *ID
	FindingID *ID
	ReadAt    *time.Time
	CreatedAt time.Time
}

// New creates an unread notification.
func New(orgID, userID ID, title, body string, severity finding.Severity) *Notification {
	return &Notification{
		ID:        shared.NewID(),
		OrgID:     orgID,
		UserID:    userID,
		Title:     title,
		Body:      body,
		Severity:  severity,
		CreatedAt: time.Now().UTC(),
	}
}

// Repository is the persistence contract for in-app notifications.
type Repository interface {
	Create(ctx context.Context, n *Notification) error
}
