package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// NotificationType classifies in-app notifications.
type NotificationType string

const (
	NotificationNewApplication       NotificationType = "new_application"
	NotificationApplicationAccepted  NotificationType = "application_accepted"
	NotificationApplicationRejected  NotificationType = "application_rejected"
	NotificationApplicationCancelled NotificationType = "application_cancelled"
	NotificationVerificationApproved NotificationType = "verification_approved"
	NotificationVerificationRejected NotificationType = "verification_rejected"
	NotificationNewPosting           NotificationType = "new_posting"
)

// Notification is an append-only message for a single recipient.
type Notification struct {
	ID         string           `db:"id" json:"id"`
	UserID     string           `db:"user_id" json:"user_id"`
	Type       NotificationType `db:"type" json:"type"`
	Title      string           `db:"title" json:"title"`
	Content    string           `db:"content" json:"content"`
	RelatedURL string           `db:"related_url" json:"related_url"`
	Metadata   types.JSONText   `db:"metadata" json:"metadata"`
	IsRead     bool             `db:"is_read" json:"is_read"`
	CreatedAt  time.Time        `db:"created_at" json:"created_at"`
}

// NotificationFilter narrows a recipient's notification list.
type NotificationFilter struct {
	UserID   string
	IsRead   *bool
	Page     int
	PageSize int
}

// NotificationList bundles a page of notifications with the unread counter.
type NotificationList struct {
	Items       []Notification `json:"items"`
	UnreadCount int            `json:"unread_count"`
}

// NotificationSettings stores a user's email delivery preferences.
type NotificationSettings struct {
	UserID             string    `db:"user_id" json:"-"`
	ApplicationResult  bool      `db:"application_result" json:"application_result"`
	VerificationResult bool      `db:"verification_result" json:"verification_result"`
	NewPosting         bool      `db:"new_posting" json:"new_posting"`
	Marketing          bool      `db:"marketing" json:"marketing"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// DefaultNotificationSettings mirrors the column defaults.
func DefaultNotificationSettings(userID string) NotificationSettings {
	return NotificationSettings{
		UserID:             userID,
		ApplicationResult:  true,
		VerificationResult: true,
		NewPosting:         true,
	}
}

// Allows reports whether email delivery is enabled for the notification type.
func (s NotificationSettings) Allows(t NotificationType) bool {
	switch t {
	case NotificationApplicationAccepted, NotificationApplicationRejected:
		return s.ApplicationResult
	case NotificationVerificationApproved, NotificationVerificationRejected:
		return s.VerificationResult
	case NotificationNewPosting:
		return s.NewPosting
	default:
		return true
	}
}

// UpdateNotificationSettingsRequest toggles individual settings.
type UpdateNotificationSettingsRequest struct {
	ApplicationResult  *bool `json:"application_result"`
	VerificationResult *bool `json:"verification_result"`
	NewPosting         *bool `json:"new_posting"`
	Marketing          *bool `json:"marketing"`
}
