package model

import "time"

type NotificationType string

const (
	NotificationInvitation NotificationType = "invitation"
	NotificationFileStatus NotificationType = "file_status"
	NotificationRoleChange NotificationType = "role_change"
)

// ValidNotificationType reports whether t is one of the closed enum values.
func ValidNotificationType(t NotificationType) bool {
	switch t {
	case NotificationInvitation, NotificationFileStatus, NotificationRoleChange:
		return true
	}
	return false
}

// Notification is a durable per-user alert. If the user has a live connection
// it is also pushed immediately; otherwise it waits for the next poll.
type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	Text      string           `json:"text"`
	ProjectID *string          `json:"project_id,omitempty"`
	Type      NotificationType `json:"type"`
	Read      bool             `json:"read"`
	ReadAt    *time.Time       `json:"read_at,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}
