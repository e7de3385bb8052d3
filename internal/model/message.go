package model

import "time"

// Message is one chat message in a project room. Immutable once created.
type Message struct {
	ID        string      `json:"id"`
	ProjectID string      `json:"project_id"`
	SenderID  string      `json:"sender_id"`
	Content   string      `json:"content"`
	CreatedAt time.Time   `json:"created_at"`
	Sender    *UserPublic `json:"sender,omitempty"`
}

// ReadReceipt tracks whether one recipient has seen one message. A row exists
// for every (message, member) pair except the sender, created at send time.
// The read flag only ever transitions false -> true.
type ReadReceipt struct {
	UserID    string     `json:"user_id"`
	MessageID string     `json:"message_id"`
	ProjectID string     `json:"project_id"`
	Read      bool       `json:"read"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
}

// UnreadCount is the per-project unread summary for one user. Always derived
// by counting unread receipt rows; never cached.
type UnreadCount struct {
	ProjectID   string `json:"project_id"`
	ProjectName string `json:"project_name"`
	UnreadCount int    `json:"unread_count"`
}
