package ws

type EventType string

// Client -> server events.
const (
	EventJoinProjectChat  EventType = "join_project_chat"
	EventLeaveProjectChat EventType = "leave_project_chat"
	EventSendMessage      EventType = "send_message"
	EventTyping           EventType = "typing"
	EventMarkMessagesRead EventType = "mark_messages_read"
)

// Server -> client events.
const (
	EventNewMessage   EventType = "new_message"
	EventNotification EventType = "notification"
	EventUserTyping   EventType = "user_typing"
	EventMessagesRead EventType = "messages_read"
	EventError        EventType = "error"
)

// IncomingEvent is what the client sends to the server.
type IncomingEvent struct {
	Type      EventType `json:"type"`
	ProjectID string    `json:"project_id,omitempty"`
	Content   string    `json:"content,omitempty"`
	IsTyping  bool      `json:"is_typing,omitempty"`
}

// OutgoingEvent is what the server sends to the client.
// Payload uses typed structs to avoid heap-heavy map[string]any.
type OutgoingEvent struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

// TypingPayload is relayed to room members while a user is typing. The server
// keeps no typing state; the sending client is responsible for eventually
// sending is_typing=false.
type TypingPayload struct {
	ProjectID string `json:"project_id"`
	UserID    string `json:"user_id"`
	IsTyping  bool   `json:"is_typing"`
}

// MessagesReadPayload is sent to a user's own connections after their unread
// receipts for a project were flipped.
type MessagesReadPayload struct {
	ProjectID string `json:"project_id"`
	UserID    string `json:"user_id"`
}

// ErrorPayload carries a client-safe error message.
type ErrorPayload struct {
	Message string `json:"message"`
}
