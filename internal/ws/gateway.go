package ws

import "github.com/teamhub/internal/model"

// Gateway is the push surface the orchestrator and the notification
// dispatcher talk to. It routes through the registry (per-user delivery) and
// the rooms (per-project fan-out) without exposing either.
type Gateway struct {
	registry *Registry
	rooms    *Rooms
}

func NewGateway(registry *Registry, rooms *Rooms) *Gateway {
	return &Gateway{registry: registry, rooms: rooms}
}

// BroadcastNewMessage fans a populated message out to the project room.
// The sender is included; their client reconciles by message id.
func (g *Gateway) BroadcastNewMessage(projectID string, m *model.Message) {
	g.rooms.Broadcast(projectID, OutgoingEvent{Type: EventNewMessage, Payload: m}, "")
}

// NotifyMessagesRead tells the user's own live connection that their unread
// receipts for a project were flipped. Other members are not informed.
func (g *Gateway) NotifyMessagesRead(userID, projectID string) {
	c, ok := g.registry.Lookup(userID)
	if !ok {
		return
	}
	// Ephemeral state sync; if the buffer is full the next unread-counts
	// poll catches up.
	c.enqueue(OutgoingEvent{Type: EventMessagesRead, Payload: MessagesReadPayload{ProjectID: projectID, UserID: userID}})
}

// PushNotification delivers a notification to the user's live connection.
// Returns false when the user is offline or the connection cannot take it;
// the durable store covers that case.
func (g *Gateway) PushNotification(userID string, n *model.Notification) bool {
	c, ok := g.registry.Lookup(userID)
	if !ok {
		return false
	}
	return c.enqueue(OutgoingEvent{Type: EventNotification, Payload: n})
}

// IsOnline reports whether the user has a live connection.
func (g *Gateway) IsOnline(userID string) bool {
	return g.registry.IsOnline(userID)
}
