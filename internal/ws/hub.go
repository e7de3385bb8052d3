package ws

import (
	"context"
	"time"

	"github.com/teamhub/internal/apperr"
	"github.com/teamhub/internal/logger"
	"github.com/teamhub/internal/model"
)

// handleTimeout bounds the work done for a single incoming socket event.
const handleTimeout = 5 * time.Second

// ChatService is what the hub needs from the messaging orchestrator.
type ChatService interface {
	Authorize(ctx context.Context, projectID, userID string) error
	SendMessage(ctx context.Context, senderID, projectID, content string) (*model.Message, error)
	MarkMessagesRead(ctx context.Context, userID, projectID string) error
}

// Hub owns connection lifecycle. Registration and removal are serialized
// through channels into the Run loop; everything else (room broadcast,
// per-user delivery) goes through Registry and Rooms, which carry their own
// locks.
type Hub struct {
	registry *Registry
	rooms    *Rooms
	chat     ChatService
	maxConns int

	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

func NewHub(registry *Registry, rooms *Rooms, chat ChatService, maxConns int) *Hub {
	return &Hub{
		registry:   registry,
		rooms:      rooms,
		chat:       chat,
		maxConns:   maxConns,
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		done:       make(chan struct{}),
	}
}

// Run processes registration traffic until ctx is cancelled, then closes
// every connection and waits for their pumps to exit.
func (h *Hub) Run(ctx context.Context) {
	logger.Info("ws hub started")
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case c := <-h.register:
			h.addClient(c)
		case c := <-h.unregister:
			h.removeClient(c)
		}
	}
}

func (h *Hub) shutdown() {
	close(h.done)
	clients := h.registry.All()
	logger.Infof("ws hub shutting down, closing %d connections", len(clients))
	for _, c := range clients {
		c.Close()
	}
	for _, c := range clients {
		c.Wait()
	}
	logger.Info("ws hub stopped")
}

func (h *Hub) addClient(c *Client) {
	if h.maxConns > 0 && h.registry.Count() >= h.maxConns {
		if _, online := h.registry.Lookup(c.userID); !online {
			logger.Errorf("ws connection limit reached (%d), rejecting user=%s", h.maxConns, c.userID)
			c.Close()
			return
		}
		// The user already holds a slot; a reconnect replaces it.
	}
	if prev := h.registry.Register(c); prev != nil {
		// Last connect wins. The displaced connection is detached from its
		// rooms and closed; its unregister is a stale no-op.
		logger.Infof("ws replacing connection user=%s", c.userID)
		h.rooms.LeaveAll(prev)
		prev.Close()
	}
	logger.Infof("ws client connected user=%s total=%d", c.userID, h.registry.Count())
}

func (h *Hub) removeClient(c *Client) {
	h.rooms.LeaveAll(c)
	h.registry.Unregister(c)
	c.Close()
	logger.Infof("ws client disconnected user=%s total=%d", c.userID, h.registry.Count())
}

// Register hands a new connection to the Run loop.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		c.Close()
	}
}

// Unregister hands a disconnecting connection to the Run loop. Called from
// the client's own read pump on exit.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// HandleEvent dispatches one incoming socket event. Errors go back to the
// sending connection as an error event, never to the room.
func (h *Hub) HandleEvent(ctx context.Context, c *Client, evt IncomingEvent) {
	ctx, cancel := context.WithTimeout(ctx, handleTimeout)
	defer cancel()

	switch evt.Type {
	case EventJoinProjectChat:
		// Membership gate before any room state changes.
		if err := h.chat.Authorize(ctx, evt.ProjectID, c.userID); err != nil {
			h.sendError(c, err)
			return
		}
		h.rooms.Join(c, evt.ProjectID)

	case EventLeaveProjectChat:
		h.rooms.Leave(c, evt.ProjectID)

	case EventSendMessage:
		if _, err := h.chat.SendMessage(ctx, c.userID, evt.ProjectID, evt.Content); err != nil {
			h.sendError(c, err)
		}

	case EventTyping:
		// Stateless relay: nothing stored, nothing scheduled. Only clients
		// that joined the room may emit, and the sender never echoes back.
		if !h.rooms.Contains(c, evt.ProjectID) {
			h.sendError(c, apperr.Forbidden("join the project chat first"))
			return
		}
		payload := TypingPayload{ProjectID: evt.ProjectID, UserID: c.userID, IsTyping: evt.IsTyping}
		h.rooms.Broadcast(evt.ProjectID, OutgoingEvent{Type: EventUserTyping, Payload: payload}, c.userID)

	case EventMarkMessagesRead:
		if err := h.chat.MarkMessagesRead(ctx, c.userID, evt.ProjectID); err != nil {
			h.sendError(c, err)
		}

	default:
		h.sendError(c, apperr.Validation("unknown event type"))
	}
}

func (h *Hub) sendError(c *Client, err error) {
	logger.Errorf("ws event error user=%s: %v", c.userID, err)
	c.enqueue(OutgoingEvent{Type: EventError, Payload: ErrorPayload{Message: apperr.Message(err)}})
}
