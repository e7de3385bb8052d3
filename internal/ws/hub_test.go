package ws

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/teamhub/internal/apperr"
	"github.com/teamhub/internal/model"
)

type fakeChat struct {
	members map[string]map[string]bool // project -> user -> is member
	sent    []string
	read    []string
}

func newFakeChat() *fakeChat {
	return &fakeChat{members: map[string]map[string]bool{
		"p1": {"alice": true, "bob": true},
	}}
}

func (f *fakeChat) Authorize(_ context.Context, projectID, userID string) error {
	m, ok := f.members[projectID]
	if !ok {
		return apperr.NotFound("project not found")
	}
	if !m[userID] {
		return apperr.Forbidden("not a project member")
	}
	return nil
}

func (f *fakeChat) SendMessage(_ context.Context, senderID, projectID, content string) (*model.Message, error) {
	if err := f.Authorize(context.Background(), projectID, senderID); err != nil {
		return nil, err
	}
	f.sent = append(f.sent, content)
	return &model.Message{ID: "m1", ProjectID: projectID, SenderID: senderID, Content: content}, nil
}

func (f *fakeChat) MarkMessagesRead(_ context.Context, userID, projectID string) error {
	if err := f.Authorize(context.Background(), projectID, userID); err != nil {
		return err
	}
	f.read = append(f.read, userID+"/"+projectID)
	return nil
}

func newTestHub() (*Hub, *fakeChat, *Rooms) {
	rooms := NewRooms()
	chat := newFakeChat()
	return NewHub(NewRegistry(), rooms, chat, 0), chat, rooms
}

func TestHandleEventJoinRequiresMembership(t *testing.T) {
	h, _, rooms := newTestHub()
	c := NewClient(h, nil, "mallory")

	h.HandleEvent(context.Background(), c, IncomingEvent{Type: EventJoinProjectChat, ProjectID: "p1"})

	require.False(t, rooms.Contains(c, "p1"))
	require.Equal(t, EventError, recv(t, c).Type)
}

func TestHandleEventJoinAndLeave(t *testing.T) {
	h, _, rooms := newTestHub()
	c := NewClient(h, nil, "alice")

	h.HandleEvent(context.Background(), c, IncomingEvent{Type: EventJoinProjectChat, ProjectID: "p1"})
	require.True(t, rooms.Contains(c, "p1"))
	requireEmpty(t, c)

	h.HandleEvent(context.Background(), c, IncomingEvent{Type: EventLeaveProjectChat, ProjectID: "p1"})
	require.False(t, rooms.Contains(c, "p1"))
}

func TestHandleEventTypingRelay(t *testing.T) {
	h, _, _ := newTestHub()
	alice := NewClient(h, nil, "alice")
	bob := NewClient(h, nil, "bob")

	h.HandleEvent(context.Background(), alice, IncomingEvent{Type: EventJoinProjectChat, ProjectID: "p1"})
	h.HandleEvent(context.Background(), bob, IncomingEvent{Type: EventJoinProjectChat, ProjectID: "p1"})

	h.HandleEvent(context.Background(), alice, IncomingEvent{Type: EventTyping, ProjectID: "p1", IsTyping: true})

	// The sender never gets their own typing echo.
	requireEmpty(t, alice)
	evt := recv(t, bob)
	require.Equal(t, EventUserTyping, evt.Type)
	payload, ok := evt.Payload.(TypingPayload)
	require.True(t, ok)
	require.Equal(t, "alice", payload.UserID)
	require.True(t, payload.IsTyping)
}

func TestHandleEventTypingRequiresJoinedRoom(t *testing.T) {
	h, _, _ := newTestHub()
	alice := NewClient(h, nil, "alice")

	h.HandleEvent(context.Background(), alice, IncomingEvent{Type: EventTyping, ProjectID: "p1", IsTyping: true})
	require.Equal(t, EventError, recv(t, alice).Type)
}

func TestHandleEventSendMessage(t *testing.T) {
	h, chat, _ := newTestHub()
	alice := NewClient(h, nil, "alice")

	h.HandleEvent(context.Background(), alice, IncomingEvent{Type: EventSendMessage, ProjectID: "p1", Content: "hi"})
	require.Equal(t, []string{"hi"}, chat.sent)
	requireEmpty(t, alice)
}

func TestHandleEventSendMessageErrorGoesToSender(t *testing.T) {
	h, chat, _ := newTestHub()
	mallory := NewClient(h, nil, "mallory")

	h.HandleEvent(context.Background(), mallory, IncomingEvent{Type: EventSendMessage, ProjectID: "p1", Content: "hi"})
	require.Empty(t, chat.sent)
	evt := recv(t, mallory)
	require.Equal(t, EventError, evt.Type)
	payload, ok := evt.Payload.(ErrorPayload)
	require.True(t, ok)
	require.Equal(t, "not a project member", payload.Message)
}

func TestHandleEventMarkMessagesRead(t *testing.T) {
	h, chat, _ := newTestHub()
	bob := NewClient(h, nil, "bob")

	h.HandleEvent(context.Background(), bob, IncomingEvent{Type: EventMarkMessagesRead, ProjectID: "p1"})
	require.Equal(t, []string{"bob/p1"}, chat.read)
}

func TestHandleEventUnknownType(t *testing.T) {
	h, _, _ := newTestHub()
	c := NewClient(h, nil, "alice")

	h.HandleEvent(context.Background(), c, IncomingEvent{Type: "bogus"})
	require.Equal(t, EventError, recv(t, c).Type)
}
