package ws

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// recv pops one queued event from the client's outbound buffer, or fails.
func recv(t *testing.T, c *Client) OutgoingEvent {
	t.Helper()
	select {
	case evt := <-c.send:
		return evt
	default:
		t.Fatal("no event queued")
		return OutgoingEvent{}
	}
}

func requireEmpty(t *testing.T, c *Client) {
	t.Helper()
	select {
	case evt := <-c.send:
		t.Fatalf("unexpected event %q queued", evt.Type)
	default:
	}
}

func TestRoomsJoinLeave(t *testing.T) {
	r := NewRooms()
	c := NewClient(nil, nil, "alice")

	r.Join(c, "p1")
	r.Join(c, "p1") // idempotent
	require.True(t, r.Contains(c, "p1"))
	require.Equal(t, 1, r.MemberCount("p1"))

	r.Leave(c, "p1")
	require.False(t, r.Contains(c, "p1"))
	require.Equal(t, 0, r.MemberCount("p1"))
	r.Leave(c, "p1") // idempotent
}

func TestRoomsLeaveAll(t *testing.T) {
	r := NewRooms()
	c := NewClient(nil, nil, "alice")

	r.Join(c, "p1")
	r.Join(c, "p2")
	r.LeaveAll(c)
	require.False(t, r.Contains(c, "p1"))
	require.False(t, r.Contains(c, "p2"))
}

func TestRoomsBroadcastReachesRoomOnly(t *testing.T) {
	r := NewRooms()
	inRoom := NewClient(nil, nil, "alice")
	alsoIn := NewClient(nil, nil, "bob")
	outside := NewClient(nil, nil, "carol")

	r.Join(inRoom, "p1")
	r.Join(alsoIn, "p1")
	r.Join(outside, "p2")

	r.Broadcast("p1", OutgoingEvent{Type: EventNewMessage}, "")

	require.Equal(t, EventNewMessage, recv(t, inRoom).Type)
	require.Equal(t, EventNewMessage, recv(t, alsoIn).Type)
	requireEmpty(t, outside)
}

func TestRoomsBroadcastExcludesUser(t *testing.T) {
	r := NewRooms()
	sender := NewClient(nil, nil, "alice")
	other := NewClient(nil, nil, "bob")

	r.Join(sender, "p1")
	r.Join(other, "p1")

	r.Broadcast("p1", OutgoingEvent{Type: EventUserTyping}, "alice")

	requireEmpty(t, sender)
	require.Equal(t, EventUserTyping, recv(t, other).Type)
}

func TestRoomsBroadcastClosesSlowClient(t *testing.T) {
	r := NewRooms()
	slow := NewClient(nil, nil, "alice")
	r.Join(slow, "p1")

	for i := 0; i < sendBufSize; i++ {
		require.True(t, slow.enqueue(OutgoingEvent{Type: EventNewMessage}))
	}

	r.Broadcast("p1", OutgoingEvent{Type: EventNewMessage}, "")

	select {
	case <-slow.done:
	default:
		t.Fatal("slow client should have been closed")
	}
}
