package ws

import (
	"sync"

	"github.com/teamhub/internal/logger"
)

// Rooms groups connections into project-scoped broadcast rooms. Membership
// authorization happens before Join is ever called; this layer only routes.
type Rooms struct {
	mu     sync.RWMutex
	rooms  map[string]map[*Client]struct{}
	joined map[*Client]map[string]struct{}
}

func NewRooms() *Rooms {
	return &Rooms{
		rooms:  make(map[string]map[*Client]struct{}),
		joined: make(map[*Client]map[string]struct{}),
	}
}

// Join adds c to the project's room. Idempotent.
func (r *Rooms) Join(c *Client, projectID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[projectID]; !ok {
		r.rooms[projectID] = make(map[*Client]struct{})
	}
	r.rooms[projectID][c] = struct{}{}
	if _, ok := r.joined[c]; !ok {
		r.joined[c] = make(map[string]struct{})
	}
	r.joined[c][projectID] = struct{}{}
}

// Leave removes c from the project's room. Idempotent.
func (r *Rooms) Leave(c *Client, projectID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(c, projectID)
}

// LeaveAll removes c from every room it joined. Called on disconnect.
func (r *Rooms) LeaveAll(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for projectID := range r.joined[c] {
		r.leaveLocked(c, projectID)
	}
	delete(r.joined, c)
}

func (r *Rooms) leaveLocked(c *Client, projectID string) {
	if members, ok := r.rooms[projectID]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(r.rooms, projectID)
		}
	}
	if set, ok := r.joined[c]; ok {
		delete(set, projectID)
	}
}

// Contains reports whether c currently belongs to the project's room.
func (r *Rooms) Contains(c *Client, projectID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.joined[c][projectID]
	return ok
}

// MemberCount returns how many connections are in the project's room.
func (r *Rooms) MemberCount(projectID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[projectID])
}

// Broadcast delivers evt to every connection in the project's room, except
// the one belonging to excludeUserID when non-empty. Best-effort, at most
// once per currently-connected member: delivery happens outside the lock,
// each into that client's own outbound buffer, so one slow connection never
// stalls the others. A client whose buffer is full gets closed.
func (r *Rooms) Broadcast(projectID string, evt OutgoingEvent, excludeUserID string) {
	r.mu.RLock()
	members, ok := r.rooms[projectID]
	if !ok {
		r.mu.RUnlock()
		return
	}
	targets := make([]*Client, 0, len(members))
	for c := range members {
		if excludeUserID != "" && c.userID == excludeUserID {
			continue
		}
		targets = append(targets, c)
	}
	r.mu.RUnlock()

	for _, c := range targets {
		if !c.enqueue(evt) {
			// Backpressure: send buffer full, close the slow client. The
			// durable store remains the source of truth for what it missed.
			logger.Errorf("ws send buffer full, closing slow client user=%s", c.userID)
			c.Close()
		}
	}
}
