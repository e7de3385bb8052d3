package ws

import "sync"

// Registry is the process-wide mapping from user id to their live connection.
// Policy: one handle per user, last connect wins. An overwritten handle stays
// open but is unreachable through the registry; its own disconnect cleans it
// up without evicting the replacement.
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]*Client
}

func NewRegistry() *Registry {
	return &Registry{byUser: make(map[string]*Client)}
}

// Register maps the user to c, displacing any previous handle. Returns the
// displaced handle, or nil.
func (r *Registry) Register(c *Client) *Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.byUser[c.userID]
	r.byUser[c.userID] = c
	if prev == c {
		return nil
	}
	return prev
}

// Unregister removes the mapping for c's user, but only if c is still the
// registered handle. Idempotent; a stale overwritten handle is a no-op.
func (r *Registry) Unregister(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.byUser[c.userID] == c {
		delete(r.byUser, c.userID)
	}
}

// Lookup returns the live connection for userID, if any. Never blocks;
// absence is a normal condition, not an error.
func (r *Registry) Lookup(userID string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byUser[userID]
	return c, ok
}

// IsOnline reports whether the user has a live, addressable connection.
func (r *Registry) IsOnline(userID string) bool {
	_, ok := r.Lookup(userID)
	return ok
}

// Count returns the number of registered connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}

// All returns a snapshot of every registered connection.
func (r *Registry) All() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	clients := make([]*Client, 0, len(r.byUser))
	for _, c := range r.byUser {
		clients = append(clients, c)
	}
	return clients
}
