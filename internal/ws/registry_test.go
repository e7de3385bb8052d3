package ws

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistryLastConnectWins(t *testing.T) {
	r := NewRegistry()
	first := NewClient(nil, nil, "alice")
	second := NewClient(nil, nil, "alice")

	require.Nil(t, r.Register(first))
	displaced := r.Register(second)
	require.Same(t, first, displaced)

	got, ok := r.Lookup("alice")
	require.True(t, ok)
	require.Same(t, second, got)
	require.Equal(t, 1, r.Count())
}

func TestRegistryStaleUnregisterKeepsReplacement(t *testing.T) {
	r := NewRegistry()
	first := NewClient(nil, nil, "alice")
	second := NewClient(nil, nil, "alice")

	r.Register(first)
	r.Register(second)

	// The displaced connection's own teardown must not evict the new one.
	r.Unregister(first)
	got, ok := r.Lookup("alice")
	require.True(t, ok)
	require.Same(t, second, got)

	r.Unregister(second)
	_, ok = r.Lookup("alice")
	require.False(t, ok)
}

func TestRegistryIsOnline(t *testing.T) {
	r := NewRegistry()
	require.False(t, r.IsOnline("bob"))

	c := NewClient(nil, nil, "bob")
	r.Register(c)
	require.True(t, r.IsOnline("bob"))

	r.Unregister(c)
	require.False(t, r.IsOnline("bob"))
}

func TestRegistryAll(t *testing.T) {
	r := NewRegistry()
	r.Register(NewClient(nil, nil, "a"))
	r.Register(NewClient(nil, nil, "b"))
	require.Len(t, r.All(), 2)
}
