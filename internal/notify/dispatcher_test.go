package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/teamhub/internal/apperr"
	"github.com/teamhub/internal/model"
	"github.com/teamhub/internal/repository"
)

type fakeStore struct {
	byID map[string]*model.Notification
}

func newFakeStore() *fakeStore {
	return &fakeStore{byID: make(map[string]*model.Notification)}
}

func (f *fakeStore) Create(_ context.Context, n *model.Notification) error {
	cp := *n
	f.byID[n.ID] = &cp
	return nil
}

func (f *fakeStore) GetByID(_ context.Context, id string) (*model.Notification, error) {
	n, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *n
	return &cp, nil
}

func (f *fakeStore) ListByUser(_ context.Context, userID string, limit int) ([]model.Notification, error) {
	var out []model.Notification
	for _, n := range f.byID {
		if n.UserID == userID {
			out = append(out, *n)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) MarkRead(_ context.Context, id string, readAt time.Time) error {
	if n, ok := f.byID[id]; ok && !n.Read {
		n.Read = true
		n.ReadAt = &readAt
	}
	return nil
}

func (f *fakeStore) MarkAllRead(_ context.Context, userID string, readAt time.Time) (int64, error) {
	var flipped int64
	for _, n := range f.byID {
		if n.UserID == userID && !n.Read {
			n.Read = true
			n.ReadAt = &readAt
			flipped++
		}
	}
	return flipped, nil
}

type fakeLive struct {
	online    map[string]bool
	delivered []string
}

func (f *fakeLive) PushNotification(userID string, _ *model.Notification) bool {
	if !f.online[userID] {
		return false
	}
	f.delivered = append(f.delivered, userID)
	return true
}

type fakeWebPush struct{ pushed chan string }

func (f *fakeWebPush) Notify(_ context.Context, userID, _, _ string, _ map[string]string) {
	f.pushed <- userID
}

func newTestDispatcher() (*Dispatcher, *fakeStore, *fakeLive, *fakeWebPush) {
	store := newFakeStore()
	live := &fakeLive{online: map[string]bool{}}
	web := &fakeWebPush{pushed: make(chan string, 8)}
	return NewDispatcher(store, live, web), store, live, web
}

func TestNotifyPersistsAndDeliversLive(t *testing.T) {
	d, store, live, web := newTestDispatcher()
	live.online["alice"] = true

	n, err := d.Notify(context.Background(), "alice", "you were invited", nil, model.NotificationInvitation)
	require.NoError(t, err)
	require.NotEmpty(t, n.ID)
	require.False(t, n.Read)
	require.Contains(t, store.byID, n.ID)
	require.Equal(t, []string{"alice"}, live.delivered)

	select {
	case <-web.pushed:
		t.Fatal("web push must not fire for a live-delivered notification")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNotifyFallsBackToWebPush(t *testing.T) {
	d, store, _, web := newTestDispatcher()

	n, err := d.Notify(context.Background(), "bob", "file ready", nil, model.NotificationFileStatus)
	require.NoError(t, err)
	require.Contains(t, store.byID, n.ID, "persisted even though bob is offline")

	select {
	case uid := <-web.pushed:
		require.Equal(t, "bob", uid)
	case <-time.After(time.Second):
		t.Fatal("expected web push fallback for offline user")
	}
}

func TestNotifyRejectsUnknownType(t *testing.T) {
	d, store, _, _ := newTestDispatcher()

	_, err := d.Notify(context.Background(), "alice", "hi", nil, model.NotificationType("spam"))
	require.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	require.Empty(t, store.byID)
}

func TestNotifyRejectsBlankText(t *testing.T) {
	d, _, _, _ := newTestDispatcher()

	_, err := d.Notify(context.Background(), "alice", "  ", nil, model.NotificationInvitation)
	require.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestMarkReadIdempotent(t *testing.T) {
	d, store, _, _ := newTestDispatcher()

	n, err := d.Notify(context.Background(), "alice", "hello", nil, model.NotificationInvitation)
	require.NoError(t, err)

	require.NoError(t, d.MarkRead(context.Background(), n.ID, "alice"))
	first := store.byID[n.ID].ReadAt
	require.NotNil(t, first)

	require.NoError(t, d.MarkRead(context.Background(), n.ID, "alice"))
	require.Equal(t, first, store.byID[n.ID].ReadAt, "read_at keeps its first value")
}

func TestMarkReadOwnerOnly(t *testing.T) {
	d, _, _, _ := newTestDispatcher()

	n, err := d.Notify(context.Background(), "alice", "hello", nil, model.NotificationInvitation)
	require.NoError(t, err)

	err = d.MarkRead(context.Background(), n.ID, "mallory")
	require.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
}

func TestMarkReadUnknownID(t *testing.T) {
	d, _, _, _ := newTestDispatcher()

	err := d.MarkRead(context.Background(), "missing", "alice")
	require.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestMarkAllReadReturnsCount(t *testing.T) {
	d, _, _, _ := newTestDispatcher()

	for i := 0; i < 3; i++ {
		_, err := d.Notify(context.Background(), "alice", "n", nil, model.NotificationRoleChange)
		require.NoError(t, err)
	}
	_, err := d.Notify(context.Background(), "bob", "other user", nil, model.NotificationRoleChange)
	require.NoError(t, err)

	n, err := d.MarkAllRead(context.Background(), "alice")
	require.NoError(t, err)
	require.EqualValues(t, 3, n)

	n, err = d.MarkAllRead(context.Background(), "alice")
	require.NoError(t, err)
	require.EqualValues(t, 0, n)
}
