// Package notify is the notification dispatcher: it persists per-user
// notification records and pushes them live when the target has a connection.
// The store is the delivery guarantee; the push is a latency optimization.
package notify

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/teamhub/internal/apperr"
	"github.com/teamhub/internal/logger"
	"github.com/teamhub/internal/model"
	"github.com/teamhub/internal/repository"
)

// ListLimit caps how many notifications a poll returns.
const ListLimit = 50

// Store is the durable notification store.
type Store interface {
	Create(ctx context.Context, n *model.Notification) error
	GetByID(ctx context.Context, id string) (*model.Notification, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]model.Notification, error)
	MarkRead(ctx context.Context, id string, readAt time.Time) error
	MarkAllRead(ctx context.Context, userID string, readAt time.Time) (int64, error)
}

// LivePusher sends a notification straight to the user's connection, not to a
// room: notifications are per-user. Returns whether it was delivered.
type LivePusher interface {
	PushNotification(userID string, n *model.Notification) bool
}

// OfflinePusher is the web-push fallback for users without a live connection.
// May be nil.
type OfflinePusher interface {
	Notify(ctx context.Context, userID, title, body string, data map[string]string)
}

type Dispatcher struct {
	store   Store
	live    LivePusher
	offline OfflinePusher
}

func NewDispatcher(store Store, live LivePusher, offline OfflinePusher) *Dispatcher {
	return &Dispatcher{store: store, live: live, offline: offline}
}

// Notify persists a notification and attempts immediate delivery. A user
// without a live connection gets a best-effort web push; either way the row
// waits in the store for the next poll.
func (d *Dispatcher) Notify(ctx context.Context, userID, text string, projectID *string, typ model.NotificationType) (*model.Notification, error) {
	defer logger.DeferLogDuration("notify.Notify", time.Now())()

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperr.Validation("text must not be empty")
	}
	if !model.ValidNotificationType(typ) {
		return nil, apperr.Validation("unknown notification type")
	}

	n := &model.Notification{
		ID:        uuid.New().String(),
		UserID:    userID,
		Text:      text,
		ProjectID: projectID,
		Type:      typ,
		CreatedAt: time.Now().UTC(),
	}
	if err := d.store.Create(ctx, n); err != nil {
		return nil, apperr.Internal("failed to save notification", err)
	}

	delivered := d.live.PushNotification(userID, n)
	if !delivered && d.offline != nil {
		data := map[string]string{"notification_id": n.ID, "type": string(typ)}
		if projectID != nil {
			data["project_id"] = *projectID
		}
		go d.offline.Notify(context.Background(), userID, "TeamHub", text, data)
	}
	return n, nil
}

// List returns the user's notifications, newest first, capped at ListLimit.
func (d *Dispatcher) List(ctx context.Context, userID string) ([]model.Notification, error) {
	defer logger.DeferLogDuration("notify.List", time.Now())()
	notifs, err := d.store.ListByUser(ctx, userID, ListLimit)
	if err != nil {
		return nil, apperr.Internal("failed to list notifications", err)
	}
	return notifs, nil
}

// MarkRead flips one notification to read. Owner-only; idempotent (the second
// call changes nothing, read_at keeps its first value).
func (d *Dispatcher) MarkRead(ctx context.Context, id, requesterID string) error {
	defer logger.DeferLogDuration("notify.MarkRead", time.Now())()
	n, err := d.store.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound("notification not found")
	}
	if err != nil {
		return apperr.Internal("failed to get notification", err)
	}
	if n.UserID != requesterID {
		return apperr.Forbidden("not your notification")
	}
	if n.Read {
		return nil
	}
	if err := d.store.MarkRead(ctx, id, time.Now().UTC()); err != nil {
		return apperr.Internal("failed to mark notification read", err)
	}
	return nil
}

// MarkAllRead flips all the user's unread notifications; returns how many.
func (d *Dispatcher) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	defer logger.DeferLogDuration("notify.MarkAllRead", time.Now())()
	n, err := d.store.MarkAllRead(ctx, userID, time.Now().UTC())
	if err != nil {
		return 0, apperr.Internal("failed to mark notifications read", err)
	}
	return n, nil
}
