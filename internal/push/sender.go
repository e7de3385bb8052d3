// Package push delivers Web Push notifications to stored browser
// subscriptions. It is the offline branch of delivery: the live socket always
// wins, web push is best-effort and never load-bearing.
package push

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/teamhub/internal/logger"
	"github.com/teamhub/internal/model"
)

// SubscriptionStore is the part of the subscription repository the sender needs.
type SubscriptionStore interface {
	GetByUser(ctx context.Context, userID string) ([]model.PushSubscription, error)
	Delete(ctx context.Context, userID, endpoint string) error
}

type Sender struct {
	subs       SubscriptionStore
	publicKey  string
	privateKey string
	subscriber string
}

// NewSender creates a Web Push sender. Empty keys disable sending (Notify
// becomes a no-op), mirroring an unset push service.
func NewSender(publicKey, privateKey, subscriber string, subs SubscriptionStore) *Sender {
	if publicKey == "" || privateKey == "" {
		return &Sender{}
	}
	return &Sender{subs: subs, publicKey: publicKey, privateKey: privateKey, subscriber: subscriber}
}

// Enabled reports whether the sender has a usable key pair.
func (s *Sender) Enabled() bool { return s.privateKey != "" }

type payload struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// Notify sends a push to every subscription of the user. Failures are logged
// and dropped; HTTP 404/410 means the subscription is dead and gets removed.
func (s *Sender) Notify(ctx context.Context, userID, title, body string, data map[string]string) {
	if !s.Enabled() {
		return
	}
	subs, err := s.subs.GetByUser(ctx, userID)
	if err != nil {
		logger.Errorf("push: get subscriptions user=%s: %v", userID, err)
		return
	}
	if len(subs) == 0 {
		return
	}
	raw, err := json.Marshal(payload{Title: title, Body: body, Data: data})
	if err != nil {
		logger.Errorf("push: marshal payload: %v", err)
		return
	}
	for _, sub := range subs {
		target := &webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys:     webpush.Keys{P256dh: sub.P256dh, Auth: sub.Auth},
		}
		resp, err := webpush.SendNotificationWithContext(ctx, raw, target, &webpush.Options{
			Subscriber:      s.subscriber,
			VAPIDPublicKey:  s.publicKey,
			VAPIDPrivateKey: s.privateKey,
			TTL:             int((24 * time.Hour).Seconds()),
		})
		if err != nil {
			logger.Errorf("push: send user=%s: %v", userID, err)
			continue
		}
		if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
			if err := s.subs.Delete(ctx, sub.UserID, sub.Endpoint); err != nil {
				logger.Errorf("push: delete dead subscription user=%s: %v", userID, err)
			}
		}
		resp.Body.Close()
	}
}
