package push

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/workspace/internal/logger"
)

// SubscriptionStore: подписки пользователя. Реализации: storage/redis, storage/memory.
type SubscriptionStore interface {
	AddPushSubscription(ctx context.Context, userID string, sub PushSubscription) error
	RemovePushSubscription(ctx context.Context, userID, endpoint string) error
	ListPushSubscriptions(ctx context.Context, userID string) ([]PushSubscription, error)
}

// Sender отправляет Web Push напрямую (VAPID), без отдельного push-сервиса.
// Реализует те же Subscribe/Unsubscribe/Notify, что и Client.
type Sender struct {
	store SubscriptionStore
	vapid *webpush.Options
	http  *http.Client
}

func NewSender(store SubscriptionStore, keys *VAPIDKeys, subscriber string) *Sender {
	return &Sender{
		store: store,
		vapid: &webpush.Options{
			Subscriber:      subscriber,
			VAPIDPublicKey:  keys.PublicKey,
			VAPIDPrivateKey: keys.PrivateKey,
			TTL:             30,
		},
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *Sender) Subscribe(ctx context.Context, userID string, sub PushSubscription) error {
	if userID == "" || sub.Endpoint == "" || sub.Keys.P256dh == "" || sub.Keys.Auth == "" {
		return fmt.Errorf("push subscribe: user_id and subscription (endpoint, keys) required")
	}
	return s.store.AddPushSubscription(ctx, userID, sub)
}

func (s *Sender) Unsubscribe(ctx context.Context, userID, endpoint string) error {
	return s.store.RemovePushSubscription(ctx, userID, endpoint)
}

// Notify шлёт пуш на все подписки пользователя. Подписки, на которые сервис
// браузера ответил 404 или 410, удаляются.
func (s *Sender) Notify(ctx context.Context, userID, title, body string, data map[string]string) {
	subs, err := s.store.ListPushSubscriptions(ctx, userID)
	if err != nil {
		logger.Errorf("push notify user=%s: %v", userID, err)
		return
	}
	if len(subs) == 0 {
		return
	}
	payload, _ := json.Marshal(map[string]any{"title": title, "body": body, "data": data})
	opts := *s.vapid
	opts.HTTPClient = s.http
	for _, sub := range subs {
		resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys:     webpush.Keys{P256dh: sub.Keys.P256dh, Auth: sub.Keys.Auth},
		}, &opts)
		if err != nil {
			logger.Errorf("push send %s: %v", shortEndpoint(sub.Endpoint), err)
			continue
		}
		resp.Body.Close()
		if resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound {
			if err := s.store.RemovePushSubscription(ctx, userID, sub.Endpoint); err != nil {
				logger.Errorf("push drop %s: %v", shortEndpoint(sub.Endpoint), err)
			}
		}
	}
}

func shortEndpoint(e string) string {
	if len(e) > 50 {
		return e[:50]
	}
	return e
}
