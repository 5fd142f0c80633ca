package push

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workspace/internal/storage/memory"
)

func browserSubscription(t *testing.T, endpoint string) PushSubscription {
	t.Helper()
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	auth := make([]byte, 16)
	_, err = rand.Read(auth)
	require.NoError(t, err)
	var sub PushSubscription
	sub.Endpoint = endpoint
	sub.Keys.P256dh = base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes())
	sub.Keys.Auth = base64.RawURLEncoding.EncodeToString(auth)
	return sub
}

func TestSenderDeliversAndDropsGoneSubscriptions(t *testing.T) {
	var mu sync.Mutex
	hits := map[string]int{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits[r.URL.Path]++
		mu.Unlock()
		assert.Contains(t, r.Header.Get("Authorization"), "vapid")
		if r.URL.Path == "/gone" {
			w.WriteHeader(http.StatusGone)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	priv, pub, err := webpush.GenerateVAPIDKeys()
	require.NoError(t, err)
	store := memory.New()
	s := NewSender(store, &VAPIDKeys{PublicKey: pub, PrivateKey: priv}, "ops@example.com")
	ctx := context.Background()

	require.NoError(t, s.Subscribe(ctx, "u-1", browserSubscription(t, srv.URL+"/live")))
	require.NoError(t, s.Subscribe(ctx, "u-1", browserSubscription(t, srv.URL+"/gone")))
	require.Error(t, s.Subscribe(ctx, "u-1", PushSubscription{Endpoint: srv.URL + "/bad"}))

	NewChimer(s).notifier.Notify(ctx, "u-1", "New notifications", "You have 2 unread notifications", map[string]string{"type": "chime"})

	mu.Lock()
	assert.Equal(t, 1, hits["/live"])
	assert.Equal(t, 1, hits["/gone"])
	mu.Unlock()

	subs, err := store.ListPushSubscriptions(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, srv.URL+"/live", subs[0].Endpoint)

	require.NoError(t, s.Unsubscribe(ctx, "u-1", srv.URL+"/live"))
	subs, _ = store.ListPushSubscriptions(ctx, "u-1")
	assert.Empty(t, subs)
}
