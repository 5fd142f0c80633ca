package push

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workspace/internal/notify"
)

func TestChimerPostsNotify(t *testing.T) {
	got := make(chan NotifyRequest, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/notify", r.URL.Path)
		var req NotifyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		got <- req
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	NewChimer(NewClient(srv.URL)).Chime(context.Background(), notify.Chime{UserID: "u-1", Previous: 1, Unread: 3})

	select {
	case req := <-got:
		assert.Equal(t, "u-1", req.UserID)
		assert.Equal(t, "3", req.Data["unread"])
		assert.Contains(t, req.Body, "3 unread")
	case <-time.After(3 * time.Second):
		t.Fatal("push service was not called")
	}
}

func TestClientWithoutURLIsNoop(t *testing.T) {
	c := NewClient("")
	c.Notify(context.Background(), "u-1", "t", "b", nil)
	assert.NoError(t, c.Subscribe(context.Background(), "u-1", PushSubscription{}))
}
