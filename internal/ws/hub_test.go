package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workspace/internal/events"
	"github.com/workspace/internal/model"
	"github.com/workspace/internal/notify"
	"github.com/workspace/internal/storage/memory"
)

type wireMessage struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func readUntil(t *testing.T, conn *websocket.Conn, want EventType, match func(json.RawMessage) bool) json.RawMessage {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		var msg wireMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Type == want && (match == nil || match(msg.Payload)) {
			return msg.Payload
		}
	}
}

func unreadIs(n int) func(json.RawMessage) bool {
	return func(raw json.RawMessage) bool {
		var s notify.Snapshot
		return json.Unmarshal(raw, &s) == nil && s.Unread == n
	}
}

func TestHubStreamsNotificationsAndChimes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broker := events.NewMemoryBroker()
	tasks := memory.NewTasks(broker)
	tasks.Add(ctx, model.Task{ID: "t1", AssignedTo: "p-1", Title: "Review RFI", CreatedAt: time.Now()})

	hub := NewHub(10)
	pollers := notify.NewRegistry(ctx, notify.Options{Tasks: tasks, Events: broker, Chimer: hub, Debounce: 10 * time.Millisecond})
	hub.SetPollers(pollers)
	go hub.Run(ctx)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		cctx, ccancel := context.WithCancel(context.Background())
		client := NewClient(hub, conn, "u-1", "p-1")
		client.Start(cctx, ccancel)
		hub.Register(client)
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	readUntil(t, conn, EventNotifications, unreadIs(1))
	assert.Equal(t, 1, pollers.Len())

	tasks.Add(ctx, model.Task{ID: "t2", AssignedTo: "p-1", Title: "Approve drawing", CreatedAt: time.Now()})
	raw := readUntil(t, conn, EventChime, nil)
	var chime ChimePayload
	require.NoError(t, json.Unmarshal(raw, &chime))
	assert.Equal(t, ChimePayload{Previous: 1, Unread: 2}, chime)
	readUntil(t, conn, EventNotifications, unreadIs(2))

	require.NoError(t, conn.WriteJSON(IncomingMessage{Type: EventMarkRead, TaskID: "t1"}))
	readUntil(t, conn, EventNotifications, unreadIs(1))

	require.NoError(t, conn.WriteJSON(IncomingMessage{Type: EventMarkAllRead}))
	readUntil(t, conn, EventNotifications, unreadIs(0))

	require.NoError(t, conn.WriteJSON(IncomingMessage{Type: "bogus"}))
	readUntil(t, conn, EventError, nil)

	conn.Close()
	require.Eventually(t, func() bool { return pollers.Len() == 0 }, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, broker.Subscribers(events.TaskTopic("p-1")))
}

// slowTasks зависает на загрузке задач одного участника до отмены контекста.
type slowTasks struct {
	*memory.Tasks
	slow    string
	entered chan struct{}
	once    sync.Once
}

func (s *slowTasks) ListByParticipant(ctx context.Context, participantID string) ([]model.Task, error) {
	if participantID == s.slow {
		s.once.Do(func() { close(s.entered) })
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.Tasks.ListByParticipant(ctx, participantID)
}

func TestHubRegistersOthersWhileOneStartIsSlow(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broker := events.NewMemoryBroker()
	tasks := &slowTasks{Tasks: memory.NewTasks(broker), slow: "p-slow", entered: make(chan struct{})}
	tasks.Add(ctx, model.Task{ID: "t1", AssignedTo: "p-2", Title: "Check schedule", CreatedAt: time.Now()})

	hub := NewHub(10)
	pollers := notify.NewRegistry(ctx, notify.Options{
		Tasks: tasks, Events: broker, Chimer: hub,
		Debounce: 10 * time.Millisecond, StartTimeout: 300 * time.Millisecond,
	})
	hub.SetPollers(pollers)
	go hub.Run(ctx)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		cctx, ccancel := context.WithCancel(context.Background())
		client := NewClient(hub, conn, r.URL.Query().Get("user"), r.URL.Query().Get("participant"))
		client.Start(cctx, ccancel)
		hub.Register(client)
	}))
	defer srv.Close()
	base := "ws" + strings.TrimPrefix(srv.URL, "http")

	slow, _, err := websocket.DefaultDialer.Dial(base+"?user=u-slow&participant=p-slow", nil)
	require.NoError(t, err)
	defer slow.Close()
	select {
	case <-tasks.entered:
	case <-time.After(3 * time.Second):
		t.Fatal("slow poller never started")
	}

	fast, _, err := websocket.DefaultDialer.Dial(base+"?user=u-2&participant=p-2", nil)
	require.NoError(t, err)
	defer fast.Close()
	readUntil(t, fast, EventNotifications, unreadIs(1))
	assert.Equal(t, 1, hub.Connections("u-2"))

	// начальная загрузка прервана по таймауту, но подписка работает
	readUntil(t, slow, EventNotifications, nil)

	slow.Close()
	fast.Close()
	require.Eventually(t, func() bool { return pollers.Len() == 0 }, 3*time.Second, 10*time.Millisecond)
}
