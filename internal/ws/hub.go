package ws

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/workspace/internal/logger"
	"github.com/workspace/internal/notify"
)

// Hub держит WebSocket-соединения по пользователям. Каждое соединение подписано
// на поллер уведомлений своего пользователя; первый клиент запускает поллер,
// последний освобождает его.
type Hub struct {
	mu         sync.RWMutex
	clients    map[string]map[*Client]struct{}
	total      int
	maxConns   int
	pollers    *notify.Registry
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

func NewHub(maxConns int) *Hub {
	if maxConns <= 0 {
		maxConns = 10000
	}
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		maxConns:   maxConns,
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		done:       make(chan struct{}),
	}
}

// SetPollers задаёт реестр поллеров. Вызывается до Run: реестр сам получает Hub как Chimer.
func (h *Hub) SetPollers(r *notify.Registry) {
	h.pollers = r
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

func (h *Hub) shutdown() {
	// Collect all clients under the lock, do NOT perform I/O under mutex.
	h.mu.Lock()
	allClients := make([]*Client, 0, h.total)
	for _, clients := range h.clients {
		for c := range clients {
			allClients = append(allClients, c)
		}
	}
	h.clients = make(map[string]map[*Client]struct{})
	h.total = 0
	h.mu.Unlock()

	for _, c := range allClients {
		c.detach()
		c.Close()
	}
	for _, c := range allClients {
		c.Wait()
	}
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	if h.total >= h.maxConns {
		h.mu.Unlock()
		logger.Errorf("ws connection limit reached (%d), rejecting user=%s", h.maxConns, c.userID)
		c.Close()
		return
	}
	if _, ok := h.clients[c.userID]; !ok {
		h.clients[c.userID] = make(map[*Client]struct{})
	}
	h.clients[c.userID][c] = struct{}{}
	h.total++
	h.mu.Unlock()

	if h.pollers == nil {
		return
	}
	// Acquire ходит в БД и брокер, поэтому выполняется вне Run.
	go h.attachPoller(c)
}

func (h *Hub) attachPoller(c *Client) {
	p, release, err := h.pollers.Acquire(c.userID, c.participantID)
	if err != nil {
		logger.Errorf("ws acquire poller user=%s: %v", c.userID, err)
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: ErrorPayload{Message: "notifications unavailable"}})
		return
	}
	unsubscribe := p.OnChange(func(s notify.Snapshot) {
		h.sendToClient(c, OutgoingMessage{Type: EventNotifications, Payload: s})
	})
	if !c.attach(p, unsubscribe, release) {
		// клиент отключился, пока поллер запускался
		unsubscribe()
		release()
		return
	}
	h.sendToClient(c, OutgoingMessage{Type: EventNotifications, Payload: p.Snapshot()})
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	clients, ok := h.clients[c.userID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, exists := clients[c]; !exists {
		h.mu.Unlock()
		return
	}
	delete(clients, c)
	h.total--
	if len(clients) == 0 {
		delete(h.clients, c.userID)
	}
	h.mu.Unlock()

	c.detach()
	c.Close()
}

// HandleMessage dispatches incoming WebSocket messages.
func (h *Hub) HandleMessage(ctx context.Context, c *Client, msg IncomingMessage) {
	p := c.currentPoller()
	if p == nil {
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: ErrorPayload{Event: msg.Type, Message: "notifications not ready"}})
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	switch msg.Type {
	case EventMarkRead:
		if msg.TaskID == "" {
			h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: ErrorPayload{Event: msg.Type, Message: "task_id required"}})
			return
		}
		if err := p.MarkAsRead(ctx, msg.TaskID); err != nil {
			text := "failed to mark as read"
			if errors.Is(err, notify.ErrTaskNotFound) {
				text = "task not found"
			}
			h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: ErrorPayload{Event: msg.Type, Message: text}})
		}
	case EventMarkAllRead:
		if err := p.MarkAllAsRead(ctx); err != nil {
			h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: ErrorPayload{Event: msg.Type, Message: "failed to mark all as read"}})
		}
	case EventRefresh:
		p.Refresh(ctx)
	default:
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: ErrorPayload{Event: msg.Type, Message: "unknown event type"}})
	}
}

// Chime отправляет сигнал всем соединениям пользователя (notify.Chimer).
func (h *Hub) Chime(ctx context.Context, ch notify.Chime) {
	h.sendToUser(ch.UserID, OutgoingMessage{Type: EventChime, Payload: ChimePayload{Previous: ch.Previous, Unread: ch.Unread}})
}

// Connections: число соединений пользователя.
func (h *Hub) Connections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

func (h *Hub) sendToUser(userID string, msg OutgoingMessage) {
	h.mu.RLock()
	clients, ok := h.clients[userID]
	if !ok {
		h.mu.RUnlock()
		return
	}
	targets := make([]*Client, 0, len(clients))
	for c := range clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.sendToClient(c, msg)
	}
}

func (h *Hub) sendToClient(c *Client, msg OutgoingMessage) {
	select {
	case c.send <- msg:
	case <-c.done:
	default:
		// Backpressure: send buffer full, close slow client.
		logger.Errorf("ws send buffer full, closing slow client user=%s", c.userID)
		c.Close()
	}
}

func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		c.Close()
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}
