package memory

import (
	"context"
	"sync"
	"time"

	"github.com/workspace/internal/model"
)

const (
	SessionTTL           = 30 * 24 * time.Hour
	loginRateLimitWindow = 600 * time.Second
	loginRateLimitMax    = 10
)

type item struct {
	val string
	exp time.Time
}

// Client: SessionStore и AppStateRepository в памяти процесса (-memory, тесты).
type Client struct {
	mu       sync.RWMutex
	sessions map[string]item
	limit    map[string][]time.Time
	states   map[string]model.AppState
	push     map[string][]model.PushSubscription
}

func New() *Client {
	return &Client{
		sessions: make(map[string]item),
		limit:    make(map[string][]time.Time),
		states:   make(map[string]model.AppState),
		push:     make(map[string][]model.PushSubscription),
	}
}

func (c *Client) Close() error { return nil }

func (c *Client) SetSession(ctx context.Context, token, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[token] = item{val: userID, exp: time.Now().Add(SessionTTL)}
	return nil
}

func (c *Client) GetSession(ctx context.Context, token string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.sessions[token]
	if !ok || time.Now().After(v.exp) {
		return "", nil
	}
	return v.val, nil
}

func (c *Client) DeleteSession(ctx context.Context, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, token)
	return nil
}

func (c *Client) CheckLoginRateLimit(ctx context.Context, email string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	cut := now.Add(-loginRateLimitWindow)
	var kept []time.Time
	for _, t := range c.limit[email] {
		if t.After(cut) {
			kept = append(kept, t)
		}
	}
	if len(kept) >= loginRateLimitMax {
		c.limit[email] = kept
		return false, nil
	}
	c.limit[email] = append(kept, now)
	return true, nil
}

func (c *Client) LoadAppState(ctx context.Context, userID string) (*model.AppState, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st, ok := c.states[userID]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func (c *Client) SaveAppState(ctx context.Context, userID string, st *model.AppState) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.states[userID] = *st
	return nil
}
