package devstore

import (
	"context"

	"github.com/workspace/internal/model"
	"github.com/workspace/internal/repository"
	"github.com/workspace/internal/storage/memory"
)

// Client для режима -dev без Redis: ограничение попыток входа в памяти,
// токены и состояние рабочего пространства в БД, чтобы переживать перезапуск.
type Client struct {
	mem      *memory.Client
	sessions *repository.AuthSessionRepository
	states   *repository.AppStateRepository
}

func New(sessions *repository.AuthSessionRepository, states *repository.AppStateRepository) *Client {
	return &Client{mem: memory.New(), sessions: sessions, states: states}
}

func (c *Client) Close() error { return c.mem.Close() }

func (c *Client) SetSession(ctx context.Context, token, userID string) error {
	return c.sessions.Set(ctx, token, userID, memory.SessionTTL)
}
func (c *Client) GetSession(ctx context.Context, token string) (string, error) {
	return c.sessions.Get(ctx, token)
}
func (c *Client) DeleteSession(ctx context.Context, token string) error {
	return c.sessions.Delete(ctx, token)
}
func (c *Client) CheckLoginRateLimit(ctx context.Context, email string) (bool, error) {
	return c.mem.CheckLoginRateLimit(ctx, email)
}

func (c *Client) LoadAppState(ctx context.Context, userID string) (*model.AppState, error) {
	return c.states.Load(ctx, userID)
}
func (c *Client) SaveAppState(ctx context.Context, userID string, st *model.AppState) error {
	return c.states.Save(ctx, userID, st)
}

func (c *Client) AddPushSubscription(ctx context.Context, userID string, sub model.PushSubscription) error {
	return c.mem.AddPushSubscription(ctx, userID, sub)
}
func (c *Client) RemovePushSubscription(ctx context.Context, userID, endpoint string) error {
	return c.mem.RemovePushSubscription(ctx, userID, endpoint)
}
func (c *Client) ListPushSubscriptions(ctx context.Context, userID string) ([]model.PushSubscription, error) {
	return c.mem.ListPushSubscriptions(ctx, userID)
}
