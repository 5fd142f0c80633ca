package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/workspace/internal/model"
)

// Сессия входа живёт 30 дней; не более 10 попыток входа за 10 минут на email.
const (
	SessionTTL           = 30 * 24 * 3600
	LoginRateLimitWindow = 600
	LoginRateLimitMax    = 10
	AppStateTTL          = 90 * 24 * 3600
)

type Client struct {
	cli *redis.Client
}

func New(ctx context.Context, url string) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis parse url: %w", err)
	}
	cli := redis.NewClient(opts)
	if err := cli.Ping(ctx).Err(); err != nil {
		if closeErr := cli.Close(); closeErr != nil {
			return nil, fmt.Errorf("redis ping: %w (close: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Client{cli: cli}, nil
}

// Redis отдаёт нижележащий клиент (Pub/Sub брокер событий использует то же соединение).
func (c *Client) Redis() *redis.Client { return c.cli }

func (c *Client) Close() error {
	return c.cli.Close()
}

func (c *Client) SetSession(ctx context.Context, token, userID string) error {
	return c.cli.Set(ctx, "session:"+token, userID, SessionTTL*time.Second).Err()
}

func (c *Client) GetSession(ctx context.Context, token string) (string, error) {
	val, err := c.cli.Get(ctx, "session:"+token).Result()
	if err == redis.Nil {
		return "", nil
	}
	return val, err
}

func (c *Client) DeleteSession(ctx context.Context, token string) error {
	return c.cli.Del(ctx, "session:"+token).Err()
}

// CheckLoginRateLimit считает попытки в login_limit:{email}. При превышении: HTTP 429.
func (c *Client) CheckLoginRateLimit(ctx context.Context, email string) (allowed bool, err error) {
	key := "login_limit:" + email
	n, err := c.cli.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if n == 1 {
		c.cli.Expire(ctx, key, LoginRateLimitWindow*time.Second)
	}
	return n <= int64(LoginRateLimitMax), nil
}

// LoadAppState читает appstate:{user_id}.
func (c *Client) LoadAppState(ctx context.Context, userID string) (*model.AppState, error) {
	raw, err := c.cli.Get(ctx, "appstate:"+userID).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var st model.AppState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("appstate decode: %w", err)
	}
	return &st, nil
}

func (c *Client) SaveAppState(ctx context.Context, userID string, st *model.AppState) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return c.cli.Set(ctx, "appstate:"+userID, raw, AppStateTTL*time.Second).Err()
}
