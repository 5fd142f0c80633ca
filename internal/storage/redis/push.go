package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/workspace/internal/model"
)

// Подписки пользователя: список push:subs:{user_id}, не более 10 последних.
const (
	pushKeyPrefix      = "push:subs:"
	maxPushSubsPerUser = 10
	pushSubTTL         = 30 * 24 * time.Hour
)

func (c *Client) AddPushSubscription(ctx context.Context, userID string, sub model.PushSubscription) error {
	if err := c.RemovePushSubscription(ctx, userID, sub.Endpoint); err != nil {
		return err
	}
	raw, err := json.Marshal(sub)
	if err != nil {
		return err
	}
	key := pushKeyPrefix + userID
	_, err = c.cli.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, raw)
		pipe.LTrim(ctx, key, -maxPushSubsPerUser, -1)
		pipe.Expire(ctx, key, pushSubTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("push subscribe: %w", err)
	}
	return nil
}

func (c *Client) RemovePushSubscription(ctx context.Context, userID, endpoint string) error {
	key := pushKeyPrefix + userID
	list, err := c.cli.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return fmt.Errorf("push unsubscribe: %w", err)
	}
	for _, item := range list {
		var sub model.PushSubscription
		if json.Unmarshal([]byte(item), &sub) == nil && sub.Endpoint == endpoint {
			if err := c.cli.LRem(ctx, key, 0, item).Err(); err != nil {
				return fmt.Errorf("push unsubscribe: %w", err)
			}
		}
	}
	return nil
}

func (c *Client) ListPushSubscriptions(ctx context.Context, userID string) ([]model.PushSubscription, error) {
	list, err := c.cli.LRange(ctx, pushKeyPrefix+userID, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("push list: %w", err)
	}
	out := make([]model.PushSubscription, 0, len(list))
	for _, item := range list {
		var sub model.PushSubscription
		if json.Unmarshal([]byte(item), &sub) == nil && sub.Endpoint != "" {
			out = append(out, sub)
		}
	}
	return out, nil
}
