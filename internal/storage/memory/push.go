package memory

import (
	"context"

	"github.com/workspace/internal/model"
)

const maxPushSubsPerUser = 10

func (c *Client) AddPushSubscription(ctx context.Context, userID string, sub model.PushSubscription) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	list := c.push[userID]
	for i := range list {
		if list[i].Endpoint == sub.Endpoint {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	list = append(list, sub)
	if len(list) > maxPushSubsPerUser {
		list = list[len(list)-maxPushSubsPerUser:]
	}
	c.push[userID] = list
	return nil
}

func (c *Client) RemovePushSubscription(ctx context.Context, userID, endpoint string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.push[userID][:0]
	for _, s := range c.push[userID] {
		if s.Endpoint != endpoint {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		delete(c.push, userID)
		return nil
	}
	c.push[userID] = kept
	return nil
}

func (c *Client) ListPushSubscriptions(ctx context.Context, userID string) ([]model.PushSubscription, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]model.PushSubscription{}, c.push[userID]...), nil
}
