package startup

import (
	"context"
	"time"

	"github.com/workspace/internal/logger"
	redisstorage "github.com/workspace/internal/storage/redis"
)

// ConnectRedisWithRetry подключается к Redis (токены, состояние, события задач).
func ConnectRedisWithRetry(redisURL string, maxWait time.Duration, logPrefix string) *redisstorage.Client {
	var client *redisstorage.Client
	retry(maxWait, logPrefix, "redis connect", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		c, err := redisstorage.New(ctx, redisURL)
		if err != nil {
			return err
		}
		client = c
		return nil
	})
	logger.Infof("%sredis connected", logPrefix)
	return client
}
