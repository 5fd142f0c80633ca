// Package startup: подключение к зависимостям при старте с повторами и миграции.
package startup

import (
	"os"
	"time"

	"github.com/workspace/internal/logger"
)

const maxBackoff = 30 * time.Second

// retry вызывает connect, пока тот не вернёт nil или не истечёт maxWait.
// По истечении процесс завершается: без хранилища сервису нечего делать.
func retry(maxWait time.Duration, logPrefix, what string, connect func() error) {
	deadline := time.Now().Add(maxWait)
	backoff := 2 * time.Second
	for {
		err := connect()
		if err == nil {
			return
		}
		if time.Now().After(deadline) {
			logger.Errorf("%s%s (gave up after %v): %v", logPrefix, what, maxWait, err)
			os.Exit(1)
		}
		logger.Errorf("%s%s failed, retry in %v: %v", logPrefix, what, backoff, err)
		time.Sleep(backoff)
		if backoff < maxBackoff {
			backoff *= 2
		}
	}
}
