package storage

import (
	"context"

	"github.com/workspace/internal/model"
)

// SessionStore: токены входа (token -> user_id с TTL) и ограничение попыток входа.
// Реализации: redis.Client, memory.Client, devstore.Client (-dev без Redis).
type SessionStore interface {
	SetSession(ctx context.Context, token, userID string) error
	// GetSession возвращает "" без ошибки, если токен неизвестен или истёк.
	GetSession(ctx context.Context, token string) (string, error)
	DeleteSession(ctx context.Context, token string) error
	CheckLoginRateLimit(ctx context.Context, email string) (allowed bool, err error)
	Close() error
}

// AppStateRepository: граница загрузки/сохранения AppState вместо хранилища браузера.
type AppStateRepository interface {
	// LoadAppState возвращает nil без ошибки, если состояние не сохранялось.
	LoadAppState(ctx context.Context, userID string) (*model.AppState, error)
	SaveAppState(ctx context.Context, userID string, st *model.AppState) error
}
