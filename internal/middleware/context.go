package middleware

import (
	"context"

	"github.com/workspace/internal/model"
)

type contextKey string

const (
	UserIDKey    contextKey = "user_id"
	SessionIDKey contextKey = "session_id"
	UserKey      contextKey = "user"
)

// GetUserID возвращает user_id из контекста (устанавливается SessionAuth).
func GetUserID(ctx context.Context) string {
	v, _ := ctx.Value(UserIDKey).(string)
	return v
}

// GetSessionID возвращает токен входа текущего запроса.
func GetSessionID(ctx context.Context) string {
	v, _ := ctx.Value(SessionIDKey).(string)
	return v
}

func GetUser(ctx context.Context) *model.User {
	v, _ := ctx.Value(UserKey).(*model.User)
	return v
}

// WithUser кладёт пользователя в контекст (тесты обработчиков).
func WithUser(ctx context.Context, u *model.User) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, u.ID)
	return context.WithValue(ctx, UserKey, u)
}
