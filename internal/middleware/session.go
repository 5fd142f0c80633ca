package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/workspace/internal/logger"
	"github.com/workspace/internal/model"
	"github.com/workspace/internal/repository"
	"github.com/workspace/internal/storage"
)

// UserLookup: загрузка пользователя по id. Реализации: repository.UserRepository, memory.Users.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
}

// SessionToken достаёт токен входа: Authorization: Bearer, затем X-Session-Id,
// затем query token (браузерный WebSocket не умеет задавать заголовки).
func SessionToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	if v := r.Header.Get("X-Session-Id"); v != "" {
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

// SessionAuth проверяет токен по SessionStore и кладёт в контекст user_id, токен и пользователя.
func SessionAuth(store storage.SessionStore, users UserLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := SessionToken(r)
			if token == "" {
				writeUnauthorized(w)
				return
			}
			userID, err := store.GetSession(r.Context(), token)
			if err != nil {
				logger.Errorf("session middleware token=%s: %v", MaskToken(token), err)
				writeUnauthorized(w)
				return
			}
			if userID == "" {
				writeUnauthorized(w)
				return
			}
			user, err := users.GetByID(r.Context(), userID)
			if err != nil {
				if !errors.Is(err, repository.ErrNotFound) {
					logger.Errorf("session middleware user=%s: %v", userID, err)
				}
				writeUnauthorized(w)
				return
			}
			ctx := context.WithValue(r.Context(), UserIDKey, user.ID)
			ctx = context.WithValue(ctx, SessionIDKey, token)
			ctx = context.WithValue(ctx, UserKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminOnly пропускает только пользователей с доступом к администрированию.
func AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u := GetUser(r.Context())
		if u == nil || !u.IsAdmin() {
			writeForbidden(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeUnauthorized(w http.ResponseWriter) {
	http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
}

func writeForbidden(w http.ResponseWriter) {
	http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
}
