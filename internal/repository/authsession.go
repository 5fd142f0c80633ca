package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/workspace/internal/logger"
)

// AuthSessionRepository хранит токены входа в БД (режим -dev без Redis).
type AuthSessionRepository struct {
	pool *pgxpool.Pool
}

func NewAuthSessionRepository(pool *pgxpool.Pool) *AuthSessionRepository {
	return &AuthSessionRepository{pool: pool}
}

func (r *AuthSessionRepository) Set(ctx context.Context, token, userID string, ttl time.Duration) error {
	defer logger.DeferLogDuration("authSessionRepo.Set", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO auth_sessions (token, user_id, expires_at) VALUES ($1, $2, $3)
		 ON CONFLICT (token) DO UPDATE SET user_id = EXCLUDED.user_id, expires_at = EXCLUDED.expires_at`,
		token, userID, time.Now().Add(ttl))
	if err != nil {
		return fmt.Errorf("authSessionRepo.Set: %w", err)
	}
	return nil
}

// Get возвращает user_id по токену; "" если токена нет или он истёк.
func (r *AuthSessionRepository) Get(ctx context.Context, token string) (string, error) {
	defer logger.DeferLogDuration("authSessionRepo.Get", time.Now())()
	var userID string
	err := r.pool.QueryRow(ctx,
		`SELECT user_id FROM auth_sessions WHERE token = $1 AND expires_at > NOW()`, token).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("authSessionRepo.Get: %w", err)
	}
	return userID, nil
}

func (r *AuthSessionRepository) Delete(ctx context.Context, token string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM auth_sessions WHERE token = $1`, token); err != nil {
		return fmt.Errorf("authSessionRepo.Delete: %w", err)
	}
	return nil
}
