package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/workspace/internal/logger"
	"github.com/workspace/internal/model"
)

// AppStateRepository хранит AppState пользователя в JSONB (режим -dev без Redis).
type AppStateRepository struct {
	pool *pgxpool.Pool
}

func NewAppStateRepository(pool *pgxpool.Pool) *AppStateRepository {
	return &AppStateRepository{pool: pool}
}

// Load возвращает nil без ошибки, если состояние ещё не сохранялось.
func (r *AppStateRepository) Load(ctx context.Context, userID string) (*model.AppState, error) {
	defer logger.DeferLogDuration("appStateRepo.Load", time.Now())()
	var raw []byte
	err := r.pool.QueryRow(ctx, `SELECT state FROM app_states WHERE user_id = $1`, userID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("appStateRepo.Load: %w", err)
	}
	var st model.AppState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("appStateRepo.Load decode: %w", err)
	}
	return &st, nil
}

func (r *AppStateRepository) Save(ctx context.Context, userID string, st *model.AppState) error {
	defer logger.DeferLogDuration("appStateRepo.Save", time.Now())()
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("appStateRepo.Save encode: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO app_states (user_id, state, updated_at) VALUES ($1, $2, NOW())
		 ON CONFLICT (user_id) DO UPDATE SET state = EXCLUDED.state, updated_at = NOW()`,
		userID, raw)
	if err != nil {
		return fmt.Errorf("appStateRepo.Save: %w", err)
	}
	return nil
}
