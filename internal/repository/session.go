package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/workspace/internal/logger"
	"github.com/workspace/internal/model"
)

const chatSessionCols = `id, user_id, COALESCE(project_id, ''), title, mode, created_at, updated_at`

// ChatSessionRepository хранит ветки разговоров (таблица chat_sessions).
type ChatSessionRepository struct {
	pool *pgxpool.Pool
}

func NewChatSessionRepository(pool *pgxpool.Pool) *ChatSessionRepository {
	return &ChatSessionRepository{pool: pool}
}

func scanChatSession(s interface{ Scan(dest ...any) error }, cs *model.ChatSession) error {
	return s.Scan(&cs.ID, &cs.UserID, &cs.ProjectID, &cs.Title, &cs.Mode, &cs.CreatedAt, &cs.UpdatedAt)
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (r *ChatSessionRepository) Create(ctx context.Context, s *model.ChatSession) error {
	defer logger.DeferLogDuration("chatSession.Create", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO chat_sessions (id, user_id, project_id, title, mode, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		s.ID, s.UserID, nullable(s.ProjectID), s.Title, s.Mode, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("chatSessionRepo.Create: %w", err)
	}
	return nil
}

func (r *ChatSessionRepository) GetByID(ctx context.Context, id string) (*model.ChatSession, error) {
	defer logger.DeferLogDuration("chatSession.GetByID", time.Now())()
	s := &model.ChatSession{}
	row := r.pool.QueryRow(ctx, `SELECT `+chatSessionCols+` FROM chat_sessions WHERE id = $1`, id)
	if err := scanChatSession(row, s); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("chatSessionRepo.GetByID: %w", err)
	}
	return s, nil
}

// List возвращает сессии пользователя в рамках (проект, режим), свежие первыми.
// Для global_chat проект не учитывается.
func (r *ChatSessionRepository) List(ctx context.Context, userID, projectID string, mode model.ChatMode) ([]model.ChatSession, error) {
	defer logger.DeferLogDuration("chatSession.List", time.Now())()
	query := `SELECT ` + chatSessionCols + ` FROM chat_sessions WHERE user_id = $1 AND mode = $2`
	args := []any{userID, mode}
	if mode == model.ModeProjectChat {
		query += ` AND project_id = $3`
		args = append(args, projectID)
	}
	query += ` ORDER BY updated_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("chatSessionRepo.List query: %w", err)
	}
	defer rows.Close()

	list := make([]model.ChatSession, 0, 16)
	for rows.Next() {
		var s model.ChatSession
		if err := scanChatSession(rows, &s); err != nil {
			return nil, fmt.Errorf("chatSessionRepo.List scan: %w", err)
		}
		list = append(list, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("chatSessionRepo.List rows: %w", err)
	}
	return list, nil
}

func (r *ChatSessionRepository) Rename(ctx context.Context, id, title string, at time.Time) error {
	defer logger.DeferLogDuration("chatSession.Rename", time.Now())()
	tag, err := r.pool.Exec(ctx, `UPDATE chat_sessions SET title = $1, updated_at = $2 WHERE id = $3`, title, at, id)
	if err != nil {
		return fmt.Errorf("chatSessionRepo.Rename: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Touch обновляет updated_at после нового сообщения (сессия поднимается в списке).
func (r *ChatSessionRepository) Touch(ctx context.Context, id string, at time.Time) error {
	defer logger.DeferLogDuration("chatSession.Touch", time.Now())()
	_, err := r.pool.Exec(ctx, `UPDATE chat_sessions SET updated_at = $1 WHERE id = $2`, at, id)
	if err != nil {
		return fmt.Errorf("chatSessionRepo.Touch: %w", err)
	}
	return nil
}

// Delete удаляет сессию; сообщения удаляются каскадно.
func (r *ChatSessionRepository) Delete(ctx context.Context, id string) error {
	defer logger.DeferLogDuration("chatSession.Delete", time.Now())()
	tag, err := r.pool.Exec(ctx, `DELETE FROM chat_sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("chatSessionRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
