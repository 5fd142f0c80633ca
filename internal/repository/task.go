package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/workspace/internal/logger"
	"github.com/workspace/internal/model"
)

type TaskRepository struct {
	pool *pgxpool.Pool
}

func NewTaskRepository(pool *pgxpool.Pool) *TaskRepository {
	return &TaskRepository{pool: pool}
}

// ListByParticipant возвращает задачи участника, новые первыми.
func (r *TaskRepository) ListByParticipant(ctx context.Context, participantID string) ([]model.Task, error) {
	defer logger.DeferLogDuration("task.ListByParticipant", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT id, assigned_to, COALESCE(project_id, ''), title, COALESCE(description, ''), status, priority,
		        is_read, read_at, created_at
		 FROM tasks
		 WHERE assigned_to = $1
		 ORDER BY created_at DESC`, participantID,
	)
	if err != nil {
		return nil, fmt.Errorf("taskRepo.ListByParticipant query: %w", err)
	}
	defer rows.Close()

	tasks := make([]model.Task, 0, 32)
	for rows.Next() {
		var t model.Task
		if err := rows.Scan(&t.ID, &t.AssignedTo, &t.ProjectID, &t.Title, &t.Description, &t.Status, &t.Priority,
			&t.IsRead, &t.ReadAt, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("taskRepo.ListByParticipant scan: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("taskRepo.ListByParticipant rows: %w", err)
	}
	return tasks, nil
}

// MarkRead отмечает задачу прочитанной. Повторный вызов не меняет read_at.
func (r *TaskRepository) MarkRead(ctx context.Context, taskID string, at time.Time) error {
	defer logger.DeferLogDuration("task.MarkRead", time.Now())()
	tag, err := r.pool.Exec(ctx,
		`UPDATE tasks SET is_read = true, read_at = COALESCE(read_at, $1) WHERE id = $2`, at, taskID)
	if err != nil {
		return fmt.Errorf("taskRepo.MarkRead: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *TaskRepository) MarkAllRead(ctx context.Context, participantID string, at time.Time) error {
	defer logger.DeferLogDuration("task.MarkAllRead", time.Now())()
	_, err := r.pool.Exec(ctx,
		`UPDATE tasks SET is_read = true, read_at = $1 WHERE assigned_to = $2 AND is_read = false`, at, participantID)
	if err != nil {
		return fmt.Errorf("taskRepo.MarkAllRead: %w", err)
	}
	return nil
}
