package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/workspace/internal/logger"
	"github.com/workspace/internal/model"
)

// TeamRepository хранит назначения участников на проекты (team_members).
type TeamRepository struct {
	pool *pgxpool.Pool
}

func NewTeamRepository(pool *pgxpool.Pool) *TeamRepository {
	return &TeamRepository{pool: pool}
}

func (r *TeamRepository) ListByProject(ctx context.Context, projectID string) ([]model.TeamMember, error) {
	defer logger.DeferLogDuration("team.ListByProject", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT tm.project_id, tm.participant_id, tm.role, COALESCE(p.department, ''), tm.assigned_at
		 FROM team_members tm
		 LEFT JOIN participants p ON p.id = tm.participant_id
		 WHERE tm.project_id = $1
		 ORDER BY tm.role, tm.assigned_at`, projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("teamRepo.ListByProject query: %w", err)
	}
	defer rows.Close()

	members := make([]model.TeamMember, 0, 16)
	for rows.Next() {
		var m model.TeamMember
		if err := rows.Scan(&m.ProjectID, &m.ParticipantID, &m.Role, &m.Department, &m.AssignedAt); err != nil {
			return nil, fmt.Errorf("teamRepo.ListByProject scan: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("teamRepo.ListByProject rows: %w", err)
	}
	return members, nil
}

// ApplyAssignment в одной транзакции добавляет add и удаляет remove для роли role.
func (r *TeamRepository) ApplyAssignment(ctx context.Context, projectID string, role model.TeamRole, add, remove []string) error {
	defer logger.DeferLogDuration("team.ApplyAssignment", time.Now())()
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("teamRepo.ApplyAssignment begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if len(remove) > 0 {
		if _, err := tx.Exec(ctx,
			`DELETE FROM team_members WHERE project_id = $1 AND role = $2 AND participant_id = ANY($3)`,
			projectID, role, remove,
		); err != nil {
			return fmt.Errorf("teamRepo.ApplyAssignment delete: %w", err)
		}
	}
	if len(add) > 0 {
		now := time.Now().UTC()
		batch := &pgx.Batch{}
		for _, id := range add {
			batch.Queue(
				`INSERT INTO team_members (project_id, participant_id, role, assigned_at)
				 VALUES ($1, $2, $3, $4) ON CONFLICT DO NOTHING`,
				projectID, id, role, now,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("teamRepo.ApplyAssignment insert: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("teamRepo.ApplyAssignment commit: %w", err)
	}
	return nil
}
