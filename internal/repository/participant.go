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

const participantCols = `id, name, email, department, COALESCE(discipline, ''), role`

// ParticipantRepository: справочник участников (только чтение).
type ParticipantRepository struct {
	pool *pgxpool.Pool
}

func NewParticipantRepository(pool *pgxpool.Pool) *ParticipantRepository {
	return &ParticipantRepository{pool: pool}
}

func scanParticipant(s interface{ Scan(dest ...any) error }, p *model.Participant) error {
	return s.Scan(&p.ID, &p.Name, &p.Email, &p.Department, &p.Discipline, &p.Role)
}

// List возвращает участников; department пустой: все отделы.
func (r *ParticipantRepository) List(ctx context.Context, department string) ([]model.Participant, error) {
	defer logger.DeferLogDuration("participant.List", time.Now())()
	query := `SELECT ` + participantCols + ` FROM participants`
	var args []any
	if department != "" {
		query += ` WHERE department = $1`
		args = append(args, department)
	}
	query += ` ORDER BY department, name`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("participantRepo.List query: %w", err)
	}
	defer rows.Close()

	list := make([]model.Participant, 0, 64)
	for rows.Next() {
		var p model.Participant
		if err := scanParticipant(rows, &p); err != nil {
			return nil, fmt.Errorf("participantRepo.List scan: %w", err)
		}
		list = append(list, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("participantRepo.List rows: %w", err)
	}
	return list, nil
}

// FindByEmail используется для разрешения participant_id пользователя.
func (r *ParticipantRepository) FindByEmail(ctx context.Context, email string) (*model.Participant, error) {
	defer logger.DeferLogDuration("participant.FindByEmail", time.Now())()
	p := &model.Participant{}
	row := r.pool.QueryRow(ctx, `SELECT `+participantCols+` FROM participants WHERE lower(email) = lower($1)`, email)
	if err := scanParticipant(row, p); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("participantRepo.FindByEmail: %w", err)
	}
	return p, nil
}

// Upsert добавляет или обновляет участника (начальное заполнение справочника).
func (r *ParticipantRepository) Upsert(ctx context.Context, p *model.Participant) error {
	defer logger.DeferLogDuration("participant.Upsert", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO participants (id, name, email, department, discipline, role)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, email = EXCLUDED.email,
		   department = EXCLUDED.department, discipline = EXCLUDED.discipline, role = EXCLUDED.role`,
		p.ID, p.Name, p.Email, p.Department, nullable(p.Discipline), p.Role,
	)
	if err != nil {
		return fmt.Errorf("participantRepo.Upsert: %w", err)
	}
	return nil
}
