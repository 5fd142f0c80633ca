package admin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/workspace/internal/logger"
	"github.com/workspace/internal/model"
)

// ErrGateway: сервис проектов ответил ошибкой; текст в обёртке.
var ErrGateway = errors.New("project service error")

type ProjectGateway interface {
	CreateProject(ctx context.Context, in ProjectInput) (*model.Project, Result)
	GetProject(ctx context.Context, id string) (*model.Project, Result)
	UpdateProject(ctx context.Context, id string, in ProjectInput) (*model.Project, Result)
	UploadDocument(ctx context.Context, u Upload) (*Document, Result)
}

type TeamStore interface {
	ListByProject(ctx context.Context, projectID string) ([]model.TeamMember, error)
	ApplyAssignment(ctx context.Context, projectID string, role model.TeamRole, add, remove []string) error
}

type ParticipantLister interface {
	List(ctx context.Context, department string) ([]model.Participant, error)
}

type Options struct {
	Gateway      ProjectGateway
	Team         TeamStore
	Participants ParticipantLister
	// AssignDelay: через сколько после создания проекта бэкенд готов к назначению команды.
	AssignDelay   time.Duration
	MaxUploadSize int64
}

type Service struct {
	opts Options
	now  func() time.Time
}

func NewService(opts Options) *Service {
	return &Service{opts: opts, now: time.Now}
}

// Created: ответ на создание проекта.
type Created struct {
	Project               *model.Project `json:"project"`
	TeamAssignmentReadyAt time.Time      `json:"team_assignment_ready_at"`
}

// Assignment: применённые изменения состава.
type Assignment struct {
	Role    model.TeamRole `json:"role"`
	Added   []string       `json:"added"`
	Removed []string       `json:"removed"`
}

func gatewayErr(res Result) error {
	return fmt.Errorf("%w: %s", ErrGateway, res.Error)
}

func (s *Service) CreateProject(ctx context.Context, in ProjectInput, createdBy string) (*Created, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	p, res := s.opts.Gateway.CreateProject(ctx, in)
	if !res.Success {
		return nil, gatewayErr(res)
	}
	if p == nil {
		return nil, fmt.Errorf("%w: empty project in response", ErrGateway)
	}
	if p.CreatedBy == "" {
		p.CreatedBy = createdBy
	}
	logger.Infof("admin: project %s (%s) created by %s", p.ID, p.Code, createdBy)
	return &Created{Project: p, TeamAssignmentReadyAt: s.now().UTC().Add(s.opts.AssignDelay)}, nil
}

func (s *Service) GetProject(ctx context.Context, id string) (*model.Project, error) {
	p, res := s.opts.Gateway.GetProject(ctx, id)
	if !res.Success {
		return nil, gatewayErr(res)
	}
	return p, nil
}

func (s *Service) UpdateProject(ctx context.Context, id string, in ProjectInput) (*model.Project, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	p, res := s.opts.Gateway.UpdateProject(ctx, id, in)
	if !res.Success {
		return nil, gatewayErr(res)
	}
	return p, nil
}

func (s *Service) UploadDocument(ctx context.Context, u Upload) (*Document, error) {
	if err := ValidateUpload(&u, s.opts.MaxUploadSize); err != nil {
		return nil, err
	}
	doc, res := s.opts.Gateway.UploadDocument(ctx, u)
	if !res.Success {
		return nil, gatewayErr(res)
	}
	return doc, nil
}

func (s *Service) ListParticipants(ctx context.Context, department string) ([]model.Participant, error) {
	return s.opts.Participants.List(ctx, department)
}

func (s *Service) ListTeam(ctx context.Context, projectID string) ([]model.TeamMember, error) {
	return s.opts.Team.ListByProject(ctx, projectID)
}

// AssignTeam делает selected новым составом участников проекта.
func (s *Service) AssignTeam(ctx context.Context, projectID string, selected []string) (*Assignment, error) {
	return s.assign(ctx, projectID, model.TeamRoleMember, selected)
}

// AssignHODs делает selected новым списком руководителей отделов проекта.
func (s *Service) AssignHODs(ctx context.Context, projectID string, selected []string) (*Assignment, error) {
	return s.assign(ctx, projectID, model.TeamRoleHOD, selected)
}

func (s *Service) assign(ctx context.Context, projectID string, role model.TeamRole, selected []string) (*Assignment, error) {
	defer logger.DeferLogDuration("admin.assign", time.Now())()
	if projectID == "" {
		return nil, &ValidationError{Field: "project_id", Message: "project is required"}
	}
	members, err := s.opts.Team.ListByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("admin.assign list: %w", err)
	}
	current := make([]string, 0, len(members))
	for _, m := range members {
		if m.Role == role {
			current = append(current, m.ParticipantID)
		}
	}
	add, remove := Diff(current, selected)
	out := &Assignment{Role: role, Added: add, Removed: remove}
	if len(add) == 0 && len(remove) == 0 {
		return out, nil
	}
	if err := s.opts.Team.ApplyAssignment(ctx, projectID, role, add, remove); err != nil {
		return nil, fmt.Errorf("admin.assign apply: %w", err)
	}
	logger.Infof("admin: project %s %s +%d -%d", projectID, role, len(add), len(remove))
	return out, nil
}
