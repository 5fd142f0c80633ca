package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/workspace/internal/model"
	"github.com/workspace/internal/repository"
)

// Participants: справочник участников в памяти.
type Participants struct {
	mu   sync.RWMutex
	list []model.Participant
}

func NewParticipants(list ...model.Participant) *Participants {
	return &Participants{list: append([]model.Participant{}, list...)}
}

func (r *Participants) Upsert(ctx context.Context, p *model.Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.list {
		if r.list[i].ID == p.ID {
			r.list[i] = *p
			return nil
		}
	}
	r.list = append(r.list, *p)
	return nil
}

func (r *Participants) List(ctx context.Context, department string) ([]model.Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Participant, 0, len(r.list))
	for _, p := range r.list {
		if department == "" || p.Department == department {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Department != out[j].Department {
			return out[i].Department < out[j].Department
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (r *Participants) FindByEmail(ctx context.Context, email string) (*model.Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.list {
		if strings.EqualFold(p.Email, email) {
			found := p
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

// Team: назначения участников на проекты в памяти.
type Team struct {
	mu      sync.RWMutex
	members []model.TeamMember
	dept    func(participantID string) string
}

// NewTeam создаёт хранилище; participants (может быть nil) даёт отдел участника.
func NewTeam(participants *Participants) *Team {
	t := &Team{}
	if participants != nil {
		t.dept = func(id string) string {
			participants.mu.RLock()
			defer participants.mu.RUnlock()
			for _, p := range participants.list {
				if p.ID == id {
					return p.Department
				}
			}
			return ""
		}
	}
	return t
}

func (r *Team) ListByProject(ctx context.Context, projectID string) ([]model.TeamMember, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.TeamMember, 0, 16)
	for _, m := range r.members {
		if m.ProjectID == projectID {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Role < out[j].Role })
	return out, nil
}

func (r *Team) ApplyAssignment(ctx context.Context, projectID string, role model.TeamRole, add, remove []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	drop := make(map[string]struct{}, len(remove))
	for _, id := range remove {
		drop[id] = struct{}{}
	}
	kept := r.members[:0]
	for _, m := range r.members {
		if _, ok := drop[m.ParticipantID]; ok && m.ProjectID == projectID && m.Role == role {
			continue
		}
		kept = append(kept, m)
	}
	r.members = kept
	now := time.Now().UTC()
	for _, id := range add {
		if r.hasLocked(projectID, id, role) {
			continue
		}
		m := model.TeamMember{ProjectID: projectID, ParticipantID: id, Role: role, AssignedAt: now}
		if r.dept != nil {
			m.Department = r.dept(id)
		}
		r.members = append(r.members, m)
	}
	return nil
}

func (r *Team) hasLocked(projectID, participantID string, role model.TeamRole) bool {
	for _, m := range r.members {
		if m.ProjectID == projectID && m.ParticipantID == participantID && m.Role == role {
			return true
		}
	}
	return false
}

// Users: учётные записи в памяти.
type Users struct {
	mu    sync.RWMutex
	users map[string]model.User
}

func NewUsers() *Users {
	return &Users{users: make(map[string]model.User)}
}

func (r *Users) Create(ctx context.Context, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.ID] = *u
	return nil
}

func (r *Users) GetByID(ctx context.Context, id string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r *Users) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			found := u
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *Users) SetPasswordHash(ctx context.Context, id, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = hash
	r.users[id] = u
	return nil
}
