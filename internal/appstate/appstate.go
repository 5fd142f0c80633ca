// Package appstate: состояние пользователя между визитами: auth-часть и навигация
// по рабочему пространству. Загрузка и сохранение идут через storage.AppStateRepository;
// параметры URL перекрывают сохранённую навигацию.
package appstate

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/workspace/internal/logger"
	"github.com/workspace/internal/model"
	"github.com/workspace/internal/storage"
)

type Store struct {
	repo storage.AppStateRepository
}

func NewStore(repo storage.AppStateRepository) *Store {
	return &Store{repo: repo}
}

// Load возвращает состояние пользователя. Auth-часть другой версии схемы или другого
// пользователя отбрасывается; auth всегда строится заново из записи пользователя.
func (s *Store) Load(ctx context.Context, user *model.User) (model.AppState, error) {
	fresh := model.AppState{Auth: model.AuthStateFor(user)}
	stored, err := s.repo.LoadAppState(ctx, user.ID)
	if err != nil {
		return fresh, fmt.Errorf("appstate.Load: %w", err)
	}
	if stored == nil {
		return fresh, nil
	}
	if stored.Auth.SchemaVersion != model.AuthSchemaVersion || stored.Auth.UserID != user.ID {
		logger.Infof("appstate: discarding stored auth state user=%s version=%d", user.ID, stored.Auth.SchemaVersion)
		if stored.Auth.UserID == user.ID || stored.Auth.UserID == "" {
			fresh.Workspace = stored.Workspace
		}
		return fresh, nil
	}
	if fresh.Auth.ParticipantID == "" {
		fresh.Auth.ParticipantID = stored.Auth.ParticipantID
	}
	fresh.Workspace = stored.Workspace
	return fresh, nil
}

// SaveAuth сохраняет auth-часть (после входа), навигация не меняется.
func (s *Store) SaveAuth(ctx context.Context, user *model.User, auth model.AuthState) error {
	st, err := s.Load(ctx, user)
	if err != nil {
		logger.Errorf("appstate.SaveAuth user=%s: %v", user.ID, err)
	}
	auth.SchemaVersion = model.AuthSchemaVersion
	st.Auth = auth
	if err := s.repo.SaveAppState(ctx, user.ID, &st); err != nil {
		return fmt.Errorf("appstate.SaveAuth: %w", err)
	}
	return nil
}

// SaveWorkspace сохраняет навигацию и возвращает итоговое состояние.
func (s *Store) SaveWorkspace(ctx context.Context, user *model.User, ws model.WorkspaceState) (model.AppState, error) {
	st, err := s.Load(ctx, user)
	if err != nil {
		logger.Errorf("appstate.SaveWorkspace user=%s: %v", user.ID, err)
	}
	st.Workspace = normalize(ws)
	if err := s.repo.SaveAppState(ctx, user.ID, &st); err != nil {
		return st, fmt.Errorf("appstate.SaveWorkspace: %w", err)
	}
	return st, nil
}

// ApplyQuery перекрывает навигацию параметрами project, deliverable, node, view.
// Смена проекта сбрасывает deliverable и node, если они не заданы в том же запросе.
func ApplyQuery(st model.AppState, q url.Values) model.AppState {
	ws := st.Workspace
	if q.Has("project") {
		project := strings.TrimSpace(q.Get("project"))
		if project != ws.ProjectID {
			ws.DeliverableID = ""
			ws.NodeID = ""
		}
		ws.ProjectID = project
	}
	if q.Has("deliverable") {
		ws.DeliverableID = strings.TrimSpace(q.Get("deliverable"))
	}
	if q.Has("node") {
		ws.NodeID = strings.TrimSpace(q.Get("node"))
	}
	if q.Has("view") {
		ws.ViewMode = strings.TrimSpace(q.Get("view"))
	}
	st.Workspace = normalize(ws)
	return st
}

// Без проекта нет ни deliverable, ни узла.
func normalize(ws model.WorkspaceState) model.WorkspaceState {
	if ws.ProjectID == "" {
		ws.DeliverableID = ""
		ws.NodeID = ""
	}
	return ws
}
