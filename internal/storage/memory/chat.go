package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/workspace/internal/model"
	"github.com/workspace/internal/repository"
)

// ChatSessions: сессии чата в памяти; повторяет семантику repository.ChatSessionRepository.
type ChatSessions struct {
	mu       sync.RWMutex
	sessions map[string]model.ChatSession
	messages *Messages
}

// NewChatSessions создаёт хранилище; messages (может быть nil) чистится каскадно при Delete.
func NewChatSessions(messages *Messages) *ChatSessions {
	return &ChatSessions{sessions: make(map[string]model.ChatSession), messages: messages}
}

func (r *ChatSessions) Create(ctx context.Context, s *model.ChatSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = *s
	return nil
}

func (r *ChatSessions) GetByID(ctx context.Context, id string) (*model.ChatSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &s, nil
}

func (r *ChatSessions) List(ctx context.Context, userID, projectID string, mode model.ChatMode) ([]model.ChatSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]model.ChatSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		if s.UserID != userID || s.Mode != mode {
			continue
		}
		if mode == model.ModeProjectChat && s.ProjectID != projectID {
			continue
		}
		list = append(list, s)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].UpdatedAt.After(list[j].UpdatedAt) })
	return list, nil
}

func (r *ChatSessions) Rename(ctx context.Context, id, title string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return repository.ErrNotFound
	}
	s.Title = title
	s.UpdatedAt = at
	r.sessions[id] = s
	return nil
}

func (r *ChatSessions) Touch(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		s.UpdatedAt = at
		r.sessions[id] = s
	}
	return nil
}

func (r *ChatSessions) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	if _, ok := r.sessions[id]; !ok {
		r.mu.Unlock()
		return repository.ErrNotFound
	}
	delete(r.sessions, id)
	r.mu.Unlock()
	if r.messages != nil {
		r.messages.deleteSession(id)
	}
	return nil
}

// Len: число сессий всех пользователей.
func (r *ChatSessions) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Messages: сообщения чата в памяти, только добавление.
type Messages struct {
	mu        sync.RWMutex
	bySession map[string][]model.ChatMessage
}

func NewMessages() *Messages {
	return &Messages{bySession: make(map[string][]model.ChatMessage)}
}

func (r *Messages) Create(ctx context.Context, m *model.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bySession[m.SessionID] = append(r.bySession[m.SessionID], *m)
	return nil
}

func (r *Messages) ListBySession(ctx context.Context, sessionID string) ([]model.ChatMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := append([]model.ChatMessage{}, r.bySession[sessionID]...)
	sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	return list, nil
}

func (r *Messages) deleteSession(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.bySession, sessionID)
}
