// Package chat: серверные контроллеры чата пользователя: список сессий в рамках
// (проект, режим) и оркестрация отправки сообщения с вызовом сервиса ответов.
package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/workspace/internal/completion"
	"github.com/workspace/internal/model"
)

var (
	ErrBlankMessage   = errors.New("message is blank")
	ErrSendInProgress = errors.New("a message is already being sent")
)

// SessionStore: хранилище сессий. Реализации: repository.ChatSessionRepository, memory.ChatSessions.
type SessionStore interface {
	Create(ctx context.Context, s *model.ChatSession) error
	GetByID(ctx context.Context, id string) (*model.ChatSession, error)
	List(ctx context.Context, userID, projectID string, mode model.ChatMode) ([]model.ChatSession, error)
	Rename(ctx context.Context, id, title string, at time.Time) error
	Touch(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
}

// MessageStore: хранилище сообщений (только добавление и чтение).
type MessageStore interface {
	Create(ctx context.Context, m *model.ChatMessage) error
	ListBySession(ctx context.Context, sessionID string) ([]model.ChatMessage, error)
}

// Completer: сервис ответов; ошибки возвращаются внутри Result.
type Completer interface {
	ProjectChat(ctx context.Context, participantID, projectID, message string, history []model.HistoryItem) completion.Result
	UniversalChat(ctx context.Context, projectID, message string, history []model.HistoryItem) completion.Result
}

// ParticipantResolver находит участника по email, если в AuthState нет participant_id.
type ParticipantResolver interface {
	FindByEmail(ctx context.Context, email string) (*model.Participant, error)
}

type Deps struct {
	Sessions     SessionStore
	Messages     MessageStore
	Completer    Completer
	Participants ParticipantResolver
}

// View: снимок состояния контроллера для клиента.
type View struct {
	ProjectID       string              `json:"project_id,omitempty"`
	Mode            model.ChatMode      `json:"mode"`
	Sessions        []model.ChatSession `json:"sessions"`
	ActiveSessionID string              `json:"active_session_id,omitempty"`
	Messages        []model.ChatMessage `json:"messages"`
	IsSending       bool                `json:"is_sending"`
	NewChat         bool                `json:"new_chat"`
	Error           string              `json:"error,omitempty"`
}

// clock выдаёт строго возрастающие отметки времени с точностью до микросекунды
// (точность timestamptz), даже если системные часы стоят или идут назад.
type clock struct {
	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now().UTC().Truncate(time.Microsecond)
	if !t.After(c.last) {
		t = c.last.Add(time.Microsecond)
	}
	c.last = t
	return t
}
