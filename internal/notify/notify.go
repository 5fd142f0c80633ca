// Package notify: опрос задач участника: начальная загрузка, подписка на изменения
// с дебаунсом и полной перечиткой, счётчик непрочитанных, сигнал при его росте
// и оптимистичная отметка прочтения.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/workspace/internal/events"
	"github.com/workspace/internal/model"
)

var (
	ErrTaskNotFound = errors.New("task not found")
	ErrClosed       = errors.New("poller is closed")
)

// DefaultDebounce: окно склейки событий изменения задач.
const DefaultDebounce = time.Second

// DefaultStartTimeout ограничивает начальную загрузку и подписку в Start.
const DefaultStartTimeout = 15 * time.Second

// TaskStore: источник задач. Реализации: repository.TaskRepository, memory.Tasks.
type TaskStore interface {
	ListByParticipant(ctx context.Context, participantID string) ([]model.Task, error)
	MarkRead(ctx context.Context, taskID string, at time.Time) error
	MarkAllRead(ctx context.Context, participantID string, at time.Time) error
}

// Subscriber выдаёт подписку на топик событий (events.Broker).
type Subscriber interface {
	Subscribe(ctx context.Context, topic string) (events.Subscription, error)
}

// Chime: рост числа непрочитанных после начальной загрузки.
type Chime struct {
	UserID        string `json:"user_id"`
	ParticipantID string `json:"participant_id"`
	Previous      int    `json:"previous"`
	Unread        int    `json:"unread"`
}

// Chimer доставляет сигнал о новых уведомлениях (WebSocket, push).
type Chimer interface {
	Chime(ctx context.Context, c Chime)
}

// Chimers рассылает сигнал нескольким получателям по очереди.
type Chimers []Chimer

func (cs Chimers) Chime(ctx context.Context, c Chime) {
	for _, ch := range cs {
		if ch != nil {
			ch.Chime(ctx, c)
		}
	}
}

// Snapshot: состояние после очередной загрузки или локального изменения.
type Snapshot struct {
	Tasks  []model.Task `json:"tasks"`
	Unread int          `json:"unread"`
	Loaded bool         `json:"loaded"`
}

// Listener получает снимок после каждой перечитки; вызывается без блокировок поллера.
type Listener func(Snapshot)

// Options: зависимости поллера. Нулевые Debounce и StartTimeout заменяются значениями по умолчанию.
type Options struct {
	Tasks        TaskStore
	Events       Subscriber
	Chimer       Chimer
	Debounce     time.Duration
	StartTimeout time.Duration
}
