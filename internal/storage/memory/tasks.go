package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/workspace/internal/events"
	"github.com/workspace/internal/logger"
	"github.com/workspace/internal/model"
	"github.com/workspace/internal/repository"
)

// Tasks: задачи в памяти. Каждое изменение строки публикуется в broker по топику
// участника, как это делает триггер tasks_notify в БД.
type Tasks struct {
	mu     sync.RWMutex
	tasks  map[string]model.Task
	broker events.Broker
}

func NewTasks(broker events.Broker) *Tasks {
	return &Tasks{tasks: make(map[string]model.Task), broker: broker}
}

// Add вставляет или заменяет задачу (задачи создаёт внешняя система).
// При смене исполнителя событие получает и прежний участник.
func (r *Tasks) Add(ctx context.Context, t model.Task) {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	r.mu.Lock()
	prev, existed := r.tasks[t.ID]
	r.tasks[t.ID] = t
	r.mu.Unlock()
	op := events.OpInsert
	if existed {
		op = events.OpUpdate
	}
	r.publish(ctx, t, op)
	if existed && prev.AssignedTo != "" && prev.AssignedTo != t.AssignedTo {
		r.publish(ctx, prev, events.OpUpdate)
	}
}

func (r *Tasks) ListByParticipant(ctx context.Context, participantID string) ([]model.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]model.Task, 0, 16)
	for _, t := range r.tasks {
		if t.AssignedTo == participantID {
			list = append(list, t)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return list, nil
}

// MarkRead не меняет read_at у уже прочитанной задачи.
func (r *Tasks) MarkRead(ctx context.Context, taskID string, at time.Time) error {
	r.mu.Lock()
	t, ok := r.tasks[taskID]
	if !ok {
		r.mu.Unlock()
		return repository.ErrNotFound
	}
	if !t.IsRead {
		t.IsRead = true
		t.ReadAt = &at
		r.tasks[taskID] = t
	}
	r.mu.Unlock()
	r.publish(ctx, t, events.OpUpdate)
	return nil
}

func (r *Tasks) MarkAllRead(ctx context.Context, participantID string, at time.Time) error {
	r.mu.Lock()
	var changed []model.Task
	for id, t := range r.tasks {
		if t.AssignedTo != participantID || t.IsRead {
			continue
		}
		t.IsRead = true
		t.ReadAt = &at
		r.tasks[id] = t
		changed = append(changed, t)
	}
	r.mu.Unlock()
	for _, t := range changed {
		r.publish(ctx, t, events.OpUpdate)
	}
	return nil
}

func (r *Tasks) publish(ctx context.Context, t model.Task, op events.Op) {
	if r.broker == nil {
		return
	}
	ev := events.Event{Table: "tasks", Op: op, RowID: t.ID, At: time.Now().UTC()}
	if err := r.broker.Publish(ctx, events.TaskTopic(t.AssignedTo), ev); err != nil {
		logger.Errorf("memory.Tasks publish %s: %v", t.ID, err)
	}
}
