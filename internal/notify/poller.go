package notify

import (
	"context"
	"sync"
	"time"

	"github.com/workspace/internal/events"
	"github.com/workspace/internal/logger"
	"github.com/workspace/internal/metrics"
	"github.com/workspace/internal/model"
	"github.com/workspace/internal/optimistic"
)

// Poller держит список задач одного пользователя. Жизненный цикл:
// NewPoller -> Start -> [MarkAsRead, MarkAllAsRead, OnChange] -> Close.
type Poller struct {
	userID        string
	participantID string
	opts          Options

	// refresh выполняется строго по одному
	refreshMu sync.Mutex

	mu        sync.Mutex
	tasks     []model.Task
	unread    int
	loaded    bool
	started   bool
	closed    bool
	listeners map[int]Listener
	nextID    int

	cancel context.CancelFunc
	sub    events.Subscription
	done   chan struct{}
	once   sync.Once
}

func NewPoller(userID, participantID string, opts Options) *Poller {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.StartTimeout <= 0 {
		opts.StartTimeout = DefaultStartTimeout
	}
	return &Poller{
		userID:        userID,
		participantID: participantID,
		opts:          opts,
		listeners:     make(map[int]Listener),
	}
}

func (p *Poller) ParticipantID() string { return p.participantID }

// Start выполняет начальную загрузку и подписывается на изменения задач участника.
// Обе операции ограничены StartTimeout; цикл дебаунса живёт до Close или отмены ctx.
// Без participant_id поллер ничего не делает. Повторный вызов: no-op.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.started || p.closed {
		closed := p.closed
		p.mu.Unlock()
		if closed {
			return ErrClosed
		}
		return nil
	}
	p.started = true
	p.mu.Unlock()

	if p.participantID == "" {
		return nil
	}

	startCtx, cancelStart := context.WithTimeout(ctx, p.opts.StartTimeout)
	defer cancelStart()
	p.refresh(startCtx)

	loopCtx, cancel := context.WithCancel(ctx)
	sub, err := p.opts.Events.Subscribe(startCtx, events.TaskTopic(p.participantID))
	if err != nil {
		cancel()
		return err
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		cancel()
		sub.Close()
		return ErrClosed
	}
	p.cancel = cancel
	p.sub = sub
	p.done = make(chan struct{})
	p.mu.Unlock()

	metrics.ActivePollers.Inc()
	go func() {
		defer close(p.done)
		defer metrics.ActivePollers.Dec()
		for range events.Debounce(loopCtx, sub.Events(), p.opts.Debounce) {
			p.refresh(loopCtx)
		}
	}()
	return nil
}

// Snapshot возвращает копию текущего состояния.
func (p *Poller) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

func (p *Poller) snapshotLocked() Snapshot {
	return Snapshot{Tasks: append([]model.Task{}, p.tasks...), Unread: p.unread, Loaded: p.loaded}
}

// OnChange регистрирует слушателя; возвращает функцию отписки.
func (p *Poller) OnChange(l Listener) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = l
	p.mu.Unlock()
	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

// Refresh перечитывает задачи вне очереди событий.
func (p *Poller) Refresh(ctx context.Context) { p.refresh(ctx) }

// refresh перечитывает список целиком. Ошибка загрузки логируется, состояние не меняется.
func (p *Poller) refresh(ctx context.Context) {
	if p.participantID == "" {
		return
	}
	p.refreshMu.Lock()
	defer p.refreshMu.Unlock()
	defer logger.DeferLogDuration("notify.refresh", time.Now())()

	tasks, err := p.opts.Tasks.ListByParticipant(ctx, p.participantID)
	if err != nil {
		logger.Errorf("notify.refresh participant=%s: %v", p.participantID, err)
		return
	}
	metrics.NotificationRefetches.Inc()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	prev, wasLoaded := p.unread, p.loaded
	p.tasks = tasks
	p.unread = model.UnreadCount(tasks)
	p.loaded = true
	snap := p.snapshotLocked()
	listeners := p.listenersLocked()
	p.mu.Unlock()

	// сигнал только после начальной загрузки и только если до этого было что-то непрочитанное
	if wasLoaded && prev > 0 && snap.Unread > prev && p.opts.Chimer != nil {
		metrics.Chimes.Inc()
		p.opts.Chimer.Chime(ctx, Chime{UserID: p.userID, ParticipantID: p.participantID, Previous: prev, Unread: snap.Unread})
	}
	for _, l := range listeners {
		l(snap)
	}
}

// MarkAsRead отмечает задачу прочитанной локально и затем в хранилище.
// Уже прочитанная задача не меняется и запрос не отправляется.
// При ошибке хранилища состояние восстанавливается перечиткой.
func (p *Poller) MarkAsRead(ctx context.Context, taskID string) error {
	now := time.Now().UTC()
	var notFound bool
	err := optimistic.Do(ctx,
		func() bool {
			p.mu.Lock()
			idx := -1
			for i := range p.tasks {
				if p.tasks[i].ID == taskID {
					idx = i
					break
				}
			}
			if idx < 0 {
				p.mu.Unlock()
				notFound = true
				return false
			}
			if p.tasks[idx].IsRead {
				p.mu.Unlock()
				return false
			}
			p.tasks[idx].IsRead = true
			p.tasks[idx].ReadAt = &now
			p.unread = model.UnreadCount(p.tasks)
			snap := p.snapshotLocked()
			listeners := p.listenersLocked()
			p.mu.Unlock()
			for _, l := range listeners {
				l(snap)
			}
			return true
		},
		func(ctx context.Context) error { return p.opts.Tasks.MarkRead(ctx, taskID, now) },
		p.refresh,
	)
	if notFound {
		return ErrTaskNotFound
	}
	if err != nil {
		logger.Errorf("notify.MarkAsRead task=%s: %v", taskID, err)
	}
	return err
}

// MarkAllAsRead отмечает прочитанными все задачи участника одним запросом.
func (p *Poller) MarkAllAsRead(ctx context.Context) error {
	if p.participantID == "" {
		return nil
	}
	now := time.Now().UTC()
	err := optimistic.Do(ctx,
		func() bool {
			p.mu.Lock()
			for i := range p.tasks {
				if !p.tasks[i].IsRead {
					p.tasks[i].IsRead = true
					p.tasks[i].ReadAt = &now
				}
			}
			p.unread = 0
			snap := p.snapshotLocked()
			listeners := p.listenersLocked()
			p.mu.Unlock()
			for _, l := range listeners {
				l(snap)
			}
			return true
		},
		func(ctx context.Context) error { return p.opts.Tasks.MarkAllRead(ctx, p.participantID, now) },
		p.refresh,
	)
	if err != nil {
		logger.Errorf("notify.MarkAllAsRead participant=%s: %v", p.participantID, err)
	}
	return err
}

// Close останавливает дебаунс и закрывает подписку. Безопасен для повторного вызова.
func (p *Poller) Close() error {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		cancel, sub, done := p.cancel, p.sub, p.done
		p.listeners = make(map[int]Listener)
		p.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		if sub != nil {
			if err := sub.Close(); err != nil {
				logger.Errorf("notify.Close participant=%s: %v", p.participantID, err)
			}
		}
		if done != nil {
			<-done
		}
	})
	return nil
}

func (p *Poller) listenersLocked() []Listener {
	out := make([]Listener, 0, len(p.listeners))
	for _, l := range p.listeners {
		out = append(out, l)
	}
	return out
}
