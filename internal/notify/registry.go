package notify

import (
	"context"
	"sync"
)

type entry struct {
	poller *Poller
	refs   int
}

// Registry держит по одному поллеру на пользователя, пока есть хотя бы один потребитель
// (WebSocket-соединение или HTTP-запрос). Последний Release закрывает поллер.
type Registry struct {
	ctx  context.Context
	opts Options

	mu      sync.Mutex
	pollers map[string]*entry
}

// NewRegistry создаёт реестр; ctx ограничивает жизнь всех поллеров (обычно контекст сервера).
func NewRegistry(ctx context.Context, opts Options) *Registry {
	return &Registry{ctx: ctx, opts: opts, pollers: make(map[string]*entry)}
}

// Acquire возвращает запущенный поллер пользователя и функцию освобождения.
func (r *Registry) Acquire(userID, participantID string) (*Poller, func(), error) {
	r.mu.Lock()
	e, ok := r.pollers[userID]
	if ok && e.poller.ParticipantID() == participantID {
		e.refs++
		r.mu.Unlock()
		return e.poller, r.releaser(userID, e), nil
	}
	p := NewPoller(userID, participantID, r.opts)
	e = &entry{poller: p, refs: 1}
	r.pollers[userID] = e
	r.mu.Unlock()

	if err := p.Start(r.ctx); err != nil {
		r.mu.Lock()
		if r.pollers[userID] == e {
			delete(r.pollers, userID)
		}
		r.mu.Unlock()
		p.Close()
		return nil, nil, err
	}
	return p, r.releaser(userID, e), nil
}

func (r *Registry) releaser(userID string, e *entry) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			e.refs--
			last := e.refs <= 0
			if last && r.pollers[userID] == e {
				delete(r.pollers, userID)
			}
			r.mu.Unlock()
			if last {
				e.poller.Close()
			}
		})
	}
}

// Len: число активных поллеров.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pollers)
}

// CloseAll закрывает все поллеры (остановка сервера).
func (r *Registry) CloseAll() {
	r.mu.Lock()
	list := make([]*Poller, 0, len(r.pollers))
	for _, e := range r.pollers {
		list = append(list, e.poller)
	}
	r.pollers = make(map[string]*entry)
	r.mu.Unlock()
	for _, p := range list {
		p.Close()
	}
}
