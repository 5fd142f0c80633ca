package events

import (
	"context"
	"sync"
)

const subBufferSize = 64

// MemoryBroker раздаёт события внутри процесса (режим -memory и тесты).
type MemoryBroker struct {
	mu   sync.RWMutex
	subs map[string]map[*memorySub]struct{}
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{subs: make(map[string]map[*memorySub]struct{})}
}

type memorySub struct {
	broker *MemoryBroker
	topic  string
	ch     chan Event
	once   sync.Once
}

func (s *memorySub) Events() <-chan Event { return s.ch }

func (s *memorySub) Close() error {
	s.once.Do(func() {
		s.broker.mu.Lock()
		if set, ok := s.broker.subs[s.topic]; ok {
			delete(set, s)
			if len(set) == 0 {
				delete(s.broker.subs, s.topic)
			}
		}
		close(s.ch)
		s.broker.mu.Unlock()
	})
	return nil
}

func (b *MemoryBroker) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	s := &memorySub{broker: b, topic: topic, ch: make(chan Event, subBufferSize)}
	b.mu.Lock()
	if _, ok := b.subs[topic]; !ok {
		b.subs[topic] = make(map[*memorySub]struct{})
	}
	b.subs[topic][s] = struct{}{}
	b.mu.Unlock()
	return s, nil
}

// Publish не блокируется: при переполненном буфере подписчика событие отбрасывается
// (потребители всё равно склеивают события и перечитывают данные целиком).
func (b *MemoryBroker) Publish(ctx context.Context, topic string, ev Event) error {
	ev.Topic = topic
	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subs[topic] {
		select {
		case s.ch <- ev:
		default:
		}
	}
	return nil
}

// Subscribers: число активных подписок на топик.
func (b *MemoryBroker) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}
