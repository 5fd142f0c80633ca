package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/workspace/internal/events"
	"github.com/workspace/internal/logger"
)

const subBufferSize = 64

// Broker раздаёт события через Redis Pub/Sub: несколько экземпляров сервиса
// получают изменения задач от одного PGListener.
type Broker struct {
	cli *redis.Client
}

func NewBroker(cli *redis.Client) *Broker {
	return &Broker{cli: cli}
}

func (b *Broker) Publish(ctx context.Context, topic string, ev events.Event) error {
	ev.Topic = topic
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := b.cli.Publish(ctx, topic, data).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", topic, err)
	}
	return nil
}

// Subscribe дожидается подтверждения подписки от Redis, чтобы события,
// опубликованные после возврата, не терялись. ctx ограничивает только ожидание
// подтверждения; доставка продолжается до Close.
func (b *Broker) Subscribe(ctx context.Context, topic string) (events.Subscription, error) {
	ps := b.cli.Subscribe(ctx, topic)
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("redis subscribe %s: %w", topic, err)
	}
	s := &subscription{ps: ps, ch: make(chan events.Event, subBufferSize)}
	go s.pump()
	return s, nil
}

type subscription struct {
	ps   *redis.PubSub
	ch   chan events.Event
	once sync.Once
}

func (s *subscription) pump() {
	defer close(s.ch)
	for msg := range s.ps.Channel() {
		var ev events.Event
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			logger.Errorf("redis event %s: %v", msg.Channel, err)
			continue
		}
		select {
		case s.ch <- ev:
		default:
		}
	}
}

func (s *subscription) Events() <-chan events.Event { return s.ch }

// Close закрывает PubSub; канал событий закрывается, когда pump дочитает остаток.
func (s *subscription) Close() error {
	var err error
	s.once.Do(func() { err = s.ps.Close() })
	return err
}
