// Package events описывает поток событий изменения строк (задачи участника и т.п.):
// подписка с каналом событий, брокеры и комбинатор Debounce для потребителей.
package events

import (
	"context"
	"time"
)

type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Event: изменение одной строки. Потребители не патчат состояние по событию,
// а перечитывают данные целиком.
type Event struct {
	Topic string    `json:"topic"`
	Table string    `json:"table"`
	Op    Op        `json:"op"`
	RowID string    `json:"row_id"`
	At    time.Time `json:"at"`
}

// Subscription: отменяемая подписка. Events закрывается после Close.
type Subscription interface {
	Events() <-chan Event
	Close() error
}

// Broker публикует и раздаёт события по топикам.
// Реализации: MemoryBroker (in-process), redis.Broker (Pub/Sub).
type Broker interface {
	Publish(ctx context.Context, topic string, ev Event) error
	Subscribe(ctx context.Context, topic string) (Subscription, error)
}

// TaskTopic: топик изменений задач, назначенных участнику.
func TaskTopic(participantID string) string {
	return "tasks:" + participantID
}
