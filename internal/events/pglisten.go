package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/workspace/internal/logger"
)

// TaskChannel: канал pg_notify, в который пишет триггер tasks_notify.
const TaskChannel = "task_changes"

type taskNotification struct {
	ParticipantID string `json:"participant_id"`
	TaskID        string `json:"task_id"`
	Op            Op     `json:"op"`
}

// PGListener держит выделенное соединение с LISTEN и переправляет уведомления
// об изменении задач в брокер по топику участника.
type PGListener struct {
	pool   *pgxpool.Pool
	broker Broker
}

func NewPGListener(pool *pgxpool.Pool, broker Broker) *PGListener {
	return &PGListener{pool: pool, broker: broker}
}

// Run слушает до отмены ctx, переподключаясь с растущей паузой.
func (l *PGListener) Run(ctx context.Context) {
	backoff := time.Second
	for {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			return
		}
		logger.Errorf("pg listen %s: %v (retry in %v)", TaskChannel, err, backoff)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (l *PGListener) listen(ctx context.Context) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire: %w", err)
	}
	defer releaseListener(poolConn{conn})

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{TaskChannel}.Sanitize()); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	logger.Infof("pg listen: subscribed to %s", TaskChannel)
	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		ev, topic, err := parseTaskNotification(n.Payload)
		if err != nil {
			logger.Errorf("pg listen payload %q: %v", n.Payload, err)
			continue
		}
		if err := l.broker.Publish(ctx, topic, ev); err != nil {
			logger.Errorf("pg listen publish %s: %v", topic, err)
		}
	}
}

// listenConn: соединение пула, на котором выполнялся LISTEN.
type listenConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Release()
	Discard()
}

type poolConn struct{ *pgxpool.Conn }

// Discard забирает соединение из пула и закрывает его.
func (c poolConn) Discard() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Hijack().Close(ctx); err != nil {
		logger.Errorf("pg listen close: %v", err)
	}
}

// releaseListener снимает все подписки перед возвратом соединения в пул.
// Если UNLISTEN не прошёл, соединение закрывается.
func releaseListener(conn listenConn) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := conn.Exec(ctx, "UNLISTEN *"); err != nil {
		logger.Errorf("pg unlisten: %v", err)
		conn.Discard()
		return
	}
	conn.Release()
}

func parseTaskNotification(payload string) (Event, string, error) {
	var tn taskNotification
	if err := json.Unmarshal([]byte(payload), &tn); err != nil {
		return Event{}, "", err
	}
	if tn.ParticipantID == "" {
		return Event{}, "", fmt.Errorf("participant_id missing")
	}
	topic := TaskTopic(tn.ParticipantID)
	return Event{Topic: topic, Table: "tasks", Op: tn.Op, RowID: tn.TaskID, At: time.Now().UTC()}, topic, nil
}
