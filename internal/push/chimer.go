package push

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/workspace/internal/notify"
)

// Notifier: отправка пуша пользователю (push.Client).
type Notifier interface {
	Notify(ctx context.Context, userID, title, body string, data map[string]string)
}

// Chimer превращает рост непрочитанных в пуш-уведомление (notify.Chimer).
// Отправка идёт в отдельной горутине: поллер не ждёт push-сервис.
type Chimer struct {
	notifier Notifier
	timeout  time.Duration
}

func NewChimer(n Notifier) *Chimer {
	return &Chimer{notifier: n, timeout: 10 * time.Second}
}

func (c *Chimer) Chime(_ context.Context, ch notify.Chime) {
	if c == nil || c.notifier == nil || ch.UserID == "" {
		return
	}
	body := fmt.Sprintf("You have %d unread notifications", ch.Unread)
	data := map[string]string{"type": "chime", "unread": strconv.Itoa(ch.Unread)}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()
		c.notifier.Notify(ctx, ch.UserID, "New notifications", body, data)
	}()
}
