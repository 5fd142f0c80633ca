package events

import (
	"context"
	"time"
)

// Debounce склеивает всплеск событий в один сигнал: сигнал уходит, когда после
// последнего события прошло d без новых. Если потребитель ещё не забрал предыдущий
// сигнал, новый не добавляется. Выходной канал закрывается при закрытии in или отмене ctx;
// таймер при этом останавливается.
func Debounce(ctx context.Context, in <-chan Event, d time.Duration) <-chan struct{} {
	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		timer := time.NewTimer(d)
		if !timer.Stop() {
			<-timer.C
		}
		defer timer.Stop()
		var fire <-chan time.Time

		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-in:
				if !ok {
					return
				}
				if fire != nil && !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(d)
				fire = timer.C
			case <-fire:
				fire = nil
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out
}
