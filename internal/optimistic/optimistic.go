// Package optimistic: локальное изменение до подтверждения удалённой стороной.
// При отказе удалённой стороны локальное состояние не откатывается вручную,
// а восстанавливается полной перечиткой (reconcile).
package optimistic

import "context"

// Do выполняет apply под ответственностью вызывающего (обычно под его мьютексом),
// затем confirm без блокировок. Если apply сообщил, что менять нечего, confirm
// не вызывается. При ошибке confirm вызывается reconcile и ошибка возвращается.
func Do(ctx context.Context, apply func() bool, confirm func(context.Context) error, reconcile func(context.Context)) error {
	if !apply() {
		return nil
	}
	if err := confirm(ctx); err != nil {
		if reconcile != nil {
			reconcile(ctx)
		}
		return err
	}
	return nil
}
