package optimistic

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDoConfirmsAfterApply(t *testing.T) {
	var order []string
	err := Do(context.Background(),
		func() bool { order = append(order, "apply"); return true },
		func(context.Context) error { order = append(order, "confirm"); return nil },
		func(context.Context) { order = append(order, "reconcile") },
	)
	assert.NoError(t, err)
	assert.Equal(t, []string{"apply", "confirm"}, order)
}

func TestDoSkipsConfirmWhenNothingChanged(t *testing.T) {
	confirmed := false
	err := Do(context.Background(),
		func() bool { return false },
		func(context.Context) error { confirmed = true; return nil },
		nil,
	)
	assert.NoError(t, err)
	assert.False(t, confirmed)
}

func TestDoReconcilesOnFailure(t *testing.T) {
	boom := errors.New("boom")
	reconciled := 0
	err := Do(context.Background(),
		func() bool { return true },
		func(context.Context) error { return boom },
		func(context.Context) { reconciled++ },
	)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, reconciled)
}
