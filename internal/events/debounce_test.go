package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebounceCoalescesBurst(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan Event)
	out := Debounce(ctx, in, 50*time.Millisecond)

	for i := 0; i < 3; i++ {
		in <- Event{Op: OpUpdate}
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case <-out:
	case <-time.After(time.Second):
		t.Fatal("expected one signal after the burst")
	}

	select {
	case <-out:
		t.Fatal("burst must produce exactly one signal")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestDebounceSeparateBursts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan Event)
	out := Debounce(ctx, in, 20*time.Millisecond)

	count := 0
	for burst := 0; burst < 2; burst++ {
		in <- Event{}
		in <- Event{}
		select {
		case <-out:
			count++
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for signal")
		}
	}
	assert.Equal(t, 2, count)
}

func TestDebounceClosesOnInputClose(t *testing.T) {
	in := make(chan Event)
	out := Debounce(context.Background(), in, time.Hour)
	in <- Event{}
	close(in)

	select {
	case _, ok := <-out:
		require.False(t, ok, "pending timer must not fire after input is closed")
	case <-time.After(time.Second):
		t.Fatal("output not closed")
	}
}

func TestDebounceStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	out := Debounce(ctx, make(chan Event), time.Millisecond)
	cancel()

	select {
	case _, ok := <-out:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("output not closed after cancel")
	}
}
