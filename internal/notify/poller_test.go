package notify

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workspace/internal/events"
	"github.com/workspace/internal/model"
	"github.com/workspace/internal/storage/memory"
)

const (
	testUser        = "u-1"
	testParticipant = "p-1"
	waitFor         = 2 * time.Second
	tick            = 5 * time.Millisecond
)

type countingTasks struct {
	*memory.Tasks
	lists     atomic.Int32
	markReads atomic.Int32
	failMark  error
}

func (c *countingTasks) ListByParticipant(ctx context.Context, participantID string) ([]model.Task, error) {
	c.lists.Add(1)
	return c.Tasks.ListByParticipant(ctx, participantID)
}

func (c *countingTasks) MarkRead(ctx context.Context, taskID string, at time.Time) error {
	c.markReads.Add(1)
	if c.failMark != nil {
		return c.failMark
	}
	return c.Tasks.MarkRead(ctx, taskID, at)
}

func (c *countingTasks) MarkAllRead(ctx context.Context, participantID string, at time.Time) error {
	if c.failMark != nil {
		return c.failMark
	}
	return c.Tasks.MarkAllRead(ctx, participantID, at)
}

type recordingChimer struct {
	mu     sync.Mutex
	chimes []Chime
}

func (r *recordingChimer) Chime(ctx context.Context, c Chime) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chimes = append(r.chimes, c)
}

func (r *recordingChimer) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.chimes)
}

type pollerFixture struct {
	broker *events.MemoryBroker
	tasks  *countingTasks
	chimer *recordingChimer
	poller *Poller
}

func newPollerFixture(t *testing.T, debounce time.Duration, seed ...model.Task) *pollerFixture {
	t.Helper()
	broker := events.NewMemoryBroker()
	tasks := &countingTasks{Tasks: memory.NewTasks(broker)}
	for _, task := range seed {
		tasks.Add(context.Background(), task)
	}
	chimer := &recordingChimer{}
	p := NewPoller(testUser, testParticipant, Options{Tasks: tasks, Events: broker, Chimer: chimer, Debounce: debounce})
	t.Cleanup(func() { p.Close() })
	return &pollerFixture{broker: broker, tasks: tasks, chimer: chimer, poller: p}
}

func task(id string, read bool, created time.Time) model.Task {
	return model.Task{ID: id, AssignedTo: testParticipant, Title: id, Status: model.TaskStatusPending, IsRead: read, CreatedAt: created}
}

func TestStartLoadsAndDerivesUnread(t *testing.T) {
	now := time.Now()
	f := newPollerFixture(t, 20*time.Millisecond,
		task("t1", false, now.Add(-2*time.Minute)),
		task("t2", true, now.Add(-time.Minute)),
		model.Task{ID: "other", AssignedTo: "p-2", IsRead: false, CreatedAt: now},
	)
	require.NoError(t, f.poller.Start(context.Background()))

	snap := f.poller.Snapshot()
	assert.True(t, snap.Loaded)
	require.Len(t, snap.Tasks, 2)
	assert.Equal(t, "t2", snap.Tasks[0].ID)
	assert.Equal(t, 1, snap.Unread)
	assert.Equal(t, 1, f.broker.Subscribers(events.TaskTopic(testParticipant)))
	assert.Zero(t, f.chimer.Len())
}

func TestBurstOfEventsCausesSingleRefetch(t *testing.T) {
	f := newPollerFixture(t, 50*time.Millisecond)
	require.NoError(t, f.poller.Start(context.Background()))
	require.EqualValues(t, 1, f.tasks.lists.Load())

	topic := events.TaskTopic(testParticipant)
	for i := 0; i < 3; i++ {
		require.NoError(t, f.broker.Publish(context.Background(), topic, events.Event{Op: events.OpInsert}))
	}

	require.Eventually(t, func() bool { return f.tasks.lists.Load() == 2 }, waitFor, tick)
	time.Sleep(150 * time.Millisecond)
	assert.EqualValues(t, 2, f.tasks.lists.Load())
}

func TestChimeOnlyWhenUnreadGrowsFromNonZero(t *testing.T) {
	ctx := context.Background()
	f := newPollerFixture(t, 10*time.Millisecond)
	require.NoError(t, f.poller.Start(ctx))
	assert.Equal(t, 0, f.poller.Snapshot().Unread)

	f.tasks.Add(ctx, task("t1", false, time.Now()))
	require.Eventually(t, func() bool { return f.poller.Snapshot().Unread == 1 }, waitFor, tick)
	assert.Zero(t, f.chimer.Len(), "0 -> 1 stays silent")

	f.tasks.Add(ctx, task("t2", false, time.Now()))
	require.Eventually(t, func() bool { return f.poller.Snapshot().Unread == 2 }, waitFor, tick)
	require.Eventually(t, func() bool { return f.chimer.Len() == 1 }, waitFor, tick)

	f.chimer.mu.Lock()
	got := f.chimer.chimes[0]
	f.chimer.mu.Unlock()
	assert.Equal(t, Chime{UserID: testUser, ParticipantID: testParticipant, Previous: 1, Unread: 2}, got)
}

func TestInitialLoadNeverChimes(t *testing.T) {
	now := time.Now()
	f := newPollerFixture(t, 10*time.Millisecond, task("t1", false, now), task("t2", false, now))
	require.NoError(t, f.poller.Start(context.Background()))
	assert.Equal(t, 2, f.poller.Snapshot().Unread)
	assert.Zero(t, f.chimer.Len())
}

func TestMarkAsReadIsIdempotent(t *testing.T) {
	ctx := context.Background()
	readAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	already := task("done", true, time.Now().Add(-time.Hour))
	already.ReadAt = &readAt
	f := newPollerFixture(t, time.Hour, already, task("fresh", false, time.Now()))
	require.NoError(t, f.poller.Start(ctx))

	require.NoError(t, f.poller.MarkAsRead(ctx, "done"))
	assert.Zero(t, f.tasks.markReads.Load())

	require.NoError(t, f.poller.MarkAsRead(ctx, "fresh"))
	require.NoError(t, f.poller.MarkAsRead(ctx, "fresh"))
	assert.EqualValues(t, 1, f.tasks.markReads.Load())
	assert.Equal(t, 0, f.poller.Snapshot().Unread)

	stored, err := f.tasks.Tasks.ListByParticipant(ctx, testParticipant)
	require.NoError(t, err)
	for _, st := range stored {
		assert.True(t, st.IsRead)
		if st.ID == "done" {
			assert.True(t, readAt.Equal(*st.ReadAt))
		}
	}

	assert.ErrorIs(t, f.poller.MarkAsRead(ctx, "missing"), ErrTaskNotFound)
}

func TestMarkAsReadFailureReconciles(t *testing.T) {
	ctx := context.Background()
	f := newPollerFixture(t, time.Hour, task("t1", false, time.Now()))
	require.NoError(t, f.poller.Start(ctx))

	var seen []int
	var mu sync.Mutex
	unsubscribe := f.poller.OnChange(func(s Snapshot) {
		mu.Lock()
		seen = append(seen, s.Unread)
		mu.Unlock()
	})
	defer unsubscribe()

	f.tasks.failMark = errors.New("db down")
	err := f.poller.MarkAsRead(ctx, "t1")
	require.Error(t, err)

	assert.Equal(t, 1, f.poller.Snapshot().Unread)
	mu.Lock()
	assert.Equal(t, []int{0, 1}, seen)
	mu.Unlock()
}

func TestMarkAllAsRead(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	f := newPollerFixture(t, time.Hour, task("a", false, now), task("b", false, now), task("c", true, now))
	require.NoError(t, f.poller.Start(ctx))
	require.Equal(t, 2, f.poller.Snapshot().Unread)

	require.NoError(t, f.poller.MarkAllAsRead(ctx))
	assert.Equal(t, 0, f.poller.Snapshot().Unread)
	stored, err := f.tasks.Tasks.ListByParticipant(ctx, testParticipant)
	require.NoError(t, err)
	assert.Equal(t, 0, model.UnreadCount(stored))
}

func TestMarkAllAsReadFailureReconciles(t *testing.T) {
	ctx := context.Background()
	f := newPollerFixture(t, time.Hour, task("a", false, time.Now()))
	require.NoError(t, f.poller.Start(ctx))

	f.tasks.failMark = errors.New("timeout")
	require.Error(t, f.poller.MarkAllAsRead(ctx))
	assert.Equal(t, 1, f.poller.Snapshot().Unread)
}

func TestCloseUnsubscribesAndIsIdempotent(t *testing.T) {
	f := newPollerFixture(t, 10*time.Millisecond)
	require.NoError(t, f.poller.Start(context.Background()))
	topic := events.TaskTopic(testParticipant)
	require.Equal(t, 1, f.broker.Subscribers(topic))

	require.NoError(t, f.poller.Close())
	require.NoError(t, f.poller.Close())
	assert.Equal(t, 0, f.broker.Subscribers(topic))

	before := f.tasks.lists.Load()
	require.NoError(t, f.broker.Publish(context.Background(), topic, events.Event{}))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, before, f.tasks.lists.Load())
	assert.ErrorIs(t, f.poller.Start(context.Background()), ErrClosed)
}

func TestStartWithoutParticipantIsNoop(t *testing.T) {
	broker := events.NewMemoryBroker()
	tasks := &countingTasks{Tasks: memory.NewTasks(broker)}
	p := NewPoller(testUser, "", Options{Tasks: tasks, Events: broker})
	require.NoError(t, p.Start(context.Background()))
	assert.Zero(t, tasks.lists.Load())
	assert.False(t, p.Snapshot().Loaded)
	require.NoError(t, p.Close())
}

func TestRegistrySharesPollerUntilLastRelease(t *testing.T) {
	broker := events.NewMemoryBroker()
	tasks := memory.NewTasks(broker)
	reg := NewRegistry(context.Background(), Options{Tasks: tasks, Events: broker, Debounce: 10 * time.Millisecond})
	topic := events.TaskTopic(testParticipant)

	p1, release1, err := reg.Acquire(testUser, testParticipant)
	require.NoError(t, err)
	p2, release2, err := reg.Acquire(testUser, testParticipant)
	require.NoError(t, err)
	assert.Same(t, p1, p2)
	assert.Equal(t, 1, broker.Subscribers(topic))

	release1()
	release1()
	assert.Equal(t, 1, reg.Len())
	release2()
	assert.Equal(t, 0, reg.Len())
	assert.Equal(t, 0, broker.Subscribers(topic))
}
