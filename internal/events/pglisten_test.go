package events

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

type fakeListenConn struct {
	execErr   error
	executed  []string
	released  bool
	discarded bool
}

func (c *fakeListenConn) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	c.executed = append(c.executed, sql)
	if c.execErr != nil {
		return pgconn.CommandTag{}, c.execErr
	}
	return pgconn.NewCommandTag("UNLISTEN"), nil
}

func (c *fakeListenConn) Release() { c.released = true }
func (c *fakeListenConn) Discard() { c.discarded = true }

func TestReleaseListenerUnlistensBeforeRelease(t *testing.T) {
	conn := &fakeListenConn{}
	releaseListener(conn)
	assert.Equal(t, []string{"UNLISTEN *"}, conn.executed)
	assert.True(t, conn.released)
	assert.False(t, conn.discarded)
}

func TestReleaseListenerDiscardsOnUnlistenFailure(t *testing.T) {
	conn := &fakeListenConn{execErr: errors.New("conn closed")}
	releaseListener(conn)
	assert.Equal(t, []string{"UNLISTEN *"}, conn.executed)
	assert.False(t, conn.released)
	assert.True(t, conn.discarded)
}
