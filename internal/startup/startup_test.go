package startup

import (
	"errors"
	"io/fs"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workspace/migrations"
)

func TestRetryStopsOnSuccess(t *testing.T) {
	calls := 0
	retry(time.Minute, "[test] ", "connect", func() error {
		calls++
		if calls < 2 {
			return errors.New("not yet")
		}
		return nil
	})
	assert.Equal(t, 2, calls)
}

func TestEmbeddedMigrationsOrdered(t *testing.T) {
	names, err := fs.Glob(migrations.Files, "*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.True(t, sort.StringsAreSorted(names))
	assert.Equal(t, "001_init.sql", names[0])

	data, err := fs.ReadFile(migrations.Files, "002_task_notify.sql")
	require.NoError(t, err)
	assert.Contains(t, string(data), "pg_notify('task_changes'")
	assert.Contains(t, string(data), "OLD.assigned_to IS DISTINCT FROM NEW.assigned_to", "reassignment must notify the previous assignee")
}
