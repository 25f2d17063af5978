package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)

	m := New()
	m.now = func() time.Time { return now }

	ok, err := m.TryLock(ctx, "a:0", "owner-1", 180*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	now = now.Add(179 * time.Second)

	require.NoError(t, m.Extend(ctx, []string{"a:0"}, "owner-1", 300*time.Second))

	now = now.Add(299 * time.Second)

	exists, err := m.Exists(ctx, []string{"a:0"})
	require.NoError(t, err)
	assert.True(t, exists["a:0"])

	now = now.Add(time.Second)

	exists, err = m.Exists(ctx, []string{"a:0"})
	require.NoError(t, err)
	assert.False(t, exists["a:0"])
	assert.Empty(t, m.locks)

	ok, err = m.TryLock(ctx, "a:0", "owner-2", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}
