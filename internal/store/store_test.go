package store_test

import (
	"context"
	"testing"

	"github.com/existflow/learnportal/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	_, ok, err := m.Get(ctx, store.KeyAuthToken)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Set(ctx, store.KeyAuthToken, "t1"))
	require.NoError(t, m.Set(ctx, store.ProgressKey("b@x.com"), "{}"))
	require.NoError(t, m.Set(ctx, store.ProgressKey("a@x.com"), "{}"))

	v, ok, err := m.Get(ctx, store.KeyAuthToken)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "t1", v)

	keys, err := m.Keys(ctx, store.ProgressPrefix())
	require.NoError(t, err)
	assert.Equal(t, []string{"progress_a@x.com", "progress_b@x.com"}, keys)

	require.NoError(t, m.Remove(ctx, store.KeyAuthToken))
	require.NoError(t, m.Remove(ctx, "never-set"))
	_, ok, _ = m.Get(ctx, store.KeyAuthToken)
	assert.False(t, ok)
}
