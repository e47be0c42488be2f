package kv

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreSetGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "name", "axon"))
	v, ok, err := s.Get(ctx, "name")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "axon", v)
}

func TestMemoryStoreOverwrite(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "k", "v1"))
	require.NoError(t, s.Set(ctx, "k", "v2"))
	v, _, _ := s.Get(ctx, "k")
	assert.Equal(t, "v2", v)
}

func TestMemoryStoreDelete(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "k", "v"))
	require.NoError(t, s.Delete(ctx, "k"))
	_, ok, _ := s.Get(ctx, "k")
	assert.False(t, ok)

	// deleting an absent key is not an error
	require.NoError(t, s.Delete(ctx, "never-existed"))
}

func TestMemoryStoreKeysWildcard(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "user:alice:email", "a@x.com"))
	require.NoError(t, s.Set(ctx, "user:bob:email", "b@x.com"))
	require.NoError(t, s.Set(ctx, "config:timeout", "30"))

	keys, err := s.Keys(ctx, "user:", 0)
	require.NoError(t, err)
	assert.Len(t, keys, 2)

	all, err := s.Keys(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestMemoryStoreKeysLimit(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	for _, k := range []string{"a1", "a2", "a3", "a4"} {
		require.NoError(t, s.Set(ctx, k, "v"))
	}
	keys, err := s.Keys(ctx, "a", 2)
	require.NoError(t, err)
	assert.Len(t, keys, 2)
}
