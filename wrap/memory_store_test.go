package wrap

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestMemoryStore_Basic tests the key-value operations
// Main test items:
// 1. Set, Get, Has and Remove round trip
// 2. Missing keys report ErrKeyNotFound
// 3. Empty keys are rejected
func TestMemoryStore_Basic(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Set(ctx, "a", 1))
	v, err := s.Get(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, 1, v)

	ok, err := s.Has(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, s.Remove(ctx, "a"))
	_, err = s.Get(ctx, "a")
	require.ErrorIs(t, err, ErrKeyNotFound)
	ok, err = s.Has(ctx, "a")
	require.NoError(t, err)
	require.False(t, ok)

	require.Error(t, s.Set(ctx, "", 1))
}

// TestMemoryStore_Namespaces tests key isolation
// Given: a store with a namespace and a nested namespace
// When: a namespace is cleared
// Then: its keys and its children's keys are gone, the parent's are kept
func TestMemoryStore_Namespaces(t *testing.T) {
	ctx := context.Background()
	root := NewMemoryStore()
	user := root.Namespace("user").(*MemoryStore)
	prefs := user.Namespace("prefs")

	require.NoError(t, root.Set(ctx, "k", "root"))
	require.NoError(t, user.Set(ctx, "k", "user"))
	require.NoError(t, prefs.Set(ctx, "k", "prefs"))
	require.Equal(t, 3, root.Count())
	require.Equal(t, 2, user.Count())

	v, err := prefs.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "prefs", v)

	require.NoError(t, user.Clear(ctx))
	require.Equal(t, 1, root.Count())
	v, err = root.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "root", v)
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewMemoryStore()

	require.ErrorIs(t, s.Set(ctx, "a", 1), context.Canceled)
	_, err := s.Get(ctx, "a")
	require.ErrorIs(t, err, context.Canceled)
	require.ErrorIs(t, s.Clear(ctx), context.Canceled)
}

func TestMemoryStore_Concurrent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := string(rune('a' + i%26))
			_ = s.Set(ctx, key, i)
			_, _ = s.Get(ctx, key)
		}(i)
	}
	wg.Wait()
	require.Equal(t, 26, s.Count())
}
