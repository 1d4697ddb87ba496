package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStore(client), mr, client
}

func TestPutWritesBothDirections(t *testing.T) {
	store, mr, _ := newTestStore(t)
	ctx := context.Background()

	displaced, err := store.Put(ctx, "sid-1", "user-1", time.Hour)
	require.NoError(t, err)
	assert.Empty(t, displaced)

	owner, err := mr.Get("session:sid-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", owner)
	sid, err := mr.Get("user:user-1:session")
	require.NoError(t, err)
	assert.Equal(t, "sid-1", sid)
	assert.Equal(t, time.Hour, mr.TTL("session:sid-1"))
	assert.Equal(t, time.Hour, mr.TTL("user:user-1:session"))

	live, err := store.IsLive(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, live)
}

func TestSecondPutInvalidatesPreviousSession(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.Put(ctx, "sid-1", "user-1", time.Hour)
	require.NoError(t, err)
	displaced, err := store.Put(ctx, "sid-2", "user-1", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "sid-1", displaced)

	firstLive, err := store.IsSessionLive(ctx, "sid-1")
	require.NoError(t, err)
	assert.False(t, firstLive)

	current, ok, err := store.CurrentSession(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "sid-2", current)
}

func TestPutSameSessionTwiceKeepsIt(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.Put(ctx, "sid-1", "user-1", time.Hour)
	require.NoError(t, err)
	displaced, err := store.Put(ctx, "sid-1", "user-1", time.Hour)
	require.NoError(t, err)
	assert.Empty(t, displaced)

	live, err := store.IsSessionLive(ctx, "sid-1")
	require.NoError(t, err)
	assert.True(t, live)
}

func TestPutWithoutExpiry(t *testing.T) {
	store, mr, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.Put(ctx, "sid-1", "user-1", 0)
	require.NoError(t, err)
	assert.Zero(t, mr.TTL("session:sid-1"))
	assert.Zero(t, mr.TTL("user:user-1:session"))
}

func TestSessionExpires(t *testing.T) {
	store, mr, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.Put(ctx, "sid-1", "user-1", time.Minute)
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)

	live, err := store.IsLive(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, live)
	_, ok, err := store.CurrentSession(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteIsIdempotent(t *testing.T) {
	store, mr, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.Put(ctx, "sid-1", "user-1", time.Hour)
	require.NoError(t, err)

	removed, err := store.Delete(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.False(t, mr.Exists("session:sid-1"))
	assert.False(t, mr.Exists("user:user-1:session"))

	removed, err = store.Delete(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestTouchExtendsOnlyMatchingSession(t *testing.T) {
	store, mr, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.Put(ctx, "sid-1", "user-1", time.Minute)
	require.NoError(t, err)

	touched, err := store.Touch(ctx, "user-1", "sid-1", time.Hour)
	require.NoError(t, err)
	assert.True(t, touched)
	assert.Equal(t, time.Hour, mr.TTL("session:sid-1"))
	assert.Equal(t, time.Hour, mr.TTL("user:user-1:session"))

	touched, err = store.Touch(ctx, "user-1", "sid-other", 2*time.Hour)
	require.NoError(t, err)
	assert.False(t, touched)
	assert.Equal(t, time.Hour, mr.TTL("session:sid-1"))
}

func TestListLiveUserIDsSkipsMalformedKeys(t *testing.T) {
	store, mr, _ := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := store.Put(ctx, fmt.Sprintf("sid-%d", i), fmt.Sprintf("user-%d", i), time.Hour)
		require.NoError(t, err)
	}
	require.NoError(t, mr.Set("user::session", "x"))
	require.NoError(t, mr.Set("user:a:b:session", "x"))
	require.NoError(t, mr.Set("user:lonely", "x"))

	live, err := store.ListLiveUserIDs(ctx)
	require.NoError(t, err)
	assert.Len(t, live, 3)
	for i := 0; i < 3; i++ {
		assert.Contains(t, live, fmt.Sprintf("user-%d", i))
	}
}

func TestConcurrentLoginsLeaveOneSession(t *testing.T) {
	store, mr, _ := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := store.Put(ctx, fmt.Sprintf("sid-%d", i), "user-1", time.Hour)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	owned := 0
	for _, key := range mr.Keys() {
		if len(key) > len(sessionPrefix) && key[:len(sessionPrefix)] == sessionPrefix {
			owned++
		}
	}
	assert.Equal(t, 1, owned)

	current, ok, err := store.CurrentSession(ctx, "user-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, mr.Exists("session:"+current))
}

func TestUnavailableCacheSurfacesDistinctError(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	store := NewStore(client)
	ctx := context.Background()

	_, err := store.Put(ctx, "sid-1", "user-1", time.Hour)
	assert.ErrorIs(t, err, ErrCacheUnavailable)
	_, err = store.IsLive(ctx, "user-1")
	assert.ErrorIs(t, err, ErrCacheUnavailable)
	_, err = store.Delete(ctx, "user-1")
	assert.ErrorIs(t, err, ErrCacheUnavailable)
	_, err = store.ListLiveUserIDs(ctx)
	assert.ErrorIs(t, err, ErrCacheUnavailable)
}
