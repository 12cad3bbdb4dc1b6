package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   1,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skipf("Redis not available: %v", err)
	}
	require.NoError(t, client.FlushDB(ctx).Err())

	t.Cleanup(func() {
		_ = client.FlushDB(context.Background()).Err()
		_ = client.Close()
	})
	return client
}

// exerciseStore runs the same scenario against any Store.
func exerciseStore(t *testing.T, store Store) {
	ctx := context.Background()

	state, err := store.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, State{}, state, "unknown user has empty state")

	want := State{CurrentToken: "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263", AwaitingCustomAmount: true}
	require.NoError(t, store.Save(ctx, 7, want))

	state, err = store.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, want, state)

	other, err := store.Get(ctx, 8)
	require.NoError(t, err)
	assert.Empty(t, other.CurrentToken, "sessions are per user")

	require.NoError(t, store.Clear(ctx, 7))
	state, err = store.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, State{}, state)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStoreConcurrentAccess(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := int64(0); i < 20; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				assert.NoError(t, store.Save(ctx, id, State{AwaitingCustomAmount: j%2 == 0}))
				_, err := store.Get(ctx, id)
				assert.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()
}

func TestOpenWithoutRedisURLUsesMemory(t *testing.T) {
	store, err := Open(context.Background(), "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)
}

func TestOpenRejectsBadRedisURL(t *testing.T) {
	_, err := Open(context.Background(), "http://not-redis")
	require.Error(t, err)
}

func TestRedisStore(t *testing.T) {
	client := setupTestRedis(t)
	store, err := NewRedisStore(client, time.Minute)
	require.NoError(t, err)

	exerciseStore(t, store)
}

func TestRedisStoreSetsTTL(t *testing.T) {
	client := setupTestRedis(t)
	store, err := NewRedisStore(client, time.Minute)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, 42, State{CurrentToken: "mint"}))

	ttl, err := client.TTL(ctx, sessionKey(42)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Minute)
}

func TestNewRedisStoreRejectsNilClient(t *testing.T) {
	_, err := NewRedisStore(nil, time.Minute)
	require.Error(t, err)
}
