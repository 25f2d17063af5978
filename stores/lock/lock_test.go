package lock_test

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redisdb "github.com/redis/go-redis/v9"
	"github.com/runestake/settlement/errors"
	"github.com/runestake/settlement/settings"
	"github.com/runestake/settlement/stores/lock"
	"github.com/runestake/settlement/stores/lock/memory"
	"github.com/runestake/settlement/stores/lock/redis"
	"github.com/runestake/settlement/ulogger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type storeTestCase struct {
	name        string
	createStore func(t *testing.T) lock.Store
}

func storeTestCases() []storeTestCase {
	return []storeTestCase{
		{
			name: "memory",
			createStore: func(t *testing.T) lock.Store {
				return memory.New()
			},
		},
		{
			name: "redis",
			createStore: func(t *testing.T) lock.Store {
				mr := miniredis.RunT(t)
				client := redisdb.NewClient(&redisdb.Options{Addr: mr.Addr()})

				t.Cleanup(func() {
					_ = client.Close()
				})

				return redis.NewWithClient(ulogger.TestLogger{}, client, "test-lock:")
			},
		},
	}
}

func TestStores(t *testing.T) {
	for _, tc := range storeTestCases() {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()

			t.Run("try lock", func(t *testing.T) {
				s := tc.createStore(t)

				ok, err := s.TryLock(ctx, "a:0", "owner-1", time.Minute)
				require.NoError(t, err)
				assert.True(t, ok)

				ok, err = s.TryLock(ctx, "a:0", "owner-2", time.Minute)
				require.NoError(t, err)
				assert.False(t, ok)

				// re-entrant for the same owner
				ok, err = s.TryLock(ctx, "a:0", "owner-1", time.Minute)
				require.NoError(t, err)
				assert.True(t, ok)
			})

			t.Run("exists", func(t *testing.T) {
				s := tc.createStore(t)

				_, err := s.TryLock(ctx, "a:0", "owner-1", time.Minute)
				require.NoError(t, err)

				exists, err := s.Exists(ctx, []string{"a:0", "a:1"})
				require.NoError(t, err)
				assert.Equal(t, map[string]bool{"a:0": true, "a:1": false}, exists)

				exists, err = s.Exists(ctx, nil)
				require.NoError(t, err)
				assert.Empty(t, exists)
			})

			t.Run("free only releases owned keys", func(t *testing.T) {
				s := tc.createStore(t)

				_, err := s.TryLock(ctx, "a:0", "owner-1", time.Minute)
				require.NoError(t, err)
				_, err = s.TryLock(ctx, "a:1", "owner-2", time.Minute)
				require.NoError(t, err)

				require.NoError(t, s.Free(ctx, []string{"a:0", "a:1", "a:2"}, "owner-1"))

				exists, err := s.Exists(ctx, []string{"a:0", "a:1"})
				require.NoError(t, err)
				assert.False(t, exists["a:0"])
				assert.True(t, exists["a:1"])

				ok, err := s.TryLock(ctx, "a:0", "owner-3", time.Minute)
				require.NoError(t, err)
				assert.True(t, ok)
			})

			t.Run("extend requires every key", func(t *testing.T) {
				s := tc.createStore(t)

				_, err := s.TryLock(ctx, "a:0", "owner-1", time.Minute)
				require.NoError(t, err)
				_, err = s.TryLock(ctx, "a:1", "owner-2", time.Minute)
				require.NoError(t, err)

				require.NoError(t, s.Extend(ctx, []string{"a:0"}, "owner-1", 5*time.Minute))

				err = s.Extend(ctx, []string{"a:0", "a:1"}, "owner-1", 5*time.Minute)
				require.Error(t, err)
				assert.True(t, errors.Is(err, errors.ErrTransactionExpired))

				err = s.Extend(ctx, []string{"a:9"}, "owner-1", time.Minute)
				assert.True(t, errors.Is(err, errors.ErrTransactionExpired))

				require.NoError(t, s.Extend(ctx, nil, "owner-1", time.Minute))
			})

			t.Run("transfer moves every key or none", func(t *testing.T) {
				s := tc.createStore(t)

				_, err := s.TryLock(ctx, "a:0", "build", time.Minute)
				require.NoError(t, err)
				_, err = s.TryLock(ctx, "a:1", "build", time.Minute)
				require.NoError(t, err)
				_, err = s.TryLock(ctx, "a:2", "other", time.Minute)
				require.NoError(t, err)

				err = s.Transfer(ctx, []string{"a:0", "a:2"}, "build", "tx", time.Minute)
				assert.True(t, errors.Is(err, errors.ErrTransactionExpired))

				// a:0 was not moved
				ok, err := s.TryLock(ctx, "a:0", "tx", time.Minute)
				require.NoError(t, err)
				assert.False(t, ok)

				require.NoError(t, s.Transfer(ctx, []string{"a:0", "a:1"}, "build", "tx", time.Minute))

				for _, owner := range []string{"build", "rival"} {
					ok, err = s.TryLock(ctx, "a:0", owner, time.Minute)
					require.NoError(t, err)
					assert.False(t, ok, owner)
				}

				require.NoError(t, s.Extend(ctx, []string{"a:0", "a:1"}, "tx", time.Minute))

				err = s.Transfer(ctx, []string{"a:9"}, "build", "tx", time.Minute)
				assert.True(t, errors.Is(err, errors.ErrTransactionExpired))

				require.NoError(t, s.Transfer(ctx, nil, "build", "tx", time.Minute))
			})

			t.Run("health", func(t *testing.T) {
				s := tc.createStore(t)

				status, _, err := s.Health(ctx, true)
				require.NoError(t, err)
				assert.Equal(t, http.StatusOK, status)
			})
		})
	}
}

func TestRedisExpiry(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	s := redis.NewWithClient(ulogger.TestLogger{}, redisdb.NewClient(&redisdb.Options{Addr: mr.Addr()}), "p:")

	ok, err := s.TryLock(ctx, "a:0", "owner-1", 10*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	assert.True(t, mr.Exists("p:a:0"))

	mr.FastForward(11 * time.Second)

	ok, err = s.TryLock(ctx, "a:0", "owner-2", 10*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	err = s.Extend(ctx, []string{"a:0"}, "owner-1", time.Minute)
	assert.True(t, errors.Is(err, errors.ErrTransactionExpired))
}

func TestRedisTransferSetsTTL(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	s := redis.NewWithClient(ulogger.TestLogger{}, redisdb.NewClient(&redisdb.Options{Addr: mr.Addr()}), "p:")

	ok, err := s.TryLock(ctx, "a:0", "build", 10*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, s.Transfer(ctx, []string{"a:0"}, "build", "tx", time.Minute))

	value, err := mr.Get("p:a:0")
	require.NoError(t, err)
	assert.Equal(t, "tx", value)
	assert.Equal(t, time.Minute, mr.TTL("p:a:0"))
}

func TestNewStore(t *testing.T) {
	tSettings := &settings.Settings{}
	tSettings.Lock.Prefix = "x:"

	s, err := lock.NewStore(ulogger.TestLogger{}, tSettings, &url.URL{Scheme: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &memory.Memory{}, s)

	mr := miniredis.RunT(t)

	u, err := url.Parse("redis://" + mr.Addr() + "/0")
	require.NoError(t, err)

	s, err = lock.NewStore(ulogger.TestLogger{}, tSettings, u)
	require.NoError(t, err)
	assert.IsType(t, &redis.Store{}, s)

	_, err = lock.NewStore(ulogger.TestLogger{}, tSettings, &url.URL{Scheme: "etcd"})
	require.Error(t, err)

	_, err = lock.NewStore(ulogger.TestLogger{}, tSettings, nil)
	require.Error(t, err)
}
