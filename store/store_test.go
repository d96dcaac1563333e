package store

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := NewRedisFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = rdb.Close() })

	lite, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = lite.Close() })

	return map[string]Store{
		"memory": NewMemory(),
		"redis":  rdb,
		"sqlite": lite,
	}
}

func TestStore_GetSet(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, ok, err := s.Get(ctx, "activity:1")
			require.NoError(t, err)
			require.False(t, ok)

			require.NoError(t, s.Set(ctx, "activity:1", []byte(`{"id":1}`)))
			require.NoError(t, s.Set(ctx, "activity:1", []byte(`{"id":1,"v":2}`)))

			got, ok, err := s.Get(ctx, "activity:1")
			require.NoError(t, err)
			require.True(t, ok)
			require.JSONEq(t, `{"id":1,"v":2}`, string(got))
		})
	}
}

func TestStore_KeysWithPrefix(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, k := range []string{"activity:1", "activity:22", "gear:g1", "activities:updated_at_copy"} {
				require.NoError(t, s.Set(ctx, k, []byte("x")))
			}

			keys, err := s.KeysWithPrefix(ctx, "activity:")
			require.NoError(t, err)
			sort.Strings(keys)
			require.Equal(t, []string{"activity:1", "activity:22"}, keys)

			none, err := s.KeysWithPrefix(ctx, "missing:")
			require.NoError(t, err)
			require.Empty(t, none)
		})
	}
}

func TestStore_SortedIndex(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			const idx = "activities:updated_at"

			empty, err := s.ZRangeLast(ctx, idx, 1)
			require.NoError(t, err)
			require.Empty(t, empty)

			require.NoError(t, s.ZAdd(ctx, idx, "1", 100))
			require.NoError(t, s.ZAdd(ctx, idx, "2", 300))
			require.NoError(t, s.ZAdd(ctx, idx, "3", 200))
			require.NoError(t, s.ZAdd(ctx, idx, "1", 150)) // re-score

			last, err := s.ZRangeLast(ctx, idx, 1)
			require.NoError(t, err)
			require.Equal(t, []ScoredMember{{Member: "2", Score: 300}}, last)

			lastTwo, err := s.ZRangeLast(ctx, idx, 2)
			require.NoError(t, err)
			require.Equal(t, []ScoredMember{{Member: "3", Score: 200}, {Member: "2", Score: 300}}, lastTwo)

			after, err := s.ZRangeAfter(ctx, idx, 150)
			require.NoError(t, err)
			require.Equal(t, []string{"3", "2"}, after)
		})
	}
}

func TestStore_FlushAll(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Set(ctx, "gear:g1", []byte("x")))
			require.NoError(t, s.ZAdd(ctx, "activities:updated_at", "1", 1))

			require.NoError(t, s.FlushAll(ctx))

			_, ok, err := s.Get(ctx, "gear:g1")
			require.NoError(t, err)
			require.False(t, ok)
			members, err := s.ZRangeLast(ctx, "activities:updated_at", 10)
			require.NoError(t, err)
			require.Empty(t, members)
		})
	}
}

func TestStore_ConcurrentDistinctKeys(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					key := "gear:g" + string(rune('a'+i))
					if err := s.Set(ctx, key, []byte(key)); err != nil {
						t.Errorf("Set(%s) error = %v", key, err)
					}
				}(i)
			}
			wg.Wait()

			keys, err := s.KeysWithPrefix(ctx, "gear:")
			require.NoError(t, err)
			require.Len(t, keys, 20)
		})
	}
}

func TestRedis_UnavailableIsWrapped(t *testing.T) {
	mr := miniredis.RunT(t)
	s := NewRedisFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1}))
	defer s.Close()
	mr.Close()

	_, _, err := s.Get(context.Background(), "activity:1")

	require.Error(t, err)
	require.True(t, errors.Is(err, ErrUnavailable))
}

func TestNewRedis_PingFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedis(context.Background(), RedisOptions{Addr: addr})

	require.ErrorIs(t, err, ErrUnavailable)
}

func TestEscapeGlob(t *testing.T) {
	require.Equal(t, `gear:a\*b\?`, escapeGlob("gear:a*b?"))
	require.Equal(t, "activity:", escapeGlob("activity:"))
}
