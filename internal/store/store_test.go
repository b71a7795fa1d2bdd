package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupRedisStore creates a store connected to a miniredis instance.
func setupRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	s := NewRedisStore(&redis.Options{Addr: mr.Addr()}, "test")
	t.Cleanup(func() { s.Close() })
	return s, mr
}

func TestStores(t *testing.T) {
	fileStore := NewFileStore(filepath.Join(t.TempDir(), "data"))
	redisStore, _ := setupRedisStore(t)

	for name, s := range map[string]Store{"file": fileStore, "redis": redisStore} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := s.Load(ctx, "seminars.json")
			assert.True(t, errors.Is(err, ErrNotFound))

			require.NoError(t, s.Save(ctx, "seminars.json", []byte(`{"terms":{"A":[]},"lastmod":"r1"}`)))
			got, err := s.Load(ctx, "seminars.json")
			require.NoError(t, err)
			assert.JSONEq(t, `{"terms":{"A":[]},"lastmod":"r1"}`, string(got))

			// A second save replaces, never merges.
			require.NoError(t, s.Save(ctx, "seminars.json", []byte(`{"terms":{"B":[]},"lastmod":"r2"}`)))
			got, err = s.Load(ctx, "seminars.json")
			require.NoError(t, err)
			assert.JSONEq(t, `{"terms":{"B":[]},"lastmod":"r2"}`, string(got))
		})
	}
}

func TestFileStoreLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir)
	require.NoError(t, s.Save(context.Background(), "a.json", []byte("{}")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a.json", entries[0].Name())
}

func TestFileStoreRejectsPathKeys(t *testing.T) {
	s := NewFileStore(t.TempDir())
	for _, key := range []string{"", "..", "../x.json", `a\b`} {
		assert.Error(t, s.Save(context.Background(), key, []byte("{}")), key)
	}
}

func TestRedisStoreKeyNamespace(t *testing.T) {
	s, mr := setupRedisStore(t)
	require.NoError(t, s.Save(context.Background(), "seminars.json", []byte("{}")))

	val, err := mr.Get("test:dataset:seminars.json")
	require.NoError(t, err)
	assert.Equal(t, "{}", val)
	assert.NoError(t, s.Ping(context.Background()))
}
