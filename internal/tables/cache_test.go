package tables_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/taxcore/internal/tables"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func writeTables(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tables.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleTables), 0o600))
	return path
}

func TestCacheRoundTrip(t *testing.T) {
	mr, client := newRedis(t)
	cache := tables.NewCache(client, time.Minute)
	ctx := context.Background()

	_, ok, err := cache.Get(ctx, "tables")
	require.NoError(t, err)
	require.False(t, ok)

	data, err := tables.Parse([]byte(sampleTables))
	require.NoError(t, err)
	require.NoError(t, cache.Set(ctx, "tables", data))
	require.Equal(t, time.Minute, mr.TTL("tables"))

	got, ok, err := cache.Get(ctx, "tables")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, data, got)
}

func TestNilCacheIsDisabled(t *testing.T) {
	var cache *tables.Cache
	_, ok, err := cache.Get(context.Background(), "tables")
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, cache.Set(context.Background(), "tables", tables.Data{}))
}

func TestLoaderWritesThroughAndReadsBack(t *testing.T) {
	mr, client := newRedis(t)
	path := writeTables(t)
	loader := tables.Loader{
		Cache:  tables.NewCache(client, time.Minute),
		Key:    "taxcore:tables:v1",
		Path:   path,
		Logger: zerolog.Nop(),
	}

	store, err := loader.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, "NYC", store.City("JFK"))
	require.True(t, mr.Exists("taxcore:tables:v1"))

	require.NoError(t, os.Remove(path))
	store, err = loader.Load(context.Background())
	require.NoError(t, err, "the cached snapshot is used once the file is gone")
	require.Equal(t, "YTO", store.City("YYZ"))
}

func TestLoaderSurvivesBrokenCache(t *testing.T) {
	mr, client := newRedis(t)
	require.NoError(t, mr.Set("taxcore:tables:v1", "not json"))
	loader := tables.Loader{
		Cache:  tables.NewCache(client, time.Minute),
		Key:    "taxcore:tables:v1",
		Path:   writeTables(t),
		Logger: zerolog.Nop(),
	}

	store, err := loader.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, "CHI", store.City("ORD"))
}

func TestLoaderWithoutCacheOrFile(t *testing.T) {
	_, err := tables.Loader{Key: "k", Logger: zerolog.Nop()}.Load(context.Background())
	require.Error(t, err)
}
