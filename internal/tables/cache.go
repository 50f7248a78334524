package tables

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Cache keeps serialised table snapshots in Redis so several calculators share one load.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a cache helper. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Get returns the snapshot stored under key. It reports whether the key existed.
func (c *Cache) Get(ctx context.Context, key string) (Data, bool, error) {
	if c == nil || c.client == nil || key == "" {
		return Data{}, false, nil
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Data{}, false, nil
		}
		return Data{}, false, err
	}
	var data Data
	if err := json.Unmarshal(raw, &data); err != nil {
		return Data{}, false, err
	}
	return data, true, nil
}

// Set stores the snapshot with the configured TTL. A non-positive TTL keeps it forever.
func (c *Cache) Set(ctx context.Context, key string, data Data) error {
	if c == nil || c.client == nil || key == "" {
		return nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	ttl := c.ttl
	if ttl < 0 {
		ttl = 0
	}
	return c.client.Set(ctx, key, raw, ttl).Err()
}

// Loader resolves table data from the cache first and falls back to a YAML file.
type Loader struct {
	Cache  *Cache
	Key    string
	Path   string
	Logger zerolog.Logger
}

// Load returns an indexed store. Cache failures are logged and never fatal.
func (l Loader) Load(ctx context.Context) (*Store, error) {
	data, ok, err := l.Cache.Get(ctx, l.Key)
	if err != nil {
		l.Logger.Warn().Err(err).Str("key", l.Key).Msg("tables cache read failed")
	}
	if ok {
		l.Logger.Debug().Str("key", l.Key).Msg("tables loaded from cache")
		return NewStore(data)
	}
	if l.Path == "" {
		return nil, fmt.Errorf("tables: no cached snapshot under %q and no file configured", l.Key)
	}
	data, err = LoadFile(l.Path)
	if err != nil {
		return nil, err
	}
	store, err := NewStore(data)
	if err != nil {
		return nil, err
	}
	if err := l.Cache.Set(ctx, l.Key, data); err != nil {
		l.Logger.Warn().Err(err).Str("key", l.Key).Msg("tables cache write failed")
	}
	l.Logger.Info().Str("path", l.Path).Int("locations", len(data.Locations)).Msg("tables loaded from file")
	return store, nil
}
