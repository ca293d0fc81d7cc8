package redis

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/clinlink/clinlink/internal/domain/grouping"
	"github.com/clinlink/clinlink/internal/infrastructure/monitoring/logging"
	"github.com/clinlink/clinlink/pkg/errors"
)

const cacheKeyPrefix = "clinlink:snapshot:"

// DefaultSnapshotTTL bounds how long a cached snapshot may serve reads
// before falling back to the backing store.
const DefaultSnapshotTTL = time.Hour

// snapshotCommands is the slice of the Redis client the cache uses.
type snapshotCommands interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// SnapshotCache is a read-through cache over a grouping.Store.  Loads hit
// Redis first and fall back to the backing store, collapsing concurrent
// misses for the same key into one store read via singleflight.  Saves write
// through to both.
type SnapshotCache struct {
	rdb    snapshotCommands
	store  grouping.Store
	ttl    time.Duration
	logger logging.Logger
	group  singleflight.Group
}

// NewSnapshotCache layers a cache over the backing store.  A zero ttl
// selects DefaultSnapshotTTL.
func NewSnapshotCache(rdb snapshotCommands, store grouping.Store, ttl time.Duration, logger logging.Logger) *SnapshotCache {
	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &SnapshotCache{rdb: rdb, store: store, ttl: ttl, logger: logger}
}

// Save writes through: the backing store first, then the cache.  A cache
// write failure is logged, not returned; the store holds the truth.
func (c *SnapshotCache) Save(ctx context.Context, snap *grouping.Snapshot) error {
	if err := c.store.Save(ctx, snap); err != nil {
		return err
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "cannot encode snapshot")
	}
	if err := c.rdb.Set(ctx, cacheKeyPrefix+snap.Key(), data, c.ttl).Err(); err != nil {
		c.logger.Warn("snapshot cache write failed",
			logging.String("key", snap.Key()), logging.Err(err))
	}
	return nil
}

// Load reads the snapshot, preferring the cache.  A cache read failure falls
// through to the store; a store miss propagates uncached.
func (c *SnapshotCache) Load(ctx context.Context, key string) (*grouping.Snapshot, error) {
	data, err := c.rdb.Get(ctx, cacheKeyPrefix+key).Bytes()
	if err == nil {
		var snap grouping.Snapshot
		if err := json.Unmarshal(data, &snap); err == nil {
			return &snap, nil
		}
		// Corrupt cache entry; drop it and reload from the store.
		_ = c.rdb.Del(ctx, cacheKeyPrefix+key).Err()
	} else if !stderrors.Is(err, redis.Nil) {
		c.logger.Warn("snapshot cache read failed",
			logging.String("key", key), logging.Err(err))
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		snap, err := c.store.Load(ctx, key)
		if err != nil {
			return nil, err
		}
		if data, err := json.Marshal(snap); err == nil {
			if err := c.rdb.Set(ctx, cacheKeyPrefix+key, data, c.ttl).Err(); err != nil {
				c.logger.Warn("snapshot cache backfill failed",
					logging.String("key", key), logging.Err(err))
			}
		}
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*grouping.Snapshot), nil
}

// List passes through to the backing store; listings are not cached.
func (c *SnapshotCache) List(ctx context.Context) ([]string, error) {
	return c.store.List(ctx)
}

// Invalidate drops the cached copy of a snapshot.
func (c *SnapshotCache) Invalidate(ctx context.Context, key string) error {
	if err := c.rdb.Del(ctx, cacheKeyPrefix+key).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "cannot invalidate snapshot cache")
	}
	return nil
}
