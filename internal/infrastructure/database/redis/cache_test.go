package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinlink/clinlink/internal/domain/grouping"
	"github.com/clinlink/clinlink/pkg/errors"
)

// fakeRedis is an in-memory stand-in for the snapshot cache commands.
type fakeRedis struct {
	data map[string][]byte
	gets int
	sets int
}

func newFakeRedis() *fakeRedis { return &fakeRedis{data: make(map[string][]byte)} }

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	f.gets++
	if v, ok := f.data[key]; ok {
		return redis.NewStringResult(string(v), nil)
	}
	return redis.NewStringResult("", redis.Nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.sets++
	f.data[key] = value.([]byte)
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

// memStore is an in-memory grouping.Store counting loads.
type memStore struct {
	snaps map[string]*grouping.Snapshot
	loads int
}

func newMemStore() *memStore { return &memStore{snaps: make(map[string]*grouping.Snapshot)} }

func (s *memStore) Save(ctx context.Context, snap *grouping.Snapshot) error {
	s.snaps[snap.Key()] = snap
	return nil
}

func (s *memStore) Load(ctx context.Context, key string) (*grouping.Snapshot, error) {
	s.loads++
	snap, ok := s.snaps[key]
	if !ok {
		return nil, errors.New(errors.ErrCodeSnapshotNotFound, "snapshot not found")
	}
	return snap, nil
}

func (s *memStore) List(ctx context.Context) ([]string, error) {
	keys := make([]string, 0, len(s.snaps))
	for k := range s.snaps {
		keys = append(keys, k)
	}
	return keys, nil
}

func testSnap() *grouping.Snapshot {
	return &grouping.Snapshot{
		Name:           "trials",
		Metric:         grouping.MetricCosine,
		Threshold:      0.4,
		Groups:         []grouping.Group{{"a", "b"}},
		GroupsComputed: true,
	}
}

func TestSnapshotCache_SaveWritesThrough(t *testing.T) {
	rdb, store := newFakeRedis(), newMemStore()
	cache := NewSnapshotCache(rdb, store, 0, nil)

	require.NoError(t, cache.Save(context.Background(), testSnap()))

	assert.Contains(t, store.snaps, "trials_cosine_04")
	assert.Contains(t, rdb.data, cacheKeyPrefix+"trials_cosine_04")
}

func TestSnapshotCache_LoadHitSkipsStore(t *testing.T) {
	rdb, store := newFakeRedis(), newMemStore()
	cache := NewSnapshotCache(rdb, store, 0, nil)
	ctx := context.Background()

	require.NoError(t, cache.Save(ctx, testSnap()))

	got, err := cache.Load(ctx, "trials_cosine_04")
	require.NoError(t, err)
	assert.Equal(t, []grouping.Group{{"a", "b"}}, got.Groups)
	assert.Zero(t, store.loads, "cache hit never touches the store")
}

func TestSnapshotCache_LoadMissBackfills(t *testing.T) {
	rdb, store := newFakeRedis(), newMemStore()
	require.NoError(t, store.Save(context.Background(), testSnap()))
	cache := NewSnapshotCache(rdb, store, 0, nil)

	got, err := cache.Load(context.Background(), "trials_cosine_04")
	require.NoError(t, err)
	assert.Equal(t, "trials", got.Name)
	assert.Equal(t, 1, store.loads)
	assert.Contains(t, rdb.data, cacheKeyPrefix+"trials_cosine_04", "miss backfills the cache")

	_, err = cache.Load(context.Background(), "trials_cosine_04")
	require.NoError(t, err)
	assert.Equal(t, 1, store.loads, "second read served from cache")
}

func TestSnapshotCache_LoadMissingPropagates(t *testing.T) {
	cache := NewSnapshotCache(newFakeRedis(), newMemStore(), 0, nil)

	_, err := cache.Load(context.Background(), "nope_cosine_04")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeSnapshotNotFound, errors.GetCode(err))
}

func TestSnapshotCache_CorruptEntryDroppedAndReloaded(t *testing.T) {
	rdb, store := newFakeRedis(), newMemStore()
	require.NoError(t, store.Save(context.Background(), testSnap()))
	rdb.data[cacheKeyPrefix+"trials_cosine_04"] = []byte("{broken")

	cache := NewSnapshotCache(rdb, store, 0, nil)
	got, err := cache.Load(context.Background(), "trials_cosine_04")
	require.NoError(t, err)
	assert.Equal(t, "trials", got.Name)
	assert.Equal(t, 1, store.loads)

	// The backfilled entry is valid JSON again.
	var snap grouping.Snapshot
	require.NoError(t, json.Unmarshal(rdb.data[cacheKeyPrefix+"trials_cosine_04"], &snap))
	assert.Equal(t, "trials", snap.Name)
}

func TestSnapshotCache_Invalidate(t *testing.T) {
	rdb, store := newFakeRedis(), newMemStore()
	cache := NewSnapshotCache(rdb, store, 0, nil)
	ctx := context.Background()

	require.NoError(t, cache.Save(ctx, testSnap()))
	require.NoError(t, cache.Invalidate(ctx, "trials_cosine_04"))
	assert.NotContains(t, rdb.data, cacheKeyPrefix+"trials_cosine_04")

	// Next load falls back to the store.
	_, err := cache.Load(ctx, "trials_cosine_04")
	require.NoError(t, err)
	assert.Equal(t, 1, store.loads)
}
