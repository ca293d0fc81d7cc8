package minio

import (
	"context"
	"io"
	"sort"
	"testing"

	miniosdk "github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinlink/clinlink/internal/domain/grouping"
	"github.com/clinlink/clinlink/internal/intelligence/annotator"
	"github.com/clinlink/clinlink/pkg/errors"
)

// fakeAPI is an in-memory object store.
type fakeAPI struct {
	objects map[string][]byte
}

func newFakeAPI() *fakeAPI { return &fakeAPI{objects: make(map[string][]byte)} }

func (f *fakeAPI) BucketExists(ctx context.Context, bucket string) (bool, error) {
	return true, nil
}

func (f *fakeAPI) MakeBucket(ctx context.Context, bucket string, opts miniosdk.MakeBucketOptions) error {
	return nil
}

func (f *fakeAPI) PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts miniosdk.PutObjectOptions) (miniosdk.UploadInfo, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return miniosdk.UploadInfo{}, err
	}
	f.objects[key] = data
	return miniosdk.UploadInfo{Bucket: bucket, Key: key, Size: int64(len(data))}, nil
}

func (f *fakeAPI) ReadObject(ctx context.Context, bucket, key string) ([]byte, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, miniosdk.ErrorResponse{Code: "NoSuchKey"}
	}
	return data, nil
}

func (f *fakeAPI) StatObject(ctx context.Context, bucket, key string, opts miniosdk.StatObjectOptions) (miniosdk.ObjectInfo, error) {
	if _, ok := f.objects[key]; !ok {
		return miniosdk.ObjectInfo{}, miniosdk.ErrorResponse{Code: "NoSuchKey"}
	}
	return miniosdk.ObjectInfo{Key: key}, nil
}

func (f *fakeAPI) ListObjects(ctx context.Context, bucket string, opts miniosdk.ListObjectsOptions) <-chan miniosdk.ObjectInfo {
	ch := make(chan miniosdk.ObjectInfo)
	go func() {
		defer close(ch)
		var keys []string
		for k := range f.objects {
			if len(opts.Prefix) == 0 || (len(k) >= len(opts.Prefix) && k[:len(opts.Prefix)] == opts.Prefix) {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			ch <- miniosdk.ObjectInfo{Key: k}
		}
	}()
	return ch
}

func (f *fakeAPI) RemoveObject(ctx context.Context, bucket, key string, opts miniosdk.RemoveObjectOptions) error {
	delete(f.objects, key)
	return nil
}

func testClient() (*Client, *fakeAPI) {
	api := newFakeAPI()
	return NewClientWithAPI(api, "clinlink", nil), api
}

func TestSnapshotStore_RoundTrip(t *testing.T) {
	c, _ := testClient()
	store := NewSnapshotStore(c)
	ctx := context.Background()

	snap := &grouping.Snapshot{
		Name:           "trials",
		Metric:         grouping.MetricCosine,
		Threshold:      0.4,
		Groups:         []grouping.Group{{"a", "b"}},
		GroupsComputed: true,
	}
	require.NoError(t, store.Save(ctx, snap))

	got, err := store.Load(ctx, "trials_cosine_04")
	require.NoError(t, err)
	assert.Equal(t, snap.Groups, got.Groups)
	assert.True(t, got.GroupsComputed)

	keys, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"trials_cosine_04"}, keys)
}

func TestSnapshotStore_LoadMissing(t *testing.T) {
	c, _ := testClient()
	store := NewSnapshotStore(c)

	_, err := store.Load(context.Background(), "nope_cosine_04")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeSnapshotNotFound, errors.GetCode(err))
}

func TestSnapshotStore_LoadCorrupted(t *testing.T) {
	c, api := testClient()
	store := NewSnapshotStore(c)
	api.objects["snapshots/bad_cosine_04.json"] = []byte("{broken")

	_, err := store.Load(context.Background(), "bad_cosine_04")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeSnapshotCorrupted, errors.GetCode(err))
}

func TestAnnotationSink(t *testing.T) {
	c, _ := testClient()
	sink := NewAnnotationSink(c)
	ctx := context.Background()

	exists, err := sink.Exists(ctx, "NCT001")
	require.NoError(t, err)
	assert.False(t, exists)

	doc := &annotator.Annotation{Text: "aspirin for migraine"}
	require.NoError(t, sink.Put(ctx, "NCT001", doc))

	exists, err = sink.Exists(ctx, "NCT001")
	require.NoError(t, err)
	assert.True(t, exists)

	got, err := sink.Get(ctx, "NCT001")
	require.NoError(t, err)
	assert.Equal(t, doc.Text, got.Text)

	_, err = sink.Get(ctx, "missing")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestSnapshotAndAnnotationPrefixesAreSeparate(t *testing.T) {
	c, api := testClient()
	ctx := context.Background()

	require.NoError(t, NewSnapshotStore(c).Save(ctx, &grouping.Snapshot{
		Name: "trials", Metric: grouping.MetricCosine, Threshold: 0.4,
	}))
	require.NoError(t, NewAnnotationSink(c).Put(ctx, "NCT001", &annotator.Annotation{}))

	assert.Contains(t, api.objects, "snapshots/trials_cosine_04.json")
	assert.Contains(t, api.objects, "annotations/NCT001.json")

	keys, err := NewSnapshotStore(c).List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"trials_cosine_04"}, keys, "annotation documents never leak into snapshot listings")
}
