package local

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinlink/clinlink/internal/domain/grouping"
	"github.com/clinlink/clinlink/internal/intelligence/annotator"
	"github.com/clinlink/clinlink/pkg/errors"
)

func testSnapshot() *grouping.Snapshot {
	return &grouping.Snapshot{
		Name:           "trials",
		Metric:         grouping.MetricCosine,
		Threshold:      0.4,
		Groups:         []grouping.Group{{"a", "b"}},
		GroupsComputed: true,
	}
}

func TestSnapshotStore_SaveLoad(t *testing.T) {
	store, err := NewSnapshotStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testSnapshot()))

	got, err := store.Load(ctx, "trials_cosine_04")
	require.NoError(t, err)
	assert.Equal(t, "trials", got.Name)
	assert.Equal(t, grouping.MetricCosine, got.Metric)
	assert.Equal(t, []grouping.Group{{"a", "b"}}, got.Groups)
	assert.True(t, got.GroupsComputed)
}

func TestSnapshotStore_SaveReplaces(t *testing.T) {
	store, err := NewSnapshotStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testSnapshot()))

	updated := testSnapshot()
	updated.Groups = []grouping.Group{{"a", "b"}, {"c", "d"}}
	require.NoError(t, store.Save(ctx, updated))

	got, err := store.Load(ctx, updated.Key())
	require.NoError(t, err)
	assert.Len(t, got.Groups, 2)

	keys, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"trials_cosine_04"}, keys)
}

func TestSnapshotStore_LoadMissing(t *testing.T) {
	store, err := NewSnapshotStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Load(context.Background(), "nope_cosine_04")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeSnapshotNotFound, errors.GetCode(err))
}

func TestSnapshotStore_LoadCorrupted(t *testing.T) {
	dir := t.TempDir()
	store, err := NewSnapshotStore(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad_cosine_04.json"), []byte("{broken"), 0o644))

	_, err = store.Load(context.Background(), "bad_cosine_04")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeSnapshotCorrupted, errors.GetCode(err))
}

func TestSnapshotStore_InvalidKey(t *testing.T) {
	store, err := NewSnapshotStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Load(context.Background(), "../escape")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeSnapshotKeyInvalid, errors.GetCode(err))

	bad := testSnapshot()
	bad.Name = "a/b"
	err = store.Save(context.Background(), bad)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeSnapshotKeyInvalid, errors.GetCode(err))
}

func TestSnapshotStore_List(t *testing.T) {
	store, err := NewSnapshotStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	keys, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)

	a := testSnapshot()
	b := testSnapshot()
	b.Name = "pubs"
	require.NoError(t, store.Save(ctx, a))
	require.NoError(t, store.Save(ctx, b))

	keys, err = store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"pubs_cosine_04", "trials_cosine_04"}, keys)
}

func TestAnnotationSink_PutExistsGet(t *testing.T) {
	sink, err := NewAnnotationSink(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	exists, err := sink.Exists(ctx, "NCT001")
	require.NoError(t, err)
	assert.False(t, exists)

	doc := &annotator.Annotation{
		Text: "aspirin for migraine",
		Denotations: []annotator.Denotation{
			{Span: annotator.Span{Begin: 0, End: 7}, Obj: "drug", IDs: []string{"CHEBI:15365"}},
		},
	}
	require.NoError(t, sink.Put(ctx, "NCT001", doc))

	exists, err = sink.Exists(ctx, "NCT001")
	require.NoError(t, err)
	assert.True(t, exists)

	got, err := sink.Get(ctx, "NCT001")
	require.NoError(t, err)
	assert.Equal(t, doc.Text, got.Text)
	require.Len(t, got.Denotations, 1)
	assert.Equal(t, "drug", got.Denotations[0].Obj)

	ids, err := sink.ListIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"NCT001"}, ids)
}

func TestAnnotationSink_GetMissing(t *testing.T) {
	sink, err := NewAnnotationSink(t.TempDir())
	require.NoError(t, err)

	_, err = sink.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}
