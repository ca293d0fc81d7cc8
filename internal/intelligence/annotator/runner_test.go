package annotator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinlink/clinlink/internal/domain/record"
	"github.com/clinlink/clinlink/pkg/errors"
)

type fakeAnnotator struct {
	failFor map[string]bool
	calls   []string
}

func (f *fakeAnnotator) Annotate(ctx context.Context, text string) (*Annotation, error) {
	f.calls = append(f.calls, text)
	if f.failFor[text] {
		return nil, errors.New(errors.ErrCodeAnnotationRequestFailed, "annotation request failed")
	}
	return &Annotation{Text: text}, nil
}

type memSink struct {
	docs map[string]*Annotation
}

func newMemSink() *memSink { return &memSink{docs: make(map[string]*Annotation)} }

func (s *memSink) Exists(ctx context.Context, recordID string) (bool, error) {
	_, ok := s.docs[recordID]
	return ok, nil
}

func (s *memSink) Put(ctx context.Context, recordID string, a *Annotation) error {
	s.docs[recordID] = a
	return nil
}

func runnerDataset(t *testing.T, ids ...string) *record.Dataset {
	t.Helper()
	ds := record.NewDataset()
	for _, id := range ids {
		require.NoError(t, ds.Add(&record.Record{
			ID:     id,
			Source: record.SourcePubMed,
			Text:   "text of " + id,
		}))
	}
	return ds
}

func TestRunner_Run(t *testing.T) {
	ds := runnerDataset(t, "a", "b", "c")
	sink := newMemSink()
	r := NewRunner(&fakeAnnotator{}, sink, RunnerConfig{}, nil)

	stats, err := r.Run(context.Background(), ds)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Processed)
	assert.Zero(t, stats.Failed)
	assert.Zero(t, stats.Skipped)
	assert.Len(t, sink.docs, 3)
}

func TestRunner_Run_SkipAnnotated(t *testing.T) {
	ds := runnerDataset(t, "a", "b")
	sink := newMemSink()
	sink.docs["a"] = &Annotation{Text: "already stored"}

	fake := &fakeAnnotator{}
	r := NewRunner(fake, sink, RunnerConfig{SkipAnnotated: true}, nil)

	stats, err := r.Run(context.Background(), ds)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, []string{"text of b"}, fake.calls)
	assert.Equal(t, "already stored", sink.docs["a"].Text, "stored document untouched")
}

func TestRunner_Run_FailuresCountedNotFatal(t *testing.T) {
	ds := runnerDataset(t, "a", "b", "c")
	fake := &fakeAnnotator{failFor: map[string]bool{"text of b": true}}
	r := NewRunner(fake, newMemSink(), RunnerConfig{FailLimit: 5}, nil)

	stats, err := r.Run(context.Background(), ds)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Processed)
	assert.Equal(t, 1, stats.Failed)
}

func TestRunner_Run_FailLimitBreaks(t *testing.T) {
	ds := runnerDataset(t, "a", "b", "c", "d", "e")
	fake := &fakeAnnotator{failFor: map[string]bool{
		"text of b": true,
		"text of c": true,
		"text of d": true,
	}}
	r := NewRunner(fake, newMemSink(), RunnerConfig{FailLimit: 2}, nil)

	stats, err := r.Run(context.Background(), ds)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeAnnotationFailLimit, errors.GetCode(err))
	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, 3, stats.Failed)
	// The breaker fired before e was attempted.
	assert.NotContains(t, fake.calls, "text of e")
}

func TestRunner_Run_ConsecutiveCounterResets(t *testing.T) {
	// Failures interleaved with successes never reach the limit.
	ds := runnerDataset(t, "a", "b", "c", "d")
	fake := &fakeAnnotator{failFor: map[string]bool{
		"text of a": true,
		"text of c": true,
	}}
	r := NewRunner(fake, newMemSink(), RunnerConfig{FailLimit: 1}, nil)

	stats, err := r.Run(context.Background(), ds)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Processed)
	assert.Equal(t, 2, stats.Failed)
}

func TestRunner_Run_ContextCanceled(t *testing.T) {
	ds := runnerDataset(t, "a", "b")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewRunner(&fakeAnnotator{}, newMemSink(), RunnerConfig{}, nil)
	_, err := r.Run(ctx, ds)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeTimeout, errors.GetCode(err))
}
