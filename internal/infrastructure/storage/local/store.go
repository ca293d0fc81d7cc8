// Package local persists grouping snapshots and raw annotation documents as
// JSON files under a base directory.  It is the default store for
// single-machine runs; the minio package provides the object-storage
// equivalent.
package local

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/clinlink/clinlink/internal/domain/grouping"
	"github.com/clinlink/clinlink/internal/intelligence/annotator"
	"github.com/clinlink/clinlink/pkg/errors"
)

const snapshotExt = ".json"

// SnapshotStore implements grouping.Store on a local directory, one JSON
// file per snapshot named after its key.
type SnapshotStore struct {
	dir string
}

// NewSnapshotStore creates the base directory if needed and returns the
// store.
func NewSnapshotStore(dir string) (*SnapshotStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorageError,
			"cannot create snapshot directory")
	}
	return &SnapshotStore{dir: dir}, nil
}

// Save writes the snapshot under its derived key.  The write is atomic:
// a temp file in the same directory renamed over the target, so a crashed
// save never leaves a truncated snapshot behind.
func (s *SnapshotStore) Save(ctx context.Context, snap *grouping.Snapshot) error {
	if err := grouping.ValidateKeyPart(snap.Name); err != nil {
		return err
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "cannot encode snapshot")
	}

	target := filepath.Join(s.dir, snap.Key()+snapshotExt)
	tmp, err := os.CreateTemp(s.dir, snap.Key()+".tmp-*")
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "cannot create snapshot temp file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, errors.ErrCodeStorageError, "cannot write snapshot")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "cannot write snapshot")
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "cannot finalize snapshot")
	}
	return nil
}

// Load reads the snapshot stored under the key.
func (s *SnapshotStore) Load(ctx context.Context, key string) (*grouping.Snapshot, error) {
	if err := grouping.ValidateKeyPart(key); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.dir, key+snapshotExt))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.ErrCodeSnapshotNotFound,
				"snapshot not found").WithDetail("key: " + key)
		}
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "cannot read snapshot")
	}

	var snap grouping.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSnapshotCorrupted,
			"cannot decode snapshot").WithDetail("key: " + key)
	}
	return &snap, nil
}

// List returns the keys of all stored snapshots, sorted.
func (s *SnapshotStore) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "cannot list snapshots")
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, snapshotExt) || strings.Contains(name, ".tmp-") {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, snapshotExt))
	}
	sort.Strings(keys)
	return keys, nil
}

// AnnotationSink implements annotator.Sink on a local directory, one JSON
// document per record.
type AnnotationSink struct {
	dir string
}

// NewAnnotationSink creates the base directory if needed and returns the
// sink.
func NewAnnotationSink(dir string) (*AnnotationSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorageError,
			"cannot create annotation directory")
	}
	return &AnnotationSink{dir: dir}, nil
}

// Exists reports whether an annotation document is stored for the record.
func (s *AnnotationSink) Exists(ctx context.Context, recordID string) (bool, error) {
	_, err := os.Stat(filepath.Join(s.dir, recordID+snapshotExt))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errors.Wrap(err, errors.ErrCodeStorageError, "cannot stat annotation")
}

// Put stores the annotation document for the record.
func (s *AnnotationSink) Put(ctx context.Context, recordID string, a *annotator.Annotation) error {
	data, err := json.Marshal(a)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "cannot encode annotation")
	}
	target := filepath.Join(s.dir, recordID+snapshotExt)
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "cannot write annotation")
	}
	return nil
}

// Get reads the stored annotation document for the record.
func (s *AnnotationSink) Get(ctx context.Context, recordID string) (*annotator.Annotation, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, recordID+snapshotExt))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.ErrCodeNotFound,
				"annotation not found").WithDetail("record: " + recordID)
		}
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "cannot read annotation")
	}
	return annotator.ParseAnnotation(data)
}

// ListIDs returns the record IDs of all stored annotation documents, sorted.
func (s *AnnotationSink) ListIDs(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "cannot list annotations")
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, snapshotExt) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, snapshotExt))
	}
	sort.Strings(ids)
	return ids, nil
}
