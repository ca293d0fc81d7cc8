package minio

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"

	"github.com/clinlink/clinlink/internal/domain/grouping"
	"github.com/clinlink/clinlink/internal/intelligence/annotator"
	"github.com/clinlink/clinlink/pkg/errors"
)

const (
	snapshotPrefix   = "snapshots/"
	annotationPrefix = "annotations/"
	jsonExt          = ".json"
	jsonContentType  = "application/json"
)

// SnapshotStore implements grouping.Store on the object store, one JSON
// object per snapshot under the snapshots/ prefix.
type SnapshotStore struct {
	c *Client
}

// NewSnapshotStore returns a snapshot store over the client's bucket.
func NewSnapshotStore(c *Client) *SnapshotStore {
	return &SnapshotStore{c: c}
}

// Save writes the snapshot under its derived key.
func (s *SnapshotStore) Save(ctx context.Context, snap *grouping.Snapshot) error {
	if err := grouping.ValidateKeyPart(snap.Name); err != nil {
		return err
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "cannot encode snapshot")
	}
	key := snapshotPrefix + snap.Key() + jsonExt
	_, err = s.c.api.PutObject(ctx, s.c.bucket, key,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: jsonContentType})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "cannot store snapshot")
	}
	return nil
}

// Load reads the snapshot stored under the key.
func (s *SnapshotStore) Load(ctx context.Context, key string) (*grouping.Snapshot, error) {
	if err := grouping.ValidateKeyPart(key); err != nil {
		return nil, err
	}
	data, err := s.c.api.ReadObject(ctx, s.c.bucket, snapshotPrefix+key+jsonExt)
	if err != nil {
		if isNoSuchKey(err) {
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
	var keys []string
	for info := range s.c.api.ListObjects(ctx, s.c.bucket,
		minio.ListObjectsOptions{Prefix: snapshotPrefix, Recursive: true}) {
		if info.Err != nil {
			return nil, errors.Wrap(info.Err, errors.ErrCodeStorageError, "cannot list snapshots")
		}
		name := strings.TrimPrefix(info.Key, snapshotPrefix)
		if !strings.HasSuffix(name, jsonExt) {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, jsonExt))
	}
	sort.Strings(keys)
	return keys, nil
}

// AnnotationSink implements annotator.Sink on the object store, one JSON
// document per record under the annotations/ prefix.
type AnnotationSink struct {
	c *Client
}

// NewAnnotationSink returns an annotation sink over the client's bucket.
func NewAnnotationSink(c *Client) *AnnotationSink {
	return &AnnotationSink{c: c}
}

// Exists reports whether an annotation document is stored for the record.
func (s *AnnotationSink) Exists(ctx context.Context, recordID string) (bool, error) {
	_, err := s.c.api.StatObject(ctx, s.c.bucket,
		annotationPrefix+recordID+jsonExt, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if isNoSuchKey(err) {
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
	_, err = s.c.api.PutObject(ctx, s.c.bucket, annotationPrefix+recordID+jsonExt,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: jsonContentType})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "cannot store annotation")
	}
	return nil
}

// Get reads the stored annotation document for the record.
func (s *AnnotationSink) Get(ctx context.Context, recordID string) (*annotator.Annotation, error) {
	data, err := s.c.api.ReadObject(ctx, s.c.bucket, annotationPrefix+recordID+jsonExt)
	if err != nil {
		if isNoSuchKey(err) {
			return nil, errors.New(errors.ErrCodeNotFound,
				"annotation not found").WithDetail("record: " + recordID)
		}
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "cannot read annotation")
	}
	return annotator.ParseAnnotation(data)
}
