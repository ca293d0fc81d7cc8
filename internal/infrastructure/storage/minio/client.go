// Package minio persists grouping snapshots and raw annotation documents in
// an S3-compatible object store, mirroring the local filesystem store for
// deployments where pipeline stages run on different machines.
package minio

import (
	"context"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/clinlink/clinlink/internal/infrastructure/monitoring/logging"
	"github.com/clinlink/clinlink/pkg/errors"
)

// Config holds the object-store connection parameters.
type Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New(errors.ErrCodeValidation, "minio endpoint is required")
	}
	if c.Bucket == "" {
		return errors.New(errors.ErrCodeValidation, "minio bucket is required")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Region == "" {
		c.Region = "us-east-1"
	}
}

// API is the narrow slice of the object-store client this package uses.
// ReadObject replaces the raw streaming read with a whole-object read, which
// is the only access pattern snapshots and annotation documents need.
type API interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	ReadObject(ctx context.Context, bucket, key string) ([]byte, error)
	StatObject(ctx context.Context, bucket, key string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	ListObjects(ctx context.Context, bucket string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	RemoveObject(ctx context.Context, bucket, key string, opts minio.RemoveObjectOptions) error
}

// minioAPI adapts *minio.Client to the API interface.
type minioAPI struct {
	*minio.Client
}

func (a minioAPI) ReadObject(ctx context.Context, bucket, key string) ([]byte, error) {
	obj, err := a.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	return io.ReadAll(obj)
}

// Client wraps the object-store connection with the configured bucket.
type Client struct {
	api    API
	bucket string
	logger logging.Logger
}

// NewClient connects to the object store, verifies reachability and ensures
// the configured bucket exists.
func NewClient(cfg *Config, logger logging.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "cannot create object-store client")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c := &Client{api: minioAPI{mc}, bucket: cfg.Bucket, logger: logger}
	if err := c.ensureBucket(ctx, cfg.Region); err != nil {
		return nil, err
	}

	logger.Info("object store connected",
		logging.String("endpoint", cfg.Endpoint),
		logging.String("bucket", cfg.Bucket))
	return c, nil
}

// NewClientWithAPI wires a Client over an existing API implementation.
func NewClientWithAPI(api API, bucket string, logger logging.Logger) *Client {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Client{api: api, bucket: bucket, logger: logger}
}

func (c *Client) ensureBucket(ctx context.Context, region string) error {
	exists, err := c.api.BucketExists(ctx, c.bucket)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeServiceUnavailable, "cannot reach object store")
	}
	if exists {
		return nil
	}
	if err := c.api.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "cannot create bucket")
	}
	return nil
}

// isNoSuchKey reports whether the error is the object store's missing-object
// response.
func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}
