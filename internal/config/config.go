// Package config defines the configuration structures for the clinlink
// services.  No I/O or parsing logic lives here, only data types and
// validation.
package config

import (
	"fmt"
	"time"

	"github.com/clinlink/clinlink/internal/infrastructure/database/postgres"
	"github.com/clinlink/clinlink/internal/infrastructure/database/redis"
	"github.com/clinlink/clinlink/internal/infrastructure/messaging/kafka"
	"github.com/clinlink/clinlink/internal/infrastructure/monitoring/logging"
	"github.com/clinlink/clinlink/internal/infrastructure/monitoring/prometheus"
	"github.com/clinlink/clinlink/internal/infrastructure/storage/minio"
	"github.com/clinlink/clinlink/internal/intelligence/annotator"
)

// Storage backends for grouping snapshots.
const (
	StorageBackendLocal = "local"
	StorageBackendMinIO = "minio"
)

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// GroupingConfig holds the default parameters for grouping runs.  Requests
// may override metric and threshold per run.
type GroupingConfig struct {
	Metric           string  `mapstructure:"metric"`    // "cosine" | "jaccard"
	Threshold        float64 `mapstructure:"threshold"` // distance cutoff, (0, 1]
	WorkingMemoryMiB int     `mapstructure:"working_memory_mib"`
	Parallelism      int     `mapstructure:"parallelism"`
}

// StorageConfig selects and configures the snapshot storage backend.
type StorageConfig struct {
	Backend  string        `mapstructure:"backend"` // "local" | "minio"
	LocalDir string        `mapstructure:"local_dir"`
	MinIO    minio.Config  `mapstructure:"minio"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// AnnotatorConfig bundles the annotation client and runner settings plus
// the vocabulary used to normalize recognized mentions.
type AnnotatorConfig struct {
	Client         annotator.ClientConfig `mapstructure:"client"`
	Runner         annotator.RunnerConfig `mapstructure:"runner"`
	VocabularyPath string                 `mapstructure:"vocabulary_path"`
}

// MessagingConfig bundles Kafka producer and consumer settings.
type MessagingConfig struct {
	Enabled  bool                 `mapstructure:"enabled"`
	Producer kafka.ProducerConfig `mapstructure:"producer"`
	Consumer kafka.ConsumerConfig `mapstructure:"consumer"`
}

// Config is the root configuration for all clinlink binaries.
type Config struct {
	Server    ServerConfig               `mapstructure:"server"`
	Database  postgres.Config            `mapstructure:"database"`
	Redis     redis.Config               `mapstructure:"redis"`
	Storage   StorageConfig              `mapstructure:"storage"`
	Messaging MessagingConfig            `mapstructure:"messaging"`
	Annotator AnnotatorConfig            `mapstructure:"annotator"`
	Grouping  GroupingConfig             `mapstructure:"grouping"`
	Metrics   prometheus.CollectorConfig `mapstructure:"metrics"`
	Log       logging.Config             `mapstructure:"log"`
}

// Validate performs semantic validation of the fully-populated Config.
// It returns the first error encountered; callers should treat any error
// as fatal and refuse to start.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("config: server.mode %q is invalid; expected debug|release|test", c.Server.Mode)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("config: database.host is required")
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("config: database.port %d is out of range [1, 65535]", c.Database.Port)
	}
	if c.Database.Username == "" {
		return fmt.Errorf("config: database.username is required")
	}
	if c.Database.Database == "" {
		return fmt.Errorf("config: database.database is required")
	}

	if c.Redis.Addr == "" {
		return fmt.Errorf("config: redis.addr is required")
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("config: redis.db must be >= 0, got %d", c.Redis.DB)
	}

	switch c.Storage.Backend {
	case StorageBackendLocal:
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("config: storage.local_dir is required for the local backend")
		}
	case StorageBackendMinIO:
		if err := c.Storage.MinIO.Validate(); err != nil {
			return fmt.Errorf("config: storage.minio: %w", err)
		}
	default:
		return fmt.Errorf("config: storage.backend %q is invalid; expected local|minio", c.Storage.Backend)
	}

	if c.Messaging.Enabled {
		if len(c.Messaging.Producer.Brokers) == 0 {
			return fmt.Errorf("config: messaging.producer.brokers must contain at least one broker")
		}
		if len(c.Messaging.Consumer.Brokers) == 0 {
			return fmt.Errorf("config: messaging.consumer.brokers must contain at least one broker")
		}
		if c.Messaging.Consumer.GroupID == "" {
			return fmt.Errorf("config: messaging.consumer.group_id is required")
		}
	}

	if c.Annotator.Client.BaseURL == "" {
		return fmt.Errorf("config: annotator.client.base_url is required")
	}
	if c.Annotator.VocabularyPath == "" {
		return fmt.Errorf("config: annotator.vocabulary_path is required")
	}

	switch c.Grouping.Metric {
	case "cosine", "jaccard":
	default:
		return fmt.Errorf("config: grouping.metric %q is invalid; expected cosine|jaccard", c.Grouping.Metric)
	}
	if c.Grouping.Threshold <= 0 || c.Grouping.Threshold > 1 {
		return fmt.Errorf("config: grouping.threshold %v is out of range (0, 1]", c.Grouping.Threshold)
	}
	if c.Grouping.WorkingMemoryMiB < 1 {
		return fmt.Errorf("config: grouping.working_memory_mib must be >= 1, got %d", c.Grouping.WorkingMemoryMiB)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	return nil
}
