package config

import "time"

const (
	DefaultServerPort = 8080
	DefaultServerMode = "release"

	DefaultDBHost = "localhost"
	DefaultDBPort = 5432
	DefaultDBName = "clinlink"

	DefaultRedisAddr = "localhost:6379"

	DefaultKafkaBroker  = "localhost:9092"
	DefaultKafkaGroupID = "clinlink-worker"

	DefaultStorageBackend = StorageBackendLocal
	DefaultLocalDir       = "data/snapshots"
	DefaultCacheTTL       = time.Hour

	DefaultAnnotatorURL     = "https://bern.korea.ac.kr/plain"
	DefaultAnnotatorTimeout = 30 * time.Second
	DefaultVocabularyPath   = "data/vocabulary.json"
	DefaultFailLimit        = 5

	DefaultGroupingMetric    = "cosine"
	DefaultGroupingThreshold = 0.4
	DefaultWorkingMemoryMiB  = 1024

	DefaultMetricsNamespace = "clinlink"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// ApplyDefaults fills zero-value fields in cfg with well-known defaults.
// Fields already set by the caller are left unchanged so that explicit
// configuration always wins.  It must run after unmarshalling and before
// Validate so defaulted fields are never seen as missing.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = DefaultServerMode
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}

	if cfg.Database.Host == "" {
		cfg.Database.Host = DefaultDBHost
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = DefaultDBPort
	}
	if cfg.Database.Database == "" {
		cfg.Database.Database = DefaultDBName
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 10
	}

	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}

	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = DefaultStorageBackend
	}
	if cfg.Storage.LocalDir == "" {
		cfg.Storage.LocalDir = DefaultLocalDir
	}
	if cfg.Storage.CacheTTL == 0 {
		cfg.Storage.CacheTTL = DefaultCacheTTL
	}

	if len(cfg.Messaging.Producer.Brokers) == 0 {
		cfg.Messaging.Producer.Brokers = []string{DefaultKafkaBroker}
	}
	if len(cfg.Messaging.Consumer.Brokers) == 0 {
		cfg.Messaging.Consumer.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Messaging.Consumer.GroupID == "" {
		cfg.Messaging.Consumer.GroupID = DefaultKafkaGroupID
	}

	if cfg.Annotator.Client.BaseURL == "" {
		cfg.Annotator.Client.BaseURL = DefaultAnnotatorURL
	}
	if cfg.Annotator.Client.Timeout == 0 {
		cfg.Annotator.Client.Timeout = DefaultAnnotatorTimeout
	}
	if cfg.Annotator.Runner.FailLimit == 0 {
		cfg.Annotator.Runner.FailLimit = DefaultFailLimit
	}
	if cfg.Annotator.VocabularyPath == "" {
		cfg.Annotator.VocabularyPath = DefaultVocabularyPath
	}

	if cfg.Grouping.Metric == "" {
		cfg.Grouping.Metric = DefaultGroupingMetric
	}
	if cfg.Grouping.Threshold == 0 {
		cfg.Grouping.Threshold = DefaultGroupingThreshold
	}
	if cfg.Grouping.WorkingMemoryMiB == 0 {
		cfg.Grouping.WorkingMemoryMiB = DefaultWorkingMemoryMiB
	}

	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
}
