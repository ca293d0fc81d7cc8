package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// envPrefix is the environment variable prefix for all clinlink settings.
const envPrefix = "CLINLINK"

// configKeys lists every leaf key so that environment variables resolve
// even when neither a config file nor a default mentions the key.  Viper
// only consults the environment during Unmarshal for keys it knows about.
var configKeys = []string{
	"server.port", "server.mode", "server.read_timeout", "server.write_timeout",
	"server.shutdown_timeout",
	"database.host", "database.port", "database.database", "database.username",
	"database.password", "database.ssl_mode", "database.max_conns",
	"database.min_conns", "database.conn_max_lifetime",
	"redis.addr", "redis.password", "redis.db", "redis.pool_size",
	"redis.dial_timeout", "redis.read_timeout", "redis.write_timeout",
	"storage.backend", "storage.local_dir", "storage.cache_ttl",
	"storage.minio.endpoint", "storage.minio.access_key_id",
	"storage.minio.secret_access_key", "storage.minio.use_ssl",
	"storage.minio.region", "storage.minio.bucket",
	"messaging.enabled",
	"messaging.producer.brokers", "messaging.producer.batch_timeout",
	"messaging.producer.write_timeout", "messaging.producer.required_acks",
	"messaging.consumer.brokers", "messaging.consumer.group_id",
	"messaging.consumer.topic", "messaging.consumer.min_bytes",
	"messaging.consumer.max_bytes", "messaging.consumer.commit_interval",
	"annotator.client.base_url", "annotator.client.timeout",
	"annotator.client.max_body_bytes",
	"annotator.runner.fail_limit", "annotator.runner.skip_annotated",
	"annotator.vocabulary_path",
	"grouping.metric", "grouping.threshold", "grouping.working_memory_mib",
	"grouping.parallelism",
	"metrics.namespace", "metrics.enable_process_metrics", "metrics.enable_go_metrics",
	"log.level", "log.format", "log.output_paths", "log.error_output_paths",
}

// newViper builds a pre-configured viper instance: YAML file type, the
// CLINLINK_ env prefix, automatic env binding, and a key replacer so that
// nested keys like "database.host" resolve to "CLINLINK_DATABASE_HOST".
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range configKeys {
		_ = v.BindEnv(key)
	}
	return v
}

// Load reads the YAML file at configPath, merges CLINLINK_* environment
// variable overrides, applies defaults for unset fields, and validates the
// result.
func Load(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: cannot read config file %q: %w", configPath, err)
	}

	return unmarshalAndFinalize(v)
}

// LoadFromEnv builds a Config entirely from CLINLINK_* environment variables
// and defaults, with no config file required.  This is the loading strategy
// for containerised deployments.
func LoadFromEnv() (*Config, error) {
	return unmarshalAndFinalize(newViper())
}

func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: cannot unmarshal configuration: %w", err)
	}

	ApplyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Watch monitors configPath and invokes onChange with the newly parsed
// Config whenever the file changes on disk.  Changes that fail to parse or
// validate are dropped so the application never sees a broken config.
// Watch is non-blocking; the watcher goroutine is managed by viper.
func Watch(configPath string, onChange func(*Config)) {
	v := newViper()
	v.SetConfigFile(configPath)

	// Initial read errors are ignored; callers should Load first.
	_ = v.ReadInConfig()

	v.OnConfigChange(func(_ fsnotify.Event) {
		cfg, err := unmarshalAndFinalize(v)
		if err != nil {
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
}

// MustLoad wraps Load and panics on error.  Intended for main() where a
// config-load failure is always fatal.
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}
