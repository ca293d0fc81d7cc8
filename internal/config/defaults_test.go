package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	assert.Equal(t, DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, DefaultServerMode, cfg.Server.Mode)
	assert.Equal(t, DefaultDBHost, cfg.Database.Host)
	assert.Equal(t, DefaultRedisAddr, cfg.Redis.Addr)
	assert.Equal(t, StorageBackendLocal, cfg.Storage.Backend)
	assert.Equal(t, DefaultCacheTTL, cfg.Storage.CacheTTL)
	assert.Equal(t, []string{DefaultKafkaBroker}, cfg.Messaging.Producer.Brokers)
	assert.Equal(t, DefaultAnnotatorURL, cfg.Annotator.Client.BaseURL)
	assert.Equal(t, DefaultGroupingMetric, cfg.Grouping.Metric)
	assert.Equal(t, DefaultGroupingThreshold, cfg.Grouping.Threshold)
	assert.Equal(t, DefaultWorkingMemoryMiB, cfg.Grouping.WorkingMemoryMiB)
	assert.Equal(t, DefaultMetricsNamespace, cfg.Metrics.Namespace)
	assert.Equal(t, DefaultLogLevel, cfg.Log.Level)
}

func TestApplyDefaults_ExplicitValuesWin(t *testing.T) {
	cfg := &Config{}
	cfg.Server.Port = 9999
	cfg.Grouping.Metric = "jaccard"
	cfg.Grouping.Threshold = 0.25
	cfg.Storage.CacheTTL = 5 * time.Minute

	ApplyDefaults(cfg)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "jaccard", cfg.Grouping.Metric)
	assert.Equal(t, 0.25, cfg.Grouping.Threshold)
	assert.Equal(t, 5*time.Minute, cfg.Storage.CacheTTL)
}

func TestApplyDefaults_NilConfig(t *testing.T) {
	assert.NotPanics(t, func() { ApplyDefaults(nil) })
}
