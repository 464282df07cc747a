package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDefaultConfig(t *testing.T) {
	config := GetDefaultConfig()

	assert.NotNil(t, config)
	assert.NotNil(t, config.RPC)
	assert.NotNil(t, config.Cache)
	assert.NotNil(t, config.Registry)
	assert.NotNil(t, config.Analyzer)
	assert.NotNil(t, config.Output)
	assert.NotNil(t, config.Logging)

	// 缓存默认值
	assert.Equal(t, 10*time.Minute, config.Cache.TTL)
	assert.Equal(t, 1000, config.Cache.MaxEntries)
	assert.Equal(t, 5, config.Cache.BatchConcurrency)
	assert.Empty(t, config.Cache.PersistPath)

	// 分析器默认值
	assert.Equal(t, 30*time.Second, config.Analyzer.Timeout)
	assert.Equal(t, 4, config.Analyzer.Workers)
	assert.True(t, config.Analyzer.EnableWarnings)

	// 输出默认值
	assert.Equal(t, "file", config.Output.Format)
	assert.Equal(t, "./outputs", config.Output.Directory)
	assert.Equal(t, []string{"localhost:9092"}, config.Output.Kafka.Brokers)
	assert.Equal(t, "contract_analyses", config.Output.Kafka.Topics["analyses"])

	// 日志默认值
	assert.Equal(t, "info", config.Logging.Level)
	assert.Equal(t, "json", config.Logging.Format)
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	yaml := `
rpc:
  url: "http://localhost:8545"
  timeout: 5s
cache:
  ttl: 2m
  max_entries: 50
analyzer:
  workers: 8
output:
  format: kafka
  kafka:
    brokers:
      - "kafka-1:9092"
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	config, err := LoadConfigFromFile(path)
	require.NoError(t, err)

	// 文件中的值覆盖默认
	assert.Equal(t, "http://localhost:8545", config.RPC.URL)
	assert.Equal(t, 5*time.Second, config.RPC.Timeout)
	assert.Equal(t, 2*time.Minute, config.Cache.TTL)
	assert.Equal(t, 50, config.Cache.MaxEntries)
	assert.Equal(t, 8, config.Analyzer.Workers)
	assert.Equal(t, "kafka", config.Output.Format)
	assert.Equal(t, []string{"kafka-1:9092"}, config.Output.Kafka.Brokers)

	// 文件未提及的字段保持默认
	assert.Equal(t, 30*time.Second, config.Analyzer.Timeout)
	assert.Equal(t, 5, config.Cache.BatchConcurrency)
}

func TestLoadConfigFromFile_MissingFileUsesDefaults(t *testing.T) {
	config, err := LoadConfigFromFile("/nonexistent/config.yaml")

	require.NoError(t, err)
	assert.Equal(t, GetDefaultConfig().Cache.TTL, config.Cache.TTL)
}

func TestLoadConfigFromFile_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rpc: [broken"), 0644))

	config, err := LoadConfigFromFile(path)

	assert.Error(t, err)
	assert.Nil(t, config)
}

func TestValidate(t *testing.T) {
	config := GetDefaultConfig()
	assert.NoError(t, config.Validate())

	config.Cache.MaxEntries = -1
	assert.Error(t, config.Validate())

	config = GetDefaultConfig()
	config.Analyzer.Workers = -2
	assert.Error(t, config.Validate())

	config = GetDefaultConfig()
	config.Output.Format = "csv"
	assert.Error(t, config.Validate())
}

func TestLoadConfig_NoDSNFallsBackToFile(t *testing.T) {
	original := os.Getenv("SENTINEL_DB_DSN")
	os.Unsetenv("SENTINEL_DB_DSN")
	defer func() {
		if original != "" {
			os.Setenv("SENTINEL_DB_DSN", original)
		}
	}()

	config, err := LoadConfig("/nonexistent/config.yaml")

	require.NoError(t, err)
	assert.NotNil(t, config)
}
