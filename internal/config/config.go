package config

import (
	"fmt"
	"os"
	"time"

	"sentinel/internal/logging"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config 主配置
type Config struct {
	RPC      *RPCConfig         `mapstructure:"rpc"`
	Cache    *CacheConfig       `mapstructure:"cache"`
	Registry *RegistryConfig    `mapstructure:"registry"`
	Analyzer *AnalyzerConfig    `mapstructure:"analyzer"`
	Output   *OutputConfig      `mapstructure:"output"`
	Logging  *logging.LogConfig `mapstructure:"logging"`
}

// RPCConfig RPC节点配置
type RPCConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// CacheConfig 字节码缓存配置
type CacheConfig struct {
	TTL              time.Duration `mapstructure:"ttl"`
	MaxEntries       int           `mapstructure:"max_entries"`
	BatchConcurrency int           `mapstructure:"batch_concurrency"`
	PersistPath      string        `mapstructure:"persist_path"` // 为空时禁用持久化
}

// RegistryConfig 恶意地址名单配置
type RegistryConfig struct {
	// 覆盖内置名单，为空时使用内置默认名单
	Addresses []string `mapstructure:"addresses"`
}

// AnalyzerConfig 分析器配置
type AnalyzerConfig struct {
	Timeout        time.Duration `mapstructure:"timeout"`
	Workers        int           `mapstructure:"workers"`
	EnableWarnings bool          `mapstructure:"enable_warnings"`
}

// KafkaConfig Kafka配置
type KafkaConfig struct {
	Brokers []string          `mapstructure:"brokers"`
	Topics  map[string]string `mapstructure:"topics"`
}

// OutputConfig 输出配置
type OutputConfig struct {
	Format    string       `mapstructure:"format"` // file或kafka
	Directory string       `mapstructure:"directory"`
	Kafka     *KafkaConfig `mapstructure:"kafka"`
}

// LoadConfig 加载配置（自动检测配置源）。设置了SENTINEL_DB_DSN
// 时优先从数据库加载，否则回退到YAML文件
func LoadConfig(configPath string) (*Config, error) {
	dbDSN := os.Getenv("SENTINEL_DB_DSN")
	if dbDSN != "" {
		logger := logrus.New()
		dbConfig, err := NewDatabaseConfig(dbDSN, logger)
		if err != nil {
			return nil, fmt.Errorf("连接数据库失败: %w", err)
		}
		defer dbConfig.Close()

		config, err := dbConfig.LoadConfig()
		if err != nil {
			return nil, fmt.Errorf("从数据库加载配置失败: %w", err)
		}

		logger.Info("已从数据库加载配置")
		return config, nil
	}

	return LoadConfigFromFile(configPath)
}

// LoadConfigFromFile 从文件加载配置
func LoadConfigFromFile(configPath string) (*Config, error) {
	// 配置文件不存在时直接使用默认配置
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return GetDefaultConfig(), nil
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	config := GetDefaultConfig()
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate 校验配置合法性
func (c *Config) Validate() error {
	if c.Cache != nil && c.Cache.MaxEntries < 0 {
		return fmt.Errorf("缓存容量不能为负数: %d", c.Cache.MaxEntries)
	}
	if c.Analyzer != nil && c.Analyzer.Workers < 0 {
		return fmt.Errorf("工作协程数不能为负数: %d", c.Analyzer.Workers)
	}
	if c.Output != nil {
		switch c.Output.Format {
		case "", "file", "kafka":
		default:
			return fmt.Errorf("不支持的输出格式: %s", c.Output.Format)
		}
	}
	return nil
}

// GetDefaultConfig 获取默认配置
func GetDefaultConfig() *Config {
	return &Config{
		RPC: &RPCConfig{
			URL:     "", // 需要在YAML配置或数据库中指定
			Timeout: 10 * time.Second,
		},
		Cache: &CacheConfig{
			TTL:              10 * time.Minute,
			MaxEntries:       1000,
			BatchConcurrency: 5,
			PersistPath:      "",
		},
		Registry: &RegistryConfig{
			Addresses: nil,
		},
		Analyzer: &AnalyzerConfig{
			Timeout:        30 * time.Second,
			Workers:        4,
			EnableWarnings: true,
		},
		Output: &OutputConfig{
			Format:    "file",
			Directory: "./outputs",
			Kafka: &KafkaConfig{
				Brokers: []string{"localhost:9092"},
				Topics: map[string]string{
					"analyses": "contract_analyses",
					"warnings": "security_warnings",
				},
			},
		},
		Logging: &logging.LogConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}
