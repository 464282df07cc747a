package config

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// DatabaseConfig 数据库配置管理器。恶意地址名单和节点配置由
// 运营侧在数据库中维护，进程启动时一次性读取
type DatabaseConfig struct {
	DB     *sql.DB
	logger *logrus.Logger
}

// NewDatabaseConfig 创建数据库配置管理器
func NewDatabaseConfig(dsn string, logger *logrus.Logger) (*DatabaseConfig, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}

	// 测试连接
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("数据库连接测试失败: %w", err)
	}

	return &DatabaseConfig{
		DB:     db,
		logger: logger,
	}, nil
}

// LoadConfig 从数据库加载完整配置
func (dc *DatabaseConfig) LoadConfig() (*Config, error) {
	config := GetDefaultConfig()

	rpcConfig, err := dc.loadRPCConfig()
	if err != nil {
		return nil, fmt.Errorf("加载RPC配置失败: %w", err)
	}
	if rpcConfig != nil {
		config.RPC = rpcConfig
	}

	registryConfig, err := dc.loadRegistryConfig()
	if err != nil {
		return nil, fmt.Errorf("加载恶意地址名单失败: %w", err)
	}
	config.Registry = registryConfig

	return config, nil
}

// loadRPCConfig 加载RPC节点配置，取优先级最高的活跃节点
func (dc *DatabaseConfig) loadRPCConfig() (*RPCConfig, error) {
	query := `SELECT url, timeout_seconds FROM rpc_nodes WHERE is_active = true ORDER BY priority LIMIT 1`

	var url string
	var timeoutSeconds int
	err := dc.DB.QueryRow(query).Scan(&url, &timeoutSeconds)
	if err == sql.ErrNoRows {
		dc.logger.Warn("数据库中没有活跃的RPC节点配置")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &RPCConfig{
		URL:     url,
		Timeout: time.Duration(timeoutSeconds) * time.Second,
	}, nil
}

// loadRegistryConfig 加载恶意地址名单
func (dc *DatabaseConfig) loadRegistryConfig() (*RegistryConfig, error) {
	query := `SELECT address FROM threat_addresses WHERE is_active = true`
	rows, err := dc.DB.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var addresses []string
	for rows.Next() {
		var addr string
		if err := rows.Scan(&addr); err != nil {
			return nil, err
		}
		addresses = append(addresses, addr)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	dc.logger.Infof("从数据库加载了 %d 条恶意地址记录", len(addresses))

	return &RegistryConfig{Addresses: addresses}, nil
}

// Close 关闭数据库连接
func (dc *DatabaseConfig) Close() error {
	if dc.DB != nil {
		return dc.DB.Close()
	}
	return nil
}
