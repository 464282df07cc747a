package bytecode

import (
	"context"
	"fmt"
	"time"

	"sentinel/internal/retry"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"
)

// Source 字节码获取能力。核心只消费该能力，不关心具体实现
type Source interface {
	CodeAt(ctx context.Context, addr string) ([]byte, error)
}

// SourceFunc 函数适配器
type SourceFunc func(ctx context.Context, addr string) ([]byte, error)

// CodeAt 实现Source接口
func (f SourceFunc) CodeAt(ctx context.Context, addr string) ([]byte, error) {
	return f(ctx, addr)
}

// RPCSource 基于以太坊RPC节点的字节码来源
type RPCSource struct {
	client  *ethclient.Client
	url     string
	timeout time.Duration
	logger  *logrus.Logger
}

// NewRPCSource 连接RPC节点并创建字节码来源
func NewRPCSource(url string, timeout time.Duration, logger *logrus.Logger) (*RPCSource, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("连接RPC节点失败: %w", err)
	}

	// 测试连接
	if _, err := client.ChainID(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("测试RPC连接失败: %w", err)
	}

	logger.Infof("RPC字节码来源已连接: %s", url)

	return &RPCSource{
		client:  client,
		url:     url,
		timeout: timeout,
		logger:  logger,
	}, nil
}

// CodeAt 从链上获取指定地址的运行时字节码。瞬时网络错误按
// 网络重试策略自动重试
func (s *RPCSource) CodeAt(ctx context.Context, addr string) ([]byte, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var code []byte
	err := retry.RetryNetworkOperation(fetchCtx, fmt.Sprintf("eth_getCode(%s)", addr), func() error {
		var fetchErr error
		code, fetchErr = s.client.CodeAt(fetchCtx, common.HexToAddress(addr), nil)
		return fetchErr
	}, s.logger)
	if err != nil {
		return nil, fmt.Errorf("获取地址 %s 的字节码失败: %w", addr, err)
	}

	return code, nil
}

// Close 关闭RPC连接
func (s *RPCSource) Close() {
	if s.client != nil {
		s.client.Close()
	}
}
