package shutdown

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

// Hook 停机处理函数。Order越小越早执行
type Hook struct {
	Name  string
	Func  func(ctx context.Context) error
	Order int
}

// GracefulShutdown 优雅停机管理器。API服务器、输出器和缓存持久层
// 通过Register注册清理逻辑，收到终止信号后按顺序执行
type GracefulShutdown struct {
	logger     *logrus.Logger
	timeout    time.Duration
	hooks      []Hook
	mu         sync.Mutex
	signalChan chan os.Signal
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	stopping   bool
}

// NewGracefulShutdown 创建优雅停机管理器
func NewGracefulShutdown(timeout time.Duration, logger *logrus.Logger) *GracefulShutdown {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	gs := &GracefulShutdown{
		logger:     logger,
		timeout:    timeout,
		signalChan: make(chan os.Signal, 1),
		ctx:        ctx,
		cancel:     cancel,
	}

	signal.Notify(gs.signalChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	return gs
}

// Register 注册停机处理函数
func (gs *GracefulShutdown) Register(name string, fn func(ctx context.Context) error, order int) {
	gs.mu.Lock()
	defer gs.mu.Unlock()

	gs.hooks = append(gs.hooks, Hook{Name: name, Func: fn, Order: order})
	gs.logger.Debugf("注册停机处理函数: %s (order: %d)", name, order)
}

// Start 启动信号监听
func (gs *GracefulShutdown) Start() {
	gs.wg.Add(1)
	go gs.signalHandler()
	gs.logger.Info("优雅停机管理器已启动，监听信号: SIGINT, SIGTERM, SIGQUIT")
}

// Wait 等待停机完成
func (gs *GracefulShutdown) Wait() {
	gs.wg.Wait()
}

// Context 获取主上下文，停机时会被取消
func (gs *GracefulShutdown) Context() context.Context {
	return gs.ctx
}

// Shutdown 手动触发停机
func (gs *GracefulShutdown) Shutdown() {
	gs.mu.Lock()
	if gs.stopping {
		gs.mu.Unlock()
		return
	}
	gs.stopping = true
	gs.mu.Unlock()

	gs.logger.Info("手动触发优雅停机...")
	gs.runHooks()
}

// IsShuttingDown 检查是否正在停机
func (gs *GracefulShutdown) IsShuttingDown() bool {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	return gs.stopping
}

// signalHandler 信号处理器
func (gs *GracefulShutdown) signalHandler() {
	defer gs.wg.Done()

	sig := <-gs.signalChan
	gs.logger.Infof("收到停机信号: %v", sig)

	gs.mu.Lock()
	if gs.stopping {
		gs.mu.Unlock()
		gs.logger.Warn("停机过程已在进行中，忽略信号")
		return
	}
	gs.stopping = true
	gs.mu.Unlock()

	gs.runHooks()
}

// runHooks 按顺序执行所有停机处理函数
func (gs *GracefulShutdown) runHooks() {
	gs.logger.Info("开始优雅停机流程...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), gs.timeout)
	defer shutdownCancel()

	gs.mu.Lock()
	hooks := make([]Hook, len(gs.hooks))
	copy(hooks, gs.hooks)
	gs.mu.Unlock()

	sort.SliceStable(hooks, func(i, j int) bool {
		return hooks[i].Order < hooks[j].Order
	})

	var failures []error
	for _, hook := range hooks {
		gs.logger.Infof("执行停机处理: %s", hook.Name)

		start := time.Now()
		err := hook.Func(shutdownCtx)
		duration := time.Since(start)

		if err != nil {
			gs.logger.Errorf("停机处理 '%s' 失败 (耗时: %v): %v", hook.Name, duration, err)
			failures = append(failures, fmt.Errorf("%s: %w", hook.Name, err))
		} else {
			gs.logger.Infof("停机处理 '%s' 完成 (耗时: %v)", hook.Name, duration)
		}

		select {
		case <-shutdownCtx.Done():
			gs.logger.Warn("停机超时，强制退出")
			gs.cancel()
			return
		default:
		}
	}

	gs.cancel()

	if len(failures) > 0 {
		gs.logger.Errorf("停机过程中发生 %d 个错误", len(failures))
		for _, err := range failures {
			gs.logger.Error(err)
		}
	}

	gs.logger.Info("优雅停机流程完成")
}
