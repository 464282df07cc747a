package main

import (
	"context"
	"flag"
	"net/http"
	"os"

	"github.com/sirupsen/logrus"

	"sentinel/internal/analyzer"
	"sentinel/internal/api"
	"sentinel/internal/bytecode"
	"sentinel/internal/config"
	"sentinel/internal/detector"
	"sentinel/internal/registry"
	"sentinel/internal/risk"
	"sentinel/internal/shutdown"
)

var (
	configPath = flag.String("config", "configs/config.yaml", "配置文件路径")
	port       = flag.Int("port", 8080, "API 服务端口")
	verbose    = flag.Bool("verbose", false, "详细输出")
)

func main() {
	flag.Parse()

	// 设置日志级别
	if *verbose {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	// 自动检测并加载配置
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Fatalf("加载配置失败: %v", err)
	}

	gs := shutdown.NewGracefulShutdown(cfg.Analyzer.Timeout, logger)

	// 创建恶意名单
	reg := registry.NewThreatRegistry(cfg.Registry.Addresses, logger)

	// 创建字节码缓存（RPC不可用时降级为纯ABI分析）
	var cache *bytecode.Cache
	if cfg.RPC.URL != "" {
		source, err := bytecode.NewRPCSource(cfg.RPC.URL, cfg.RPC.Timeout, logger)
		if err != nil {
			logger.Warnf("连接RPC节点失败，降级为纯ABI分析: %v", err)
		} else {
			gs.Register("rpc-source", func(ctx context.Context) error {
				source.Close()
				return nil
			}, 30)

			cache = bytecode.NewCache(source, &bytecode.CacheConfig{
				TTL:              cfg.Cache.TTL,
				MaxEntries:       cfg.Cache.MaxEntries,
				BatchConcurrency: cfg.Cache.BatchConcurrency,
			}, logger)

			if cfg.Cache.PersistPath != "" {
				store, err := bytecode.NewBoltStore(cfg.Cache.PersistPath, logger)
				if err != nil {
					logger.Warnf("打开持久化缓存失败: %v", err)
				} else {
					cache = cache.WithStore(store)
					gs.Register("bolt-store", func(ctx context.Context) error {
						return store.Close()
					}, 20)
				}
			}
		}
	}

	// 创建分析器
	a := analyzer.NewAnalyzer(
		reg,
		cache,
		detector.DefaultDetectors(nil),
		risk.NewAggregator(nil),
		&analyzer.Options{
			Timeout:        cfg.Analyzer.Timeout,
			Workers:        cfg.Analyzer.Workers,
			EnableWarnings: cfg.Analyzer.EnableWarnings,
		},
		logger,
	)

	// 创建并启动API服务器
	server := api.NewServer(a, reg, cache, logger, *port)

	gs.Register("api-server", func(ctx context.Context) error {
		return server.Stop(ctx)
	}, 10)

	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("启动服务器失败: %v", err)
			gs.Shutdown()
			os.Exit(1)
		}
	}()

	logger.Infof("API服务器已启动，监听端口: %d", *port)

	// 等待停机信号
	gs.Start()
	gs.Wait()

	logger.Info("服务器已关闭")
}
