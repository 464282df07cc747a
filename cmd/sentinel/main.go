package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"sentinel/internal/abi"
	"sentinel/internal/analyzer"
	"sentinel/internal/bytecode"
	"sentinel/internal/config"
	"sentinel/internal/detector"
	"sentinel/internal/logging"
	"sentinel/internal/output"
	"sentinel/internal/registry"
	"sentinel/internal/risk"
	"sentinel/pkg/models"
)

var (
	// 基础参数
	address   string
	abiPath   string
	batchPath string

	// 高级参数
	configFile string
	rpcURL     string
	verbose    bool
	noFetch    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "sentinel",
		Short: "ETH合约风险分析工具",
		Long:  `基于启发式规则的以太坊合约风险分析工具，识别假余额、隐藏跳转等常见欺诈模式`,
		RunE:  run,
	}

	// 基础参数
	rootCmd.Flags().StringVar(&address, "address", "", "待分析的合约地址")
	rootCmd.Flags().StringVar(&abiPath, "abi", "", "合约ABI文件路径 (JSON)")
	rootCmd.Flags().StringVar(&batchPath, "batch", "", "批量地址文件路径，每行一个地址")

	// 高级参数
	rootCmd.Flags().StringVar(&configFile, "config", "configs/config.yaml", "配置文件路径")
	rootCmd.Flags().StringVar(&rpcURL, "rpc", "", "RPC节点地址，覆盖配置文件")
	rootCmd.Flags().BoolVar(&verbose, "verbose", false, "详细输出")
	rootCmd.Flags().BoolVar(&noFetch, "no-fetch", false, "跳过字节码拉取，只做ABI静态分析")

	// 名单查询子命令
	registryCmd := &cobra.Command{
		Use:   "registry [address]",
		Short: "查询地址是否在恶意名单中",
		Args:  cobra.ExactArgs(1),
		RunE:  checkRegistry,
	}

	rootCmd.AddCommand(registryCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "执行失败: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	if address == "" && batchPath == "" {
		return fmt.Errorf("必须指定 --address 或 --batch")
	}

	// 加载配置
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}
	if rpcURL != "" {
		cfg.RPC.URL = rpcURL
	}

	// 分析审计日志
	auditLogger, err := logging.NewStructuredLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("创建审计日志器失败: %w", err)
	}

	// 创建恶意名单
	reg := registry.NewThreatRegistry(cfg.Registry.Addresses, logger)

	// 创建字节码缓存（可选）
	var cache *bytecode.Cache
	if !noFetch && cfg.RPC.URL != "" {
		source, err := bytecode.NewRPCSource(cfg.RPC.URL, cfg.RPC.Timeout, logger)
		if err != nil {
			logger.Warnf("连接RPC节点失败，降级为纯ABI分析: %v", err)
		} else {
			defer source.Close()
			logging.NewFetchLogger(auditLogger, cfg.RPC.URL).Info("字节码来源已连接")
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
					defer store.Close()
					cache = cache.WithStore(store)
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

	// 创建输出器
	outputter, err := output.NewOutput(cfg.Output, logger)
	if err != nil {
		return fmt.Errorf("创建输出器失败: %w", err)
	}
	defer outputter.Close()

	ctx := context.Background()

	if batchPath != "" {
		return runBatch(ctx, a, outputter, auditLogger, logger)
	}
	return runSingle(ctx, a, outputter, auditLogger, logger)
}

// recordAudit 写入单条分析审计记录
func recordAudit(auditLogger *logging.StructuredLogger, analysis *models.AdvancedContractAnalysis) {
	logging.NewAnalysisLogger(auditLogger, analysis.ContractAddress).Info("分析记录",
		"status", string(analysis.AnalysisStatus),
		"risk_level", string(analysis.RiskLevel),
		"vulnerabilities", len(analysis.Vulnerabilities),
		"warnings", len(analysis.SecurityWarnings),
	)
}

// runSingle 分析单个合约地址
func runSingle(ctx context.Context, a *analyzer.Analyzer, outputter output.Output, auditLogger *logging.StructuredLogger, logger *logrus.Logger) error {
	contractABI, err := loadABI(abiPath)
	if err != nil {
		return err
	}

	analysis, err := a.AnalyzeContractAdvanced(ctx, address, contractABI)
	if err != nil {
		return fmt.Errorf("分析失败: %w", err)
	}
	recordAudit(auditLogger, analysis)

	if err := outputter.WriteAnalysis(analysis); err != nil {
		logger.Errorf("写入分析结果失败: %v", err)
	}
	for _, warning := range analysis.SecurityWarnings {
		if err := outputter.WriteWarning(warning); err != nil {
			logger.Errorf("写入安全警告失败: %v", err)
		}
	}

	printAnalysis(analysis)
	return nil
}

// runBatch 批量分析地址文件
func runBatch(ctx context.Context, a *analyzer.Analyzer, outputter output.Output, auditLogger *logging.StructuredLogger, logger *logrus.Logger) error {
	data, err := os.ReadFile(batchPath)
	if err != nil {
		return fmt.Errorf("读取地址文件失败: %w", err)
	}

	var addrs []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		addrs = append(addrs, line)
	}
	if len(addrs) == 0 {
		return fmt.Errorf("地址文件为空: %s", batchPath)
	}

	logger.Infof("开始批量分析 %d 个地址", len(addrs))
	result := a.AnalyzeBatch(ctx, addrs)

	for _, analysis := range result.Analyses {
		if analysis == nil {
			continue
		}
		recordAudit(auditLogger, analysis)
		if err := outputter.WriteAnalysis(analysis); err != nil {
			logger.Errorf("写入分析结果失败: %v", err)
		}
		for _, warning := range analysis.SecurityWarnings {
			if err := outputter.WriteWarning(warning); err != nil {
				logger.Errorf("写入安全警告失败: %v", err)
			}
		}
	}

	logger.Infof("批量分析完成: 总数=%d 成功=%d 失败=%d 耗时=%v",
		result.TotalAddresses, result.CompletedCount, result.FailedCount, result.Duration)
	return nil
}

// checkRegistry 名单查询子命令
func checkRegistry(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	reg := registry.NewThreatRegistry(nil, logger)

	addr := args[0]
	if reg.IsKnown(addr) {
		warning, err := reg.WarningFor(addr)
		if err != nil {
			return err
		}
		fmt.Printf("%s 在恶意名单中\n", addr)
		fmt.Printf("  级别: %s\n", warning.Level)
		fmt.Printf("  说明: %s\n", warning.Message)
	} else {
		fmt.Printf("%s 不在恶意名单中\n", addr)
	}
	return nil
}

// loadABI 读取并解析ABI文件，路径为空时返回nil
func loadABI(path string) (abi.ABI, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取ABI文件失败: %w", err)
	}
	parsed, err := abi.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("解析ABI失败: %w", err)
	}
	return parsed, nil
}

// printAnalysis 在终端打印分析结果
func printAnalysis(analysis *models.AdvancedContractAnalysis) {
	data, err := json.MarshalIndent(analysis, "", "  ")
	if err != nil {
		fmt.Printf("合约: %s 状态: %s 风险等级: %s\n",
			analysis.ContractAddress, analysis.AnalysisStatus, analysis.RiskLevel)
		return
	}
	fmt.Println(string(data))
}

func newLogger() *logrus.Logger {
	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	return logger
}
