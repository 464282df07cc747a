package analyzer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sentinel/internal/abi"
	"sentinel/internal/bytecode"
	"sentinel/internal/detector"
	"sentinel/internal/errors"
	"sentinel/internal/proxy"
	"sentinel/internal/registry"
	"sentinel/internal/risk"
	"sentinel/internal/validation"
	"sentinel/pkg/models"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/sirupsen/logrus"
)

// Options 分析器选项
type Options struct {
	// 单次分析的超时时间
	Timeout time.Duration `mapstructure:"timeout"`

	// 批量分析的工作协程数
	Workers int `mapstructure:"workers"`

	// 是否在结果中附带安全警告
	EnableWarnings bool `mapstructure:"enable_warnings"`
}

// DefaultOptions 默认分析器选项
var DefaultOptions = &Options{
	Timeout:        30 * time.Second,
	Workers:        4,
	EnableWarnings: true,
}

// Analyzer 分析编排器。外部调用方的唯一入口，负责各阶段的顺序
// 执行和失败隔离：可选阶段失败被就地捕获并记入结果，绝不因为
// 一个可选阶段失败而中止整个分析
type Analyzer struct {
	registry   *registry.ThreatRegistry
	cache      *bytecode.Cache // 为nil表示未配置字节码来源
	detectors  []detector.Detector
	aggregator *risk.Aggregator
	options    *Options
	logger     *logrus.Logger
	stats      *errors.ErrorStats
}

// NewAnalyzer 创建分析编排器。cache可以为nil，此时跳过所有
// 依赖字节码的阶段
func NewAnalyzer(reg *registry.ThreatRegistry, cache *bytecode.Cache, detectors []detector.Detector, aggregator *risk.Aggregator, options *Options, logger *logrus.Logger) *Analyzer {
	if options == nil {
		options = DefaultOptions
	}
	if detectors == nil {
		detectors = detector.DefaultDetectors(nil)
	}
	if aggregator == nil {
		aggregator = risk.NewAggregator(nil)
	}

	return &Analyzer{
		registry:   reg,
		cache:      cache,
		detectors:  detectors,
		aggregator: aggregator,
		options:    options,
		logger:     logger,
		stats:      errors.NewErrorStats(),
	}
}

// AnalyzeContract 基础分析入口，只返回基础字段
func (a *Analyzer) AnalyzeContract(ctx context.Context, addr string) (*models.ContractAnalysis, error) {
	advanced, err := a.AnalyzeContractAdvanced(ctx, addr, nil)
	if advanced == nil {
		return nil, err
	}
	return &advanced.ContractAnalysis, err
}

// AnalyzeContractAdvanced 完整分析入口。地址校验失败是唯一的
// 致命错误；其余阶段失败降级为部分结果，失败信息追加到
// vulnerabilities，对应的高级字段保持缺失
func (a *Analyzer) AnalyzeContractAdvanced(ctx context.Context, addr string, contractABI abi.ABI) (*models.AdvancedContractAnalysis, error) {
	now := time.Now()
	analysis := &models.AdvancedContractAnalysis{
		ContractAnalysis: models.ContractAnalysis{
			ContractAddress: addr,
			AnalysisStatus:  models.StatusInProgress,
			Vulnerabilities: make([]string, 0),
			RiskLevel:       models.SeverityLow,
			AnalysisDate:    now,
			LastUpdated:     now,
		},
	}

	// 阶段一：地址校验，失败即终止
	normalized, err := validation.NormalizeAddress(addr)
	if err != nil {
		analysis.AnalysisStatus = models.StatusFailed
		analysis.Vulnerabilities = append(analysis.Vulnerabilities,
			fmt.Sprintf("地址校验失败: %v", err))
		analysis.LastUpdated = time.Now()
		a.recordError(err)
		return analysis, err
	}
	analysis.ContractAddress = normalized

	if a.options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.options.Timeout)
		defer cancel()
	}

	logger := a.logger.WithField("address", normalized)

	// 阶段二：恶意名单检查
	isKnownMalicious := a.registry != nil && a.registry.IsKnown(normalized)
	if isKnownMalicious {
		logger.Warn("地址命中已知恶意名单")
		analysis.Vulnerabilities = append(analysis.Vulnerabilities,
			"地址在已知恶意合约名单中")

		if a.options.EnableWarnings {
			if warning, warnErr := a.registry.WarningFor(normalized); warnErr == nil {
				analysis.SecurityWarnings = append(analysis.SecurityWarnings, warning)
			}
		}
	}

	// 阶段三：字节码获取与代理分类，失败不阻断后续ABI检测
	if a.cache != nil {
		a.runBytecodeStage(ctx, normalized, analysis, logger)
	}

	// 阶段四：模式检测，检测器之间相互隔离
	if contractABI != nil {
		analysis.PatternResults = a.runDetectors(contractABI, analysis, logger)
	}

	// 阶段五：风险聚合
	results := analysis.PatternResults
	if results == nil {
		results = make(map[models.PatternCategory]*models.PatternResult)
	}

	assessment, aggErr := a.aggregator.Aggregate(results, isKnownMalicious)
	if aggErr != nil {
		logger.Errorf("风险聚合失败: %v", aggErr)
		analysis.Vulnerabilities = append(analysis.Vulnerabilities,
			fmt.Sprintf("风险聚合失败: %v", aggErr))
		a.recordError(aggErr)
	} else {
		analysis.RiskAssessment = assessment
		analysis.RiskLevel = assessment.RiskLevel()

		if a.options.EnableWarnings {
			analysis.SecurityWarnings = append(analysis.SecurityWarnings,
				a.aggregator.Warnings(normalized, results)...)
		}
	}

	if isKnownMalicious {
		analysis.RiskLevel = models.SeverityCritical
	}

	analysis.AnalysisStatus = models.StatusComplete
	analysis.LastUpdated = time.Now()

	logger.WithFields(logrus.Fields{
		"risk_level":      analysis.RiskLevel,
		"vulnerabilities": len(analysis.Vulnerabilities),
	}).Info("合约分析完成")

	return analysis, nil
}

// runBytecodeStage 执行字节码获取与代理分类。失败被捕获为
// 降级信息，不向上传播
func (a *Analyzer) runBytecodeStage(ctx context.Context, addr string, analysis *models.AdvancedContractAnalysis, logger *logrus.Entry) {
	code, err := a.cache.Get(ctx, addr)
	if err != nil {
		logger.Warnf("字节码获取失败，降级为纯ABI分析: %v", err)
		analysis.Vulnerabilities = append(analysis.Vulnerabilities,
			fmt.Sprintf("字节码获取失败: %v", err))
		a.recordError(err)
		return
	}

	encoded := hexutil.Encode(code)
	analysis.Bytecode = &encoded

	classification := proxy.Classify(code)
	analysis.BytecodeSize = &classification.Size
	analysis.IsContract = &classification.IsContract
	analysis.IsProxyContract = &classification.IsProxy

	if classification.IsProxy {
		logger.Info("检测到委托代理合约")
		analysis.Vulnerabilities = append(analysis.Vulnerabilities,
			"合约为委托代理，实际逻辑可能被升级替换")
	}
}

// runDetectors 执行全部模式检测器。单个检测器的panic或异常
// 只影响自身的结果
func (a *Analyzer) runDetectors(contractABI abi.ABI, analysis *models.AdvancedContractAnalysis, logger *logrus.Entry) map[models.PatternCategory]*models.PatternResult {
	results := make(map[models.PatternCategory]*models.PatternResult, len(a.detectors))

	var code []byte
	if analysis.Bytecode != nil {
		if decoded, err := hexutil.Decode(*analysis.Bytecode); err == nil {
			code = decoded
		}
	}

	for _, det := range a.detectors {
		result := a.runDetectorIsolated(det, contractABI, code, logger)
		if result == nil {
			analysis.Vulnerabilities = append(analysis.Vulnerabilities,
				fmt.Sprintf("检测器 %s 执行失败", det.Category()))
			continue
		}
		results[det.Category()] = result

		if result.Detected {
			logger.WithFields(logrus.Fields{
				"category":   result.Category,
				"severity":   result.Severity,
				"confidence": result.Confidence,
			}).Warn("检出可疑模式")
		}
	}

	return results
}

// runDetectorIsolated 带panic隔离地执行单个检测器
func (a *Analyzer) runDetectorIsolated(det detector.Detector, contractABI abi.ABI, code []byte, logger *logrus.Entry) (result *models.PatternResult) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("检测器 %s 发生panic: %v", det.Category(), r)
			a.recordError(errors.NewAnalysisError(
				fmt.Sprintf("检测器 %s 异常", det.Category()), nil))
			result = nil
		}
	}()

	return det.Detect(contractABI, code)
}

// recordError 记录阶段错误到统计
func (a *Analyzer) recordError(err error) {
	if se, ok := err.(*errors.SentinelError); ok {
		a.stats.Record(se)
	}
}

// Stats 返回错误统计快照
func (a *Analyzer) Stats() map[string]interface{} {
	snapshot := a.stats.Snapshot()
	if a.cache != nil {
		snapshot["cache"] = a.cache.Stats()
	}
	return snapshot
}

// AnalyzeBatch 批量分析一组地址，工作协程数受选项限制。
// 单个地址失败不影响其余地址
func (a *Analyzer) AnalyzeBatch(ctx context.Context, addrs []string) *models.BatchAnalysisResult {
	start := time.Now()
	result := &models.BatchAnalysisResult{
		Analyses:       make([]*models.AdvancedContractAnalysis, len(addrs)),
		TotalAddresses: len(addrs),
	}

	workers := a.options.Workers
	if workers <= 0 {
		workers = DefaultOptions.Workers
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)

	for i, addr := range addrs {
		wg.Add(1)
		go func(i int, addr string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			analysis, _ := a.AnalyzeContractAdvanced(ctx, addr, nil)
			result.Analyses[i] = analysis
		}(i, addr)
	}

	wg.Wait()

	for _, analysis := range result.Analyses {
		if analysis == nil {
			result.FailedCount++
			continue
		}
		if analysis.AnalysisStatus == models.StatusComplete {
			result.CompletedCount++
		} else {
			result.FailedCount++
		}
	}

	result.Duration = time.Since(start)
	if seconds := result.Duration.Seconds(); seconds > 0 {
		result.AddressesPerSec = float64(len(addrs)) / seconds
	}

	a.logger.Infof("批量分析完成: %d 个地址，成功 %d，失败 %d，耗时 %s",
		result.TotalAddresses, result.CompletedCount, result.FailedCount, result.Duration)

	return result
}
