package detector

import (
	"fmt"
	"strconv"
	"strings"

	"sentinel/internal/abi"
	"sentinel/pkg/models"
)

// NonFunctionalTransferDetector 无效转账检测器。识别声明了转账
// 接口但结构上不可能转移资金的合约：只读的转账函数、缺少标准
// 返回值、有转账函数却没有Transfer事件等
type NonFunctionalTransferDetector struct {
	heuristics *Heuristics
}

// NewNonFunctionalTransferDetector 创建无效转账检测器
func NewNonFunctionalTransferDetector(heuristics *Heuristics) *NonFunctionalTransferDetector {
	if heuristics == nil {
		heuristics = DefaultHeuristics
	}
	return &NonFunctionalTransferDetector{heuristics: heuristics}
}

// Category 实现Detector接口
func (d *NonFunctionalTransferDetector) Category() models.PatternCategory {
	return models.CategoryNonFunctionalTransfer
}

// Detect 实现Detector接口
func (d *NonFunctionalTransferDetector) Detect(contractABI abi.ABI, bytecode []byte) *models.PatternResult {
	functions := contractABI.Functions()

	var evidence []string
	var readOnlyTransfers, missingReturn, noEventHits int
	transferFunctionCount := 0

	for _, fn := range functions {
		lowerName := strings.ToLower(fn.Name)
		isTransferLike := matchesAnyToken(fn.Name, transferNameTokens)
		if !isTransferLike {
			continue
		}
		transferFunctionCount++

		// 只读的转账函数不可能改变任何余额
		if fn.IsReadOnly() {
			readOnlyTransfers++
			evidence = append(evidence, fmt.Sprintf(
				"转账函数 %s 被声明为%s，无法修改任何状态 (read-only-transfer)",
				fn.Name, fn.StateMutability))
		}

		// 标准transfer/transferFrom必须返回bool
		if lowerName == "transfer" || lowerName == "transferfrom" {
			if len(fn.Outputs) != 1 || fn.Outputs[0].Type != "bool" {
				missingReturn++
				evidence = append(evidence, fmt.Sprintf(
					"函数 %s 缺少标准的bool返回值 (missing-return)", fn.Name))
			}
		}
	}

	// 有转账函数但ABI中没有Transfer事件：成功转账无法被外部观测
	if transferFunctionCount > 0 && contractABI.FindEvent("Transfer") == nil {
		noEventHits = 1
		evidence = append(evidence,
			"合约声明了转账函数但未声明Transfer事件 (no-transfer-event)")
	}

	confidence := d.heuristics.linearConfidence(
		readOnlyTransfers, missingReturn, noEventHits, len(functions))

	severity := models.SeverityLow
	switch {
	case readOnlyTransfers > 0 && confidence >= d.heuristics.CriticalThreshold:
		severity = models.SeverityCritical
	case readOnlyTransfers+missingReturn >= 2 && confidence >= d.heuristics.HighThreshold:
		severity = models.SeverityHigh
	case confidence >= d.heuristics.MediumThreshold:
		severity = models.SeverityMedium
	}

	return &models.PatternResult{
		Detected:   confidence > d.heuristics.DetectionThreshold && len(evidence) > 0,
		Confidence: confidence,
		Category:   models.CategoryNonFunctionalTransfer,
		Evidence:   evidence,
		Severity:   severity,
		Metadata: map[string]string{
			"read_only_transfers": strconv.Itoa(readOnlyTransfers),
			"missing_return":      strconv.Itoa(missingReturn),
			"transfer_functions":  strconv.Itoa(transferFunctionCount),
			"total_functions":     strconv.Itoa(len(functions)),
		},
	}
}
