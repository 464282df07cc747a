package detector

import (
	"fmt"
	"strconv"
	"strings"

	"sentinel/internal/abi"
	"sentinel/pkg/models"
)

// FakeBalanceDetector 虚假余额检测器。识别余额查询结果依赖区块
// 环境、ERC-20实现形状不标准等伪装余额的接口特征
type FakeBalanceDetector struct {
	heuristics *Heuristics
}

// NewFakeBalanceDetector 创建虚假余额检测器
func NewFakeBalanceDetector(heuristics *Heuristics) *FakeBalanceDetector {
	if heuristics == nil {
		heuristics = DefaultHeuristics
	}
	return &FakeBalanceDetector{heuristics: heuristics}
}

// Category 实现Detector接口
func (d *FakeBalanceDetector) Category() models.PatternCategory {
	return models.CategoryFakeBalance
}

// classifiedFunction 函数分类结果
type classifiedFunction struct {
	entry            abi.Entry
	balanceRelated   bool
	suspiciousTokens []string
	readOnly         bool
	shapeMismatch    bool
	returnMismatch   bool
}

// Detect 实现Detector接口
func (d *FakeBalanceDetector) Detect(contractABI abi.ABI, bytecode []byte) *models.PatternResult {
	functions := contractABI.Functions()
	classified := make([]classifiedFunction, 0, len(functions))

	// 第一步：逐个函数分类
	for _, fn := range functions {
		cf := classifiedFunction{
			entry:            fn,
			balanceRelated:   matchesAnyToken(fn.Name, balanceNameTokens),
			suspiciousTokens: matchedTokens(fn.Name, suspiciousNameTokens),
			readOnly:         fn.IsReadOnly(),
		}

		lowerName := strings.ToLower(fn.Name)
		if expected, isERC20 := erc20ParamShapes[lowerName]; isERC20 {
			cf.shapeMismatch = !matchesParamShape(fn.Inputs, expected)
		}

		// balanceOf/totalSupply的返回值必须是uint256
		if lowerName == "balanceof" || lowerName == "totalsupply" {
			cf.returnMismatch = len(fn.Outputs) != 1 ||
				normalizeType(fn.Outputs[0].Type) != "uint256"
		}

		classified = append(classified, cf)
	}

	// 第二步：三组子检测。timestamp组与非确定组谓词相同，刻意保留
	// 两个证据桶以便解释输出（重叠是设计选择）
	var evidence []string
	var timestampBased, improper, nonDeterministic int
	improperTargetsBalanceOf := false

	for _, cf := range classified {
		if cf.balanceRelated && cf.readOnly && len(cf.suspiciousTokens) > 0 {
			timestampBased++
			evidence = append(evidence, fmt.Sprintf(
				"函数 %s 为余额查询但名称包含环境相关词元 %v (timestamp-based)",
				cf.entry.Name, cf.suspiciousTokens))
		}

		if cf.shapeMismatch || cf.returnMismatch {
			improper++
			if strings.EqualFold(cf.entry.Name, "balanceOf") {
				improperTargetsBalanceOf = true
			}
			if cf.shapeMismatch {
				evidence = append(evidence, fmt.Sprintf(
					"函数 %s 参数与标准ERC-20签名不符 (improper-erc20)", cf.entry.Name))
			}
			if cf.returnMismatch {
				evidence = append(evidence, fmt.Sprintf(
					"函数 %s 返回类型应为uint256 (improper-erc20)", cf.entry.Name))
			}
		}

		if cf.readOnly && cf.balanceRelated && len(cf.suspiciousTokens) > 0 {
			nonDeterministic++
			evidence = append(evidence, fmt.Sprintf(
				"只读函数 %s 的返回值可能随区块环境变化 (non-deterministic-view)",
				cf.entry.Name))
		}
	}

	// 第三步：Transfer事件形状检查
	if ev := contractABI.FindEvent("Transfer"); ev != nil {
		if len(ev.Inputs) != 3 || !d.matchesTransferEventShape(ev.Inputs) {
			evidence = append(evidence, fmt.Sprintf(
				"事件 Transfer 参数形状异常，期望(address,address,uint256)，实际%d个参数 (transfer-event)",
				len(ev.Inputs)))
		}
	}

	// 第四步：线性加权置信度，按接口规模归一化
	confidence := d.heuristics.linearConfidence(
		timestampBased, improper, nonDeterministic, len(functions))

	// 第五步：严重级别
	severity := models.SeverityLow
	switch {
	case improperTargetsBalanceOf && confidence >= d.heuristics.CriticalThreshold:
		severity = models.SeverityCritical
	case timestampBased >= 2 && confidence >= d.heuristics.HighThreshold:
		severity = models.SeverityHigh
	case confidence >= d.heuristics.MediumThreshold:
		severity = models.SeverityMedium
	}

	return &models.PatternResult{
		Detected:   confidence > d.heuristics.DetectionThreshold && len(evidence) > 0,
		Confidence: confidence,
		Category:   models.CategoryFakeBalance,
		Evidence:   evidence,
		Severity:   severity,
		Metadata: map[string]string{
			"timestamp_based":   strconv.Itoa(timestampBased),
			"improper_erc20":    strconv.Itoa(improper),
			"non_deterministic": strconv.Itoa(nonDeterministic),
			"total_functions":   strconv.Itoa(len(functions)),
		},
	}
}

// matchesTransferEventShape 校验Transfer事件的有序参数类型是否为
// (address, address, uint*)
func (d *FakeBalanceDetector) matchesTransferEventShape(params []abi.Parameter) bool {
	if len(params) != len(transferEventShape) {
		return false
	}
	for i, p := range params {
		if !strings.HasPrefix(p.Type, transferEventShape[i]) {
			return false
		}
	}
	return true
}
