package detector

import (
	"fmt"
	"strconv"
	"strings"

	"sentinel/internal/abi"
	"sentinel/pkg/models"
)

// DeceptiveEventsDetector 欺骗性事件检测器。识别事件声明模仿
// 标准代币事件但形状异常的情况：参数乱序、indexed标记缺失、
// 有事件却没有对应的状态修改函数
type DeceptiveEventsDetector struct {
	heuristics *Heuristics
}

// NewDeceptiveEventsDetector 创建欺骗性事件检测器
func NewDeceptiveEventsDetector(heuristics *Heuristics) *DeceptiveEventsDetector {
	if heuristics == nil {
		heuristics = DefaultHeuristics
	}
	return &DeceptiveEventsDetector{heuristics: heuristics}
}

// Category 实现Detector接口
func (d *DeceptiveEventsDetector) Category() models.PatternCategory {
	return models.CategoryDeceptiveEvents
}

// 标准事件的有序参数类型与indexed标记
var standardEventShapes = map[string][]abi.Parameter{
	"Transfer": {
		{Name: "from", Type: "address", Indexed: true},
		{Name: "to", Type: "address", Indexed: true},
		{Name: "value", Type: "uint256", Indexed: false},
	},
	"Approval": {
		{Name: "owner", Type: "address", Indexed: true},
		{Name: "spender", Type: "address", Indexed: true},
		{Name: "value", Type: "uint256", Indexed: false},
	},
}

// Detect 实现Detector接口
func (d *DeceptiveEventsDetector) Detect(contractABI abi.ABI, bytecode []byte) *models.PatternResult {
	events := contractABI.Events()
	functions := contractABI.Functions()

	var evidence []string
	var shapeMismatches, indexingMismatches, orphanEvents int

	for _, ev := range events {
		expected, isStandard := standardEventShapes[ev.Name]
		if !isStandard {
			continue
		}

		// 参数个数或有序类型不符
		if !eventTypesMatch(ev.Inputs, expected) {
			shapeMismatches++
			evidence = append(evidence, fmt.Sprintf(
				"事件 %s 参数形状与标准声明不符，期望%d个参数实际%d个 (shape-mismatch)",
				ev.Name, len(expected), len(ev.Inputs)))
			continue
		}

		// 类型正确但indexed标记不符：事件无法按标准方式被过滤订阅
		if !eventIndexingMatches(ev.Inputs, expected) {
			indexingMismatches++
			evidence = append(evidence, fmt.Sprintf(
				"事件 %s 的indexed标记与标准声明不符 (indexing-mismatch)", ev.Name))
		}
	}

	// 声明了Transfer事件却没有任何可以转账的函数：事件只能是凭空发出
	if contractABI.FindEvent("Transfer") != nil && !hasWritableTransferFunction(functions) {
		orphanEvents++
		evidence = append(evidence,
			"合约声明了Transfer事件但没有可写的转账函数 (orphan-event)")
	}

	// 归一化基数使用事件与函数条目总数
	total := len(events) + len(functions)
	confidence := d.heuristics.linearConfidence(
		shapeMismatches, orphanEvents, indexingMismatches, total)

	severity := models.SeverityLow
	switch {
	case orphanEvents > 0 && confidence >= d.heuristics.CriticalThreshold:
		severity = models.SeverityCritical
	case shapeMismatches >= 2 && confidence >= d.heuristics.HighThreshold:
		severity = models.SeverityHigh
	case confidence >= d.heuristics.MediumThreshold:
		severity = models.SeverityMedium
	}

	return &models.PatternResult{
		Detected:   confidence > d.heuristics.DetectionThreshold && len(evidence) > 0,
		Confidence: confidence,
		Category:   models.CategoryDeceptiveEvents,
		Evidence:   evidence,
		Severity:   severity,
		Metadata: map[string]string{
			"shape_mismatches":    strconv.Itoa(shapeMismatches),
			"indexing_mismatches": strconv.Itoa(indexingMismatches),
			"orphan_events":       strconv.Itoa(orphanEvents),
			"total_entries":       strconv.Itoa(total),
		},
	}
}

// eventTypesMatch 判断事件的有序参数类型是否与标准一致
func eventTypesMatch(actual, expected []abi.Parameter) bool {
	if len(actual) != len(expected) {
		return false
	}
	for i := range actual {
		if normalizeType(actual[i].Type) != normalizeType(expected[i].Type) {
			return false
		}
	}
	return true
}

// eventIndexingMatches 判断事件的indexed标记是否与标准一致
func eventIndexingMatches(actual, expected []abi.Parameter) bool {
	for i := range actual {
		if actual[i].Indexed != expected[i].Indexed {
			return false
		}
	}
	return true
}

// hasWritableTransferFunction 判断是否存在可修改状态的转账函数
func hasWritableTransferFunction(functions []abi.Entry) bool {
	for _, fn := range functions {
		if strings.Contains(strings.ToLower(fn.Name), "transfer") && !fn.IsReadOnly() {
			return true
		}
	}
	return false
}
