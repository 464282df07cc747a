package detector

import (
	"fmt"
	"strconv"
	"strings"

	"sentinel/internal/abi"
	"sentinel/pkg/models"
)

// HiddenRedirectionDetector 隐蔽资金转移检测器。识别资金去向
// 不受调用方控制的接口：无收款参数的提取函数、可变更收款人的
// 管理函数、payable入口配合一键清空函数等
type HiddenRedirectionDetector struct {
	heuristics *Heuristics
}

// NewHiddenRedirectionDetector 创建隐蔽资金转移检测器
func NewHiddenRedirectionDetector(heuristics *Heuristics) *HiddenRedirectionDetector {
	if heuristics == nil {
		heuristics = DefaultHeuristics
	}
	return &HiddenRedirectionDetector{heuristics: heuristics}
}

// Category 实现Detector接口
func (d *HiddenRedirectionDetector) Category() models.PatternCategory {
	return models.CategoryHiddenRedirection
}

// 收款人设置函数名词元
var recipientSetterTokens = []string{
	"setowner",
	"setrecipient",
	"setreceiver",
	"setfeereceiver",
	"settreasury",
	"setwallet",
}

// Detect 实现Detector接口
func (d *HiddenRedirectionDetector) Detect(contractABI abi.ABI, bytecode []byte) *models.PatternResult {
	functions := contractABI.Functions()

	var evidence []string
	var blindDrains, recipientSetters, payableTraps int
	hasPayableEntry := false

	for _, fn := range functions {
		if fn.StateMutability == abi.MutabilityPayable {
			hasPayableEntry = true
		}
	}

	for _, fn := range functions {
		// 无收款地址参数的清空类函数，资金去向由合约内部硬编码决定
		if matchesAnyToken(fn.Name, redirectionNameTokens) && !fn.IsReadOnly() {
			if !hasAddressParam(fn.Inputs) {
				blindDrains++
				evidence = append(evidence, fmt.Sprintf(
					"函数 %s 可转出资金但没有收款地址参数 (blind-drain)", fn.Name))
			}
		}

		// 收款人可被管理函数改写
		lowerName := strings.ToLower(fn.Name)
		for _, token := range recipientSetterTokens {
			if strings.Contains(lowerName, token) {
				recipientSetters++
				evidence = append(evidence, fmt.Sprintf(
					"函数 %s 可以变更资金接收方 (recipient-setter)", fn.Name))
				break
			}
		}
	}

	// 合约接受转入又提供一键清空：资金入口与隐蔽出口并存
	if hasPayableEntry && blindDrains > 0 {
		payableTraps = 1
		evidence = append(evidence,
			"合约同时提供payable入口和无参数的资金转出函数 (payable-trap)")
	}

	confidence := d.heuristics.linearConfidence(
		blindDrains, recipientSetters, payableTraps, len(functions))

	severity := models.SeverityLow
	switch {
	case payableTraps > 0 && confidence >= d.heuristics.CriticalThreshold:
		severity = models.SeverityCritical
	case blindDrains >= 2 && confidence >= d.heuristics.HighThreshold:
		severity = models.SeverityHigh
	case confidence >= d.heuristics.MediumThreshold:
		severity = models.SeverityMedium
	}

	return &models.PatternResult{
		Detected:   confidence > d.heuristics.DetectionThreshold && len(evidence) > 0,
		Confidence: confidence,
		Category:   models.CategoryHiddenRedirection,
		Evidence:   evidence,
		Severity:   severity,
		Metadata: map[string]string{
			"blind_drains":      strconv.Itoa(blindDrains),
			"recipient_setters": strconv.Itoa(recipientSetters),
			"payable_traps":     strconv.Itoa(payableTraps),
			"total_functions":   strconv.Itoa(len(functions)),
		},
	}
}

// hasAddressParam 判断参数列表中是否存在address类型参数
func hasAddressParam(params []abi.Parameter) bool {
	for _, p := range params {
		if p.Type == "address" {
			return true
		}
	}
	return false
}
