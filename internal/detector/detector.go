package detector

import (
	"strings"

	"sentinel/internal/abi"
	"sentinel/pkg/models"
)

// Detector 单类欺诈模式检测器。检测器之间相互独立，任何一个
// 失败都不影响其余检测器执行
type Detector interface {
	// Category 返回检测器负责的模式类别
	Category() models.PatternCategory

	// Detect 对ABI（和可选的字节码）执行检测，每次调用产生
	// 全新的结果，结果构造后不再修改
	Detect(contractABI abi.ABI, bytecode []byte) *models.PatternResult
}

// Heuristics 检测器的策略常量。数值来源于既有启发式经验而非
// 统计模型，作为命名配置保留，可调而不改变检测器契约
type Heuristics struct {
	// 置信度线性加权系数
	PrimaryWeight   float64 `mapstructure:"primary_weight"`
	SecondaryWeight float64 `mapstructure:"secondary_weight"`
	TertiaryWeight  float64 `mapstructure:"tertiary_weight"`

	// 归一化放大因子
	ScaleFactor float64 `mapstructure:"scale_factor"`

	// 判定为检出的置信度下限
	DetectionThreshold float64 `mapstructure:"detection_threshold"`

	// 严重级别阈值
	CriticalThreshold float64 `mapstructure:"critical_threshold"`
	HighThreshold     float64 `mapstructure:"high_threshold"`
	MediumThreshold   float64 `mapstructure:"medium_threshold"`
}

// DefaultHeuristics 默认策略常量
var DefaultHeuristics = &Heuristics{
	PrimaryWeight:      0.4,
	SecondaryWeight:    0.3,
	TertiaryWeight:     0.2,
	ScaleFactor:        2.0,
	DetectionThreshold: 0.3,
	CriticalThreshold:  0.6,
	HighThreshold:      0.5,
	MediumThreshold:    0.4,
}

// 余额类函数名（子串匹配，大小写不敏感）
var balanceNameTokens = []string{
	"balanceof",
	"balance",
	"getbalance",
	"availablebalance",
}

// 可疑名称词元，出现在只读函数名中意味着返回值可能依赖
// 区块环境而非真实状态
var suspiciousNameTokens = []string{
	"timestamp",
	"block",
	"now",
	"random",
	"difficulty",
	"blockhash",
}

// 转账类函数名
var transferNameTokens = []string{
	"transfer",
	"send",
	"withdraw",
}

// 隐蔽转移类函数名，无收款参数时资金去向不受调用方控制
var redirectionNameTokens = []string{
	"sweep",
	"drain",
	"rescue",
	"collect",
	"claimall",
	"emergencywithdraw",
	"adminwithdraw",
}

// 标准ERC-20函数的参数形状
var erc20ParamShapes = map[string][]string{
	"balanceof":    {"address"},
	"allowance":    {"address", "address"},
	"transfer":     {"address", "uint256"},
	"transferfrom": {"address", "address", "uint256"},
	"approve":      {"address", "uint256"},
	"totalsupply":  {},
}

// 标准Transfer事件的参数类型前缀
var transferEventShape = []string{"address", "address", "uint"}

// matchesAnyToken 判断名称是否包含任一词元
func matchesAnyToken(name string, tokens []string) bool {
	lower := strings.ToLower(name)
	for _, token := range tokens {
		if strings.Contains(lower, token) {
			return true
		}
	}
	return false
}

// matchedTokens 返回名称命中的所有词元
func matchedTokens(name string, tokens []string) []string {
	lower := strings.ToLower(name)
	var hits []string
	for _, token := range tokens {
		if strings.Contains(lower, token) {
			hits = append(hits, token)
		}
	}
	return hits
}

// matchesParamShape 判断参数类型序列是否与期望形状一致。
// uint视为uint256的别名
func matchesParamShape(params []abi.Parameter, expected []string) bool {
	if len(params) != len(expected) {
		return false
	}
	for i, p := range params {
		if normalizeType(p.Type) != normalizeType(expected[i]) {
			return false
		}
	}
	return true
}

// normalizeType 规范化Solidity类型别名
func normalizeType(t string) string {
	switch t {
	case "uint":
		return "uint256"
	case "int":
		return "int256"
	}
	return t
}

// linearConfidence 线性加权置信度：更多独立命中提高置信度，
// 按接口规模归一化，避免微型接口单个可疑函数直接饱和
func (h *Heuristics) linearConfidence(primary, secondary, tertiary, total int) float64 {
	weighted := h.PrimaryWeight*float64(primary) +
		h.SecondaryWeight*float64(secondary) +
		h.TertiaryWeight*float64(tertiary)

	denom := float64(total)
	if denom < 1 {
		denom = 1
	}

	confidence := h.ScaleFactor * weighted / denom
	if confidence > 1.0 {
		confidence = 1.0
	}
	return confidence
}

// DefaultDetectors 构造全部四类检测器。类别集合是封闭的，
// 新类别需要显式扩展这里
func DefaultDetectors(heuristics *Heuristics) []Detector {
	if heuristics == nil {
		heuristics = DefaultHeuristics
	}

	return []Detector{
		NewFakeBalanceDetector(heuristics),
		NewHiddenRedirectionDetector(heuristics),
		NewNonFunctionalTransferDetector(heuristics),
		NewDeceptiveEventsDetector(heuristics),
	}
}
