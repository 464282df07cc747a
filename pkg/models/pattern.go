package models

import (
	"time"
)

// PatternCategory 欺诈模式类别
type PatternCategory string

const (
	CategoryFakeBalance           PatternCategory = "fake-balance"
	CategoryHiddenRedirection     PatternCategory = "hidden-redirection"
	CategoryNonFunctionalTransfer PatternCategory = "non-functional-transfer"
	CategoryDeceptiveEvents       PatternCategory = "deceptive-events"
)

// AllCategories 所有已知的模式类别（封闭集合，新增类别需要显式扩展）
var AllCategories = []PatternCategory{
	CategoryFakeBalance,
	CategoryHiddenRedirection,
	CategoryNonFunctionalTransfer,
	CategoryDeceptiveEvents,
}

// IsValid 判断类别是否合法
func (c PatternCategory) IsValid() bool {
	switch c {
	case CategoryFakeBalance, CategoryHiddenRedirection,
		CategoryNonFunctionalTransfer, CategoryDeceptiveEvents:
		return true
	}
	return false
}

// Severity 严重级别
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank 严重级别的数值顺序，用于比较
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	}
	return 0
}

// PatternResult 单个检测器的检测结果，构造后不可变
type PatternResult struct {
	Detected   bool              `json:"detected"`
	Confidence float64           `json:"confidence"` // [0,1]
	Category   PatternCategory   `json:"category"`
	Evidence   []string          `json:"evidence"`
	Severity   Severity          `json:"severity"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// WarningLevel 安全警告级别
type WarningLevel string

const (
	WarningLevelInfo     WarningLevel = "info"
	WarningLevelWarning  WarningLevel = "warning"
	WarningLevelError    WarningLevel = "error"
	WarningLevelCritical WarningLevel = "critical"
)

// SecurityWarning 安全警告
type SecurityWarning struct {
	Level     WarningLevel    `json:"level"`
	Message   string          `json:"message"`
	Address   string          `json:"address,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Category  PatternCategory `json:"category"`
}

// PatternBreakdown 单个模式在聚合评分中的贡献明细
type PatternBreakdown struct {
	Weight       float64  `json:"weight"`
	Confidence   float64  `json:"confidence"`
	Severity     Severity `json:"severity"`
	Contribution float64  `json:"contribution"`
	Detected     bool     `json:"detected"`
}

// RiskBreakdown 风险评分的可解释分解
type RiskBreakdown struct {
	Patterns     map[PatternCategory]*PatternBreakdown `json:"patterns"`
	BaseScore    float64                               `json:"base_score"`
	BonusScore   float64                               `json:"bonus_score"`
	PenaltyScore float64                               `json:"penalty_score"`
	FinalScore   float64                               `json:"final_score"`
}

// RiskExplanation 风险评估的人类可读解释
type RiskExplanation struct {
	Summary           string   `json:"summary"`
	RiskFactors       []string `json:"risk_factors"`
	MitigatingFactors []string `json:"mitigating_factors"`
	Recommendations   []string `json:"recommendations"`
}

// RiskAssessment 聚合后的风险评估结果
type RiskAssessment struct {
	RiskScore   float64          `json:"risk_score"`  // [0,1]
	Confidence  float64          `json:"confidence"`  // [0,1]
	Breakdown   *RiskBreakdown   `json:"breakdown"`
	Explanation *RiskExplanation `json:"explanation"`
}

// RiskLevel 根据风险分值映射到风险等级
func (ra *RiskAssessment) RiskLevel() Severity {
	switch {
	case ra.RiskScore >= 0.8:
		return SeverityCritical
	case ra.RiskScore >= 0.6:
		return SeverityHigh
	case ra.RiskScore >= 0.3:
		return SeverityMedium
	default:
		return SeverityLow
	}
}
