package models

import (
	"time"
)

// AnalysisStatus 分析状态
type AnalysisStatus string

const (
	StatusPending    AnalysisStatus = "pending"
	StatusInProgress AnalysisStatus = "in-progress"
	StatusComplete   AnalysisStatus = "complete"
	StatusFailed     AnalysisStatus = "failed"
)

// ContractAnalysis 合约分析结果（基础字段，始终填充）
type ContractAnalysis struct {
	ContractAddress string            `json:"contract_address"`
	ContractName    string            `json:"contract_name"`
	AnalysisStatus  AnalysisStatus    `json:"analysis_status"`
	Vulnerabilities []string          `json:"vulnerabilities"`
	RiskLevel       Severity          `json:"risk_level"`
	AnalysisDate    time.Time         `json:"analysis_date"`
	LastUpdated     time.Time         `json:"last_updated"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// AdvancedContractAnalysis 高级分析结果。指针字段为nil表示对应阶段
// 未执行或失败，缺失本身即是信号，不使用零值兜底
type AdvancedContractAnalysis struct {
	ContractAnalysis

	Bytecode         *string                            `json:"bytecode,omitempty"`
	BytecodeSize     *int                               `json:"bytecode_size,omitempty"`
	IsContract       *bool                              `json:"is_contract,omitempty"`
	IsProxyContract  *bool                              `json:"is_proxy_contract,omitempty"`
	PatternResults   map[PatternCategory]*PatternResult `json:"pattern_results,omitempty"`
	RiskAssessment   *RiskAssessment                    `json:"risk_assessment,omitempty"`
	SecurityWarnings []*SecurityWarning                 `json:"security_warnings,omitempty"`
}

// BatchAnalysisResult 批量分析结果统计
type BatchAnalysisResult struct {
	Analyses        []*AdvancedContractAnalysis `json:"analyses"`
	TotalAddresses  int                         `json:"total_addresses"`
	CompletedCount  int                         `json:"completed_count"`
	FailedCount     int                         `json:"failed_count"`
	Duration        time.Duration               `json:"duration"`
	AddressesPerSec float64                     `json:"addresses_per_sec"`
}

// ToKafkaMessage 转换为Kafka消息格式
func (a *AdvancedContractAnalysis) ToKafkaMessage() map[string]interface{} {
	msg := map[string]interface{}{
		"contract_address": a.ContractAddress,
		"analysis_status":  string(a.AnalysisStatus),
		"risk_level":       string(a.RiskLevel),
		"vulnerabilities":  a.Vulnerabilities,
		"analysis_date":    a.AnalysisDate.Format(time.RFC3339),
	}

	if a.RiskAssessment != nil {
		msg["risk_score"] = a.RiskAssessment.RiskScore
		msg["confidence"] = a.RiskAssessment.Confidence
	}
	if a.BytecodeSize != nil {
		msg["bytecode_size"] = *a.BytecodeSize
	}
	if a.IsProxyContract != nil {
		msg["is_proxy_contract"] = *a.IsProxyContract
	}
	if len(a.SecurityWarnings) > 0 {
		msg["warning_count"] = len(a.SecurityWarnings)
	}

	return msg
}
