package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType 错误类型
type ErrorType int

const (
	// 输入校验错误
	ErrorTypeValidation ErrorType = iota

	// 安全策略错误
	ErrorTypeSecurity

	// 分析/下游错误
	ErrorTypeAnalysis

	// 网络相关错误
	ErrorTypeNetwork
	ErrorTypeTimeout
	ErrorTypeRateLimit

	// 系统相关错误
	ErrorTypeConfig
	ErrorTypeStorage
	ErrorTypeKafka
)

// ErrorSeverity 错误严重级别
type ErrorSeverity int

const (
	SeverityLow ErrorSeverity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

// SentinelError 自定义错误类型
type SentinelError struct {
	Type      ErrorType              `json:"type"`
	Severity  ErrorSeverity          `json:"severity"`
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Field     string                 `json:"field,omitempty"`
	Address   string                 `json:"address,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Context   map[string]interface{} `json:"context,omitempty"`
	Cause     error                  `json:"-"`
	Retryable bool                   `json:"retryable"`
	Component string                 `json:"component,omitempty"`
}

// Error 实现error接口
func (e *SentinelError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 支持errors.Unwrap
func (e *SentinelError) Unwrap() error {
	return e.Cause
}

// IsRetryable 判断是否可重试
func (e *SentinelError) IsRetryable() bool {
	return e.Retryable
}

// WithContext 添加上下文信息
func (e *SentinelError) WithContext(key string, value interface{}) *SentinelError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithAddress 添加关联的合约地址
func (e *SentinelError) WithAddress(addr string) *SentinelError {
	e.Address = addr
	return e
}

// WithComponent 添加来源组件
func (e *SentinelError) WithComponent(component string) *SentinelError {
	e.Component = component
	return e
}

// NewSentinelError 创建新的错误
func NewSentinelError(errorType ErrorType, severity ErrorSeverity, code, message string) *SentinelError {
	return &SentinelError{
		Type:      errorType,
		Severity:  severity,
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
		Retryable: determineRetryable(errorType),
	}
}

// NewValidationError 创建输入校验错误（边界快速失败，调用方修正输入后可恢复）
func NewValidationError(field, message string) *SentinelError {
	err := NewSentinelError(ErrorTypeValidation, SeverityMedium, "VALIDATION_FAILED", message)
	err.Field = field
	return err
}

// NewSecurityError 创建安全策略错误
func NewSecurityError(severity ErrorSeverity, message string) *SentinelError {
	return NewSentinelError(ErrorTypeSecurity, severity, "SECURITY_VIOLATION", message)
}

// NewAnalysisError 创建分析错误（携带下游失败原因）
func NewAnalysisError(message string, cause error) *SentinelError {
	return WrapError(cause, ErrorTypeAnalysis, SeverityMedium, "ANALYSIS_FAILED", message)
}

// WrapError 包装现有错误
func WrapError(err error, errorType ErrorType, severity ErrorSeverity, code, message string) *SentinelError {
	return &SentinelError{
		Type:      errorType,
		Severity:  severity,
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
		Cause:     err,
		Retryable: determineRetryable(errorType),
	}
}

// determineRetryable 根据错误类型判断是否可重试
func determineRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeTimeout, ErrorTypeRateLimit:
		return true
	case ErrorTypeAnalysis:
		// 分析错误通常由网络取码失败引起
		return true
	default:
		return false
	}
}

// IsValidationError 判断是否为校验错误
func IsValidationError(err error) bool {
	var se *SentinelError
	if errors.As(err, &se) {
		return se.Type == ErrorTypeValidation
	}
	return false
}

// IsSecurityError 判断是否为安全策略错误
func IsSecurityError(err error) bool {
	var se *SentinelError
	if errors.As(err, &se) {
		return se.Type == ErrorTypeSecurity
	}
	return false
}

// IsAnalysisError 判断是否为分析错误
func IsAnalysisError(err error) bool {
	var se *SentinelError
	if errors.As(err, &se) {
		return se.Type == ErrorTypeAnalysis
	}
	return false
}

// 预定义错误
var (
	ErrInvalidAddress = NewSentinelError(
		ErrorTypeValidation,
		SeverityMedium,
		"INVALID_ADDRESS",
		"合约地址格式无效",
	)

	ErrInvalidABI = NewSentinelError(
		ErrorTypeValidation,
		SeverityMedium,
		"INVALID_ABI",
		"ABI格式无效",
	)

	ErrUnknownAddress = NewSentinelError(
		ErrorTypeSecurity,
		SeverityHigh,
		"UNKNOWN_ADDRESS",
		"地址不在已知恶意名单中",
	)

	ErrFetchTimeout = NewSentinelError(
		ErrorTypeTimeout,
		SeverityMedium,
		"FETCH_TIMEOUT",
		"字节码获取超时",
	)

	ErrFetchFailed = NewSentinelError(
		ErrorTypeNetwork,
		SeverityMedium,
		"FETCH_FAILED",
		"字节码获取失败",
	)

	ErrConfigInvalid = NewSentinelError(
		ErrorTypeConfig,
		SeverityCritical,
		"CONFIG_INVALID",
		"配置无效",
	)

	ErrKafkaProduceFailed = NewSentinelError(
		ErrorTypeKafka,
		SeverityHigh,
		"KAFKA_PRODUCE_FAILED",
		"Kafka消息发送失败",
	)
)

// 错误类型字符串映射
var errorTypeNames = map[ErrorType]string{
	ErrorTypeValidation: "Validation",
	ErrorTypeSecurity:   "Security",
	ErrorTypeAnalysis:   "Analysis",
	ErrorTypeNetwork:    "Network",
	ErrorTypeTimeout:    "Timeout",
	ErrorTypeRateLimit:  "RateLimit",
	ErrorTypeConfig:     "Config",
	ErrorTypeStorage:    "Storage",
	ErrorTypeKafka:      "Kafka",
}

// String 返回错误类型的字符串表示
func (et ErrorType) String() string {
	if name, exists := errorTypeNames[et]; exists {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", et)
}

// 严重级别字符串映射
var severityNames = map[ErrorSeverity]string{
	SeverityLow:      "Low",
	SeverityMedium:   "Medium",
	SeverityHigh:     "High",
	SeverityCritical: "Critical",
}

// String 返回严重级别的字符串表示
func (es ErrorSeverity) String() string {
	if name, exists := severityNames[es]; exists {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", es)
}
