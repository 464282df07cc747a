package abi

import (
	"encoding/json"
	"strings"

	"sentinel/internal/errors"
)

// 条目类型
const (
	KindFunction    = "function"
	KindEvent       = "event"
	KindConstructor = "constructor"
	KindFallback    = "fallback"
	KindReceive     = "receive"
)

// 状态可变性
const (
	MutabilityView       = "view"
	MutabilityPure       = "pure"
	MutabilityNonpayable = "nonpayable"
	MutabilityPayable    = "payable"
)

// Parameter ABI参数
type Parameter struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Indexed bool   `json:"indexed,omitempty"`
}

// Entry 合约接口的单个条目
type Entry struct {
	Type            string      `json:"type"`
	Name            string      `json:"name"`
	Inputs          []Parameter `json:"inputs"`
	Outputs         []Parameter `json:"outputs,omitempty"`
	StateMutability string      `json:"stateMutability,omitempty"`
}

// IsFunction 判断是否为函数条目
func (e *Entry) IsFunction() bool {
	return e.Type == KindFunction
}

// IsEvent 判断是否为事件条目
func (e *Entry) IsEvent() bool {
	return e.Type == KindEvent
}

// IsReadOnly 判断是否为只读函数（view或pure）
func (e *Entry) IsReadOnly() bool {
	return e.StateMutability == MutabilityView || e.StateMutability == MutabilityPure
}

// NameContains 判断名称是否包含指定子串（大小写不敏感）
func (e *Entry) NameContains(token string) bool {
	return strings.Contains(strings.ToLower(e.Name), strings.ToLower(token))
}

// ABI 合约接口，条目顺序保持输入顺序以保证结果可复现
type ABI []Entry

// Functions 返回所有函数条目
func (a ABI) Functions() []Entry {
	var fns []Entry
	for _, e := range a {
		if e.IsFunction() {
			fns = append(fns, e)
		}
	}
	return fns
}

// Events 返回所有事件条目
func (a ABI) Events() []Entry {
	var evs []Entry
	for _, e := range a {
		if e.IsEvent() {
			evs = append(evs, e)
		}
	}
	return evs
}

// FindEvent 按名称查找事件（大小写敏感，与Solidity一致）
func (a ABI) FindEvent(name string) *Entry {
	for i := range a {
		if a[i].IsEvent() && a[i].Name == name {
			return &a[i]
		}
	}
	return nil
}

// Parse 从JSON数组解析ABI。解析在系统边界完成，内部组件只操作
// 已经通过校验的值
func Parse(data []byte) (ABI, error) {
	if len(data) == 0 {
		return nil, errors.NewValidationError("abi", "ABI不能为空")
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, errors.NewValidationError("abi", "ABI必须为合法的JSON数组").
			WithContext("parse_error", err.Error())
	}

	for i, e := range entries {
		switch e.Type {
		case KindFunction, KindEvent, KindConstructor, KindFallback, KindReceive:
		case "":
			return nil, errors.NewValidationError("abi", "ABI条目缺少type字段").
				WithContext("index", i)
		default:
			return nil, errors.NewValidationError("abi", "ABI条目类型未知").
				WithContext("index", i).
				WithContext("type", e.Type)
		}

		if (e.Type == KindFunction || e.Type == KindEvent) && e.Name == "" {
			return nil, errors.NewValidationError("abi", "函数或事件条目缺少名称").
				WithContext("index", i)
		}
	}

	return ABI(entries), nil
}
