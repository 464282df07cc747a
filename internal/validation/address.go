package validation

import (
	"regexp"
	"strings"

	"sentinel/internal/errors"

	"github.com/ethereum/go-ethereum/common"
)

// 地址格式：0x前缀 + 40个十六进制字符
var addressRegex = regexp.MustCompile("^0x[0-9a-fA-F]{40}$")

// NormalizeAddress 校验并规范化合约地址。内部所有组件只接受
// 本函数返回的小写规范形式
func NormalizeAddress(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)

	if trimmed == "" {
		return "", errors.NewValidationError("address", "地址不能为空")
	}

	if !strings.HasPrefix(trimmed, "0x") {
		return "", errors.NewValidationError("address", "地址必须以0x开头").
			WithContext("raw", raw)
	}

	if !addressRegex.MatchString(trimmed) {
		return "", errors.NewValidationError("address", "地址必须为0x前缀的40位十六进制字符串").
			WithContext("raw", raw)
	}

	// 与go-ethereum的地址判断保持一致
	if !common.IsHexAddress(trimmed) {
		return "", errors.NewValidationError("address", "地址格式无效").
			WithContext("raw", raw)
	}

	return strings.ToLower(trimmed), nil
}

// IsValidAddress 判断地址格式是否合法
func IsValidAddress(addr string) bool {
	return addressRegex.MatchString(addr) && common.IsHexAddress(addr)
}
