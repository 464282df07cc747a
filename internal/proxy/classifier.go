package proxy

import (
	"bytes"
)

// Classification 字节码分类结果
type Classification struct {
	IsContract bool `json:"is_contract"`
	IsProxy    bool `json:"is_proxy"`
	Size       int  `json:"size"`
}

// EIP-1167最小代理模板，地址段按push20形式匹配。
// 参考 https://eips.ethereum.org/EIPS/eip-1167
var (
	eip1167Prefix = []byte{0x36, 0x3d, 0x3d, 0x37, 0x3d, 0x3d, 0x3d, 0x36, 0x3d}
	eip1167Suffix = []byte{0x5a, 0xf4, 0x3d, 0x82, 0x80, 0x3e, 0x90, 0x3d, 0x91, 0x60, 0x2b, 0x57, 0xfd, 0x5b, 0xf3}
)

// 代理实现槽常量，代理合约的字节码必然包含对应的push32立即数。
// EIP-1967实现槽与旧版OpenZeppelin实现槽
var (
	eip1967ImplementationSlot = []byte{
		0x36, 0x08, 0x94, 0xa1, 0x3b, 0xa1, 0xa3, 0x21, 0x06, 0x67, 0xc8, 0x28, 0x49, 0x2d, 0xb9, 0x8d,
		0xca, 0x3e, 0x20, 0x76, 0xcc, 0x37, 0x35, 0xa9, 0x20, 0xa3, 0xca, 0x50, 0x5d, 0x38, 0x2b, 0xbc,
	}
	openZeppelinImplementationSlot = []byte{
		0x70, 0x50, 0xc9, 0xe0, 0xf4, 0xca, 0x76, 0x9c, 0x69, 0xbd, 0x3a, 0x8e, 0xf7, 0x40, 0xbc, 0x37,
		0x93, 0x4f, 0x8e, 0x2c, 0x03, 0x6e, 0x5a, 0x72, 0x3f, 0xd8, 0xee, 0x04, 0x8e, 0xd3, 0xf8, 0xc3,
	}
)

// Classify 对已获取的字节码做纯函数分类：是否为合约账户、是否
// 匹配已知的委托代理模板、代码大小。不做任何网络或IO操作
func Classify(bytecode []byte) Classification {
	c := Classification{
		IsContract: len(bytecode) > 0,
		Size:       len(bytecode),
	}

	if !c.IsContract {
		return c
	}

	c.IsProxy = isMinimalProxy(bytecode) || hasImplementationSlot(bytecode)
	return c
}

// isMinimalProxy 匹配EIP-1167最小代理模板。前后缀精确匹配，
// 中间为pushN（1<=N<=20）加N字节实现地址
func isMinimalProxy(bytecode []byte) bool {
	if len(bytecode) < len(eip1167Prefix)+1+len(eip1167Suffix) {
		return false
	}

	if !bytes.HasPrefix(bytecode, eip1167Prefix) {
		return false
	}

	// push1 = 0x60, push20 = 0x73
	pushOp := bytecode[len(eip1167Prefix)]
	if pushOp < 0x60 || pushOp > 0x73 {
		return false
	}

	addressLen := int(pushOp-0x60) + 1
	suffixPos := len(eip1167Prefix) + 1 + addressLen
	if len(bytecode) < suffixPos+len(eip1167Suffix) {
		return false
	}

	return bytes.Equal(bytecode[suffixPos:suffixPos+len(eip1167Suffix)], eip1167Suffix)
}

// hasImplementationSlot 扫描push32指令的立即数，匹配已知的
// 代理实现槽常量
func hasImplementationSlot(bytecode []byte) bool {
	for i := 0; i < len(bytecode); i++ {
		// push32 = 0x7f
		if bytecode[i] != 0x7f {
			continue
		}
		if len(bytecode[i+1:]) < 32 {
			return false
		}

		operand := bytecode[i+1 : i+33]
		if bytes.Equal(operand, eip1967ImplementationSlot) ||
			bytes.Equal(operand, openZeppelinImplementationSlot) {
			return true
		}

		i += 32
	}

	return false
}

// MinimalProxyTemplate 返回一份指向给定20字节实现地址的标准
// EIP-1167字节码，主要用于测试构造
func MinimalProxyTemplate(implementation [20]byte) []byte {
	code := make([]byte, 0, 45)
	code = append(code, eip1167Prefix...)
	code = append(code, 0x73) // push20
	code = append(code, implementation[:]...)
	code = append(code, eip1167Suffix...)
	return code
}
