package detector

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"sentinel/internal/abi"
	"sentinel/pkg/models"
)

// 构造标准ERC-20接口
func standardERC20() abi.ABI {
	return abi.ABI{
		{Type: abi.KindFunction, Name: "balanceOf", StateMutability: abi.MutabilityView,
			Inputs:  []abi.Parameter{{Name: "owner", Type: "address"}},
			Outputs: []abi.Parameter{{Type: "uint256"}}},
		{Type: abi.KindFunction, Name: "totalSupply", StateMutability: abi.MutabilityView,
			Outputs: []abi.Parameter{{Type: "uint256"}}},
		{Type: abi.KindFunction, Name: "transfer", StateMutability: abi.MutabilityNonpayable,
			Inputs:  []abi.Parameter{{Name: "to", Type: "address"}, {Name: "amount", Type: "uint256"}},
			Outputs: []abi.Parameter{{Type: "bool"}}},
		{Type: abi.KindEvent, Name: "Transfer",
			Inputs: []abi.Parameter{
				{Name: "from", Type: "address", Indexed: true},
				{Name: "to", Type: "address", Indexed: true},
				{Name: "value", Type: "uint256"},
			}},
	}
}

func TestFakeBalance_StandardERC20NotDetected(t *testing.T) {
	d := NewFakeBalanceDetector(nil)

	result := d.Detect(standardERC20(), nil)

	assert.False(t, result.Detected)
	assert.Equal(t, 0.0, result.Confidence)
	assert.Empty(t, result.Evidence)
	assert.Equal(t, models.CategoryFakeBalance, result.Category)
}

func TestFakeBalance_ImproperBalanceOfSignature(t *testing.T) {
	d := NewFakeBalanceDetector(nil)

	// balanceOf带多余参数，与标准签名不符
	contractABI := abi.ABI{
		{Type: abi.KindFunction, Name: "balanceOf", StateMutability: abi.MutabilityView,
			Inputs:  []abi.Parameter{{Type: "address"}, {Type: "uint256"}},
			Outputs: []abi.Parameter{{Type: "uint256"}}},
	}

	result := d.Detect(contractABI, nil)

	// 1个函数命中improper组：2.0 * 0.3 / 1 = 0.6
	assert.True(t, result.Detected)
	assert.InDelta(t, 0.6, result.Confidence, 1e-9)
	assert.Equal(t, models.SeverityCritical, result.Severity)
	assert.NotEmpty(t, result.Evidence)
	assert.Contains(t, result.Evidence[0], "improper-erc20")
	assert.Equal(t, "1", result.Metadata["improper_erc20"])
}

func TestFakeBalance_TimestampDependentBalance(t *testing.T) {
	d := NewFakeBalanceDetector(nil)

	contractABI := abi.ABI{
		{Type: abi.KindFunction, Name: "getBalanceTimestamp", StateMutability: abi.MutabilityView,
			Inputs:  []abi.Parameter{{Type: "address"}},
			Outputs: []abi.Parameter{{Type: "uint256"}}},
	}

	result := d.Detect(contractABI, nil)

	// timestamp组与非确定组同时命中：2.0 * (0.4 + 0.2) / 1 饱和为1.0
	assert.True(t, result.Detected)
	assert.Equal(t, 1.0, result.Confidence)
	assert.Len(t, result.Evidence, 2)
	assert.Contains(t, result.Evidence[0], "timestamp-based")
	assert.Contains(t, result.Evidence[1], "non-deterministic-view")
}

func TestFakeBalance_LargeInterfaceDilution(t *testing.T) {
	d := NewFakeBalanceDetector(nil)

	// 10个函数中只有1个可疑，归一化后低于检出阈值
	contractABI := abi.ABI{
		{Type: abi.KindFunction, Name: "balanceNow", StateMutability: abi.MutabilityView,
			Outputs: []abi.Parameter{{Type: "uint256"}}},
	}
	for i := 0; i < 9; i++ {
		contractABI = append(contractABI, abi.Entry{
			Type: abi.KindFunction, Name: "helper", StateMutability: abi.MutabilityNonpayable,
		})
	}

	result := d.Detect(contractABI, nil)

	// 2.0 * (0.4 + 0.2) / 10 = 0.12
	assert.False(t, result.Detected)
	assert.InDelta(t, 0.12, result.Confidence, 1e-9)
	assert.NotEmpty(t, result.Evidence)
}

func TestFakeBalance_EmptyABI(t *testing.T) {
	d := NewFakeBalanceDetector(nil)

	result := d.Detect(nil, nil)

	assert.False(t, result.Detected)
	assert.Equal(t, 0.0, result.Confidence)
	assert.Empty(t, result.Evidence)
}

func TestFakeBalance_MalformedTransferEventAlone(t *testing.T) {
	d := NewFakeBalanceDetector(nil)

	// 事件形状异常产生证据，但不参与置信度加权
	contractABI := abi.ABI{
		{Type: abi.KindEvent, Name: "Transfer",
			Inputs: []abi.Parameter{{Type: "address"}, {Type: "uint256"}}},
	}

	result := d.Detect(contractABI, nil)

	assert.False(t, result.Detected)
	assert.Equal(t, 0.0, result.Confidence)
	assert.Len(t, result.Evidence, 1)
	assert.Contains(t, result.Evidence[0], "transfer-event")
}

func TestFakeBalance_ReturnTypeMismatch(t *testing.T) {
	d := NewFakeBalanceDetector(nil)

	contractABI := abi.ABI{
		{Type: abi.KindFunction, Name: "totalSupply", StateMutability: abi.MutabilityView,
			Outputs: []abi.Parameter{{Type: "string"}}},
	}

	result := d.Detect(contractABI, nil)

	assert.True(t, result.Detected)
	assert.InDelta(t, 0.6, result.Confidence, 1e-9)
	// totalSupply不是balanceOf，不触发critical
	assert.Equal(t, models.SeverityMedium, result.Severity)
}

func TestFakeBalance_UintAliasAccepted(t *testing.T) {
	d := NewFakeBalanceDetector(nil)

	// uint是uint256的别名，不应误报
	contractABI := abi.ABI{
		{Type: abi.KindFunction, Name: "balanceOf", StateMutability: abi.MutabilityView,
			Inputs:  []abi.Parameter{{Type: "address"}},
			Outputs: []abi.Parameter{{Type: "uint"}}},
	}

	result := d.Detect(contractABI, nil)

	assert.False(t, result.Detected)
	assert.Equal(t, 0.0, result.Confidence)
}
