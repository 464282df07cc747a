package detector

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"sentinel/internal/abi"
	"sentinel/pkg/models"
)

func TestDefaultDetectors_CoversAllCategories(t *testing.T) {
	detectors := DefaultDetectors(nil)

	assert.Len(t, detectors, len(models.AllCategories))

	seen := make(map[models.PatternCategory]bool)
	for _, d := range detectors {
		seen[d.Category()] = true
	}
	for _, cat := range models.AllCategories {
		assert.True(t, seen[cat], "缺少类别 %s 的检测器", cat)
	}
}

func TestLinearConfidence_Saturation(t *testing.T) {
	h := DefaultHeuristics

	// 单函数接口上的多重命中饱和为1.0
	assert.Equal(t, 1.0, h.linearConfidence(1, 1, 1, 1))

	// 零命中零置信度
	assert.Equal(t, 0.0, h.linearConfidence(0, 0, 0, 5))

	// 零函数接口按1归一化避免除零
	assert.Equal(t, 0.8, h.linearConfidence(1, 0, 0, 0))
}

func TestNonFunctionalTransfer_ReadOnlyTransfer(t *testing.T) {
	d := NewNonFunctionalTransferDetector(nil)

	contractABI := abi.ABI{
		{Type: abi.KindFunction, Name: "transfer", StateMutability: abi.MutabilityView,
			Inputs:  []abi.Parameter{{Type: "address"}, {Type: "uint256"}},
			Outputs: []abi.Parameter{{Type: "bool"}}},
	}

	result := d.Detect(contractABI, nil)

	// 只读转账 + 缺少Transfer事件：2.0 * (0.4 + 0.2) / 1 饱和为1.0
	assert.True(t, result.Detected)
	assert.Equal(t, 1.0, result.Confidence)
	assert.Equal(t, models.SeverityCritical, result.Severity)
	assert.Contains(t, result.Evidence[0], "read-only-transfer")
}

func TestNonFunctionalTransfer_StandardNotDetected(t *testing.T) {
	d := NewNonFunctionalTransferDetector(nil)

	result := d.Detect(standardERC20(), nil)

	assert.False(t, result.Detected)
	assert.Equal(t, 0.0, result.Confidence)
	assert.Empty(t, result.Evidence)
}

func TestNonFunctionalTransfer_MissingBoolReturn(t *testing.T) {
	d := NewNonFunctionalTransferDetector(nil)

	contractABI := abi.ABI{
		{Type: abi.KindFunction, Name: "transfer", StateMutability: abi.MutabilityNonpayable,
			Inputs: []abi.Parameter{{Type: "address"}, {Type: "uint256"}}},
		{Type: abi.KindEvent, Name: "Transfer",
			Inputs: []abi.Parameter{
				{Name: "from", Type: "address", Indexed: true},
				{Name: "to", Type: "address", Indexed: true},
				{Name: "value", Type: "uint256"},
			}},
	}

	result := d.Detect(contractABI, nil)

	// 2.0 * 0.3 / 1 = 0.6
	assert.True(t, result.Detected)
	assert.InDelta(t, 0.6, result.Confidence, 1e-9)
	assert.Equal(t, models.SeverityMedium, result.Severity)
	assert.Contains(t, result.Evidence[0], "missing-return")
}

func TestHiddenRedirection_PayableTrap(t *testing.T) {
	d := NewHiddenRedirectionDetector(nil)

	contractABI := abi.ABI{
		{Type: abi.KindFunction, Name: "deposit", StateMutability: abi.MutabilityPayable},
		{Type: abi.KindFunction, Name: "sweep", StateMutability: abi.MutabilityNonpayable},
	}

	result := d.Detect(contractABI, nil)

	// 盲转出 + payable陷阱：2.0 * (0.4 + 0.2) / 2 = 0.6
	assert.True(t, result.Detected)
	assert.InDelta(t, 0.6, result.Confidence, 1e-9)
	assert.Equal(t, models.SeverityCritical, result.Severity)
	assert.Contains(t, result.Evidence[0], "blind-drain")
	assert.Contains(t, result.Evidence[1], "payable-trap")
}

func TestHiddenRedirection_DrainWithRecipientParam(t *testing.T) {
	d := NewHiddenRedirectionDetector(nil)

	// 收款地址由调用方指定，不算隐蔽转移
	contractABI := abi.ABI{
		{Type: abi.KindFunction, Name: "sweep", StateMutability: abi.MutabilityNonpayable,
			Inputs: []abi.Parameter{{Name: "to", Type: "address"}}},
	}

	result := d.Detect(contractABI, nil)

	assert.False(t, result.Detected)
	assert.Empty(t, result.Evidence)
}

func TestHiddenRedirection_RecipientSetter(t *testing.T) {
	d := NewHiddenRedirectionDetector(nil)

	contractABI := abi.ABI{
		{Type: abi.KindFunction, Name: "setRecipient", StateMutability: abi.MutabilityNonpayable,
			Inputs: []abi.Parameter{{Type: "address"}}},
	}

	result := d.Detect(contractABI, nil)

	// 2.0 * 0.3 / 1 = 0.6
	assert.True(t, result.Detected)
	assert.InDelta(t, 0.6, result.Confidence, 1e-9)
	assert.Equal(t, models.SeverityMedium, result.Severity)
	assert.Contains(t, result.Evidence[0], "recipient-setter")
}

func TestDeceptiveEvents_StandardNotDetected(t *testing.T) {
	d := NewDeceptiveEventsDetector(nil)

	result := d.Detect(standardERC20(), nil)

	assert.False(t, result.Detected)
	assert.Empty(t, result.Evidence)
}

func TestDeceptiveEvents_ShapeMismatch(t *testing.T) {
	d := NewDeceptiveEventsDetector(nil)

	contractABI := abi.ABI{
		{Type: abi.KindEvent, Name: "Transfer",
			Inputs: []abi.Parameter{{Type: "address"}, {Type: "uint256"}}},
		{Type: abi.KindFunction, Name: "transfer", StateMutability: abi.MutabilityNonpayable,
			Inputs:  []abi.Parameter{{Type: "address"}, {Type: "uint256"}},
			Outputs: []abi.Parameter{{Type: "bool"}}},
	}

	result := d.Detect(contractABI, nil)

	// 2.0 * 0.4 / 2 = 0.4
	assert.True(t, result.Detected)
	assert.InDelta(t, 0.4, result.Confidence, 1e-9)
	assert.Equal(t, models.SeverityMedium, result.Severity)
	assert.Contains(t, result.Evidence[0], "shape-mismatch")
}

func TestDeceptiveEvents_OrphanTransferEvent(t *testing.T) {
	d := NewDeceptiveEventsDetector(nil)

	contractABI := abi.ABI{
		{Type: abi.KindEvent, Name: "Transfer",
			Inputs: []abi.Parameter{
				{Name: "from", Type: "address", Indexed: true},
				{Name: "to", Type: "address", Indexed: true},
				{Name: "value", Type: "uint256"},
			}},
	}

	result := d.Detect(contractABI, nil)

	// 孤儿事件：2.0 * 0.3 / 1 = 0.6
	assert.True(t, result.Detected)
	assert.InDelta(t, 0.6, result.Confidence, 1e-9)
	assert.Equal(t, models.SeverityCritical, result.Severity)
	assert.Contains(t, result.Evidence[0], "orphan-event")
}

func TestDeceptiveEvents_IndexingMismatchBelowThreshold(t *testing.T) {
	d := NewDeceptiveEventsDetector(nil)

	// indexed标记异常权重最低，单独出现不足以判定检出
	contractABI := abi.ABI{
		{Type: abi.KindEvent, Name: "Transfer",
			Inputs: []abi.Parameter{
				{Name: "from", Type: "address"},
				{Name: "to", Type: "address"},
				{Name: "value", Type: "uint256"},
			}},
		{Type: abi.KindFunction, Name: "transfer", StateMutability: abi.MutabilityNonpayable,
			Inputs:  []abi.Parameter{{Type: "address"}, {Type: "uint256"}},
			Outputs: []abi.Parameter{{Type: "bool"}}},
	}

	result := d.Detect(contractABI, nil)

	// 2.0 * 0.2 / 2 = 0.2，低于检出阈值
	assert.False(t, result.Detected)
	assert.InDelta(t, 0.2, result.Confidence, 1e-9)
	assert.Contains(t, result.Evidence[0], "indexing-mismatch")
}
