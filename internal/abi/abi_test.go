package abi

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"sentinel/internal/errors"
)

const erc20ABI = `[
	{"type":"function","name":"balanceOf","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"},
	{"type":"function","name":"transfer","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable"},
	{"type":"event","name":"Transfer","inputs":[{"name":"from","type":"address","indexed":true},{"name":"to","type":"address","indexed":true},{"name":"value","type":"uint256"}]},
	{"type":"constructor","inputs":[]}
]`

func TestParse_Valid(t *testing.T) {
	parsed, err := Parse([]byte(erc20ABI))

	assert.NoError(t, err)
	assert.Len(t, parsed, 4)

	fns := parsed.Functions()
	assert.Len(t, fns, 2)
	assert.Equal(t, "balanceOf", fns[0].Name)
	assert.True(t, fns[0].IsReadOnly())
	assert.False(t, fns[1].IsReadOnly())

	evs := parsed.Events()
	assert.Len(t, evs, 1)
	assert.Equal(t, "Transfer", evs[0].Name)
}

func TestParse_Empty(t *testing.T) {
	parsed, err := Parse(nil)

	assert.Error(t, err)
	assert.Nil(t, parsed)
	assert.True(t, errors.IsValidationError(err))
}

func TestParse_InvalidJSON(t *testing.T) {
	parsed, err := Parse([]byte(`{"not":"an array"}`))

	assert.Error(t, err)
	assert.Nil(t, parsed)
	assert.True(t, errors.IsValidationError(err))
}

func TestParse_MissingType(t *testing.T) {
	parsed, err := Parse([]byte(`[{"name":"foo"}]`))

	assert.Error(t, err)
	assert.Nil(t, parsed)
}

func TestParse_UnknownType(t *testing.T) {
	parsed, err := Parse([]byte(`[{"type":"modifier","name":"onlyOwner"}]`))

	assert.Error(t, err)
	assert.Nil(t, parsed)
}

func TestParse_FunctionWithoutName(t *testing.T) {
	parsed, err := Parse([]byte(`[{"type":"function","inputs":[]}]`))

	assert.Error(t, err)
	assert.Nil(t, parsed)
}

func TestFindEvent(t *testing.T) {
	parsed, err := Parse([]byte(erc20ABI))
	assert.NoError(t, err)

	ev := parsed.FindEvent("Transfer")
	assert.NotNil(t, ev)
	assert.Len(t, ev.Inputs, 3)

	// 事件名大小写敏感
	assert.Nil(t, parsed.FindEvent("transfer"))
	assert.Nil(t, parsed.FindEvent("Approval"))
}

func TestNameContains(t *testing.T) {
	e := &Entry{Type: KindFunction, Name: "emergencyWithdrawAll"}

	assert.True(t, e.NameContains("withdraw"))
	assert.True(t, e.NameContains("WITHDRAW"))
	assert.False(t, e.NameContains("deposit"))
}
