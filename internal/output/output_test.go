package output

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinel/internal/config"
	"sentinel/pkg/models"
)

func TestFileOutput_WriteAnalysis(t *testing.T) {
	dir := t.TempDir()

	out, err := NewFileOutput(dir)
	require.NoError(t, err)

	analysis := &models.AdvancedContractAnalysis{
		ContractAnalysis: models.ContractAnalysis{
			ContractAddress: "0x1234567890abcdef1234567890abcdef12345678",
			AnalysisStatus:  models.StatusComplete,
			RiskLevel:       models.SeverityLow,
		},
	}

	require.NoError(t, out.WriteAnalysis(analysis))
	require.NoError(t, out.WriteAnalysis(analysis))
	require.NoError(t, out.Close())

	file, err := os.Open(filepath.Join(dir, "analyses.jsonl"))
	require.NoError(t, err)
	defer file.Close()

	var lines int
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var decoded map[string]interface{}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &decoded))
		assert.Equal(t, analysis.ContractAddress, decoded["contract_address"])
		lines++
	}
	assert.Equal(t, 2, lines)
}

func TestFileOutput_WriteWarning(t *testing.T) {
	dir := t.TempDir()

	out, err := NewFileOutput(dir)
	require.NoError(t, err)

	warning := &models.SecurityWarning{
		Level:     models.WarningLevelCritical,
		Message:   "测试警告",
		Address:   "0x1234567890abcdef1234567890abcdef12345678",
		Timestamp: time.Now(),
		Category:  models.CategoryFakeBalance,
	}

	require.NoError(t, out.WriteWarning(warning))
	require.NoError(t, out.Close())

	data, err := os.ReadFile(filepath.Join(dir, "warnings.jsonl"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "fake-balance")
}

func TestFileOutput_NilValuesIgnored(t *testing.T) {
	out, err := NewFileOutput(t.TempDir())
	require.NoError(t, err)
	defer out.Close()

	assert.NoError(t, out.WriteAnalysis(nil))
	assert.NoError(t, out.WriteWarning(nil))
}

func TestNewOutput_FileFormat(t *testing.T) {
	cfg := &config.OutputConfig{Format: "file", Directory: t.TempDir()}

	out, err := NewOutput(cfg, logrus.New())
	require.NoError(t, err)
	defer out.Close()

	assert.IsType(t, &FileOutput{}, out)
}

func TestNewOutput_UnsupportedFormat(t *testing.T) {
	cfg := &config.OutputConfig{Format: "csv"}

	out, err := NewOutput(cfg, logrus.New())

	assert.Error(t, err)
	assert.Nil(t, out)
}

func TestNewOutput_KafkaWithoutConfig(t *testing.T) {
	cfg := &config.OutputConfig{Format: "kafka"}

	out, err := NewOutput(cfg, logrus.New())

	assert.Error(t, err)
	assert.Nil(t, out)
}
