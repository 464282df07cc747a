package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinel/internal/errors"
	"sentinel/pkg/models"
)

// 构造单类检出结果
func detectedResult(category models.PatternCategory, confidence float64) *models.PatternResult {
	return &models.PatternResult{
		Detected:   true,
		Confidence: confidence,
		Category:   category,
		Evidence:   []string{"测试证据"},
		Severity:   models.SeverityMedium,
	}
}

func cleanResult(category models.PatternCategory) *models.PatternResult {
	return &models.PatternResult{
		Detected:   false,
		Confidence: 0,
		Category:   category,
		Severity:   models.SeverityLow,
	}
}

func TestAggregate_NilResults(t *testing.T) {
	a := NewAggregator(nil)

	assessment, err := a.Aggregate(nil, false)

	assert.Error(t, err)
	assert.Nil(t, assessment)
	assert.True(t, errors.IsValidationError(err))
}

func TestAggregate_InvalidCategory(t *testing.T) {
	a := NewAggregator(nil)

	results := map[models.PatternCategory]*models.PatternResult{
		models.PatternCategory("unknown-pattern"): detectedResult("unknown-pattern", 0.5),
	}

	assessment, err := a.Aggregate(results, false)

	assert.Error(t, err)
	assert.Nil(t, assessment)
}

func TestAggregate_NilResultEntry(t *testing.T) {
	a := NewAggregator(nil)

	results := map[models.PatternCategory]*models.PatternResult{
		models.CategoryFakeBalance: nil,
	}

	assessment, err := a.Aggregate(results, false)

	assert.Error(t, err)
	assert.Nil(t, assessment)
}

func TestAggregate_EmptyResults(t *testing.T) {
	a := NewAggregator(nil)

	assessment, err := a.Aggregate(map[models.PatternCategory]*models.PatternResult{}, false)

	require.NoError(t, err)
	assert.Equal(t, 0.0, assessment.RiskScore)
	assert.Equal(t, 0.0, assessment.Confidence)
	assert.Equal(t, "未检出已知欺诈模式", assessment.Explanation.Summary)
}

func TestAggregate_SingleDetection(t *testing.T) {
	a := NewAggregator(nil)

	results := map[models.PatternCategory]*models.PatternResult{
		models.CategoryFakeBalance: detectedResult(models.CategoryFakeBalance, 0.8),
	}

	assessment, err := a.Aggregate(results, false)
	require.NoError(t, err)

	// 0.30 * 0.8，无佐证加分，无低置信度惩罚
	assert.InDelta(t, 0.24, assessment.RiskScore, 1e-9)
	assert.InDelta(t, 0.24, assessment.Breakdown.BaseScore, 1e-9)
	assert.Equal(t, 0.0, assessment.Breakdown.BonusScore)
	assert.Equal(t, 0.0, assessment.Breakdown.PenaltyScore)
	assert.Len(t, assessment.Explanation.RiskFactors, 1)
}

func TestAggregate_CorroborationBonus(t *testing.T) {
	a := NewAggregator(nil)

	results := map[models.PatternCategory]*models.PatternResult{
		models.CategoryFakeBalance:       detectedResult(models.CategoryFakeBalance, 0.8),
		models.CategoryHiddenRedirection: detectedResult(models.CategoryHiddenRedirection, 0.6),
	}

	assessment, err := a.Aggregate(results, false)
	require.NoError(t, err)

	// 0.30*0.8 + 0.35*0.6 + 0.10佐证加分
	assert.InDelta(t, 0.24+0.21+0.10, assessment.RiskScore, 1e-9)
	assert.Equal(t, 0.10, assessment.Breakdown.BonusScore)
}

func TestAggregate_LowConfidencePenalty(t *testing.T) {
	a := NewAggregator(nil)

	results := map[models.PatternCategory]*models.PatternResult{
		models.CategoryFakeBalance: detectedResult(models.CategoryFakeBalance, 0.35),
	}

	assessment, err := a.Aggregate(results, false)
	require.NoError(t, err)

	// 基础分0.30*0.35=0.105，惩罚0.1*(0.5-0.35)=0.015
	assert.InDelta(t, 0.105-0.015, assessment.RiskScore, 1e-9)
	assert.InDelta(t, 0.015, assessment.Breakdown.PenaltyScore, 1e-9)
	// 惩罚不会把单个检出的贡献抵消为负
	assert.Greater(t, assessment.RiskScore, 0.0)
}

func TestAggregate_KnownMaliciousOverride(t *testing.T) {
	a := NewAggregator(nil)

	// 即使所有启发式均未命中，名单命中也强制最高分
	results := map[models.PatternCategory]*models.PatternResult{
		models.CategoryFakeBalance: cleanResult(models.CategoryFakeBalance),
	}

	assessment, err := a.Aggregate(results, true)
	require.NoError(t, err)

	assert.Equal(t, 1.0, assessment.RiskScore)
	assert.Equal(t, 1.0, assessment.Confidence)
	assert.Equal(t, models.SeverityCritical, assessment.RiskLevel())
	assert.Contains(t, assessment.Explanation.RiskFactors, "地址命中已知恶意名单")
}

func TestAggregate_Idempotent(t *testing.T) {
	a := NewAggregator(nil)

	results := map[models.PatternCategory]*models.PatternResult{
		models.CategoryFakeBalance:       detectedResult(models.CategoryFakeBalance, 0.45),
		models.CategoryDeceptiveEvents:   cleanResult(models.CategoryDeceptiveEvents),
		models.CategoryHiddenRedirection: detectedResult(models.CategoryHiddenRedirection, 0.7),
	}

	first, err := a.Aggregate(results, false)
	require.NoError(t, err)
	second, err := a.Aggregate(results, false)
	require.NoError(t, err)

	assert.Equal(t, first.RiskScore, second.RiskScore)
	assert.Equal(t, first.Confidence, second.Confidence)
	assert.Equal(t, first.Explanation.Summary, second.Explanation.Summary)
	assert.Equal(t, first.Explanation.RiskFactors, second.Explanation.RiskFactors)
}

func TestAggregate_MonotoneInDetections(t *testing.T) {
	a := NewAggregator(nil)

	base := map[models.PatternCategory]*models.PatternResult{
		models.CategoryFakeBalance: detectedResult(models.CategoryFakeBalance, 0.6),
	}
	baseAssessment, err := a.Aggregate(base, false)
	require.NoError(t, err)

	// 在已有结果上追加任意置信度的新检出，分值不应下降
	for _, conf := range []float64{0.31, 0.4, 0.5, 0.9, 1.0} {
		extended := map[models.PatternCategory]*models.PatternResult{
			models.CategoryFakeBalance:           base[models.CategoryFakeBalance],
			models.CategoryNonFunctionalTransfer: detectedResult(models.CategoryNonFunctionalTransfer, conf),
		}
		extendedAssessment, err := a.Aggregate(extended, false)
		require.NoError(t, err)

		assert.GreaterOrEqual(t, extendedAssessment.RiskScore, baseAssessment.RiskScore,
			"追加置信度%.2f的检出后分值下降", conf)
	}
}

func TestAggregate_ScoreClamped(t *testing.T) {
	a := NewAggregator(nil)

	results := make(map[models.PatternCategory]*models.PatternResult)
	for _, category := range models.AllCategories {
		results[category] = detectedResult(category, 1.0)
	}

	assessment, err := a.Aggregate(results, false)
	require.NoError(t, err)

	// 0.35+0.30+0.20+0.15+0.10 = 1.10，截断到1.0
	assert.Equal(t, 1.0, assessment.RiskScore)
}

func TestWarnings_OnlyDetectedPatterns(t *testing.T) {
	a := NewAggregator(nil)

	results := map[models.PatternCategory]*models.PatternResult{
		models.CategoryFakeBalance:       detectedResult(models.CategoryFakeBalance, 0.8),
		models.CategoryDeceptiveEvents:   cleanResult(models.CategoryDeceptiveEvents),
		models.CategoryHiddenRedirection: detectedResult(models.CategoryHiddenRedirection, 0.6),
	}

	addr := "0x1111111111111111111111111111111111111111"
	warnings := a.Warnings(addr, results)

	assert.Len(t, warnings, 2)
	// 固定类别顺序：fake-balance在hidden-redirection之前
	assert.Equal(t, models.CategoryFakeBalance, warnings[0].Category)
	assert.Equal(t, models.CategoryHiddenRedirection, warnings[1].Category)
	for _, w := range warnings {
		assert.Equal(t, addr, w.Address)
		assert.Equal(t, models.WarningLevelWarning, w.Level)
	}
}

func TestWarnings_NoDetections(t *testing.T) {
	a := NewAggregator(nil)

	warnings := a.Warnings("0x1111111111111111111111111111111111111111",
		map[models.PatternCategory]*models.PatternResult{
			models.CategoryFakeBalance: cleanResult(models.CategoryFakeBalance),
		})

	assert.Empty(t, warnings)
}
