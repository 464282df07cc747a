package risk

import (
	"fmt"

	"sentinel/internal/errors"
	"sentinel/pkg/models"
)

// Weights 风险聚合的策略常量。各类别权重为固定配置，隐蔽资金
// 转移直接威胁本金，权重最高
type Weights struct {
	Categories map[models.PatternCategory]float64 `mapstructure:"categories"`

	// 多类别同时命中时的佐证加分
	CorroborationBonus float64 `mapstructure:"corroboration_bonus"`

	// 低置信度惩罚：置信度低于基准的检出按差值折减，
	// 避免弱信号被高估
	LowConfidenceBaseline float64 `mapstructure:"low_confidence_baseline"`
	LowConfidencePenalty  float64 `mapstructure:"low_confidence_penalty"`
}

// DefaultWeights 默认权重配置
var DefaultWeights = &Weights{
	Categories: map[models.PatternCategory]float64{
		models.CategoryHiddenRedirection:     0.35,
		models.CategoryFakeBalance:           0.30,
		models.CategoryNonFunctionalTransfer: 0.20,
		models.CategoryDeceptiveEvents:       0.15,
	},
	CorroborationBonus:    0.10,
	LowConfidenceBaseline: 0.5,
	LowConfidencePenalty:  0.1,
}

// Aggregator 风险聚合器。纯函数组件，对相同输入永远产生
// 逐位一致的结果
type Aggregator struct {
	weights *Weights
}

// NewAggregator 创建风险聚合器
func NewAggregator(weights *Weights) *Aggregator {
	if weights == nil {
		weights = DefaultWeights
	}
	return &Aggregator{weights: weights}
}

// Aggregate 将全部检测结果与恶意名单命中情况合并为单一风险评估。
// 名单命中视为基准事实，最终分值强制为1.0，不受启发式结果影响。
// 仅在输入结构非法时返回错误，干净合约返回全零评估而非错误
func (a *Aggregator) Aggregate(results map[models.PatternCategory]*models.PatternResult, isKnownMalicious bool) (*models.RiskAssessment, error) {
	if results == nil {
		return nil, errors.NewValidationError("pattern_results", "检测结果不能为nil")
	}

	for category, result := range results {
		if !category.IsValid() {
			return nil, errors.NewValidationError("pattern_results",
				fmt.Sprintf("未知的模式类别: %s", category))
		}
		if result == nil {
			return nil, errors.NewValidationError("pattern_results",
				fmt.Sprintf("类别 %s 的检测结果为nil", category))
		}
	}

	breakdown := &models.RiskBreakdown{
		Patterns: make(map[models.PatternCategory]*models.PatternBreakdown, len(results)),
	}

	var baseScore, confidenceSum float64
	detectedCount := 0

	// 按固定类别顺序遍历，保证结果可复现
	for _, category := range models.AllCategories {
		result, exists := results[category]
		if !exists {
			continue
		}

		weight := a.weights.Categories[category]
		contribution := 0.0
		if result.Detected {
			contribution = weight * result.Confidence
			baseScore += contribution
			detectedCount++
		}
		confidenceSum += result.Confidence

		breakdown.Patterns[category] = &models.PatternBreakdown{
			Weight:       weight,
			Confidence:   result.Confidence,
			Severity:     result.Severity,
			Contribution: contribution,
			Detected:     result.Detected,
		}
	}

	// 多个独立类别同时命中，真阳性的可能性上升
	bonusScore := 0.0
	if detectedCount >= 2 {
		bonusScore = a.weights.CorroborationBonus
	}

	// 低置信度检出按差值折减。检出门槛保证单个检出的基础贡献
	// 始终大于其惩罚，finalScore对新增检出单调不减
	penaltyScore := 0.0
	for _, category := range models.AllCategories {
		result, exists := results[category]
		if !exists || !result.Detected {
			continue
		}
		if result.Confidence < a.weights.LowConfidenceBaseline {
			penaltyScore += a.weights.LowConfidencePenalty *
				(a.weights.LowConfidenceBaseline - result.Confidence)
		}
	}

	finalScore := clamp(baseScore+bonusScore-penaltyScore, 0, 1)
	if isKnownMalicious {
		finalScore = 1.0
	}

	breakdown.BaseScore = baseScore
	breakdown.BonusScore = bonusScore
	breakdown.PenaltyScore = penaltyScore
	breakdown.FinalScore = finalScore

	overallConfidence := 0.0
	if len(results) > 0 {
		overallConfidence = confidenceSum / float64(len(results))
	}
	if isKnownMalicious {
		overallConfidence = 1.0
	}

	assessment := &models.RiskAssessment{
		RiskScore:   finalScore,
		Confidence:  overallConfidence,
		Breakdown:   breakdown,
		Explanation: a.explain(results, isKnownMalicious, detectedCount, finalScore),
	}

	return assessment, nil
}

// explain 从命中的类别及其严重级别确定性地生成解释文本，
// 无任何随机性
func (a *Aggregator) explain(results map[models.PatternCategory]*models.PatternResult, isKnownMalicious bool, detectedCount int, finalScore float64) *models.RiskExplanation {
	explanation := &models.RiskExplanation{
		RiskFactors:       make([]string, 0),
		MitigatingFactors: make([]string, 0),
		Recommendations:   make([]string, 0),
	}

	if isKnownMalicious {
		explanation.Summary = "该地址在已知恶意合约名单中，风险等级为最高"
		explanation.RiskFactors = append(explanation.RiskFactors, "地址命中已知恶意名单")
		explanation.Recommendations = append(explanation.Recommendations,
			"立即停止与该合约的所有交互", "检查是否已有资产授权给该合约并及时撤销")
		return explanation
	}

	for _, category := range models.AllCategories {
		result, exists := results[category]
		if !exists {
			continue
		}

		if result.Detected {
			explanation.RiskFactors = append(explanation.RiskFactors, fmt.Sprintf(
				"检出%s模式，严重级别%s，置信度%.2f",
				categoryLabels[category], result.Severity, result.Confidence))
		} else if result.Confidence > 0 {
			explanation.MitigatingFactors = append(explanation.MitigatingFactors, fmt.Sprintf(
				"%s检测未达到判定门槛（置信度%.2f）",
				categoryLabels[category], result.Confidence))
		}
	}

	switch {
	case detectedCount == 0:
		explanation.Summary = "未检出已知欺诈模式"
		explanation.MitigatingFactors = append(explanation.MitigatingFactors,
			"所有模式检测均未命中")
		explanation.Recommendations = append(explanation.Recommendations,
			"启发式结果仅供参考，重要交互前仍建议人工审阅合约")
	case detectedCount == 1:
		explanation.Summary = fmt.Sprintf("检出1类可疑模式，综合风险分值%.2f", finalScore)
		explanation.Recommendations = append(explanation.Recommendations,
			"建议人工复核检出的证据后再决定是否交互")
	default:
		explanation.Summary = fmt.Sprintf("检出%d类可疑模式且相互佐证，综合风险分值%.2f",
			detectedCount, finalScore)
		explanation.Recommendations = append(explanation.Recommendations,
			"多类模式同时命中，强烈建议避免与该合约交互",
			"如已产生交互，检查并撤销相关授权")
	}

	return explanation
}

// 类别的中文标签，用于解释文本
var categoryLabels = map[models.PatternCategory]string{
	models.CategoryFakeBalance:           "虚假余额",
	models.CategoryHiddenRedirection:     "隐蔽资金转移",
	models.CategoryNonFunctionalTransfer: "无效转账",
	models.CategoryDeceptiveEvents:       "欺骗性事件",
}

// clamp 区间截断
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
