package risk

import (
	"fmt"
	"time"

	"sentinel/pkg/models"
)

// 模式严重级别到警告级别的映射
var severityToWarningLevel = map[models.Severity]models.WarningLevel{
	models.SeverityLow:      models.WarningLevelInfo,
	models.SeverityMedium:   models.WarningLevelWarning,
	models.SeverityHigh:     models.WarningLevelError,
	models.SeverityCritical: models.WarningLevelCritical,
}

// Warnings 为检出的模式生成安全警告，按固定类别顺序输出以保证
// 可复现。未检出的模式不产生警告
func (a *Aggregator) Warnings(addr string, results map[models.PatternCategory]*models.PatternResult) []*models.SecurityWarning {
	warnings := make([]*models.SecurityWarning, 0)

	for _, category := range models.AllCategories {
		result, exists := results[category]
		if !exists || !result.Detected {
			continue
		}

		level, ok := severityToWarningLevel[result.Severity]
		if !ok {
			level = models.WarningLevelWarning
		}

		warnings = append(warnings, &models.SecurityWarning{
			Level: level,
			Message: fmt.Sprintf("检出%s模式，置信度%.2f，证据%d条",
				categoryLabels[category], result.Confidence, len(result.Evidence)),
			Address:   addr,
			Timestamp: time.Now(),
			Category:  category,
		})
	}

	return warnings
}
