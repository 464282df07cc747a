package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"sentinel/internal/config"
	"sentinel/pkg/models"

	"github.com/sirupsen/logrus"
)

// Output 分析结果输出接口
type Output interface {
	WriteAnalysis(analysis *models.AdvancedContractAnalysis) error
	WriteWarning(warning *models.SecurityWarning) error
	Close() error
}

// FileOutput 文件输出，按行写入JSON
type FileOutput struct {
	mu           sync.Mutex
	analysisFile *os.File
	warningFile  *os.File
}

// NewOutput 创建输出器
func NewOutput(cfg *config.OutputConfig, logger *logrus.Logger) (Output, error) {
	if cfg == nil {
		cfg = &config.OutputConfig{Format: "file", Directory: "./outputs"}
	}

	switch cfg.Format {
	case "kafka":
		if cfg.Kafka == nil {
			return nil, fmt.Errorf("kafka输出需要kafka配置")
		}
		return NewKafkaOutput(cfg.Kafka.Brokers, cfg.Kafka.Topics, logger)
	case "", "file":
		return NewFileOutput(cfg.Directory)
	default:
		return nil, fmt.Errorf("不支持的输出格式: %s", cfg.Format)
	}
}

// NewFileOutput 创建文件输出器
func NewFileOutput(dir string) (*FileOutput, error) {
	if dir == "" {
		dir = "./outputs"
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("创建输出目录失败: %w", err)
	}

	analysisFile, err := os.OpenFile(filepath.Join(dir, "analyses.jsonl"),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("打开分析输出文件失败: %w", err)
	}

	warningFile, err := os.OpenFile(filepath.Join(dir, "warnings.jsonl"),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		analysisFile.Close()
		return nil, fmt.Errorf("打开警告输出文件失败: %w", err)
	}

	return &FileOutput{
		analysisFile: analysisFile,
		warningFile:  warningFile,
	}, nil
}

// WriteAnalysis 写入分析结果
func (f *FileOutput) WriteAnalysis(analysis *models.AdvancedContractAnalysis) error {
	if analysis == nil {
		return nil
	}
	return f.writeLine(f.analysisFile, analysis)
}

// WriteWarning 写入安全警告
func (f *FileOutput) WriteWarning(warning *models.SecurityWarning) error {
	if warning == nil {
		return nil
	}
	return f.writeLine(f.warningFile, warning)
}

// writeLine 序列化并追加一行
func (f *FileOutput) writeLine(file *os.File, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("序列化数据失败: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, err := file.Write(append(jsonData, '\n')); err != nil {
		return fmt.Errorf("写入输出文件失败: %w", err)
	}
	return nil
}

// Close 关闭输出文件
func (f *FileOutput) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var firstErr error
	if f.analysisFile != nil {
		if err := f.analysisFile.Close(); err != nil {
			firstErr = err
		}
	}
	if f.warningFile != nil {
		if err := f.warningFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
