package output

import (
	"encoding/json"
	"fmt"
	"time"

	"sentinel/pkg/models"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"
)

// KafkaOutput Kafka输出器，将分析结果和安全警告发布到下游消费方
type KafkaOutput struct {
	logger   *logrus.Logger
	topics   map[string]string // 数据类型到topic的映射
	producer sarama.SyncProducer
}

// NewKafkaOutput 创建Kafka输出器
func NewKafkaOutput(brokers []string, topics map[string]string, logger *logrus.Logger) (*KafkaOutput, error) {
	logger.Infof("初始化Kafka输出器，brokers: %v", brokers)

	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	config.Producer.Timeout = 5 * time.Second
	config.Version = sarama.V2_8_0_0

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("创建Kafka生产者失败: %w", err)
	}

	logger.Info("Kafka生产者已创建")

	return &KafkaOutput{
		logger:   logger,
		topics:   topics,
		producer: producer,
	}, nil
}

// sendToKafka 发送数据到Kafka
func (k *KafkaOutput) sendToKafka(topic string, key string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("序列化数据失败: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.StringEncoder(jsonData),
	}

	partition, offset, err := k.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("发送消息到Kafka失败: %w", err)
	}

	k.logger.Debugf("已发送数据到Kafka topic '%s' (partition: %d, offset: %d)",
		topic, partition, offset)

	return nil
}

// WriteAnalysis 写入分析结果
func (k *KafkaOutput) WriteAnalysis(analysis *models.AdvancedContractAnalysis) error {
	if analysis == nil {
		return nil
	}

	topic, exists := k.topics["analyses"]
	if !exists {
		topic = "contract_analyses"
	}

	return k.sendToKafka(topic, analysis.ContractAddress, analysis.ToKafkaMessage())
}

// WriteWarning 写入安全警告
func (k *KafkaOutput) WriteWarning(warning *models.SecurityWarning) error {
	if warning == nil {
		return nil
	}

	topic, exists := k.topics["warnings"]
	if !exists {
		topic = "security_warnings"
	}

	return k.sendToKafka(topic, warning.Address, warning)
}

// Close 关闭Kafka连接
func (k *KafkaOutput) Close() error {
	if k.producer != nil {
		return k.producer.Close()
	}
	return nil
}
