package kafka

import (
	"context"
	"fmt"

	"github.com/IBM/sarama"
)

// Producer 同步生产者，发送成功后返回
type Producer struct {
	syncProducer sarama.SyncProducer
}

// InitProducer 初始化生产者
func InitProducer(brokers []string, clientID string) (*Producer, error) {
	config := sarama.NewConfig()
	config.ClientID = clientID
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Partitioner = sarama.NewHashPartitioner
	config.Producer.Retry.Max = 3

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return &Producer{syncProducer: producer}, nil
}

// NewProducer 包装已有的SyncProducer，测试时可传入sarama/mocks
func NewProducer(p sarama.SyncProducer) *Producer {
	return &Producer{syncProducer: p}
}

// SendMessage 发送消息，相同key落到同一分区
func (p *Producer) SendMessage(ctx context.Context, topic string, key, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.ByteEncoder(key),
		Value: sarama.ByteEncoder(value),
	}
	if _, _, err := p.syncProducer.SendMessage(msg); err != nil {
		return fmt.Errorf("send to topic %s: %w", topic, err)
	}
	return nil
}

// Close 关闭生产者
func (p *Producer) Close() error {
	return p.syncProducer.Close()
}
