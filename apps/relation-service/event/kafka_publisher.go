package event

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

// MessageSender kafka.Producer 的发送能力
type MessageSender interface {
	SendMessage(ctx context.Context, topic string, key, value []byte) error
}

// KafkaPublisher 把事件以JSON写入Kafka，同一用户的事件落到同一分区
type KafkaPublisher struct {
	sender MessageSender
	topic  string
}

// NewKafkaPublisher 创建Kafka事件发布者
func NewKafkaPublisher(sender MessageSender, topic string) *KafkaPublisher {
	return &KafkaPublisher{sender: sender, topic: topic}
}

func (p *KafkaPublisher) Handle(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	key := strconv.FormatInt(e.PartitionKey(), 10)
	return p.sender.SendMessage(ctx, p.topic, []byte(key), data)
}
