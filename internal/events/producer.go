// Package events carries the Kafka fan-out between the chat surface and
// the notification pipeline.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/elliot-conan/mindwellness-chat/internal/domain"
)

// MessageCreated is published after a message's write-through insert
// succeeds. The notification consumer group turns it into notification
// rows for the other room participants.
type MessageCreated struct {
	RoomID  string         `json:"room_id"`
	Message domain.Message `json:"message"`
	Crisis  []string       `json:"crisis_keywords,omitempty"`
}

type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  brokers,
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	})
	return &Producer{writer: w}
}

func (p *Producer) PublishMessageCreated(ctx context.Context, ev MessageCreated) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.RoomID),
		Value: b,
		Time:  time.Now(),
	})
}

func (p *Producer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
