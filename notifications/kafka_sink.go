package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-hookgate/core"
	"github.com/segmentio/kafka-go"
)

// MessageWriter is the subset of *kafka.Writer the sink uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes persisted notifications keyed by recipient so one
// user's notifications land on the same partition.
type KafkaSink struct {
	writer MessageWriter
	topic  string
}

func NewKafkaSink(writer MessageWriter, topic string) (*KafkaSink, error) {
	if writer == nil {
		return nil, fmt.Errorf("notifications: kafka writer is required")
	}
	return &KafkaSink{writer: writer, topic: strings.TrimSpace(topic)}, nil
}

// NewKafkaWriter builds a writer for brokers. Leave topic empty on the writer
// when the sink is given one.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        strings.TrimSpace(topic),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}
}

func (s *KafkaSink) Publish(ctx context.Context, record core.NotificationRecord) error {
	if s == nil || s.writer == nil {
		return fmt.Errorf("notifications: kafka sink is not configured")
	}
	value, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("notifications: encode notification: %w", err)
	}
	msg := kafka.Message{
		Topic: s.topic,
		Key:   []byte(record.ProjectID + ":" + record.RecipientUserID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "notification-type", Value: []byte(record.Type)},
			{Key: "project-id", Value: []byte(record.ProjectID)},
			{Key: "event-id", Value: []byte(record.EventID)},
		},
		Time: record.CreatedAt,
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("notifications: publish to kafka: %w", err)
	}
	return nil
}

func (s *KafkaSink) Close() error {
	if s == nil || s.writer == nil {
		return nil
	}
	return s.writer.Close()
}
