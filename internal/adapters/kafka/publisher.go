package kafka

import (
	"context"
	"fmt"

	"attendance.service/internal/ports/messaging"
	"github.com/segmentio/kafka-go"
)

// messageWriter is the part of *kafka.Writer the sender uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Sender publishes message bodies to a Kafka topic. It implements
// messaging.MessageSender with the topic as destination.
type Sender struct {
	w messageWriter
}

// NewSender creates a sender for brokers. The writer carries no topic of
// its own; every message names one.
func NewSender(brokers []string) *Sender {
	return &Sender{w: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		RequiredAcks: kafka.RequireOne,
		Balancer:     &kafka.Hash{},
		Async:        false,
	}}
}

func (s *Sender) SendMessage(ctx context.Context, topic string, body []byte) error {
	if err := s.w.WriteMessages(ctx, kafka.Message{Topic: topic, Value: body}); err != nil {
		return fmt.Errorf("kafka write %s: %w", topic, err)
	}
	return nil
}

func (s *Sender) Close() error {
	return s.w.Close()
}

// NewNotifier publishes notifications to topic.
func NewNotifier(s *Sender, topic string) *messaging.Producer {
	return messaging.NewProducer(s, topic)
}
