package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"

	"github.com/aq2208/gcart-api/internal/usecase"
)

// Publisher implements usecase.CartEvents on a Kafka topic. Messages are keyed
// by username.
type Publisher struct {
	producer sarama.SyncProducer
	topic    string
}

func NewPublisher(producer sarama.SyncProducer, topic string) *Publisher {
	return &Publisher{producer: producer, topic: topic}
}

func (p *Publisher) PublishChanged(ctx context.Context, msg usecase.CartChangedMsg) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	_, _, err = p.producer.SendMessage(&sarama.ProducerMessage{
		Topic:     p.topic,
		Key:       sarama.StringEncoder(msg.Username),
		Value:     sarama.ByteEncoder(body),
		Timestamp: msg.At,
		Headers: []sarama.RecordHeader{
			{Key: []byte("action"), Value: []byte(msg.Action)},
			{Key: []byte("content-type"), Value: []byte("application/json")},
		},
	})
	if err != nil {
		return fmt.Errorf("kafka send: %w", err)
	}
	return nil
}

func (p *Publisher) Close() error { return p.producer.Close() }

var _ usecase.CartEvents = (*Publisher)(nil)
