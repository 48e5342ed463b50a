package repository

import (
	"context"

	"Foresight/internal/domain/models"
	"Foresight/internal/domain/repository"
	pkgkafka "Foresight/pkg/kafka"
)

// KafkaPublisher implements Publisher for Kafka. Resolved events are emitted
// after the grade transaction commits; delivery is at-least-once and keyed by
// asset so per-asset ordering holds within a partition.
type KafkaPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaPublisher creates Kafka publisher.
func NewKafkaPublisher(producer *pkgkafka.Producer, topic string) repository.Publisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) PublishResolved(ctx context.Context, events []*models.ForecastResolvedEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(events))
	for i, ev := range events {
		msgs[i] = pkgkafka.Message{
			Key:   []byte(ev.Asset),
			Value: ev,
		}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
