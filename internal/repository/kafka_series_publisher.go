package repository

import (
	"context"
	"fmt"
	"strings"

	"StockDash/internal/domain/models"
	domrepo "StockDash/internal/domain/repository"
	pkgkafka "StockDash/pkg/kafka"
)

// topicProducer is the part of pkg/kafka.Producer the publisher uses.
type topicProducer interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	Close() error
}

// KafkaSeriesPublisher announces fetched series on a Kafka topic, keyed by
// symbol so per-symbol order is kept within a partition.
type KafkaSeriesPublisher struct {
	producer topicProducer
	topic    string
}

var _ domrepo.Publisher = (*KafkaSeriesPublisher)(nil)

func NewKafkaSeriesPublisher(p *pkgkafka.Producer, topic string) *KafkaSeriesPublisher {
	return &KafkaSeriesPublisher{producer: p, topic: topic}
}

func (p *KafkaSeriesPublisher) PublishSeries(ctx context.Context, evt *models.SeriesFetched) error {
	if evt == nil {
		return nil
	}
	key := []byte(strings.ToUpper(strings.TrimSpace(evt.Symbol)))
	if err := p.producer.Publish(ctx, p.topic, key, evt); err != nil {
		return fmt.Errorf("publish series %s: %w", evt.Symbol, err)
	}
	return nil
}

func (p *KafkaSeriesPublisher) Close() error {
	return p.producer.Close()
}
