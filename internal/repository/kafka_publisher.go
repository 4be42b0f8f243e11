package repository

import (
	"context"

	"HackCap/internal/domain/models"
	domrepo "HackCap/internal/domain/repository"
	pkgkafka "HackCap/pkg/kafka"
)

// KafkaPublisher ships decisions and backtest reports as JSON, keyed by
// ticker so one ticker's events stay ordered within a partition.
type KafkaPublisher struct {
	producer       *pkgkafka.Producer
	decisionsTopic string
	reportsTopic   string
}

func NewKafkaPublisher(producer *pkgkafka.Producer, decisionsTopic, reportsTopic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, decisionsTopic: decisionsTopic, reportsTopic: reportsTopic}
}

func (p *KafkaPublisher) PublishDecision(ctx context.Context, d models.Decision) error {
	return p.producer.Publish(ctx, p.decisionsTopic, []byte(d.Ticker), d)
}

func (p *KafkaPublisher) PublishReport(ctx context.Context, r models.BacktestReport) error {
	return p.producer.Publish(ctx, p.reportsTopic, []byte(r.Ticker), r)
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

var _ domrepo.Publisher = (*KafkaPublisher)(nil)
