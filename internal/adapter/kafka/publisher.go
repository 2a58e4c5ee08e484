// Package kafka publishes finished assessments to a Kafka topic for
// downstream consumers (portfolio analytics, audit trail). Publishing is
// optional and enabled by configuration.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/hazard-risk-engine/internal/domain"
)

// Publisher produces assessment messages to a Kafka topic.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the assessment topic.
func NewPublisher(brokers []string, topic string, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, logger: logger}
}

// Publish serializes one assessment and writes it to the topic, keyed by
// assessment ID.
func (p *Publisher) Publish(ctx context.Context, assessment *domain.PropertyRiskAssessment) error {
	msg, err := serializeToMessage(assessment)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish assessment %s: %w", assessment.ID, err)
	}
	p.logger.Debug("assessment published", "id", assessment.ID)
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals an assessment into a Kafka message.
func serializeToMessage(assessment *domain.PropertyRiskAssessment) (kafkago.Message, error) {
	data, err := json.Marshal(assessment)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize assessment: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(assessment.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "overall_level", Value: []byte(assessment.OverallLevel)},
			{Key: "generated_at", Value: []byte(assessment.GeneratedAt.Format(time.RFC3339))},
		},
	}, nil
}
