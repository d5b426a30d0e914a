package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/priyakat/marketlink/backend/internal/domain"
)

// KafkaPublisher writes lifecycle events to Kafka. The writer runs async with
// batching; delivery failures are logged, never surfaced to the caller.
type KafkaPublisher struct {
	writer *kafka.Writer
	logger *slog.Logger
}

// NewKafkaPublisher builds a publisher against the given brokers. Topics are
// set per message so one writer serves both event kinds.
func NewKafkaPublisher(logger *slog.Logger, brokers []string) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		Async:        true,
		RequiredAcks: kafka.RequireOne,
	}
	return &KafkaPublisher{
		writer: writer,
		logger: logger,
	}
}

// Close flushes and releases the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func (p *KafkaPublisher) TransactionStatusChanged(ctx context.Context, tx domain.Transaction, previous domain.Status) {
	p.publish(ctx, TopicTransactionStatus, tx.ID, TransactionStatusEvent{
		TransactionID:     tx.ID,
		InitiatorID:       tx.InitiatorID,
		RecipientID:       tx.RecipientID,
		PreviousStatus:    string(previous),
		Status:            string(tx.Status),
		InitiatorReviewed: tx.InitiatorReviewed,
		RecipientReviewed: tx.RecipientReviewed,
		OccurredAt:        tx.UpdatedAt,
	})
}

func (p *KafkaPublisher) ReviewSubmitted(ctx context.Context, review domain.Review) {
	p.publish(ctx, TopicReviewSubmitted, review.TransactionID, ReviewSubmittedEvent{
		ReviewID:        review.ID,
		TransactionID:   review.TransactionID,
		ReviewerID:      review.ReviewerID,
		ReviewedPartyID: review.ReviewedPartyID,
		Rating:          review.Rating,
		OccurredAt:      review.CreatedAt,
	})
}

func (p *KafkaPublisher) publish(ctx context.Context, topic, key string, payload any) {
	value, err := json.Marshal(payload)
	if err != nil {
		p.logger.Error("failed to encode event", "topic", topic, "key", key, "error", err)
		return
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
	})
	if err != nil {
		p.logger.Error("failed to publish event", "topic", topic, "key", key, "error", err)
	}
}
