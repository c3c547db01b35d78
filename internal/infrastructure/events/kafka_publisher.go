package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"JobScanner/internal/config"
	"JobScanner/internal/domain"
	"JobScanner/internal/logging"
	"JobScanner/internal/ports"
)

// PostingCreated is the JSON payload announced for every new posting.
type PostingCreated struct {
	Event   string         `json:"event"`
	Posting domain.Posting `json:"posting"`
}

const postingCreatedEvent = "posting.created"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes posting-created events keyed by posting URL so every
// event for one URL lands on the same partition.
type KafkaPublisher struct {
	writer messageWriter
	logger *slog.Logger
}

var _ ports.PostingPublisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher creates a synchronous writer for cfg.Topic.
func NewKafkaPublisher(cfg config.KafkaConfig, log *slog.Logger) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		MaxAttempts:  3,
		RequiredAcks: kafka.RequireAll,
	}
	return newKafkaPublisher(w, logging.OrDiscard(log).With("topic", cfg.Topic))
}

func newKafkaPublisher(w messageWriter, log *slog.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: w, logger: logging.OrDiscard(log)}
}

func (p *KafkaPublisher) PublishCreated(ctx context.Context, posting domain.Posting) error {
	value, err := json.Marshal(PostingCreated{Event: postingCreatedEvent, Posting: posting})
	if err != nil {
		return fmt.Errorf("marshaling event value: %w", err)
	}

	msg := kafka.Message{Key: []byte(posting.URL), Value: value}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("failed to publish message", "url", posting.URL, "error", err)
		return fmt.Errorf("publishing to kafka: %w", err)
	}
	p.logger.Debug("message published", "url", posting.URL, "value_size", len(value))
	return nil
}

// Close flushes pending writes and closes the underlying Kafka writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
