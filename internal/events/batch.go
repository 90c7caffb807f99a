// Package events carries freshly generated news batches over Kafka so the
// archive worker can index them.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/DeafMist/verdict-radar/backend/internal/logger"
	"github.com/DeafMist/verdict-radar/backend/internal/models"
)

// BatchEvent is the message value written to the batch topic.
type BatchEvent struct {
	BatchID     string            `json:"batch_id"`
	GeneratedAt time.Time         `json:"generated_at"`
	Items       []models.NewsItem `json:"items"`
}

// Decode parses a message value. Events without a batch id are rejected.
func Decode(data []byte) (BatchEvent, error) {
	var ev BatchEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return BatchEvent{}, fmt.Errorf("decode batch event: %w", err)
	}
	if strings.TrimSpace(ev.BatchID) == "" {
		return BatchEvent{}, errors.New("decode batch event: missing batch_id")
	}
	return ev, nil
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes batch events to Kafka, keyed by batch id.
type Publisher struct {
	w   messageWriter
	log *slog.Logger
}

// NewPublisher connects a writer to the given brokers and topic.
func NewPublisher(brokers []string, topic string, log *slog.Logger) *Publisher {
	return NewPublisherWithWriter(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}, log)
}

// NewPublisherWithWriter wraps an existing writer.
func NewPublisherWithWriter(w messageWriter, log *slog.Logger) *Publisher {
	if log == nil {
		log = logger.Discard()
	}
	return &Publisher{w: w, log: log}
}

func (p *Publisher) PublishBatch(ctx context.Context, batchID string, generatedAt time.Time, items []models.NewsItem) error {
	payload, err := json.Marshal(BatchEvent{BatchID: batchID, GeneratedAt: generatedAt.UTC(), Items: items})
	if err != nil {
		return fmt.Errorf("marshal batch event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(batchID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "item_count", Value: []byte(strconv.Itoa(len(items)))},
			{Key: "generated_at", Value: []byte(generatedAt.UTC().Format(time.RFC3339))},
		},
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish batch %s: %w", batchID, err)
	}

	p.log.Debug("batch published", slog.String("batch_id", batchID), slog.Int("items", len(items)))
	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.w.Close()
}
