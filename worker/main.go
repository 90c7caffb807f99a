package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/DeafMist/verdict-radar/backend/internal/config"
	"github.com/DeafMist/verdict-radar/backend/internal/dedupe"
	"github.com/DeafMist/verdict-radar/backend/internal/elasticsearch"
	"github.com/DeafMist/verdict-radar/backend/internal/events"
	"github.com/DeafMist/verdict-radar/backend/internal/logger"
	"github.com/DeafMist/verdict-radar/backend/internal/models"
	"github.com/DeafMist/verdict-radar/backend/internal/processing"
)

const dlqAttempts = 5

type archiveIndexer interface {
	IndexItem(ctx context.Context, doc models.ArchivedItem) error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

func main() {
	_ = config.LoadDotEnv()
	log := logger.New("worker")
	cfg, err := config.LoadWorker()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	esClient, err := elasticsearch.New(cfg.ElasticsearchAddr, cfg.ElasticsearchIndex, log)
	if err != nil {
		log.Error("init elasticsearch", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	ensureCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	if err := esClient.EnsureIndex(ensureCtx); err != nil {
		log.Warn("ensure archive index", slog.Any("err", err))
	}
	cancel()

	cache := dedupe.NewCache(cfg.DedupeCapacity, cfg.DedupeTTL)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.KafkaBrokers,
		Topic:          cfg.KafkaTopic,
		GroupID:        cfg.KafkaConsumer,
		QueueCapacity:  cfg.BatchSize,
		MinBytes:       1e3,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit only
	})
	defer reader.Close()

	dlqTopic := cfg.KafkaTopic + "_dlq"
	dlqWriter := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.KafkaBrokers...),
		Topic:                  dlqTopic,
		MaxAttempts:            3,
		AllowAutoTopicCreation: true,
	}
	defer dlqWriter.Close()

	log.Info("worker started",
		slog.String("topic", cfg.KafkaTopic),
		slog.String("group", cfg.KafkaConsumer),
		slog.String("dlq_topic", dlqTopic),
	)

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				log.Info("context canceled, stopping")
				return
			}
			log.Error("fetch message", slog.Any("err", err))
			continue
		}

		if err := processMessage(ctx, log, esClient, cache, cfg, msg); err != nil {
			log.Warn("process message failed, sending to DLQ",
				slog.Any("err", err),
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
			)
			sent, dlqErr := sendToDLQ(ctx, log, dlqWriter, msg, err, time.Second)
			if errors.Is(dlqErr, context.Canceled) {
				log.Info("context canceled during DLQ retry")
				return
			}
			// Without a DLQ copy the offset stays uncommitted so a restart reprocesses it.
			if !sent {
				log.Error("DLQ write exhausted retries, message may be lost if later messages commit",
					slog.Int("partition", msg.Partition),
					slog.Int64("offset", msg.Offset),
				)
				continue
			}
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			log.Error("commit message", slog.Any("err", err))
		}
	}
}

// processMessage archives every item of one batch event. Items already seen
// within the dedupe window are skipped; any indexing error fails the message.
func processMessage(ctx context.Context, log *slog.Logger, idx archiveIndexer, cache *dedupe.Cache, cfg *config.Worker, msg kafka.Message) error {
	ev, err := events.Decode(msg.Value)
	if err != nil {
		return err
	}
	if len(ev.Items) == 0 {
		return errors.New("empty batch")
	}

	fetchedAt := ev.GeneratedAt.UTC()
	if fetchedAt.IsZero() {
		fetchedAt = time.Now().UTC()
	}

	var indexed, skipped int
	for _, item := range ev.Items {
		doc := archiveDocument(ev.BatchID, fetchedAt, item, cfg)
		if doc.Title == "" {
			skipped++
			continue
		}
		if cache.IsSeen(doc.ID) {
			log.Debug("duplicate item", slog.String("id", doc.ID))
			skipped++
			continue
		}
		if err := idx.IndexItem(ctx, doc); err != nil {
			return fmt.Errorf("index item %s: %w", item.ID, err)
		}
		cache.MarkSeen(doc.ID)
		indexed++
	}

	log.Info("batch archived",
		slog.String("batch_id", ev.BatchID),
		slog.Int("indexed", indexed),
		slog.Int("skipped", skipped),
	)
	return nil
}

func archiveDocument(batchID string, fetchedAt time.Time, item models.NewsItem, cfg *config.Worker) models.ArchivedItem {
	title := processing.CleanText(item.Title)
	summary := processing.CleanText(item.Summary)

	var agents models.Agents
	if item.Agents != nil {
		agents = *item.Agents
	}

	doc := models.ArchivedItem{
		ID:        processing.BuildDocumentID(title, strings.TrimSpace(item.URL), item.Date),
		BatchID:   batchID,
		ItemID:    string(item.ID),
		Title:     title,
		Summary:   summary,
		Source:    strings.TrimSpace(item.Source),
		URL:       strings.TrimSpace(item.URL),
		Date:      item.Date,
		Verdict:   models.ParseVerdict(string(item.Verdict)),
		Agents:    agents,
		Keywords:  processing.ExtractKeywords(title+" "+summary, cfg.KeywordLimit, cfg.KeywordMinLength),
		FetchedAt: fetchedAt,
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.Source == "" {
		doc.Source = "unknown"
	}
	return doc
}

// sendToDLQ copies msg to the dead letter topic with its failure context,
// retrying with exponential backoff starting at base.
func sendToDLQ(ctx context.Context, log *slog.Logger, w messageWriter, msg kafka.Message, cause error, base time.Duration) (bool, error) {
	dlqMsg := kafka.Message{
		Key:   msg.Key,
		Value: msg.Value,
		Headers: append(append([]kafka.Header{}, msg.Headers...),
			kafka.Header{Key: "original_partition", Value: []byte(fmt.Sprintf("%d", msg.Partition))},
			kafka.Header{Key: "original_offset", Value: []byte(fmt.Sprintf("%d", msg.Offset))},
			kafka.Header{Key: "error", Value: []byte(cause.Error())},
			kafka.Header{Key: "timestamp", Value: []byte(time.Now().UTC().Format(time.RFC3339))},
		),
	}

	for attempt := range dlqAttempts {
		err := w.WriteMessages(ctx, dlqMsg)
		if err == nil {
			log.Info("message sent to DLQ",
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
				slog.Int("attempt", attempt+1),
			)
			return true, nil
		}

		backoff := base << uint(attempt)
		log.Warn("DLQ write failed, retrying",
			slog.Any("err", err),
			slog.Int("attempt", attempt+1),
			slog.Duration("backoff", backoff),
		)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	return false, nil
}
