package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"github.com/DeafMist/verdict-radar/backend/internal/config"
	"github.com/DeafMist/verdict-radar/backend/internal/dedupe"
	"github.com/DeafMist/verdict-radar/backend/internal/events"
	"github.com/DeafMist/verdict-radar/backend/internal/logger"
	"github.com/DeafMist/verdict-radar/backend/internal/models"
)

type stubIndexer struct {
	docs []models.ArchivedItem
	err  error
}

func (s *stubIndexer) IndexItem(_ context.Context, doc models.ArchivedItem) error {
	if s.err != nil {
		return s.err
	}
	s.docs = append(s.docs, doc)
	return nil
}

type flakyWriter struct {
	failures int
	calls    int
	msgs     []kafka.Message
}

func (f *flakyWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("leader not available")
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func testConfig() *config.Worker {
	return &config.Worker{
		Common:           config.Common{ElasticsearchAddr: "http://test", ElasticsearchIndex: "news_archive"},
		KeywordLimit:     5,
		KeywordMinLength: 4,
	}
}

func batchMessage(t *testing.T, ev events.BatchEvent) kafka.Message {
	t.Helper()
	data, err := json.Marshal(ev)
	require.NoError(t, err)
	return kafka.Message{Key: []byte(ev.BatchID), Value: data}
}

func sampleBatch() events.BatchEvent {
	return events.BatchEvent{
		BatchID:     "b-1",
		GeneratedAt: time.Date(2025, 6, 8, 15, 0, 0, 0, time.UTC),
		Items: []models.NewsItem{
			{
				ID:      "1",
				Title:   "<b>Milei</b> anunció la eliminación de retenciones al trigo",
				Source:  "La Nación",
				Date:    "2025-06-08",
				Summary: "El gobierno confirmó la medida para la cosecha fina",
				URL:     "https://www.lanacion.com.ar/economia/retenciones",
				Verdict: models.VerdictTrue,
				Agents:  &models.Agents{Logic: "l", Context: "c", Expert: "e", Synth: []string{"s"}},
			},
			{
				ID:      "2",
				Title:   "Circula un video falso sobre un corte de luz masivo",
				Source:  "",
				Date:    "2025-06-08",
				Summary: "Chequeado desmintió la publicación viral",
				Verdict: "bogus",
			},
		},
	}
}

func TestProcessMessageArchivesItems(t *testing.T) {
	idx := &stubIndexer{}
	cache := dedupe.NewCache(100, time.Hour)

	require.NoError(t, processMessage(context.Background(), logger.Discard(), idx, cache, testConfig(), batchMessage(t, sampleBatch())))
	require.Len(t, idx.docs, 2)

	first := idx.docs[0]
	require.Equal(t, "Milei anunció la eliminación de retenciones al trigo", first.Title)
	require.Equal(t, "b-1", first.BatchID)
	require.Equal(t, "1", first.ItemID)
	require.Len(t, first.ID, 40)
	require.Equal(t, models.VerdictTrue, first.Verdict)
	require.Equal(t, "l", first.Agents.Logic)
	require.NotEmpty(t, first.Keywords)
	require.Equal(t, time.Date(2025, 6, 8, 15, 0, 0, 0, time.UTC), first.FetchedAt)

	second := idx.docs[1]
	require.Equal(t, "unknown", second.Source)
	require.Equal(t, models.VerdictUncertain, second.Verdict)
	require.NotEqual(t, first.ID, second.ID)
}

func TestProcessMessageSkipsDuplicates(t *testing.T) {
	idx := &stubIndexer{}
	cache := dedupe.NewCache(100, time.Hour)
	msg := batchMessage(t, sampleBatch())

	require.NoError(t, processMessage(context.Background(), logger.Discard(), idx, cache, testConfig(), msg))
	require.NoError(t, processMessage(context.Background(), logger.Discard(), idx, cache, testConfig(), msg))
	require.Len(t, idx.docs, 2)
}

func TestProcessMessageRejectsBadPayloads(t *testing.T) {
	tests := []struct {
		name string
		msg  kafka.Message
	}{
		{name: "not json", msg: kafka.Message{Value: []byte("nope")}},
		{name: "no batch id", msg: kafka.Message{Value: []byte(`{"items":[{"id":1,"title":"x"}]}`)}},
		{name: "empty batch", msg: kafka.Message{Value: []byte(`{"batch_id":"b","items":[]}`)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx := &stubIndexer{}
			err := processMessage(context.Background(), logger.Discard(), idx, dedupe.NewCache(10, time.Hour), testConfig(), tt.msg)
			require.Error(t, err)
			require.Empty(t, idx.docs)
		})
	}
}

func TestProcessMessageIndexFailureIsNotMarkedSeen(t *testing.T) {
	cache := dedupe.NewCache(100, time.Hour)
	msg := batchMessage(t, sampleBatch())

	failing := &stubIndexer{err: errors.New("es unavailable")}
	require.ErrorContains(t, processMessage(context.Background(), logger.Discard(), failing, cache, testConfig(), msg), "es unavailable")

	idx := &stubIndexer{}
	require.NoError(t, processMessage(context.Background(), logger.Discard(), idx, cache, testConfig(), msg))
	require.Len(t, idx.docs, 2)
}

func TestSendToDLQRetries(t *testing.T) {
	w := &flakyWriter{failures: 2}
	msg := kafka.Message{Key: []byte("b-1"), Value: []byte("payload"), Partition: 3, Offset: 17}

	sent, err := sendToDLQ(context.Background(), logger.Discard(), w, msg, errors.New("boom"), time.Millisecond)
	require.NoError(t, err)
	require.True(t, sent)
	require.Equal(t, 3, w.calls)
	require.Len(t, w.msgs, 1)

	headers := map[string]string{}
	for _, h := range w.msgs[0].Headers {
		headers[h.Key] = string(h.Value)
	}
	require.Equal(t, "3", headers["original_partition"])
	require.Equal(t, "17", headers["original_offset"])
	require.Equal(t, "boom", headers["error"])
}

func TestSendToDLQGivesUp(t *testing.T) {
	w := &flakyWriter{failures: dlqAttempts}

	sent, err := sendToDLQ(context.Background(), logger.Discard(), w, kafka.Message{Value: []byte("x")}, errors.New("boom"), time.Millisecond)
	require.NoError(t, err)
	require.False(t, sent)
	require.Equal(t, dlqAttempts, w.calls)
}

func TestSendToDLQStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sent, err := sendToDLQ(ctx, logger.Discard(), &flakyWriter{failures: 10}, kafka.Message{}, errors.New("boom"), time.Hour)
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, sent)
}
