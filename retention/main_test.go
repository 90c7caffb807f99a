package main

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/verdict-radar/backend/internal/config"
	"github.com/DeafMist/verdict-radar/backend/internal/logger"
)

type stubPruner struct {
	maxAge    time.Duration
	batchSize int
	deleted   int64
	err       error
}

func (s *stubPruner) DeleteOlderThan(_ context.Context, maxAge time.Duration, batchSize int) (int64, error) {
	s.maxAge = maxAge
	s.batchSize = batchSize
	return s.deleted, s.err
}

func TestRunOncePassesRetentionWindow(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&buf, "retention", "info", "")
	p := &stubPruner{deleted: 12}
	cfg := &config.Retention{MaxAge: 720 * time.Hour, BatchSize: 500}

	runOnce(context.Background(), log, p, cfg)

	require.Equal(t, 720*time.Hour, p.maxAge)
	require.Equal(t, 500, p.batchSize)
	require.Contains(t, buf.String(), "deleted=12")
}

func TestRunOnceLogsFailure(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&buf, "retention", "info", "")
	p := &stubPruner{err: errors.New("cluster red")}

	runOnce(context.Background(), log, p, &config.Retention{MaxAge: time.Hour, BatchSize: 10})

	require.Contains(t, buf.String(), "retention run failed")
	require.Contains(t, buf.String(), "cluster red")
}
