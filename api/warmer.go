package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/DeafMist/verdict-radar/backend/internal/logger"
	"github.com/DeafMist/verdict-radar/backend/internal/orchestrator"
)

// newWarmer schedules background fetches so that the cache is usually fresh
// when a request arrives. Runs go through the orchestrator and share its
// single-flight with request traffic.
func newWarmer(ctx context.Context, schedule string, news newsFetcher, timeout time.Duration, log *slog.Logger) (*cron.Cron, error) {
	cl := logger.Cron(log)
	c := cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))
	if _, err := c.AddFunc(schedule, func() { warmOnce(ctx, news, timeout, log) }); err != nil {
		return nil, err
	}
	log.Info("cache warmer scheduled", slog.String("schedule", schedule))
	return c, nil
}

func warmOnce(ctx context.Context, news newsFetcher, timeout time.Duration, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(ctx, timeout+5*time.Second)
	defer cancel()

	res, err := news.Fetch(ctx)
	if err != nil {
		log.Warn("cache warm failed", slog.Any("err", err), slog.String("kind", string(orchestrator.KindOf(err))))
		return
	}
	log.Debug("cache warm",
		slog.String("provenance", string(res.Provenance)),
		slog.Int("items", len(res.Items)),
	)
}
