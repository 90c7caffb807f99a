// Command scraper collects current Argentine headlines and writes them as a
// JSON array to NEWS_OUTPUT_PATH (or SCRAPER_OUTPUT). It exits non-zero when
// nothing could be collected, leaving any previous output untouched.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/DeafMist/verdict-radar/backend/internal/config"
	"github.com/DeafMist/verdict-radar/backend/internal/logger"
	"github.com/DeafMist/verdict-radar/backend/internal/models"
	"github.com/DeafMist/verdict-radar/backend/internal/newscache"
	"github.com/DeafMist/verdict-radar/backend/internal/scraper"
)

type collector interface {
	Collect(ctx context.Context) ([]models.NewsItem, error)
}

func main() {
	_ = config.LoadDotEnv()
	log := logger.NewWithWriter(os.Stderr, "scraper", os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	cfg, err := config.LoadScraper()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := run(ctx, log, scraper.New(*cfg, log), cfg.OutputPath); err != nil {
		log.Error("scrape failed", slog.Any("err", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, log *slog.Logger, c collector, outputPath string) error {
	items, err := c.Collect(ctx)
	if err != nil {
		return err
	}

	data, err := newscache.EncodeBatch(items)
	if err != nil {
		return err
	}
	if err := newscache.WriteAtomic(outputPath, data); err != nil {
		return fmt.Errorf("write %s: %w", outputPath, err)
	}

	log.Info("news written", slog.Int("items", len(items)), slog.String("path", outputPath))
	return nil
}
