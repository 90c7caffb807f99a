package provider

import (
	"context"
	"errors"
	"time"

	"github.com/DeafMist/verdict-radar/backend/internal/models"
	"github.com/DeafMist/verdict-radar/backend/internal/orchestrator"
)

// Collector gathers news in process. *scraper.Collector implements it.
type Collector interface {
	Collect(ctx context.Context) ([]models.NewsItem, error)
}

// Scrape runs the scraper inside the API process instead of spawning it.
type Scrape struct {
	collector Collector
}

// NewScrape wraps a collector.
func NewScrape(c Collector) *Scrape {
	return &Scrape{collector: c}
}

func (s *Scrape) Name() string { return "scrape" }

func (s *Scrape) Generate(ctx context.Context, timeout time.Duration) ([]models.NewsItem, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	items, err := s.collector.Collect(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, orchestrator.NewError(orchestrator.KindProcessTimeout, "scrape", err)
		}
		return nil, orchestrator.NewError(orchestrator.KindProcessFailure, "scrape", err)
	}
	return items, nil
}
