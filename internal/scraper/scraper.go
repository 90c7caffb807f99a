// Package scraper collects current headlines from Argentine outlets, either
// from their RSS feeds or from links on their front pages.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/DeafMist/verdict-radar/backend/internal/annotate"
	"github.com/DeafMist/verdict-radar/backend/internal/config"
	"github.com/DeafMist/verdict-radar/backend/internal/dedupe"
	"github.com/DeafMist/verdict-radar/backend/internal/logger"
	"github.com/DeafMist/verdict-radar/backend/internal/models"
	"github.com/DeafMist/verdict-radar/backend/internal/processing"
)

// ErrNoNews is returned when no source produced a usable item.
var ErrNoNews = errors.New("no news collected from any source")

const (
	maxTitleLen    = 120
	maxSummaryLen  = 250
	minRSSTitle    = 6
	minWebTitle    = 15
	dateLayout     = "2006-01-02"
	userAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	acceptLanguage = "es-AR,es;q=0.9,en;q=0.8"
)

// Collector scrapes every configured source concurrently.
type Collector struct {
	sources     []config.Source
	perSource   int
	maxItems    int
	concurrency int
	timeout     time.Duration
	client      *http.Client
	log         *slog.Logger
	now         func() time.Time
}

// New builds a Collector from cfg.
func New(cfg config.Scraper, log *slog.Logger) *Collector {
	if log == nil {
		log = logger.Discard()
	}
	return &Collector{
		sources:     cfg.Sources,
		perSource:   cfg.PerSource,
		maxItems:    cfg.MaxItems,
		concurrency: cfg.Concurrency,
		timeout:     cfg.Timeout,
		client:      &http.Client{Timeout: cfg.HTTPTimeout},
		log:         log,
		now:         time.Now,
	}
}

// WithHTTPClient replaces the client used for feeds and pages.
func (c *Collector) WithHTTPClient(client *http.Client) *Collector {
	c.client = client
	return c
}

// WithClock replaces the time source used for default dates.
func (c *Collector) WithClock(now func() time.Time) *Collector {
	c.now = now
	return c
}

// Collect scrapes all sources under the collector timeout. A failing source
// is logged and skipped. The result is deduplicated by title, newest first,
// capped at the configured size and annotated.
func (c *Collector) Collect(ctx context.Context) ([]models.NewsItem, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	results := make([][]models.NewsItem, len(c.sources))
	var mu sync.Mutex
	failed := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, src := range c.sources {
		g.Go(func() error {
			items, err := c.scrapeSource(gctx, src)
			if err != nil {
				c.log.Warn("source failed", slog.String("source", src.Name), slog.Any("err", err))
				mu.Lock()
				failed++
				mu.Unlock()
				return nil
			}
			c.log.Debug("source scraped", slog.String("source", src.Name), slog.Int("items", len(items)))
			results[i] = items
			return nil
		})
	}
	_ = g.Wait()

	var all []models.NewsItem
	for _, items := range results {
		all = append(all, items...)
	}

	if len(all) == 0 {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrNoNews, err)
		}
		return nil, ErrNoNews
	}

	items := c.finalize(all)
	c.log.Info("collected news",
		slog.Int("items", len(items)),
		slog.Int("sources", len(c.sources)),
		slog.Int("failed_sources", failed),
	)
	return items, nil
}

func (c *Collector) scrapeSource(ctx context.Context, src config.Source) ([]models.NewsItem, error) {
	switch src.Kind {
	case "rss":
		return c.scrapeRSS(ctx, src)
	case "web":
		return c.scrapeWeb(ctx, src)
	default:
		return nil, fmt.Errorf("unknown source kind %q", src.Kind)
	}
}

func (c *Collector) finalize(all []models.NewsItem) []models.NewsItem {
	seen := dedupe.NewCache(len(all), time.Hour)
	unique := make([]models.NewsItem, 0, len(all))
	for _, item := range all {
		if seen.CheckAndMark(processing.TitleKey(item.Title)) {
			continue
		}
		unique = append(unique, item)
	}

	sort.SliceStable(unique, func(i, j int) bool {
		return unique[i].Date > unique[j].Date
	})
	if len(unique) > c.maxItems {
		unique = unique[:c.maxItems]
	}

	return annotate.Enrich(unique, c.now())
}

func (c *Collector) today() string {
	return c.now().Format(dateLayout)
}
