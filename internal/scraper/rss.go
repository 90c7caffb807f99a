package scraper

import (
	"context"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/DeafMist/verdict-radar/backend/internal/config"
	"github.com/DeafMist/verdict-radar/backend/internal/models"
	"github.com/DeafMist/verdict-radar/backend/internal/processing"
)

func (c *Collector) scrapeRSS(ctx context.Context, src config.Source) ([]models.NewsItem, error) {
	parser := gofeed.NewParser()
	parser.Client = c.client
	parser.UserAgent = userAgent

	feed, err := parser.ParseURLWithContext(src.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", src.URL, err)
	}
	return c.feedItems(feed, src.Name), nil
}

// feedItems converts the first perSource usable entries of feed.
func (c *Collector) feedItems(feed *gofeed.Feed, source string) []models.NewsItem {
	var out []models.NewsItem
	for _, entry := range feed.Items {
		if len(out) >= c.perSource {
			break
		}
		if entry == nil {
			continue
		}

		title := processing.Truncate(processing.CleanText(entry.Title), maxTitleLen)
		if processing.RuneLen(title) < minRSSTitle {
			continue
		}

		summary := processing.CleanText(entry.Description)
		if summary == "" {
			summary = processing.CleanText(entry.Content)
		}
		summary = processing.Truncate(summary, maxSummaryLen)
		if summary == "" {
			summary = "Noticia de " + source
		}

		date := c.today()
		if entry.PublishedParsed != nil {
			date = entry.PublishedParsed.Format(dateLayout)
		} else if entry.UpdatedParsed != nil {
			date = entry.UpdatedParsed.Format(dateLayout)
		}

		out = append(out, models.NewsItem{
			Title:   title,
			Source:  source,
			Date:    date,
			Summary: summary,
			URL:     strings.TrimSpace(entry.Link),
			Verdict: models.VerdictUncertain,
		})
	}
	return out
}
