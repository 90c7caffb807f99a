package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/DeafMist/verdict-radar/backend/internal/config"
	"github.com/DeafMist/verdict-radar/backend/internal/models"
	"github.com/DeafMist/verdict-radar/backend/internal/processing"
)

var headlineSelectors = []string{"h1 a", "h2 a", "h3 a", ".title a", ".headline a"}

const (
	linksPerSelector = 10
	anchorScanLimit  = 20
	candidateLimit   = 15
)

func (c *Collector) scrapeWeb(ctx context.Context, src config.Source) ([]models.NewsItem, error) {
	base, err := url.Parse(src.URL)
	if err != nil {
		return nil, fmt.Errorf("parse source url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", acceptLanguage)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", src.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", src.URL, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return c.pageItems(doc, base, src.Name), nil
}

// pageItems picks headline links from a front page: anchors under headline
// selectors first, then any anchor with headline-sized text. Only links on
// the outlet's own host are kept.
func (c *Collector) pageItems(doc *goquery.Document, base *url.URL, source string) []models.NewsItem {
	var candidates []*goquery.Selection
	for _, sel := range headlineSelectors {
		doc.Find(sel).EachWithBreak(func(i int, s *goquery.Selection) bool {
			candidates = append(candidates, s)
			return i+1 < linksPerSelector
		})
	}
	doc.Find("a[href]").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if n := processing.RuneLen(strings.TrimSpace(s.Text())); n > 20 && n < 120 {
			candidates = append(candidates, s)
		}
		return i+1 < anchorScanLimit
	})
	if len(candidates) > candidateLimit {
		candidates = candidates[:candidateLimit]
	}

	host := strings.TrimPrefix(base.Hostname(), "www.")
	seen := make(map[string]struct{})
	var out []models.NewsItem
	for _, s := range candidates {
		title := processing.CleanText(s.Text())
		if processing.RuneLen(title) < minWebTitle {
			continue
		}
		if _, dup := seen[title]; dup {
			continue
		}
		seen[title] = struct{}{}

		href, ok := s.Attr("href")
		if !ok {
			continue
		}
		link, err := base.Parse(strings.TrimSpace(href))
		if err != nil || (link.Scheme != "http" && link.Scheme != "https") {
			continue
		}
		if !strings.HasSuffix(link.Hostname(), host) {
			continue
		}

		out = append(out, models.NewsItem{
			Title:   processing.Truncate(title, maxTitleLen),
			Source:  source,
			Date:    c.today(),
			Summary: "Noticia de " + source,
			URL:     link.String(),
			Verdict: models.VerdictUncertain,
		})
		if len(out) >= c.perSource {
			break
		}
	}
	return out
}
