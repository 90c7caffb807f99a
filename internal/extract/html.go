package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/DeafMist/verdict-radar/backend/internal/logger"
	"github.com/DeafMist/verdict-radar/backend/internal/orchestrator"
)

var contentSelectors = []string{"article", "[role='main']", "main", ".post-content", ".article-content", ".entry-content", ".content"}

// HTML downloads the page and extracts paragraphs with goquery.
type HTML struct {
	client   *http.Client
	timeout  time.Duration
	maxBytes int64
	log      *slog.Logger
}

// NewHTML returns an HTML extractor. maxBytes caps the downloaded page.
func NewHTML(client *http.Client, timeout time.Duration, maxBytes int64, log *slog.Logger) *HTML {
	if client == nil {
		client = &http.Client{}
	}
	if log == nil {
		log = logger.Discard()
	}
	return &HTML{client: client, timeout: timeout, maxBytes: maxBytes, log: log}
}

func (h *HTML) Extract(ctx context.Context, rawURL string) (Result, error) {
	target, err := ValidateURL(rawURL)
	if err != nil {
		return Result{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Result{}, orchestrator.NewError(orchestrator.KindInternal, "extract", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "es-AR,es;q=0.9,en;q=0.8")

	resp, err := h.client.Do(req)
	if err != nil {
		return Result{}, classifyCtx(ctx, "fetch article", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, orchestrator.NewError(orchestrator.KindProcessFailure, "fetch article", fmt.Errorf("status %d", resp.StatusCode))
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, h.maxBytes))
	if err != nil {
		return Result{}, classifyCtx(ctx, "parse article", err)
	}

	content := ArticleText(doc)
	if content == "" {
		return Result{}, orchestrator.NewError(orchestrator.KindParseError, "extract", errors.New("no readable content found"))
	}

	h.log.Debug("extracted article", slog.String("url", target), slog.Int("length", len(content)))
	return newResult(content), nil
}

// ArticleText returns the paragraphs of the first matching content container,
// falling back to every sufficiently long paragraph in the body.
func ArticleText(doc *goquery.Document) string {
	doc.Find("script, style, nav, footer, header, aside, .sidebar, .advertisement, .ads").Remove()

	var parts []string
	for _, selector := range contentSelectors {
		selection := doc.Find(selector)
		if selection.Length() == 0 {
			continue
		}
		selection.First().Find("p, h1, h2, h3, li").Each(func(_ int, s *goquery.Selection) {
			if text := strings.TrimSpace(s.Text()); len(text) > 20 {
				parts = append(parts, text)
			}
		})
		break
	}

	if len(parts) == 0 {
		doc.Find("body p").Each(func(_ int, s *goquery.Selection) {
			if text := strings.TrimSpace(s.Text()); len(text) > 30 {
				parts = append(parts, text)
			}
		})
	}

	return strings.Join(parts, "\n\n")
}
