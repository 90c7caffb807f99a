// Package extract pulls the readable article text out of a news URL.
package extract

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/DeafMist/verdict-radar/backend/internal/orchestrator"
)

// Result is the extracted article body.
type Result struct {
	Content string
	Length  int
}

// Extractor fetches url and returns its main text.
type Extractor interface {
	Extract(ctx context.Context, rawURL string) (Result, error)
}

// ValidateURL rejects empty and non-http(s) input before any work is done.
func ValidateURL(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", orchestrator.NewError(orchestrator.KindMissingInput, "extract", errors.New("url is required"))
	}
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", orchestrator.NewError(orchestrator.KindMissingInput, "extract", errors.New("url must be an absolute http(s) address"))
	}
	return u.String(), nil
}

func newResult(content string) Result {
	return Result{Content: content, Length: len([]rune(content))}
}

func classifyCtx(ctx context.Context, op string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return orchestrator.NewError(orchestrator.KindProcessTimeout, op, err)
	}
	return orchestrator.NewError(orchestrator.KindProcessFailure, op, err)
}
