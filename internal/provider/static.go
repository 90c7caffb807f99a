package provider

import (
	"context"
	_ "embed"
	"time"

	"github.com/DeafMist/verdict-radar/backend/internal/models"
	"github.com/DeafMist/verdict-radar/backend/internal/newscache"
)

//go:embed fixtures/news.json
var staticBatch []byte

// Static serves the bundled demo batch. Every call decodes a new copy.
type Static struct{}

// NewStatic returns the demo provider.
func NewStatic() Static { return Static{} }

func (Static) Name() string { return "static" }

func (Static) Generate(context.Context, time.Duration) ([]models.NewsItem, error) {
	return newscache.DecodeBatch(staticBatch)
}
