package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Provider names accepted by NEWS_PROVIDER.
const (
	ProviderProcess = "process"
	ProviderScrape  = "scrape"
	ProviderStatic  = "static"
)

// Extraction modes accepted by EXTRACT_MODE.
const (
	ExtractHTML    = "html"
	ExtractCommand = "command"
)

// Common contains Elasticsearch parameters shared by every service.
type Common struct {
	ElasticsearchAddr  string
	ElasticsearchIndex string
}

// Source is one scraping target: an RSS feed or a web front page.
type Source struct {
	Name string
	Kind string // "rss" or "web"
	URL  string
}

// Scraper configures news collection, both for the scraper binary and the
// in-process provider.
type Scraper struct {
	OutputPath  string
	PerSource   int
	MaxItems    int
	Concurrency int
	Timeout     time.Duration
	HTTPTimeout time.Duration
	Sources     []Source
}

// API describes HTTP-layer configuration.
type API struct {
	Common
	BindAddr    string
	DefaultPage int
	MaxPage     int

	Provider        string
	CachePath       string
	Freshness       time.Duration
	GenerateTimeout time.Duration
	GeneratorCmd    []string
	WorkDir         string
	RefreshSchedule string

	ExtractMode     string
	ExtractCmd      []string
	ExtractTimeout  time.Duration
	ExtractMaxBytes int

	KafkaBrokers    []string
	KafkaBatchTopic string

	Scraper Scraper
}

// ArchiveEnabled reports whether archive search is backed by Elasticsearch.
func (c *API) ArchiveEnabled() bool { return c.ElasticsearchAddr != "" }

// PublishEnabled reports whether generated batches go to Kafka.
func (c *API) PublishEnabled() bool { return len(c.KafkaBrokers) > 0 }

// Worker holds configuration for the Kafka -> Elasticsearch archive worker.
type Worker struct {
	Common
	KafkaBrokers     []string
	KafkaTopic       string
	KafkaConsumer    string
	KeywordLimit     int
	KeywordMinLength int
	DedupeCapacity   int
	DedupeTTL        time.Duration
	BatchSize        int
}

// Retention configures the archive cleanup job.
type Retention struct {
	Common
	Schedule  string
	MaxAge    time.Duration
	BatchSize int
}

// LoadDotEnv loads variables from .env files when they exist. Variables that
// are already set in the environment win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// LoadAPI builds an API config from environment variables.
func LoadAPI() (*API, error) {
	cachePath := getEnv("NEWS_CACHE_PATH", filepath.Join("data", "real_news.json"))
	c := &API{
		Common: Common{
			ElasticsearchAddr:  os.Getenv("ELASTICSEARCH_ADDR"),
			ElasticsearchIndex: getEnv("ELASTICSEARCH_INDEX", "news_archive"),
		},
		BindAddr:    getEnv("API_BIND_ADDR", "0.0.0.0:8080"),
		DefaultPage: getInt("API_PAGE_SIZE", 20),
		MaxPage:     getInt("API_MAX_PAGE_SIZE", 100),

		Provider:        strings.ToLower(getEnv("NEWS_PROVIDER", ProviderProcess)),
		CachePath:       cachePath,
		Freshness:       getDuration("NEWS_FRESHNESS", "5m"),
		GenerateTimeout: getDuration("NEWS_GENERATE_TIMEOUT", "30s"),
		GeneratorCmd:    strings.Fields(getEnv("NEWS_GENERATOR_CMD", "./bin/scraper")),
		WorkDir:         getEnv("NEWS_WORK_DIR", filepath.Dir(cachePath)),
		RefreshSchedule: strings.TrimSpace(os.Getenv("NEWS_REFRESH_SCHEDULE")),

		ExtractMode:     strings.ToLower(getEnv("EXTRACT_MODE", ExtractHTML)),
		ExtractCmd:      strings.Fields(os.Getenv("EXTRACT_CMD")),
		ExtractTimeout:  getDuration("EXTRACT_TIMEOUT", "15s"),
		ExtractMaxBytes: getInt("EXTRACT_MAX_BYTES", 5*1024*1024),

		KafkaBrokers:    splitAndTrim(os.Getenv("KAFKA_BROKERS")),
		KafkaBatchTopic: getEnv("KAFKA_BATCH_TOPIC", "news_batches"),
	}

	scraper, err := loadScraper()
	if err != nil {
		return nil, err
	}
	c.Scraper = *scraper

	if c.DefaultPage <= 0 {
		return nil, fmt.Errorf("API_PAGE_SIZE must be positive")
	}
	if c.MaxPage <= 0 {
		return nil, fmt.Errorf("API_MAX_PAGE_SIZE must be positive")
	}
	if c.DefaultPage > c.MaxPage {
		return nil, fmt.Errorf("API_PAGE_SIZE cannot exceed API_MAX_PAGE_SIZE")
	}
	switch c.Provider {
	case ProviderProcess:
		if len(c.GeneratorCmd) == 0 {
			return nil, fmt.Errorf("NEWS_GENERATOR_CMD is required for the process provider")
		}
	case ProviderScrape, ProviderStatic:
	default:
		return nil, fmt.Errorf("NEWS_PROVIDER must be one of process, scrape, static; got %q", c.Provider)
	}
	if c.Freshness <= 0 {
		return nil, fmt.Errorf("NEWS_FRESHNESS must be positive")
	}
	if c.GenerateTimeout <= 0 {
		return nil, fmt.Errorf("NEWS_GENERATE_TIMEOUT must be positive")
	}
	if c.RefreshSchedule != "" {
		if _, err := cron.ParseStandard(c.RefreshSchedule); err != nil {
			return nil, fmt.Errorf("NEWS_REFRESH_SCHEDULE: %w", err)
		}
	}
	switch c.ExtractMode {
	case ExtractHTML:
	case ExtractCommand:
		if len(c.ExtractCmd) == 0 {
			return nil, fmt.Errorf("EXTRACT_CMD is required when EXTRACT_MODE=command")
		}
	default:
		return nil, fmt.Errorf("EXTRACT_MODE must be html or command; got %q", c.ExtractMode)
	}
	if c.ExtractTimeout <= 0 {
		return nil, fmt.Errorf("EXTRACT_TIMEOUT must be positive")
	}
	if c.ExtractMaxBytes <= 0 {
		return nil, fmt.Errorf("EXTRACT_MAX_BYTES must be positive")
	}

	return c, nil
}

// LoadScraper builds the scraper binary config. NEWS_OUTPUT_PATH, set by the
// orchestrator when it spawns the scraper, takes precedence over SCRAPER_OUTPUT.
func LoadScraper() (*Scraper, error) {
	return loadScraper()
}

func loadScraper() (*Scraper, error) {
	c := &Scraper{
		OutputPath:  getEnv("NEWS_OUTPUT_PATH", getEnv("SCRAPER_OUTPUT", filepath.Join("data", "real_news.json"))),
		PerSource:   getInt("SCRAPER_PER_SOURCE", 3),
		MaxItems:    getInt("SCRAPER_MAX_ITEMS", 25),
		Concurrency: getInt("SCRAPER_CONCURRENCY", 4),
		Timeout:     getDuration("SCRAPER_TIMEOUT", "25s"),
		HTTPTimeout: getDuration("SCRAPER_HTTP_TIMEOUT", "8s"),
	}

	if raw := strings.TrimSpace(os.Getenv("SCRAPER_SOURCES")); raw != "" {
		sources, err := ParseSources(raw)
		if err != nil {
			return nil, fmt.Errorf("SCRAPER_SOURCES: %w", err)
		}
		c.Sources = sources
	} else {
		c.Sources = DefaultSources()
	}

	if c.PerSource <= 0 {
		return nil, fmt.Errorf("SCRAPER_PER_SOURCE must be positive")
	}
	if c.MaxItems <= 0 {
		return nil, fmt.Errorf("SCRAPER_MAX_ITEMS must be positive")
	}
	if c.Concurrency <= 0 {
		return nil, fmt.Errorf("SCRAPER_CONCURRENCY must be positive")
	}
	if c.Timeout <= 0 || c.HTTPTimeout <= 0 {
		return nil, fmt.Errorf("SCRAPER_TIMEOUT and SCRAPER_HTTP_TIMEOUT must be positive")
	}

	return c, nil
}

// ParseSources reads a comma separated list of name=kind:url entries, e.g.
// "Clarín=rss:https://www.clarin.com/rss.xml,TN=web:https://tn.com.ar/".
func ParseSources(raw string) ([]Source, error) {
	var out []Source
	for _, part := range splitAndTrim(raw) {
		name, rest, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("entry %q: expected name=kind:url", part)
		}
		kind, url, ok := strings.Cut(rest, ":")
		if !ok {
			return nil, fmt.Errorf("entry %q: expected kind:url", part)
		}
		kind = strings.ToLower(strings.TrimSpace(kind))
		if kind != "rss" && kind != "web" {
			return nil, fmt.Errorf("entry %q: kind must be rss or web", part)
		}
		url = strings.TrimSpace(url)
		if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
			return nil, fmt.Errorf("entry %q: url must be http(s)", part)
		}
		out = append(out, Source{Name: strings.TrimSpace(name), Kind: kind, URL: url})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no sources")
	}
	return out, nil
}

// DefaultSources lists the Argentine outlets scraped out of the box.
func DefaultSources() []Source {
	return []Source{
		{Name: "La Nación", Kind: "rss", URL: "https://www.lanacion.com.ar/arcio/rss/"},
		{Name: "Clarín", Kind: "rss", URL: "https://www.clarin.com/rss/politica/"},
		{Name: "Página/12", Kind: "rss", URL: "https://www.pagina12.com.ar/rss/portada"},
		{Name: "Ámbito", Kind: "rss", URL: "https://www.ambito.com/rss/politica.xml"},
		{Name: "El Cronista", Kind: "rss", URL: "https://www.cronista.com/rss/politica.xml"},
		{Name: "Infobae", Kind: "web", URL: "https://www.infobae.com/politica/"},
		{Name: "TN", Kind: "web", URL: "https://tn.com.ar/politica/"},
		{Name: "Perfil", Kind: "web", URL: "https://www.perfil.com/seccion/politica"},
		{Name: "iProfesional", Kind: "web", URL: "https://www.iprofesional.com/politica/"},
		{Name: "Chequeado", Kind: "web", URL: "https://chequeado.com/"},
		{Name: "Filo News", Kind: "web", URL: "https://www.filo.news/politica/"},
		{Name: "Minuto Uno", Kind: "web", URL: "https://www.minutouno.com/politica/"},
		{Name: "El Destape Web", Kind: "web", URL: "https://www.eldestapeweb.com/politica/"},
	}
}

// LoadWorker builds a Worker config from environment variables.
func LoadWorker() (*Worker, error) {
	c := &Worker{
		Common: Common{
			ElasticsearchAddr:  getEnv("ELASTICSEARCH_ADDR", "http://elasticsearch:9200"),
			ElasticsearchIndex: getEnv("ELASTICSEARCH_INDEX", "news_archive"),
		},
		KafkaBrokers:     splitAndTrim(getEnv("KAFKA_BROKERS", "kafka:9092")),
		KafkaTopic:       getEnv("KAFKA_BATCH_TOPIC", "news_batches"),
		KafkaConsumer:    getEnv("KAFKA_CONSUMER_GROUP", "news-archiver"),
		KeywordLimit:     getInt("WORKER_KEYWORD_LIMIT", 8),
		KeywordMinLength: getInt("WORKER_KEYWORD_MIN_LEN", 4),
		DedupeCapacity:   getInt("WORKER_DEDUPE_CAPACITY", 20000),
		DedupeTTL:        getDuration("WORKER_DEDUPE_TTL", "24h"),
		BatchSize:        getInt("WORKER_BATCH_SIZE", 10),
	}

	if len(c.KafkaBrokers) == 0 {
		return nil, fmt.Errorf("KAFKA_BROKERS must contain at least one broker")
	}
	if c.BatchSize <= 0 {
		return nil, fmt.Errorf("WORKER_BATCH_SIZE must be positive")
	}
	if c.DedupeCapacity <= 0 {
		return nil, fmt.Errorf("WORKER_DEDUPE_CAPACITY must be positive")
	}
	if c.KeywordLimit <= 0 {
		return nil, fmt.Errorf("WORKER_KEYWORD_LIMIT must be positive")
	}
	if c.KeywordMinLength < 0 {
		return nil, fmt.Errorf("WORKER_KEYWORD_MIN_LEN cannot be negative")
	}

	return c, nil
}

// LoadRetention builds a Retention config from environment variables.
func LoadRetention() (*Retention, error) {
	c := &Retention{
		Common: Common{
			ElasticsearchAddr:  getEnv("ELASTICSEARCH_ADDR", "http://elasticsearch:9200"),
			ElasticsearchIndex: getEnv("ELASTICSEARCH_INDEX", "news_archive"),
		},
		Schedule:  getEnv("RETENTION_SCHEDULE", "@daily"),
		MaxAge:    getDuration("RETENTION_MAX_AGE", "720h"),
		BatchSize: getInt("RETENTION_BATCH_SIZE", 500),
	}

	if _, err := cron.ParseStandard(c.Schedule); err != nil {
		return nil, fmt.Errorf("RETENTION_SCHEDULE: %w", err)
	}
	if c.MaxAge <= 0 {
		return nil, fmt.Errorf("RETENTION_MAX_AGE must be positive")
	}
	if c.BatchSize <= 0 {
		return nil, fmt.Errorf("RETENTION_BATCH_SIZE must be positive")
	}

	return c, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key, fallback string) time.Duration {
	if d, err := time.ParseDuration(getEnv(key, fallback)); err == nil {
		return d
	}
	d, err := time.ParseDuration(fallback)
	if err != nil {
		panic(fmt.Sprintf("invalid fallback duration %q: %v", fallback, err))
	}
	return d
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
