package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DeafMist/verdict-radar/backend/internal/config"
	"github.com/DeafMist/verdict-radar/backend/internal/elasticsearch"
	"github.com/DeafMist/verdict-radar/backend/internal/events"
	"github.com/DeafMist/verdict-radar/backend/internal/extract"
	"github.com/DeafMist/verdict-radar/backend/internal/logger"
	"github.com/DeafMist/verdict-radar/backend/internal/newscache"
	"github.com/DeafMist/verdict-radar/backend/internal/orchestrator"
	"github.com/DeafMist/verdict-radar/backend/internal/provider"
	"github.com/DeafMist/verdict-radar/backend/internal/scraper"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, "load .env:", err)
	}
	log := logger.New("api")
	cfg, err := config.LoadAPI()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	gen, err := newProvider(cfg, log)
	if err != nil {
		log.Error("init provider", slog.Any("err", err))
		os.Exit(1)
	}

	var publisher orchestrator.Publisher
	if cfg.PublishEnabled() {
		p := events.NewPublisher(cfg.KafkaBrokers, cfg.KafkaBatchTopic, log)
		defer p.Close()
		publisher = p
	}

	orch, err := orchestrator.New(orchestrator.Config{
		Cache:     newscache.New(cfg.CachePath),
		Provider:  gen,
		Freshness: cfg.Freshness,
		Timeout:   cfg.GenerateTimeout,
		Publisher: publisher,
		Logger:    log,
	})
	if err != nil {
		log.Error("init orchestrator", slog.Any("err", err))
		os.Exit(1)
	}

	extractor, err := newExtractor(cfg, log)
	if err != nil {
		log.Error("init extractor", slog.Any("err", err))
		os.Exit(1)
	}

	srv := &server{
		log:         log,
		news:        orch,
		extractor:   extractor,
		defaultPage: cfg.DefaultPage,
		maxPage:     cfg.MaxPage,
		now:         time.Now,
	}
	if cfg.ArchiveEnabled() {
		esClient, err := elasticsearch.New(cfg.ElasticsearchAddr, cfg.ElasticsearchIndex, log)
		if err != nil {
			log.Error("init elasticsearch", slog.Any("err", err))
			os.Exit(1)
		}
		srv.archive = esClient
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if cfg.RefreshSchedule != "" {
		warmer, err := newWarmer(ctx, cfg.RefreshSchedule, orch, cfg.GenerateTimeout, log)
		if err != nil {
			log.Error("init cache warmer", slog.Any("err", err))
			os.Exit(1)
		}
		warmer.Start()
		defer func() { <-warmer.Stop().Done() }()
	}

	// A live request may wait for a full generation run.
	writeTimeout := max(cfg.GenerateTimeout, cfg.ExtractTimeout) + 10*time.Second
	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      writeTimeout,
	}

	go func() {
		log.Info("api server starting",
			slog.String("addr", cfg.BindAddr),
			slog.String("provider", gen.Name()),
			slog.String("cache", cfg.CachePath),
			slog.Duration("freshness", cfg.Freshness),
			slog.Duration("generate_timeout", cfg.GenerateTimeout),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", slog.Any("err", err))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", slog.Any("err", err))
	}
}

func newProvider(cfg *config.API, log *slog.Logger) (orchestrator.Provider, error) {
	switch cfg.Provider {
	case config.ProviderProcess:
		return provider.NewProcess(cfg.GeneratorCmd, cfg.WorkDir, log)
	case config.ProviderScrape:
		return provider.NewScrape(scraper.New(cfg.Scraper, log)), nil
	case config.ProviderStatic:
		return provider.NewStatic(), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

func newExtractor(cfg *config.API, log *slog.Logger) (extract.Extractor, error) {
	if cfg.ExtractMode == config.ExtractCommand {
		return extract.NewCommand(cfg.ExtractCmd, cfg.ExtractTimeout, cfg.ExtractMaxBytes, log)
	}
	return extract.NewHTML(&http.Client{}, cfg.ExtractTimeout, int64(cfg.ExtractMaxBytes), log), nil
}
