// Package orchestrator serves the current news batch, trading freshness
// against latency and generator failures.
//
// A persisted batch younger than the freshness window is served as is.
// Otherwise the configured Provider regenerates the batch under a hard
// timeout; concurrent callers share one regeneration per cache path. When
// regeneration fails the last persisted batch is served with a warning,
// whatever its age. Only when no batch exists at all does Fetch fail.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/DeafMist/verdict-radar/backend/internal/annotate"
	"github.com/DeafMist/verdict-radar/backend/internal/logger"
	"github.com/DeafMist/verdict-radar/backend/internal/models"
	"github.com/DeafMist/verdict-radar/backend/internal/newscache"
)

// Provenance records how a served batch was obtained.
type Provenance string

const (
	ProvenanceFreshCache       Provenance = "fresh-cache"
	ProvenanceFreshlyGenerated Provenance = "freshly-generated"
	ProvenanceStaleFallback    Provenance = "stale-cache-fallback"
)

// Cached reports whether the items came from the persisted batch.
func (p Provenance) Cached() bool {
	return p == ProvenanceFreshCache || p == ProvenanceStaleFallback
}

// Provider produces a new batch. Implementations must stop within timeout
// and release every temporary artifact before returning.
type Provider interface {
	Name() string
	Generate(ctx context.Context, timeout time.Duration) ([]models.NewsItem, error)
}

// Cache is the persisted batch. *newscache.Store implements it.
type Cache interface {
	Path() string
	Load() (newscache.Snapshot, error)
	Save(items []models.NewsItem) error
}

// Publisher is notified of every freshly generated batch.
type Publisher interface {
	PublishBatch(ctx context.Context, batchID string, generatedAt time.Time, items []models.NewsItem) error
}

// Result is a successfully served batch.
type Result struct {
	Items       []models.NewsItem
	Provenance  Provenance
	Warning     string
	BatchID     string
	GeneratedAt time.Time
}

// Config wires an Orchestrator.
type Config struct {
	Cache     Cache
	Provider  Provider
	Freshness time.Duration
	Timeout   time.Duration
	Publisher Publisher
	Logger    *slog.Logger
	Now       func() time.Time
}

// Orchestrator implements the fetch policy described in the package doc.
type Orchestrator struct {
	cache     Cache
	provider  Provider
	freshness time.Duration
	timeout   time.Duration
	publisher Publisher
	log       *slog.Logger
	now       func() time.Time
	group     singleflight.Group
}

// New validates cfg and returns an Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Cache == nil {
		return nil, errors.New("orchestrator: cache is required")
	}
	if cfg.Provider == nil {
		return nil, errors.New("orchestrator: provider is required")
	}
	if cfg.Freshness <= 0 {
		return nil, errors.New("orchestrator: freshness window must be positive")
	}
	if cfg.Timeout <= 0 {
		return nil, errors.New("orchestrator: generation timeout must be positive")
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Discard()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Orchestrator{
		cache:     cfg.Cache,
		provider:  cfg.Provider,
		freshness: cfg.Freshness,
		timeout:   cfg.Timeout,
		publisher: cfg.Publisher,
		log:       cfg.Logger.With(slog.String("provider", cfg.Provider.Name())),
		now:       cfg.Now,
	}, nil
}

// Fetch returns the best available batch or an *Error.
func (o *Orchestrator) Fetch(ctx context.Context) (Result, error) {
	now := o.now()
	snap, haveCache := o.loadCache(now)

	if haveCache {
		if age := snap.Age(now); age < o.freshness {
			o.log.Debug("serving fresh cache", slog.Duration("age", age), slog.Int("items", len(snap.Items)))
			return Result{Items: snap.Items, Provenance: ProvenanceFreshCache, GeneratedAt: snap.WrittenAt}, nil
		}
	}

	res, err := o.regenerate(ctx)
	if err == nil {
		return res, nil
	}

	kind := KindOf(err)
	if ctx.Err() != nil && kind == KindInternal {
		return Result{}, err
	}

	if !haveCache {
		// Another caller may have persisted a batch while this one waited.
		snap, haveCache = o.loadCache(o.now())
	}
	if !haveCache {
		o.log.Error("regeneration failed and no cached batch exists", slog.Any("err", err), slog.String("kind", string(kind)))
		return Result{}, err
	}

	age := snap.Age(o.now()).Round(time.Second)
	o.log.Warn("regeneration failed, serving stale cache",
		slog.Any("err", err),
		slog.String("kind", string(kind)),
		slog.Duration("age", age),
	)
	return Result{
		Items:       snap.Items,
		Provenance:  ProvenanceStaleFallback,
		Warning:     fmt.Sprintf("showing cached news from %s ago: refresh failed (%s)", age, kind),
		GeneratedAt: snap.WrittenAt,
	}, nil
}

// CacheAge reports the age of the persisted batch, if there is one.
func (o *Orchestrator) CacheAge() (time.Duration, bool) {
	snap, err := o.cache.Load()
	if err != nil {
		return 0, false
	}
	return snap.Age(o.now()), true
}

func (o *Orchestrator) loadCache(now time.Time) (newscache.Snapshot, bool) {
	snap, err := o.cache.Load()
	if err != nil {
		if !errors.Is(err, newscache.ErrNotFound) {
			o.log.Warn("cached batch unreadable, ignoring it", slog.Any("err", err))
		}
		return newscache.Snapshot{}, false
	}

	items, err := annotate.Prepare(snap.Items, now)
	if err != nil {
		o.log.Warn("cached batch invalid, ignoring it", slog.Any("err", err))
		return newscache.Snapshot{}, false
	}
	snap.Items = items
	return snap, true
}

// regenerate runs at most one generation per cache path at a time. The
// generation is detached from the caller's cancellation so that a departing
// caller does not abort a run other callers are waiting on; the timeout
// still bounds it. A caller whose ctx ends stops waiting.
func (o *Orchestrator) regenerate(ctx context.Context) (Result, error) {
	ch := o.group.DoChan(o.cache.Path(), func() (any, error) {
		return o.generate(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return Result{}, fmt.Errorf("wait for regeneration: %w", ctx.Err())
	case r := <-ch:
		if r.Err != nil {
			return Result{}, r.Err
		}
		res := r.Val.(Result)
		if r.Shared {
			o.log.Debug("joined in-flight regeneration", slog.String("batch_id", res.BatchID))
		}
		return res, nil
	}
}

func (o *Orchestrator) generate(ctx context.Context) (Result, error) {
	const op = "generate"
	start := o.now()

	raw, err := o.provider.Generate(ctx, o.timeout)
	if err != nil {
		return Result{}, classify(op, err)
	}
	if len(raw) == 0 {
		return Result{}, NewError(KindParseError, op, errors.New("generator produced an empty batch"))
	}

	items, err := annotate.Prepare(raw, start)
	if err != nil {
		return Result{}, NewError(KindParseError, op, err)
	}

	res := Result{
		Items:       items,
		Provenance:  ProvenanceFreshlyGenerated,
		BatchID:     uuid.NewString(),
		GeneratedAt: start,
	}

	if err := o.cache.Save(items); err != nil {
		o.log.Error("persist generated batch", slog.Any("err", err))
		res.Warning = "news could not be cached; the next request will regenerate"
	}

	o.log.Info("generated news batch",
		slog.String("batch_id", res.BatchID),
		slog.Int("items", len(items)),
		slog.Duration("took", o.now().Sub(start)),
	)

	if o.publisher != nil {
		pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := o.publisher.PublishBatch(pubCtx, res.BatchID, res.GeneratedAt, items); err != nil {
			o.log.Warn("publish batch", slog.Any("err", err), slog.String("batch_id", res.BatchID))
		}
	}

	return res, nil
}
