// Package retrieval answers article requests through a fixed waterfall:
// cache, database, providers (quota permitting), stale cache and finally
// synthetic placeholders. It never fails and never returns an empty list.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kovalyov-valentin/news-retriever/internal/cache"
	"github.com/kovalyov-valentin/news-retriever/internal/dedup"
	"github.com/kovalyov-valentin/news-retriever/internal/metrics"
	"github.com/kovalyov-valentin/news-retriever/internal/model"
	"github.com/kovalyov-valentin/news-retriever/internal/quota"
	"github.com/kovalyov-valentin/news-retriever/internal/source"
)

// Stage names the waterfall step that produced a result.
type Stage string

const (
	StageCache     Stage = "cache"
	StageDB        Stage = "db"
	StageProvider  Stage = "provider"
	StageStale     Stage = "stale"
	StageSynthetic Stage = "synthetic"
)

const (
	defaultLimit          = 10
	defaultDBWriteTimeout = 10 * time.Second
)

// ArticleStore is the database collaborator: a secondary read source and a
// best-effort write sink.
type ArticleStore interface {
	GetByCategory(ctx context.Context, category string, limit int) ([]model.Article, error)
	Insert(ctx context.Context, articles []model.Article) error
}

// Providers is the provider chain as seen by the orchestrator.
type Providers interface {
	GetNews(ctx context.Context, category string, limit int) ([]model.Article, error)
	Descriptors() []model.ProviderDescriptor
}

type Option func(*Orchestrator)

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func WithClock(clock func() time.Time) Option {
	return func(o *Orchestrator) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithDB enables the database read stage and background writes.
func WithDB(db ArticleStore) Option {
	return func(o *Orchestrator) {
		o.db = db
	}
}

func WithDBWriteTimeout(timeout time.Duration) Option {
	return func(o *Orchestrator) {
		if timeout > 0 {
			o.dbWriteTimeout = timeout
		}
	}
}

// WithDefaultLimit sets the limit used when a request asks for zero or fewer articles.
func WithDefaultLimit(limit int) Option {
	return func(o *Orchestrator) {
		if limit > 0 {
			o.defaultLimit = limit
		}
	}
}

// Result is a served article list and the stage it came from.
type Result struct {
	Articles []model.Article
	Stage    Stage
}

type Orchestrator struct {
	cache     *cache.Store
	quota     *quota.Tracker
	dedup     *dedup.Deduplicator
	providers Providers
	db        ArticleStore

	defaultLimit   int
	dbWriteTimeout time.Duration
	logger         *slog.Logger
	clock          func() time.Time

	writes sync.WaitGroup
}

func New(
	cacheStore *cache.Store,
	tracker *quota.Tracker,
	deduplicator *dedup.Deduplicator,
	providers Providers,
	options ...Option,
) *Orchestrator {
	o := &Orchestrator{
		cache:          cacheStore,
		quota:          tracker,
		dedup:          deduplicator,
		providers:      providers,
		defaultLimit:   defaultLimit,
		dbWriteTimeout: defaultDBWriteTimeout,
		logger:         slog.Default(),
		clock:          time.Now,
	}
	for _, option := range options {
		option(o)
	}

	return o
}

// GetNews returns between 1 and limit articles for category.
func (o *Orchestrator) GetNews(ctx context.Context, category string, limit int) []model.Article {
	return o.Retrieve(ctx, category, limit).Articles
}

// Retrieve runs the full waterfall and reports which stage answered.
func (o *Orchestrator) Retrieve(ctx context.Context, category string, limit int) Result {
	category, limit = o.normalize(category, limit)

	if articles, ok := o.cache.Get(ctx, category); ok && len(articles) >= limit {
		return o.served(ctx, category, StageCache, articles, limit)
	}

	if articles, ok := o.fromDB(ctx, category, limit); ok {
		o.cache.Set(context.WithoutCancel(ctx), category, articles)
		return o.served(ctx, category, StageDB, articles, limit)
	}

	return o.fromProviders(ctx, category, limit)
}

// RefreshCategory forces a provider attempt for category, skipping the cache and
// database reads. Quota and the stale/synthetic tail still apply.
func (o *Orchestrator) RefreshCategory(ctx context.Context, category string) []model.Article {
	category, limit := o.normalize(category, 0)
	return o.fromProviders(ctx, category, limit).Articles
}

// Stats is the admin view of cache, quota and providers.
func (o *Orchestrator) Stats(ctx context.Context) model.Stats {
	return model.Stats{
		CacheStats:  o.cache.Stats(ctx),
		QuotaStatus: o.quota.Status(ctx),
		Providers:   o.providers.Descriptors(),
	}
}

// ClearCache drops every cached category.
func (o *Orchestrator) ClearCache(ctx context.Context) error {
	if err := o.cache.Clear(ctx, ""); err != nil {
		return fmt.Errorf("retrieval clear cache: %w", err)
	}

	o.logger.InfoContext(ctx, "cache cleared")
	return nil
}

// Wait blocks until background database writes have finished.
func (o *Orchestrator) Wait() {
	o.writes.Wait()
}

func (o *Orchestrator) normalize(category string, limit int) (string, int) {
	if limit <= 0 {
		limit = o.defaultLimit
	}
	return model.NormalizeCategory(category), limit
}

func (o *Orchestrator) fromDB(ctx context.Context, category string, limit int) ([]model.Article, bool) {
	if o.db == nil {
		return nil, false
	}

	articles, err := o.db.GetByCategory(ctx, category, limit)
	if err != nil {
		o.logger.WarnContext(ctx, "database read failed", "category", category, "stage", StageDB, "error", err)
		return nil, false
	}

	return articles, len(articles) > 0
}

// fromProviders is the tail of the waterfall, from the quota gate on.
func (o *Orchestrator) fromProviders(ctx context.Context, category string, limit int) Result {
	if o.quota.TrackRequest(ctx) {
		articles, err := o.fetch(ctx, category, limit)
		if err == nil {
			// The call is paid for; keep the result even if the caller has gone.
			o.cache.Set(context.WithoutCancel(ctx), category, articles)
			o.persist(ctx, category, articles)
			return o.served(ctx, category, StageProvider, articles, limit)
		}
		o.logFetchError(ctx, category, err)
	} else {
		metrics.QuotaDenied.Inc()
		o.logger.WarnContext(ctx, "daily quota exhausted, skipping providers", "category", category)
	}

	if articles, ok := o.cache.GetStale(ctx, category); ok {
		return o.served(ctx, category, StageStale, articles, limit)
	}

	return o.served(ctx, category, StageSynthetic, Synthetic(category, limit, o.clock()), limit)
}

// fetch goes through the deduplicator so one provider call serves every concurrent
// request for the category. The call is sized for the default limit so the cached
// entry also satisfies typical follow-up requests.
func (o *Orchestrator) fetch(ctx context.Context, category string, limit int) ([]model.Article, error) {
	fetchLimit := max(limit, o.defaultLimit)

	articles, shared, err := o.dedup.Wrap(ctx, category, func(ctx context.Context) ([]model.Article, error) {
		// Waiters share this call; one caller going away must not fail the others.
		return o.providers.GetNews(context.WithoutCancel(ctx), category, fetchLimit)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		o.logger.DebugContext(ctx, "provider fetch shared", "category", category)
	}

	return articles, nil
}

func (o *Orchestrator) logFetchError(ctx context.Context, category string, err error) {
	switch {
	case errors.Is(err, source.ErrNoProviders):
		o.logger.WarnContext(ctx, "no providers configured", "category", category, "stage", StageProvider)
	case errors.Is(err, source.ErrAllProvidersFailed):
		o.logger.WarnContext(ctx, "all providers failed", "category", category, "stage", StageProvider, "error", err)
	default:
		o.logger.WarnContext(ctx, "provider fetch failed", "category", category, "stage", StageProvider, "error", err)
	}
}

// persist writes articles to the database in the background. Failures are logged
// and never reach the request.
func (o *Orchestrator) persist(ctx context.Context, category string, articles []model.Article) {
	if o.db == nil {
		return
	}

	rows := append([]model.Article(nil), articles...)
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.dbWriteTimeout)

	o.writes.Add(1)
	go func() {
		defer o.writes.Done()
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				metrics.DBWrites.WithLabelValues("error").Inc()
				o.logger.Error("database write panicked", "category", category, "panic", r)
			}
		}()

		if err := o.db.Insert(writeCtx, rows); err != nil {
			metrics.DBWrites.WithLabelValues("error").Inc()
			o.logger.ErrorContext(writeCtx, "database write failed", "category", category, "articles", len(rows), "error", err)
			return
		}

		metrics.DBWrites.WithLabelValues("ok").Inc()
	}()
}

func (o *Orchestrator) served(ctx context.Context, category string, stage Stage, articles []model.Article, limit int) Result {
	if len(articles) > limit {
		articles = articles[:limit]
	}

	metrics.StageServed.WithLabelValues(string(stage)).Inc()
	o.logger.DebugContext(ctx, "request served", "category", category, "stage", stage, "articles", len(articles))

	return Result{Articles: articles, Stage: stage}
}
