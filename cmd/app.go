package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/kovalyov-valentin/news-retriever/internal/cache"
	"github.com/kovalyov-valentin/news-retriever/internal/config"
	"github.com/kovalyov-valentin/news-retriever/internal/dedup"
	"github.com/kovalyov-valentin/news-retriever/internal/kvstore"
	"github.com/kovalyov-valentin/news-retriever/internal/quota"
	"github.com/kovalyov-valentin/news-retriever/internal/retrieval"
	"github.com/kovalyov-valentin/news-retriever/internal/source"
	"github.com/kovalyov-valentin/news-retriever/internal/storage"
)

const redisNamespace = "newsretriever"

// app holds the wired retrieval core and whatever has to be closed on exit.
type app struct {
	orchestrator *retrieval.Orchestrator
	closers      []func() error
}

func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	a := &app{}

	kv, err := a.openKV(cfg)
	if err != nil {
		return nil, err
	}

	options := []retrieval.Option{
		retrieval.WithLogger(logger),
		retrieval.WithDBWriteTimeout(cfg.DBWriteTimeout),
		retrieval.WithDefaultLimit(cfg.DefaultLimit),
	}

	db, err := a.openDB(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	if db != nil {
		articleStorage := storage.NewArticleStorage(db)
		if err := articleStorage.Init(ctx); err != nil {
			a.Close()
			return nil, err
		}
		options = append(options, retrieval.WithDB(articleStorage))
	}

	client := &http.Client{Timeout: cfg.ProviderTimeout}
	chain := source.NewChain(
		source.Registry(cfg, client, logger),
		source.WithTimeout(cfg.ProviderTimeout),
		source.WithMinInterval(cfg.ProviderMinInterval),
		source.WithLogger(logger),
	)
	cacheStore := cache.New(
		kv,
		cache.WithTTL(cfg.CacheTTL),
		cache.WithMaxEntries(cfg.CacheMaxEntries),
		cache.WithLogger(logger),
	)
	tracker := quota.New(kv, cfg.DailyQuota, quota.WithLogger(logger))

	if !chain.Enabled() {
		logger.Warn("no news provider is enabled, requests will be served from cache, database or placeholders")
	}

	a.orchestrator = retrieval.New(cacheStore, tracker, dedup.New(), chain, options...)

	return a, nil
}

func (a *app) openKV(cfg config.Config) (kvstore.Store, error) {
	switch cfg.KVBackend {
	case "", "memory":
		return kvstore.NewMemory(0), nil
	case "sqlite":
		s, err := kvstore.OpenSQLite(cfg.KVPath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s.Close)
		return s, nil
	case "redis":
		r, err := kvstore.NewRedisWithURL(cfg.RedisURL, redisNamespace)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, r.Close)
		return r, nil
	default:
		return nil, fmt.Errorf("unknown kv backend %q", cfg.KVBackend)
	}
}

// openDB returns nil when no database is configured.
func (a *app) openDB(ctx context.Context, cfg config.Config) (*sqlx.DB, error) {
	switch cfg.DatabaseDriver {
	case "":
		return nil, nil
	case "postgres", "sqlite":
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
	}

	db, err := sqlx.ConnectContext(ctx, cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", cfg.DatabaseDriver, err)
	}
	if cfg.DatabaseDriver == "sqlite" {
		db.SetMaxOpenConns(1)
	}

	a.closers = append(a.closers, db.Close)
	return db, nil
}

// Close waits for background writes and releases storage.
func (a *app) Close() error {
	if a.orchestrator != nil {
		a.orchestrator.Wait()
	}

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
