// Package fetcher periodically refreshes a fixed set of categories so that
// readers find warm cache entries.
package fetcher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/kovalyov-valentin/news-retriever/internal/model"
)

type Refresher interface {
	RefreshCategory(ctx context.Context, category string) []model.Article
}

type Fetcher struct {
	refresher Refresher

	fetchInterval time.Duration
	categories    []string
	logger        *slog.Logger
}

// NewFetcher keeps the configured categories in canonical form, without duplicates.
// An empty list means every category.
func NewFetcher(refresher Refresher, fetchInterval time.Duration, categories []string, logger *slog.Logger) *Fetcher {
	if len(categories) == 0 {
		categories = model.Categories
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Fetcher{
		refresher:     refresher,
		fetchInterval: fetchInterval,
		categories:    lo.Uniq(lo.Map(categories, func(c string, _ int) string { return model.NormalizeCategory(c) })),
		logger:        logger,
	}
}

func (f *Fetcher) Categories() []string {
	return f.categories
}

// Start refreshes immediately and then every fetchInterval until ctx is done.
func (f *Fetcher) Start(ctx context.Context) error {
	ticker := time.NewTicker(f.fetchInterval)
	defer ticker.Stop()

	f.Fetch(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			f.Fetch(ctx)
		}
	}
}

// Fetch refreshes every category in parallel and waits for all of them.
func (f *Fetcher) Fetch(ctx context.Context) {
	var wg sync.WaitGroup

	for _, category := range f.categories {
		wg.Add(1)

		go func(category string) {
			defer wg.Done()

			articles := f.refresher.RefreshCategory(ctx, category)
			f.logger.InfoContext(ctx, "category refreshed", "category", category, "articles", len(articles))
		}(category)
	}

	wg.Wait()
}
