// Package dedup collapses concurrent identical fetches into a single call.
package dedup

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/kovalyov-valentin/news-retriever/internal/model"
)

// Fetcher produces the articles for one key.
type Fetcher func(ctx context.Context) ([]model.Article, error)

// Deduplicator guarantees at most one in-flight fetch per key. The key is
// released when the fetch returns, whether it succeeded, failed or panicked.
type Deduplicator struct {
	group   singleflight.Group
	waiting atomic.Int64
}

func New() *Deduplicator {
	return &Deduplicator{}
}

// Wrap runs fetch unless a fetch for key is already running, in which case the
// caller waits for and receives that call's result. shared reports whether the
// result was delivered to more than one caller.
func (d *Deduplicator) Wrap(ctx context.Context, key string, fetch Fetcher) (articles []model.Article, shared bool, err error) {
	d.waiting.Add(1)
	defer d.waiting.Add(-1)

	v, err, shared := d.group.Do(key, func() (any, error) {
		return fetch(ctx)
	})
	if err != nil {
		return nil, shared, fmt.Errorf("dedup %s: %w", key, err)
	}

	result, _ := v.([]model.Article)

	// Callers own their slice; the shared result must not be aliased.
	return append([]model.Article(nil), result...), shared, nil
}

// Waiting returns the number of callers currently inside Wrap, across all keys.
func (d *Deduplicator) Waiting() int {
	return int(d.waiting.Load())
}
