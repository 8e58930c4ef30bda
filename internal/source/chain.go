package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"time"

	"github.com/samber/lo"
	"golang.org/x/time/rate"

	"github.com/kovalyov-valentin/news-retriever/internal/metrics"
	"github.com/kovalyov-valentin/news-retriever/internal/model"
)

const defaultTimeout = 10 * time.Second

type ChainOption func(*Chain)

// WithTimeout bounds every single provider call.
func WithTimeout(timeout time.Duration) ChainOption {
	return func(c *Chain) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithMinInterval paces consecutive calls to the same provider.
func WithMinInterval(interval time.Duration) ChainOption {
	return func(c *Chain) {
		c.minInterval = interval
	}
}

func WithLogger(logger *slog.Logger) ChainOption {
	return func(c *Chain) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithClock(clock func() time.Time) ChainOption {
	return func(c *Chain) {
		if clock != nil {
			c.clock = clock
		}
	}
}

type registered struct {
	provider       Provider
	descriptor     model.ProviderDescriptor
	fallbackSource string
	limiter        *rate.Limiter
}

// Chain tries enabled providers in ascending priority until one succeeds.
type Chain struct {
	providers   []registered
	timeout     time.Duration
	minInterval time.Duration
	logger      *slog.Logger
	clock       func() time.Time
}

func NewChain(providers []Provider, options ...ChainOption) *Chain {
	c := &Chain{
		timeout: defaultTimeout,
		logger:  slog.Default(),
		clock:   time.Now,
	}
	for _, option := range options {
		option(c)
	}

	limit := rate.Inf
	if c.minInterval > 0 {
		limit = rate.Every(c.minInterval)
	}

	c.providers = lo.Map(providers, func(p Provider, _ int) registered {
		d := p.Descriptor()
		fallback := d.Name
		if named, ok := p.(interface{ FallbackSource() string }); ok {
			fallback = named.FallbackSource()
		}
		return registered{
			provider:       p,
			descriptor:     d,
			fallbackSource: fallback,
			limiter:        rate.NewLimiter(limit, 1),
		}
	})

	sort.SliceStable(c.providers, func(i, j int) bool {
		return c.providers[i].descriptor.Priority < c.providers[j].descriptor.Priority
	})

	return c
}

// Descriptors returns every registered provider, enabled or not, in priority order.
func (c *Chain) Descriptors() []model.ProviderDescriptor {
	return lo.Map(c.providers, func(r registered, _ int) model.ProviderDescriptor {
		return r.descriptor
	})
}

// Enabled reports whether at least one provider can be called.
func (c *Chain) Enabled() bool {
	return len(c.enabled()) > 0
}

// GetNews returns normalised articles, at most limit, from the first provider that succeeds.
// It fails with ErrNoProviders or with an error wrapping ErrAllProvidersFailed and
// every provider error.
func (c *Chain) GetNews(ctx context.Context, category string, limit int) ([]model.Article, error) {
	enabled := c.enabled()
	if len(enabled) == 0 {
		return nil, ErrNoProviders
	}

	errs := make([]error, 0, len(enabled))
	for _, r := range enabled {
		name := r.descriptor.Name

		articles, err := c.call(ctx, r, category, limit)
		if err != nil {
			metrics.ProviderCalls.WithLabelValues(name, "error").Inc()
			c.logger.WarnContext(ctx, "provider failed", "provider", name, "category", category, "error", err)
			errs = append(errs, err)
			continue
		}

		metrics.ProviderCalls.WithLabelValues(name, "ok").Inc()
		c.logger.InfoContext(ctx, "provider served", "provider", name, "category", category, "articles", len(articles))

		return articles, nil
	}

	return nil, fmt.Errorf("%w: %w", ErrAllProvidersFailed, errors.Join(errs...))
}

func (c *Chain) enabled() []registered {
	return lo.Filter(c.providers, func(r registered, _ int) bool {
		return r.descriptor.Enabled
	})
}

// call runs one provider. A panicking provider counts as a failed one.
func (c *Chain) call(ctx context.Context, r registered, category string, limit int) (articles []model.Article, err error) {
	name := r.descriptor.Name

	defer func() {
		if p := recover(); p != nil {
			c.logger.ErrorContext(ctx, "provider panicked", "provider", name, "category", category, "panic", p, "stack", string(debug.Stack()))
			articles, err = nil, providerError(name, category, fmt.Errorf("panic: %v", p))
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := r.limiter.Wait(ctx); err != nil {
		return nil, providerError(name, category, fmt.Errorf("rate limit wait: %w", err))
	}

	raw, err := r.provider.Fetch(ctx, category, limit)
	if err != nil {
		return nil, providerError(name, category, err)
	}

	articles = Normalize(raw, name, r.fallbackSource, category, c.clock())
	if len(articles) == 0 {
		return nil, providerError(name, category, ErrEmptyResult)
	}
	if limit > 0 && len(articles) > limit {
		articles = articles[:limit]
	}

	return articles, nil
}
