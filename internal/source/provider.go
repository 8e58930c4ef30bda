package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/kovalyov-valentin/news-retriever/internal/model"
)

var (
	// ErrNoProviders means no provider is enabled at all.
	ErrNoProviders = errors.New("no providers configured")
	// ErrAllProvidersFailed means every enabled provider was tried and failed.
	ErrAllProvidersFailed = errors.New("all providers failed")
	// ErrEmptyResult is wrapped in a ProviderError when a provider returns nothing.
	ErrEmptyResult = errors.New("empty result set")
)

// Provider is one external news API. Fetch returns raw (not yet normalised) articles
// for a canonical category and fails with a *ProviderError.
type Provider interface {
	Descriptor() model.ProviderDescriptor
	Fetch(ctx context.Context, category string, limit int) ([]model.Article, error)
}

// ProviderError is any failure of a single provider: transport, HTTP status,
// unparsable payload or an empty result.
type ProviderError struct {
	Provider string
	Category string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s (%s): %v", e.Provider, e.Category, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func providerError(provider, category string, err error) error {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}
	return &ProviderError{Provider: provider, Category: category, Err: err}
}

// CategoryMap translates canonical categories into a provider's own vocabulary.
// Categories without a mapping pass through unchanged.
type CategoryMap map[string]string

func (m CategoryMap) Translate(category string) string {
	if native, ok := m[category]; ok {
		return native
	}
	return category
}
