package model

import (
	"strings"
	"time"

	"github.com/tomakado/containers/set"
)

// Canonical category vocabulary shared by callers and providers.
const (
	CategoryWorld         = "world"
	CategoryCrypto        = "crypto"
	CategoryTechnology    = "technology"
	CategoryBusiness      = "business"
	CategorySports        = "sports"
	CategoryEntertainment = "entertainment"
	CategoryHealth        = "health"
	CategoryPolitics      = "politics"
	CategoryLocal         = "local"
	CategoryAI            = "ai"
	CategoryGeneral       = "general"
)

// Categories lists the vocabulary in a stable order.
var Categories = []string{
	CategoryWorld,
	CategoryCrypto,
	CategoryTechnology,
	CategoryBusiness,
	CategorySports,
	CategoryEntertainment,
	CategoryHealth,
	CategoryPolitics,
	CategoryLocal,
	CategoryAI,
	CategoryGeneral,
}

var categorySet = set.New(Categories...)

// IsCategory reports whether c belongs to the canonical vocabulary.
func IsCategory(c string) bool {
	return categorySet.Contains(c)
}

// NormalizeCategory lowercases c and maps anything outside the vocabulary to general.
func NormalizeCategory(c string) string {
	c = strings.ToLower(strings.TrimSpace(c))
	if !IsCategory(c) {
		return CategoryGeneral
	}
	return c
}

// Article is a normalised news item, whatever provider it came from.
type Article struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	ImageURL    string    `json:"imageUrl"`
	PublishedAt time.Time `json:"publishedAt"`
	SourceName  string    `json:"sourceName"`
	Category    string    `json:"category"`
}

// CacheEntry is the persisted value of one cache:<category> key.
type CacheEntry struct {
	Category  string    `json:"category"`
	Articles  []Article `json:"articles"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether the entry is stale at now.
func (e CacheEntry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// QuotaState is the persisted value of the quota key.
type QuotaState struct {
	Count   int       `json:"count"`
	ResetAt time.Time `json:"resetAt"`
}

// QuotaStatus is a read-only view of the daily external call budget.
type QuotaStatus struct {
	Used         int     `json:"used"`
	Limit        int     `json:"limit"`
	Remaining    int     `json:"remaining"`
	ResetInHours float64 `json:"resetInHours"`
}

// CacheStat describes one cached category.
type CacheStat struct {
	Count      int     `json:"count"`
	AgeSeconds float64 `json:"age"`
	Expired    bool    `json:"expired"`
}

// ProviderDescriptor is the static description of an external provider.
type ProviderDescriptor struct {
	Name       string `json:"name"`
	Priority   int    `json:"priority"`
	DailyLimit int    `json:"dailyLimit"`
	Enabled    bool   `json:"enabled"`
}

// Stats is the admin view of the retrieval subsystem.
type Stats struct {
	CacheStats  map[string]CacheStat `json:"cacheStats"`
	QuotaStatus QuotaStatus          `json:"quotaStatus"`
	Providers   []ProviderDescriptor `json:"providers"`
}
