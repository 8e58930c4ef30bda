package retrieval

import (
	"fmt"
	"time"

	"github.com/kovalyov-valentin/news-retriever/internal/model"
	"github.com/kovalyov-valentin/news-retriever/internal/source"
)

const (
	maxSynthetic        = 5
	syntheticSourceName = "News Retriever"
)

var categoryLabels = map[string]string{
	model.CategoryWorld:         "World",
	model.CategoryCrypto:        "Crypto",
	model.CategoryTechnology:    "Technology",
	model.CategoryBusiness:      "Business",
	model.CategorySports:        "Sports",
	model.CategoryEntertainment: "Entertainment",
	model.CategoryHealth:        "Health",
	model.CategoryPolitics:      "Politics",
	model.CategoryLocal:         "Local",
	model.CategoryAI:            "AI",
	model.CategoryGeneral:       "General",
}

// SyntheticTitle is the title template of placeholder article n (1-based).
func SyntheticTitle(category string, n int) string {
	label, ok := categoryLabels[category]
	if !ok {
		label = categoryLabels[model.CategoryGeneral]
	}
	return fmt.Sprintf("Latest %s headlines #%d", label, n)
}

// Synthetic builds min(limit, 5) placeholder articles, at least one.
func Synthetic(category string, limit int, now time.Time) []model.Article {
	n := min(max(limit, 1), maxSynthetic)

	articles := make([]model.Article, n)
	for i := range articles {
		articles[i] = model.Article{
			ID:          fmt.Sprintf("synthetic-%s-%d", category, i+1),
			Title:       SyntheticTitle(category, i+1),
			Description: "Live coverage is temporarily unavailable. Check back shortly for fresh stories.",
			ImageURL:    source.PlaceholderImageURL,
			PublishedAt: now.Add(-time.Duration(i) * time.Minute),
			SourceName:  syntheticSourceName,
			Category:    category,
		}
	}

	return articles
}
