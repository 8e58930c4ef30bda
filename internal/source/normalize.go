package source

import (
	"crypto/sha256"
	"fmt"
	"html"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"github.com/kovalyov-valentin/news-retriever/internal/model"
)

const (
	// MaxDescriptionLength is the snippet budget in characters.
	MaxDescriptionLength = 150
	// PlaceholderImageURL substitutes a missing article image.
	PlaceholderImageURL = "https://placehold.co/600x400?text=News"

	ellipsis = "..."
)

var strictPolicy = bluemonday.StrictPolicy()

// Normalize applies the rules every provider result goes through: plain-text
// snippet within budget, placeholder image, fallback source name and a
// deterministic id when the provider has none.
func Normalize(articles []model.Article, provider, fallbackSource, category string, now time.Time) []model.Article {
	out := make([]model.Article, 0, len(articles))
	for _, a := range articles {
		a.Title = cleanText(a.Title)
		if a.Title == "" && a.URL == "" {
			continue
		}

		a.Description = Snippet(a.Description)
		if strings.TrimSpace(a.ImageURL) == "" {
			a.ImageURL = PlaceholderImageURL
		}
		if strings.TrimSpace(a.SourceName) == "" {
			a.SourceName = fallbackSource
		}
		if a.PublishedAt.IsZero() {
			a.PublishedAt = now
		}
		a.Category = category
		if a.ID == "" {
			a.ID = ArticleID(provider, a.URL, a.Title)
		}

		out = append(out, a)
	}

	return out
}

// Snippet strips markup and clips s to MaxDescriptionLength characters, cutting
// after the last sentence terminator inside the budget when there is one.
func Snippet(s string) string {
	s = cleanText(s)
	if utf8.RuneCountInString(s) <= MaxDescriptionLength {
		return s
	}

	runes := []rune(s)[:MaxDescriptionLength]
	if cut := lastSentenceEnd(runes); cut > 0 {
		return strings.TrimSpace(string(runes[:cut]))
	}

	hard := strings.TrimSpace(string(runes[:MaxDescriptionLength-len(ellipsis)]))
	return hard + ellipsis
}

// lastSentenceEnd returns the length of the prefix ending at the last '.', '!' or '?'
// that is followed by whitespace or the end of the budget, or 0.
func lastSentenceEnd(runes []rune) int {
	for i := len(runes) - 1; i > 0; i-- {
		switch runes[i] {
		case '.', '!', '?':
			if i == len(runes)-1 || runes[i+1] == ' ' {
				return i + 1
			}
		}
	}
	return 0
}

// ArticleID derives a stable id from the provider and the article link (or title).
func ArticleID(provider, url, title string) string {
	basis := url
	if basis == "" {
		basis = title
	}
	h := sha256.Sum256([]byte(provider + "|" + basis))
	return fmt.Sprintf("%s-%x", provider, h[:12])
}

func cleanText(s string) string {
	if strings.ContainsAny(s, "<&") {
		s = html.UnescapeString(strictPolicy.Sanitize(s))
	}
	return strings.Join(strings.Fields(s), " ")
}
