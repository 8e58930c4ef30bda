package source

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/kovalyov-valentin/news-retriever/internal/model"
)

const googleNewsBaseURL = "https://news.google.com/rss"

// Google News has no category endpoint for most of the vocabulary, so categories
// become search queries.
var googleNewsQueries = CategoryMap{
	model.CategoryWorld:         "world news",
	model.CategoryCrypto:        "cryptocurrency OR bitcoin",
	model.CategoryTechnology:    "technology",
	model.CategoryBusiness:      "business",
	model.CategorySports:        "sports",
	model.CategoryEntertainment: "entertainment",
	model.CategoryHealth:        "health",
	model.CategoryPolitics:      "politics",
	model.CategoryLocal:         "local news",
	model.CategoryAI:            "\"artificial intelligence\"",
	model.CategoryGeneral:       "top stories",
}

// GoogleNews reads the Google News search RSS feed.
type GoogleNews struct {
	Enabled bool
	Locale  string
	BaseURL string
	parser  *gofeed.Parser
}

func NewGoogleNews(enabled bool, locale string, client *http.Client) *GoogleNews {
	parser := gofeed.NewParser()
	parser.Client = client
	parser.UserAgent = userAgent

	if locale == "" {
		locale = "en-US"
	}

	return &GoogleNews{
		Enabled: enabled,
		Locale:  locale,
		BaseURL: googleNewsBaseURL,
		parser:  parser,
	}
}

func (p *GoogleNews) Descriptor() model.ProviderDescriptor {
	return model.ProviderDescriptor{
		Name:     "googlenews",
		Priority: 3,
		Enabled:  p.Enabled,
	}
}

func (p *GoogleNews) FallbackSource() string {
	return "Google News"
}

func (p *GoogleNews) Fetch(ctx context.Context, category string, limit int) ([]model.Article, error) {
	feed, err := p.parser.ParseURLWithContext(p.searchURL(category), ctx)
	if err != nil {
		return nil, providerError("googlenews", category, err)
	}
	if len(feed.Items) == 0 {
		return nil, providerError("googlenews", category, ErrEmptyResult)
	}

	articles := make([]model.Article, 0, min(limit, len(feed.Items)))
	for _, item := range feed.Items {
		if len(articles) == limit {
			break
		}

		a := model.Article{
			Title:       item.Title,
			Description: item.Description,
			URL:         item.Link,
		}
		if item.PublishedParsed != nil {
			a.PublishedAt = item.PublishedParsed.UTC()
		}
		if item.Image != nil {
			a.ImageURL = item.Image.URL
		}
		// Titles come as "Headline - Publisher".
		if i := strings.LastIndex(item.Title, " - "); i > 0 {
			a.Title = item.Title[:i]
			a.SourceName = item.Title[i+3:]
		}

		articles = append(articles, a)
	}

	return articles, nil
}

func (p *GoogleNews) searchURL(category string) string {
	lang, region, _ := strings.Cut(p.Locale, "-")
	if region == "" {
		region = strings.ToUpper(lang)
	}

	q := url.Values{}
	q.Set("q", googleNewsQueries.Translate(category))
	q.Set("hl", p.Locale)
	q.Set("gl", region)
	q.Set("ceid", region+":"+lang)

	return p.BaseURL + "/search?" + q.Encode()
}
