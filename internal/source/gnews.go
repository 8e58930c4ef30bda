package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/kovalyov-valentin/news-retriever/internal/model"
)

const gnewsBaseURL = "https://gnews.io/api/v4"

var gnewsCategories = CategoryMap{
	model.CategoryLocal:    "nation",
	model.CategoryPolitics: "nation",
	model.CategoryCrypto:   "business",
	model.CategoryAI:       "technology",
}

// GNews is the gnews.io top-headlines endpoint.
type GNews struct {
	APIKey  string
	BaseURL string
	Client  *http.Client
}

func NewGNews(apiKey string, client *http.Client) *GNews {
	return &GNews{APIKey: apiKey, BaseURL: gnewsBaseURL, Client: client}
}

func (p *GNews) Descriptor() model.ProviderDescriptor {
	return model.ProviderDescriptor{
		Name:       "gnews",
		Priority:   2,
		DailyLimit: 100,
		Enabled:    p.APIKey != "",
	}
}

func (p *GNews) FallbackSource() string {
	return "GNews"
}

type gnewsResponse struct {
	Errors   []string       `json:"errors"`
	Articles []gnewsArticle `json:"articles"`
}

type gnewsArticle struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Image       string `json:"image"`
	PublishedAt string `json:"publishedAt"`
	Source      struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	} `json:"source"`
}

func (p *GNews) Fetch(ctx context.Context, category string, limit int) ([]model.Article, error) {
	q := url.Values{}
	q.Set("category", gnewsCategories.Translate(category))
	q.Set("lang", "en")
	q.Set("max", strconv.Itoa(limit))
	q.Set("apikey", p.APIKey)

	var resp gnewsResponse
	if err := getJSON(ctx, p.Client, p.BaseURL+"/top-headlines?"+q.Encode(), nil, &resp); err != nil {
		return nil, providerError("gnews", category, err)
	}
	if len(resp.Errors) > 0 {
		return nil, providerError("gnews", category, fmt.Errorf("api error: %s", strings.Join(resp.Errors, "; ")))
	}
	if len(resp.Articles) == 0 {
		return nil, providerError("gnews", category, ErrEmptyResult)
	}

	return lo.Map(resp.Articles, func(a gnewsArticle, _ int) model.Article {
		return model.Article{
			Title:       a.Title,
			Description: a.Description,
			URL:         a.URL,
			ImageURL:    a.Image,
			PublishedAt: parseDate(a.PublishedAt),
			SourceName:  a.Source.Name,
		}
	}), nil
}
