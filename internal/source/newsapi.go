package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/samber/lo"

	"github.com/kovalyov-valentin/news-retriever/internal/model"
)

const newsAPIBaseURL = "https://newsapi.org/v2"

var newsAPICategories = CategoryMap{
	model.CategoryWorld:    "general",
	model.CategoryPolitics: "general",
	model.CategoryLocal:    "general",
	model.CategoryCrypto:   "business",
	model.CategoryAI:       "technology",
}

// NewsAPI is the newsapi.org top-headlines endpoint.
type NewsAPI struct {
	APIKey  string
	BaseURL string
	Client  *http.Client
}

func NewNewsAPI(apiKey string, client *http.Client) *NewsAPI {
	return &NewsAPI{APIKey: apiKey, BaseURL: newsAPIBaseURL, Client: client}
}

func (p *NewsAPI) Descriptor() model.ProviderDescriptor {
	return model.ProviderDescriptor{
		Name:       "newsapi",
		Priority:   1,
		DailyLimit: 100,
		Enabled:    p.APIKey != "",
	}
}

func (p *NewsAPI) FallbackSource() string {
	return "NewsAPI"
}

type newsAPIResponse struct {
	Status   string           `json:"status"`
	Code     string           `json:"code"`
	Message  string           `json:"message"`
	Articles []newsAPIArticle `json:"articles"`
}

type newsAPIArticle struct {
	Source struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"source"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	URLToImage  string `json:"urlToImage"`
	PublishedAt string `json:"publishedAt"`
}

func (p *NewsAPI) Fetch(ctx context.Context, category string, limit int) ([]model.Article, error) {
	q := url.Values{}
	q.Set("category", newsAPICategories.Translate(category))
	q.Set("language", "en")
	q.Set("pageSize", strconv.Itoa(limit))

	header := http.Header{}
	header.Set("X-Api-Key", p.APIKey)

	var resp newsAPIResponse
	if err := getJSON(ctx, p.Client, p.BaseURL+"/top-headlines?"+q.Encode(), header, &resp); err != nil {
		return nil, providerError("newsapi", category, err)
	}
	if resp.Status != "ok" {
		return nil, providerError("newsapi", category, fmt.Errorf("api error %s: %s", resp.Code, resp.Message))
	}
	if len(resp.Articles) == 0 {
		return nil, providerError("newsapi", category, ErrEmptyResult)
	}

	articles := lo.FilterMap(resp.Articles, func(a newsAPIArticle, _ int) (model.Article, bool) {
		// NewsAPI marks withdrawn items this way.
		if a.Title == "[Removed]" {
			return model.Article{}, false
		}
		return model.Article{
			Title:       a.Title,
			Description: a.Description,
			URL:         a.URL,
			ImageURL:    a.URLToImage,
			PublishedAt: parseDate(a.PublishedAt),
			SourceName:  a.Source.Name,
		}, true
	})
	if len(articles) == 0 {
		return nil, providerError("newsapi", category, errors.New("only removed articles"))
	}

	return articles, nil
}
