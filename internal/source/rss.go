package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/SlyMarbo/rss"
	"github.com/go-shiori/go-readability"

	"github.com/kovalyov-valentin/news-retriever/internal/model"
)

var rssCategories = CategoryMap{
	model.CategoryPolitics: model.CategoryWorld,
}

// RSSSource reads configured RSS/Atom feeds, one or more per category.
type RSSSource struct {
	// category -> feed URLs
	Feeds  map[string][]string
	Client *http.Client
	// When set, items without a summary get one extracted from the linked page.
	FetchExcerpts  bool
	ExcerptTimeout time.Duration
	Logger         *slog.Logger
}

func NewRSSSource(feeds map[string][]string, client *http.Client, fetchExcerpts bool) *RSSSource {
	return &RSSSource{
		Feeds:          feeds,
		Client:         client,
		FetchExcerpts:  fetchExcerpts,
		ExcerptTimeout: 5 * time.Second,
		Logger:         slog.Default(),
	}
}

func (s *RSSSource) Descriptor() model.ProviderDescriptor {
	return model.ProviderDescriptor{
		Name:     "rss",
		Priority: 4,
		Enabled:  len(s.Feeds) > 0,
	}
}

func (s *RSSSource) FallbackSource() string {
	return "RSS"
}

func (s *RSSSource) Fetch(ctx context.Context, category string, limit int) ([]model.Article, error) {
	urls := s.Feeds[rssCategories.Translate(category)]
	if len(urls) == 0 {
		return nil, providerError("rss", category, errors.New("no feed configured for category"))
	}

	var (
		articles []model.Article
		errs     []error
	)
	for _, feedURL := range urls {
		feed, err := s.loadFeed(ctx, feedURL)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", feedURL, err))
			continue
		}

		for _, item := range feed.Items {
			articles = append(articles, toArticle(feed, item))
		}
	}

	if len(articles) == 0 {
		if len(errs) > 0 {
			return nil, providerError("rss", category, errors.Join(errs...))
		}
		return nil, providerError("rss", category, ErrEmptyResult)
	}

	sort.SliceStable(articles, func(i, j int) bool {
		return articles[i].PublishedAt.After(articles[j].PublishedAt)
	})
	if len(articles) > limit {
		articles = articles[:limit]
	}

	if s.FetchExcerpts {
		for i := range articles {
			if articles[i].Description == "" && articles[i].URL != "" && ctx.Err() == nil {
				articles[i].Description = s.excerpt(ctx, articles[i].URL)
			}
		}
	}

	return articles, nil
}

func toArticle(feed *rss.Feed, item *rss.Item) model.Article {
	a := model.Article{
		Title:       item.Title,
		Description: item.Summary,
		URL:         item.Link,
		PublishedAt: item.Date.UTC(),
		SourceName:  feed.Title,
	}
	if a.Description == "" {
		a.Description = item.Content
	}

	for _, enclosure := range item.Enclosures {
		if strings.HasPrefix(enclosure.Type, "image/") {
			a.ImageURL = enclosure.URL
			break
		}
	}

	return a
}

// excerpt extracts a readable summary from the article page; failures yield "".
func (s *RSSSource) excerpt(ctx context.Context, link string) string {
	ctx, cancel := context.WithTimeout(ctx, s.ExcerptTimeout)
	defer cancel()

	article, err := s.readPage(ctx, link)
	if err != nil {
		s.Logger.DebugContext(ctx, "rss excerpt extraction failed", "url", link, "error", err)
		return ""
	}

	if article.Excerpt != "" {
		return article.Excerpt
	}
	return article.TextContent
}

func (s *RSSSource) readPage(ctx context.Context, link string) (readability.Article, error) {
	pageURL, err := url.Parse(link)
	if err != nil {
		return readability.Article{}, fmt.Errorf("parsing url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return readability.Article{}, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return readability.Article{}, fmt.Errorf("fetching page: %w", redactError(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return readability.Article{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return readability.FromReader(io.LimitReader(resp.Body, maxResponseSize), pageURL)
}

// loadFeed fetches one feed, giving up when ctx is done.
func (s *RSSSource) loadFeed(ctx context.Context, feedURL string) (*rss.Feed, error) {
	var (
		feedCh = make(chan *rss.Feed, 1)
		errCh  = make(chan error, 1)
	)

	go func() {
		feed, err := rss.FetchByClient(feedURL, s.Client)
		if err != nil {
			errCh <- err
			return
		}

		feedCh <- feed
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case err := <-errCh:
		return nil, err
	case feed := <-feedCh:
		return feed, nil
	}
}
