package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kovalyov-valentin/news-retriever/internal/config"
	"github.com/kovalyov-valentin/news-retriever/internal/model"
)

func serve(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestNewsAPIFetch(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/top-headlines", r.URL.Path)
		assert.Equal(t, "business", r.URL.Query().Get("category"), "crypto maps to business")
		assert.Equal(t, "5", r.URL.Query().Get("pageSize"))
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		assert.Empty(t, r.URL.Query().Get("apiKey"), "the key travels in a header")

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"status": "ok",
			"articles": [
				{"source": {"name": "CoinDesk"}, "title": "Bitcoin climbs", "description": "Up again.",
				 "url": "https://coindesk.example/btc", "urlToImage": "https://img.example/btc.png",
				 "publishedAt": "2024-05-01T10:00:00Z"},
				{"source": {"name": ""}, "title": "[Removed]", "url": "https://removed.example"}
			]
		}`)
	})

	p := NewNewsAPI("secret", srv.Client())
	p.BaseURL = srv.URL

	got, err := p.Fetch(context.Background(), model.CategoryCrypto, 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Bitcoin climbs", got[0].Title)
	assert.Equal(t, "CoinDesk", got[0].SourceName)
	assert.Equal(t, "https://img.example/btc.png", got[0].ImageURL)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), got[0].PublishedAt)
}

func TestNewsAPIErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "api error status", status: http.StatusOK, body: `{"status":"error","code":"apiKeyInvalid","message":"bad key"}`},
		{name: "http error", status: http.StatusTooManyRequests, body: `{"status":"error"}`},
		{name: "empty", status: http.StatusOK, body: `{"status":"ok","articles":[]}`},
		{name: "garbage", status: http.StatusOK, body: `not json`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			})

			p := NewNewsAPI("secret", srv.Client())
			p.BaseURL = srv.URL

			_, err := p.Fetch(context.Background(), model.CategoryGeneral, 5)
			var pe *ProviderError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, "newsapi", pe.Provider)
		})
	}
}

// closedURL returns the address of a server that no longer accepts connections.
func closedURL(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	return srv.URL
}

func TestNewsAPIErrorDoesNotLeakKey(t *testing.T) {
	p := NewNewsAPI("SECRET-KEY-123", &http.Client{Timeout: time.Second})
	p.BaseURL = closedURL(t)

	_, err := p.Fetch(context.Background(), model.CategoryTechnology, 5)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "SECRET-KEY-123")
}

func TestGNewsErrorDoesNotLeakKey(t *testing.T) {
	p := NewGNews("SECRET-KEY-123", &http.Client{Timeout: time.Second})
	p.BaseURL = closedURL(t)

	_, err := p.Fetch(context.Background(), model.CategoryTechnology, 5)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "SECRET-KEY-123")
	assert.Contains(t, err.Error(), "apikey=REDACTED")
}

func TestGNewsFetch(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "nation", r.URL.Query().Get("category"))
		assert.Equal(t, "3", r.URL.Query().Get("max"))

		fmt.Fprint(w, `{
			"totalArticles": 1,
			"articles": [
				{"title": "Council votes", "description": "<p>The council voted.</p>",
				 "url": "https://local.example/vote", "image": "",
				 "publishedAt": "2024-05-01T09:30:00Z", "source": {"name": "Local Herald"}}
			]
		}`)
	})

	p := NewGNews("key", srv.Client())
	p.BaseURL = srv.URL

	got, err := p.Fetch(context.Background(), model.CategoryLocal, 3)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Council votes", got[0].Title)
	assert.Equal(t, "Local Herald", got[0].SourceName)
	assert.Equal(t, "", got[0].ImageURL, "placeholder is applied by the chain")
}

func TestGNewsReportedErrors(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"errors": ["You did not provide an API key."]}`)
	})

	p := NewGNews("key", srv.Client())
	p.BaseURL = srv.URL

	_, err := p.Fetch(context.Background(), model.CategoryGeneral, 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "You did not provide an API key.")
}

const googleNewsFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
<title>top stories - Google News</title>
<item>
  <title>Chip stocks surge - Example Times</title>
  <link>https://news.example/chips</link>
  <pubDate>Wed, 01 May 2024 08:00:00 GMT</pubDate>
  <description>&lt;a href="https://news.example/chips"&gt;Chip stocks surge&lt;/a&gt;</description>
</item>
<item>
  <title>Second story - Other Daily</title>
  <link>https://news.example/second</link>
  <pubDate>Wed, 01 May 2024 07:00:00 GMT</pubDate>
</item>
</channel>
</rss>`

func TestGoogleNewsFetch(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "technology", r.URL.Query().Get("q"))
		assert.Equal(t, "US:en", r.URL.Query().Get("ceid"))

		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, googleNewsFeed)
	})

	p := NewGoogleNews(true, "en-US", srv.Client())
	p.BaseURL = srv.URL

	got, err := p.Fetch(context.Background(), model.CategoryTechnology, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Chip stocks surge", got[0].Title)
	assert.Equal(t, "Example Times", got[0].SourceName)
	assert.Equal(t, time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC), got[0].PublishedAt)
}

func TestGoogleNewsDisabledByDefault(t *testing.T) {
	assert.False(t, NewGoogleNews(false, "", nil).Descriptor().Enabled)
}

const rssFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
<title>Example Sports</title>
<link>https://sports.example</link>
<description>Sports feed</description>
<item>
  <title>Older match</title>
  <link>https://sports.example/older</link>
  <description>Older recap.</description>
  <pubDate>Tue, 30 Apr 2024 08:00:00 GMT</pubDate>
</item>
<item>
  <title>Newer match</title>
  <link>https://sports.example/newer</link>
  <description>Newer recap.</description>
  <pubDate>Wed, 01 May 2024 08:00:00 GMT</pubDate>
  <enclosure url="https://sports.example/newer.jpg" type="image/jpeg" length="1"/>
</item>
</channel>
</rss>`

func TestRSSSourceFetch(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, rssFeed)
	})

	s := NewRSSSource(map[string][]string{model.CategorySports: {srv.URL}}, srv.Client(), false)
	require.True(t, s.Descriptor().Enabled)

	got, err := s.Fetch(context.Background(), model.CategorySports, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Newer match", got[0].Title, "newest first")
	assert.Equal(t, "https://sports.example/newer.jpg", got[0].ImageURL)
	assert.Equal(t, "Example Sports", got[0].SourceName)
	assert.Equal(t, "Older match", got[1].Title)
}

func TestRSSSourceExtractsExcerptsOnlyForKeptItems(t *testing.T) {
	var (
		base      string
		pageHits  atomic.Int32
		paragraph = strings.Repeat("The committee published its findings on Tuesday after a long review. ", 8)
	)
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/page/") {
			pageHits.Add(1)
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprintf(w, `<html><head><title>Report</title></head><body><article><h1>Report</h1><p>%s</p><p>%s</p></article></body></html>`, paragraph, paragraph)
			return
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Example Health</title><link>%[1]s</link><description>Health</description>
<item><title>First</title><link>%[1]s/page/1</link><pubDate>Wed, 01 May 2024 08:00:00 GMT</pubDate></item>
<item><title>Second</title><link>%[1]s/page/2</link><pubDate>Tue, 30 Apr 2024 08:00:00 GMT</pubDate></item>
<item><title>Third</title><link>%[1]s/page/3</link><pubDate>Mon, 29 Apr 2024 08:00:00 GMT</pubDate></item>
</channel></rss>`, base)
	})
	base = srv.URL

	s := NewRSSSource(map[string][]string{model.CategoryHealth: {srv.URL}}, srv.Client(), true)

	got, err := s.Fetch(context.Background(), model.CategoryHealth, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "First", got[0].Title)
	assert.Contains(t, got[0].Description, "committee published its findings")
	assert.EqualValues(t, 1, pageHits.Load(), "only the kept item's page is fetched")
}

func TestRSSSourceMissingCategory(t *testing.T) {
	s := NewRSSSource(map[string][]string{model.CategorySports: {"http://unused.invalid"}}, http.DefaultClient, false)

	_, err := s.Fetch(context.Background(), model.CategoryHealth, 10)
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "rss", pe.Provider)
}

func TestRegistry(t *testing.T) {
	cfg := config.Config{
		NewsAPIKey:      "key",
		ProviderTimeout: time.Second,
		RSSFeeds:        []string{"sports=https://sports.example/feed"},
	}

	providers := Registry(cfg, nil, nil)
	require.Len(t, providers, 4)

	enabled := map[string]bool{}
	for _, p := range providers {
		d := p.Descriptor()
		enabled[d.Name] = d.Enabled
	}
	assert.Equal(t, map[string]bool{
		"newsapi":    true,
		"gnews":      false,
		"googlenews": false,
		"rss":        true,
	}, enabled)
}
