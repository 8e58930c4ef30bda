package source

import (
	"log/slog"
	"net/http"

	"github.com/kovalyov-valentin/news-retriever/internal/config"
)

// Registry builds every known provider from configuration. Providers whose
// credentials are missing are still returned, disabled, so they show up in stats.
func Registry(cfg config.Config, client *http.Client, logger *slog.Logger) []Provider {
	if client == nil {
		client = &http.Client{Timeout: cfg.ProviderTimeout}
	}

	rssSource := NewRSSSource(cfg.FeedsByCategory(), client, cfg.RSSFetchExcerpts)
	if logger != nil {
		rssSource.Logger = logger
	}

	providers := []Provider{
		NewNewsAPI(cfg.NewsAPIKey, client),
		NewGNews(cfg.GNewsKey, client),
		NewGoogleNews(cfg.GoogleNewsEnabled, cfg.GoogleNewsLocale, client),
		rssSource,
	}

	for _, p := range providers {
		d := p.Descriptor()
		if logger != nil {
			logger.Info("provider registered", "provider", d.Name, "priority", d.Priority, "enabled", d.Enabled)
		}
	}

	return providers
}
