package bot

import (
	"context"
	"fmt"
	"sort"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/samber/lo"

	"github.com/kovalyov-valentin/news-retriever/internal/botkit"
	"github.com/kovalyov-valentin/news-retriever/internal/botkit/markup"
	"github.com/kovalyov-valentin/news-retriever/internal/model"
)

type StatsProvider interface {
	Stats(ctx context.Context) model.Stats
}

func ViewCmdStats(provider StatsProvider) botkit.ViewFunc {
	return func(ctx context.Context, bot botkit.API, update tgbotapi.Update) error {
		return reply(bot, update, formatStats(provider.Stats(ctx)))
	}
}

func formatStats(stats model.Stats) string {
	q := stats.QuotaStatus

	var b strings.Builder
	b.WriteString(markup.Bold("Quota") + "\n")
	b.WriteString(markup.EscapeForMarkdown(fmt.Sprintf(
		"%d/%d used, %d left, resets in %.1fh", q.Used, q.Limit, q.Remaining, q.ResetInHours,
	)))

	b.WriteString("\n\n" + markup.Bold("Cache") + "\n")
	if len(stats.CacheStats) == 0 {
		b.WriteString("empty")
	}
	categories := lo.Keys(stats.CacheStats)
	sort.Strings(categories)
	for _, category := range categories {
		s := stats.CacheStats[category]
		line := fmt.Sprintf("%s: %d articles, %.0fs old", category, s.Count, s.AgeSeconds)
		if s.Expired {
			line += " (stale)"
		}
		b.WriteString(markup.EscapeForMarkdown(line) + "\n")
	}

	b.WriteString("\n" + markup.Bold("Providers") + "\n")
	for _, p := range stats.Providers {
		state := "off"
		if p.Enabled {
			state = "on"
		}
		b.WriteString(markup.EscapeForMarkdown(fmt.Sprintf("%d. %s: %s", p.Priority, p.Name, state)) + "\n")
	}

	return strings.TrimRight(b.String(), "\n")
}
