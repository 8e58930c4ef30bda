package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/kovalyov-valentin/news-retriever/internal/botkit"
	"github.com/kovalyov-valentin/news-retriever/internal/botkit/markup"
	"github.com/kovalyov-valentin/news-retriever/internal/model"
)

type CacheClearer interface {
	ClearCache(ctx context.Context) error
}

type CategoryRefresher interface {
	RefreshCategory(ctx context.Context, category string) []model.Article
}

func ViewCmdClearCache(clearer CacheClearer) botkit.ViewFunc {
	return func(ctx context.Context, bot botkit.API, update tgbotapi.Update) error {
		if err := clearer.ClearCache(ctx); err != nil {
			return err
		}

		return reply(bot, update, "Cache cleared")
	}
}

// ViewCmdRefresh handles "/refresh <category>".
func ViewCmdRefresh(refresher CategoryRefresher) botkit.ViewFunc {
	return func(ctx context.Context, bot botkit.API, update tgbotapi.Update) error {
		category := strings.ToLower(strings.TrimSpace(update.Message.CommandArguments()))
		if !model.IsCategory(category) {
			return reply(bot, update, markup.EscapeForMarkdown("Usage: /refresh <category>\n\nCategories: "+strings.Join(model.Categories, ", ")))
		}

		articles := refresher.RefreshCategory(ctx, category)

		return reply(bot, update, markup.EscapeForMarkdown(fmt.Sprintf("Refreshed %s: %d articles", category, len(articles))))
	}
}

func ViewCmdStart() botkit.ViewFunc {
	return func(_ context.Context, bot botkit.API, update tgbotapi.Update) error {
		return reply(bot, update, markup.EscapeForMarkdown(strings.Join([]string{
			"/news <category> [limit] - latest articles",
			"/stats - cache and quota usage",
			"/clearcache - drop every cached category",
			"/refresh <category> - force a provider fetch",
		}, "\n")))
	}
}
