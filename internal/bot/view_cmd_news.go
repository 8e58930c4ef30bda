package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/samber/lo"

	"github.com/kovalyov-valentin/news-retriever/internal/botkit"
	"github.com/kovalyov-valentin/news-retriever/internal/botkit/markup"
	"github.com/kovalyov-valentin/news-retriever/internal/model"
)

// Telegram messages get unwieldy past this.
const maxNewsInChat = 10

type NewsGetter interface {
	GetNews(ctx context.Context, category string, limit int) []model.Article
}

// ViewCmdNews handles "/news <category> [limit]".
func ViewCmdNews(getter NewsGetter) botkit.ViewFunc {
	return func(ctx context.Context, bot botkit.API, update tgbotapi.Update) error {
		args := strings.Fields(update.Message.CommandArguments())
		if len(args) == 0 {
			return reply(bot, update, markup.EscapeForMarkdown("Usage: /news <category> [limit]\n\nCategories: "+strings.Join(model.Categories, ", ")))
		}

		category := model.NormalizeCategory(args[0])
		limit := 5
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n < 1 {
				return reply(bot, update, markup.EscapeForMarkdown("Limit must be a positive number."))
			}
			limit = min(n, maxNewsInChat)
		}

		articles := getter.GetNews(ctx, category, limit)

		return reply(bot, update, fmt.Sprintf(
			"%s\n\n%s",
			markup.Bold(fmt.Sprintf("%s news (%d)", category, len(articles))),
			strings.Join(lo.Map(articles, func(a model.Article, _ int) string {
				return formatArticle(a)
			}), "\n\n"),
		))
	}
}

func formatArticle(a model.Article) string {
	lines := []string{"📰 " + markup.Bold(a.Title)}
	if a.Description != "" {
		lines = append(lines, markup.EscapeForMarkdown(a.Description))
	}
	lines = append(lines, markup.EscapeForMarkdown(a.SourceName+" · "+a.PublishedAt.Format("02 Jan 15:04")))
	if a.URL != "" {
		lines = append(lines, markup.EscapeForMarkdown(a.URL))
	}
	return strings.Join(lines, "\n")
}

func reply(bot botkit.API, update tgbotapi.Update, text string) error {
	msg := tgbotapi.NewMessage(update.Message.Chat.ID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	msg.DisableWebPagePreview = true

	if _, err := bot.Send(msg); err != nil {
		return err
	}
	return nil
}
