package middleware

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/kovalyov-valentin/news-retriever/internal/botkit"
)

// AdminOnly lets the command through only for administrators of chatID.
func AdminOnly(chatID int64, next botkit.ViewFunc) botkit.ViewFunc {
	return func(ctx context.Context, bot botkit.API, update tgbotapi.Update) error {
		if update.Message.From != nil {
			admins, err := bot.GetChatAdministrators(
				tgbotapi.ChatAdministratorsConfig{
					ChatConfig: tgbotapi.ChatConfig{
						ChatID: chatID,
					},
				},
			)
			if err != nil {
				return err
			}

			for _, admin := range admins {
				if admin.User != nil && admin.User.ID == update.Message.From.ID {
					return next(ctx, bot, update)
				}
			}
		}

		if _, err := bot.Send(tgbotapi.NewMessage(update.Message.Chat.ID, "You are not allowed to run this command")); err != nil {
			return err
		}
		return nil
	}
}
