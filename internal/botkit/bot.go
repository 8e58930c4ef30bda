package botkit

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const updateTimeout = 5 * time.Second

// API is the part of the Telegram client views talk to. *tgbotapi.BotAPI satisfies it.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetChatAdministrators(config tgbotapi.ChatAdministratorsConfig) ([]tgbotapi.ChatMember, error)
}

// Client additionally receives updates.
type Client interface {
	API
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
}

// ViewFunc reacts to one command.
type ViewFunc func(ctx context.Context, bot API, update tgbotapi.Update) error

type Bot struct {
	api      Client
	cmdViews map[string]ViewFunc
	logger   *slog.Logger
}

func New(api Client, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}

	return &Bot{
		api:    api,
		logger: logger,
	}
}

// RegisterCmdView routes /cmd to view.
func (b *Bot) RegisterCmdView(cmd string, view ViewFunc) {
	if b.cmdViews == nil {
		b.cmdViews = make(map[string]ViewFunc)
	}

	b.cmdViews[cmd] = view
}

// Run handles updates one at a time until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			updateCtx, updateCancel := context.WithTimeout(ctx, updateTimeout)
			b.handleUpdate(updateCtx, update)
			updateCancel()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	// A panicking view must not take the bot down.
	defer func() {
		if p := recover(); p != nil {
			b.logger.ErrorContext(ctx, "panic recovered", "panic", p, "stack", string(debug.Stack()))
		}
	}()

	if update.Message == nil || !update.Message.IsCommand() {
		return
	}

	cmd := update.Message.Command()

	view, ok := b.cmdViews[cmd]
	if !ok {
		return
	}

	if err := view(ctx, b.api, update); err != nil {
		b.logger.ErrorContext(ctx, "failed to handle update", "command", cmd, "error", err)

		if _, err := b.api.Send(
			tgbotapi.NewMessage(update.Message.Chat.ID, "internal error"),
		); err != nil {
			b.logger.ErrorContext(ctx, "failed to send message", "error", err)
		}
	}
}
