package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kovalyov-valentin/news-retriever/internal/api"
	"github.com/kovalyov-valentin/news-retriever/internal/bot"
	"github.com/kovalyov-valentin/news-retriever/internal/bot/middleware"
	"github.com/kovalyov-valentin/news-retriever/internal/botkit"
	"github.com/kovalyov-valentin/news-retriever/internal/config"
	"github.com/kovalyov-valentin/news-retriever/internal/fetcher"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, the Telegram bot and the background refresher",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Get()

	return withApp(cmd, func(a *app) error {
		var newsBot *botkit.Bot
		if cfg.TelegramBotToken != "" {
			botAPI, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
			if err != nil {
				return err
			}

			newsBot = botkit.New(botAPI, logger)
			newsBot.RegisterCmdView("start", bot.ViewCmdStart())
			newsBot.RegisterCmdView("news", bot.ViewCmdNews(a.orchestrator))
			newsBot.RegisterCmdView(
				"stats",
				middleware.AdminOnly(cfg.TelegramAdminChatID, bot.ViewCmdStats(a.orchestrator)),
			)
			newsBot.RegisterCmdView(
				"clearcache",
				middleware.AdminOnly(cfg.TelegramAdminChatID, bot.ViewCmdClearCache(a.orchestrator)),
			)
			newsBot.RegisterCmdView(
				"refresh",
				middleware.AdminOnly(cfg.TelegramAdminChatID, bot.ViewCmdRefresh(a.orchestrator)),
			)
		}

		g, ctx := errgroup.WithContext(ctx)

		server := api.NewServer(a.orchestrator, api.Options{AdminToken: cfg.AdminToken, Logger: logger})
		g.Go(func() error {
			logger.Info("http server listening", "addr", cfg.HTTPAddr)
			if err := server.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})

		if newsBot != nil {
			g.Go(func() error {
				return ignoreCanceled(newsBot.Run(ctx), "bot")
			})
		}

		if cfg.RefreshInterval > 0 {
			refresher := fetcher.NewFetcher(a.orchestrator, cfg.RefreshInterval, cfg.RefreshCategories, logger)
			g.Go(func() error {
				return ignoreCanceled(refresher.Start(ctx), "refresher")
			})
		}

		return g.Wait()
	})
}

func ignoreCanceled(err error, worker string) error {
	if err == nil || errors.Is(err, context.Canceled) {
		logger.Info(worker + " stopped")
		return nil
	}
	return err
}
