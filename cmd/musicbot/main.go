package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/NikitaDmitryuk/telegram-music-bot/internal/app"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/bot"
	tmbconfig "github.com/NikitaDmitryuk/telegram-music-bot/internal/config"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/logutils"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/shutdown"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	config, err := tmbconfig.NewConfig()
	if err != nil {
		logutils.Log.WithError(err).Fatal("Failed to initialize configuration")
	}

	logutils.InitLogger(config.LogLevel)
	logutils.Log.WithFields(map[string]any{
		"version":    Version,
		"build_time": BuildTime,
	}).Info("Starting Telegram Music Bot")

	application, err := app.New(config)
	if err != nil {
		logutils.Log.WithError(err).Fatal("Bot initialization failed")
	}
	telegram := application.Bot.(*bot.Bot)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application.RegisterCommands()
	application.StartBackground(ctx)

	shutdownManager := shutdown.NewManager(app.ShutdownTimeout)

	if config.WebhookSettings.URL != "" {
		server := application.NewWebhookServer()
		shutdownManager.Register(server)

		go func() {
			if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logutils.Log.WithError(err).Error("Webhook server stopped")
				stop()
			}
		}()
		if err := telegram.SetWebhook(config.WebhookSettings.URL); err != nil {
			logutils.Log.WithError(err).Fatal("Failed to register webhook")
		}
		logutils.Log.WithField("url", config.WebhookSettings.URL).Info("Telegram Music Bot started in webhook mode")
	} else {
		go func() {
			if err := application.RunPolling(ctx, telegram); err != nil {
				logutils.Log.WithError(err).Error("Update polling stopped")
				stop()
			}
		}()
		logutils.Log.Info("Telegram Music Bot started in polling mode")
	}

	application.RegisterShutdown(shutdownManager)

	if err := shutdownManager.WaitForShutdown(ctx); err != nil {
		logutils.Log.WithError(err).Error("Graceful shutdown completed with errors")
		os.Exit(1)
	}
	logutils.Log.Info("Telegram Music Bot shutdown complete")
}
