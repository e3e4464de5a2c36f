package app

import (
	"context"
	"time"

	"github.com/NikitaDmitryuk/telegram-music-bot/internal/bot"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/config"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/database"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/downloader"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/downloader/manager"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/handlers"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/lang"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/logutils"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/process"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/ratelimit"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/shutdown"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/transport/webhook"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/utils"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/workspace"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// App holds the bot's long-lived components.
type App struct {
	Config     *config.Config
	Bot        bot.Service
	Handler    *handlers.Handler
	Downloads  *manager.DownloadManager
	Workspaces *workspace.Manager
	Journal    database.Journal

	updater downloader.Updater
}

// New connects to Telegram and assembles the app around the real bot and the OS executor.
func New(cfg *config.Config) (*App, error) {
	b, err := bot.NewBot(cfg)
	if err != nil {
		return nil, err
	}
	return Assemble(cfg, b, process.NewOSExecutor())
}

// Assemble wires every component except the Telegram connection, which tests replace.
func Assemble(cfg *config.Config, b bot.Service, executor process.Executor) (*App, error) {
	if err := lang.SetupLang(cfg.Lang); err != nil {
		return nil, utils.WrapError(err, "failed to load translations", map[string]any{"lang": cfg.Lang})
	}

	workspaces, err := workspace.NewManager(cfg.TempDir)
	if err != nil {
		return nil, err
	}

	journal, err := database.NewJournal(cfg)
	if err != nil {
		return nil, err
	}

	downloads := manager.NewDownloadManager(cfg.DownloadSettings)
	logutils.Log.WithField("slots", downloads.Slots()).Info("Download manager initialized")

	handler := handlers.New(cfg, handlers.Deps{
		Bot:        b,
		Registry:   NewRegistry(cfg, executor),
		Workspaces: workspaces,
		Downloads:  downloads,
		Limiter:    ratelimit.New(cfg.RateLimitPerMinute),
		Journal:    journal,
	})

	return &App{
		Config:     cfg,
		Bot:        b,
		Handler:    handler,
		Downloads:  downloads,
		Workspaces: workspaces,
		Journal:    journal,
		updater:    NewUpdater(cfg, executor),
	}, nil
}

// StartBackground removes workspaces left by a previous run and starts the janitor
// and the yt-dlp updater. Everything stops with ctx.
func (a *App) StartBackground(ctx context.Context) {
	if removed, err := a.Workspaces.Sweep(a.Config.CleanupSettings.MaxAge); err != nil {
		logutils.Log.WithError(err).Warn("Startup workspace sweep failed")
	} else if removed > 0 {
		logutils.Log.WithField("removed", removed).Info("Removed workspaces left by a previous run")
	}

	go a.Workspaces.StartJanitor(ctx, a.Config.CleanupSettings.Interval, a.Config.CleanupSettings.MaxAge)

	go downloader.StartPeriodicUpdater(ctx,
		a.Config.ToolSettings.YtdlpUpdateInterval,
		a.Config.ToolSettings.YtdlpUpdateOnStart,
		a.updater)
}

// BotCommands is the translated command menu.
func BotCommands() []tgbotapi.BotCommand {
	names := handlers.Commands()
	commands := make([]tgbotapi.BotCommand, 0, len(names))
	for _, name := range names {
		commands = append(commands, tgbotapi.BotCommand{
			Command:     name,
			Description: lang.Translate("commands."+name, nil),
		})
	}
	return commands
}

type commandSetter interface {
	SetCommands(commands []tgbotapi.BotCommand) error
}

// RegisterCommands publishes the command menu. Failure only costs the menu.
func (a *App) RegisterCommands() {
	setter, ok := a.Bot.(commandSetter)
	if !ok {
		return
	}
	if err := setter.SetCommands(BotCommands()); err != nil {
		logutils.Log.WithError(err).Warn("Failed to register bot commands")
	}
}

// ShutdownTimeout bounds how long in-flight downloads get to stop.
const ShutdownTimeout = 30 * time.Second

// RegisterShutdown stops downloads before the journal so cancelled requests are
// still recorded.
func (a *App) RegisterShutdown(m *shutdown.Manager) {
	m.Register(a.Downloads)
	m.Register(shutdown.Func{ServiceName: "database", Fn: func(context.Context) error {
		return a.Journal.Close()
	}})
}

// NewWebhookServer serves updates pushed to the configured webhook URL.
func (a *App) NewWebhookServer() *webhook.Server {
	return webhook.NewServer(
		a.Config.WebhookSettings.Listen,
		webhook.PathFromURL(a.Config.WebhookSettings.URL),
		a.Handler,
		a.Downloads,
	)
}

// Poller is the long-polling side of the Telegram client.
type Poller interface {
	DeleteWebhook(dropPending bool) error
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

const pollTimeoutSeconds = 60

// RunPolling clears any webhook, then feeds long-polled updates to the handler until
// ctx is done.
func (a *App) RunPolling(ctx context.Context, poller Poller) error {
	if err := poller.DeleteWebhook(true); err != nil {
		return err
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeoutSeconds
	updates := poller.GetUpdatesChan(u)
	defer poller.StopReceivingUpdates()

	logutils.Log.Info("Polling for updates")
	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			a.Handler.HandleUpdate(ctx, update)
		case <-ctx.Done():
			logutils.Log.Info("Stopping update processing")
			return nil
		}
	}
}
