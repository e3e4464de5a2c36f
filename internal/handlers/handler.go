package handlers

import (
	"context"
	"sync"

	"github.com/NikitaDmitryuk/telegram-music-bot/internal/bot"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/config"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/database"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/downloader"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/downloader/manager"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/ratelimit"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/workspace"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Deps are the collaborators a Handler talks to.
type Deps struct {
	Bot        bot.Service
	Registry   *downloader.Registry
	Workspaces *workspace.Manager
	Downloads  manager.Service
	Limiter    ratelimit.Limiter
	Journal    database.Journal
}

// Handler answers Telegram updates: commands inline, links through the download pipeline.
type Handler struct {
	cfg        *config.Config
	bot        bot.Service
	registry   *downloader.Registry
	workspaces *workspace.Manager
	downloads  manager.Service
	limiter    ratelimit.Limiter
	journal    database.Journal

	mu   sync.Mutex
	busy map[int64]struct{}
}

func New(cfg *config.Config, deps Deps) *Handler {
	h := &Handler{
		cfg:        cfg,
		bot:        deps.Bot,
		registry:   deps.Registry,
		workspaces: deps.Workspaces,
		downloads:  deps.Downloads,
		limiter:    deps.Limiter,
		journal:    deps.Journal,
		busy:       make(map[int64]struct{}),
	}
	if h.limiter == nil {
		h.limiter = ratelimit.NoOpLimiter{}
	}
	if h.journal == nil {
		h.journal = database.NoopJournal{}
	}
	return h
}

// HandleUpdate routes one update. Downloads run in the background through the
// download manager; the call returns once the request is accepted or answered.
func (h *Handler) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	h.route(ctx, update, false)
}

// HandleUpdateSync routes one update and waits until any download it started has
// been delivered and cleaned up. Used where the process may stop after the call.
func (h *Handler) HandleUpdateSync(ctx context.Context, update tgbotapi.Update) {
	h.route(ctx, update, true)
}

// Commands lists the bot commands registered with Telegram.
func Commands() []string {
	return []string{"start", "help", "status", "clean"}
}

// tryMarkBusy allows one download per chat at a time.
func (h *Handler) tryMarkBusy(chatID int64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.busy[chatID]; ok {
		return false
	}
	h.busy[chatID] = struct{}{}
	return true
}

func (h *Handler) clearBusy(chatID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.busy, chatID)
}
