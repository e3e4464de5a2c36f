package handlers

import (
	"context"

	"github.com/NikitaDmitryuk/telegram-music-bot/internal/lang"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/logutils"
)

func (h *Handler) StartHandler(chatID int64) {
	h.bot.SendMessage(chatID, lang.Translate("general.start", nil))
}

func (h *Handler) HelpHandler(chatID int64) {
	h.bot.SendMessage(chatID, lang.Translate("general.help", map[string]any{
		"MaxItems": h.cfg.DownloadSettings.MaxPlaylistItems,
		"Bitrate":  h.cfg.AudioSettings.Bitrate,
	}))
}

// StatusHandler reports running downloads and, when the journal is enabled, totals.
func (h *Handler) StatusHandler(ctx context.Context, chatID int64) {
	text := lang.Translate("status.summary", map[string]any{
		"Active": h.downloads.ActiveCount(),
		"Queued": h.downloads.QueuedCount(),
		"Slots":  h.downloads.Slots(),
	})

	stats, err := h.journal.Stats(ctx)
	if err != nil {
		logutils.Log.WithError(err).Warn("Failed to read journal stats")
	} else if stats.Completed+stats.Failed > 0 {
		text += "\n" + lang.Translate("status.journal", map[string]any{
			"Completed": stats.Completed,
			"Failed":    stats.Failed,
		})
	}

	h.bot.SendMessage(chatID, text)
}

// CleanHandler removes workspaces no request is using. Running downloads keep theirs.
func (h *Handler) CleanHandler(chatID int64) {
	removed, err := h.workspaces.Sweep(0)
	if err != nil {
		logutils.Log.WithError(err).Warn("Workspace cleanup finished with errors")
	}
	logutils.Log.WithFields(map[string]any{
		"chat_id": chatID,
		"removed": removed,
	}).Info("Manual cleanup requested")
	h.bot.SendMessage(chatID, lang.Translate("status.clean_done", map[string]any{"Removed": removed}))
}
