package handlers

import (
	"context"
	"errors"

	"github.com/NikitaDmitryuk/telegram-music-bot/internal/lang"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/logutils"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/utils"
	"github.com/dustin/go-humanize"
)

// replyError tells the user why a request failed. Requests cancelled by shutdown get no reply.
func (h *Handler) replyError(chatID int64, err error, artifactSize int64) {
	if errorIsCancel(err) {
		logutils.Log.WithField("chat_id", chatID).Info("Request cancelled, not replying")
		return
	}
	h.bot.SendMessage(chatID, h.errorMessage(err, artifactSize))
}

func (h *Handler) errorMessage(err error, artifactSize int64) string {
	reason := map[string]any{"Reason": utils.UserErrorMessage(err)}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return lang.Translate("error.timeout", nil)
	case errors.Is(err, utils.ErrUnrecognizedURL):
		return lang.Translate("general.unrecognized_link", nil)
	case errors.Is(err, utils.ErrArtifactTooLarge):
		return lang.Translate("error.too_large", map[string]any{
			"Size":  humanize.Bytes(uint64(tooLargeSize(err, artifactSize))),
			"Limit": humanize.Bytes(uint64(h.cfg.DownloadSettings.MaxUploadSize)),
		})
	case errors.Is(err, utils.ErrInsufficientSpace):
		return lang.Translate("error.no_space", nil)
	case errors.Is(err, utils.ErrConversionFailed):
		return lang.Translate("error.conversion_failed", reason)
	case errors.Is(err, utils.ErrPackagingFailed):
		return lang.Translate("error.packaging_failed", reason)
	case errors.Is(err, utils.ErrDeliveryFailed):
		return lang.Translate("error.delivery_failed", reason)
	case errors.Is(err, utils.ErrDownloadFailed):
		return lang.Translate("error.download_failed", reason)
	default:
		return lang.Translate("error.unknown", reason)
	}
}

// tooLargeSize prefers the size recorded where the limit was checked.
func tooLargeSize(err error, fallback int64) int64 {
	var wrapped *utils.WrappedError
	if errors.As(err, &wrapped) {
		if size, ok := wrapped.Context["size"].(int64); ok {
			return size
		}
	}
	return fallback
}
