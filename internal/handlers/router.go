package handlers

import (
	"context"
	"strings"

	"github.com/NikitaDmitryuk/telegram-music-bot/internal/classifier"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/lang"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/logutils"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (h *Handler) route(ctx context.Context, update tgbotapi.Update, sync bool) {
	message := update.Message
	if message == nil || message.Chat == nil {
		return
	}

	LoggingMiddleware(update)
	chatID := message.Chat.ID

	if message.IsCommand() {
		command := strings.ToLower(message.Command())
		switch command {
		case "start":
			h.StartHandler(chatID)
		case "help":
			h.HelpHandler(chatID)
		case "status":
			h.StatusHandler(ctx, chatID)
		case "clean":
			h.CleanHandler(chatID)
		default:
			logutils.Log.WithField("command", command).Warn("Unknown command")
			h.bot.SendMessage(chatID, lang.Translate("general.unknown_command", nil))
		}
		return
	}

	text := strings.TrimSpace(message.Text)
	if text == "" {
		logutils.Log.WithField("chat_id", chatID).Debug("Ignoring message without text")
		return
	}

	h.HandleLink(ctx, chatID, message.MessageID, text, sync)
}

// LoggingMiddleware logs every incoming message.
func LoggingMiddleware(update tgbotapi.Update) {
	if update.Message == nil {
		return
	}
	fields := map[string]any{
		"chat_id": update.Message.Chat.ID,
		"text":    update.Message.Text,
	}
	if update.Message.From != nil {
		fields["username"] = update.Message.From.UserName
	}
	logutils.Log.WithFields(fields).Info("Received a new message")
}

// isSupported reports whether text classifies to a platform the bot can serve.
func isSupported(req classifier.Request) bool {
	return req.Platform != classifier.Unknown
}
