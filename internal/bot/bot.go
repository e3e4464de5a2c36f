package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/NikitaDmitryuk/telegram-music-bot/internal/config"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/logutils"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/utils"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	DefaultUploadAttempts = 3
	defaultRetryDelay     = time.Second
	requestTimeout        = 5 * time.Minute
)

// Upload describes a local file to send. Name is the file name the user sees.
type Upload struct {
	Path      string
	Name      string
	Performer string
	Title     string
	Caption   string
}

// Service is the part of the Telegram API the handlers use.
type Service interface {
	SendMessage(chatID int64, text string)
	SendMessageReturningID(chatID int64, text string) (int, error)
	EditMessage(chatID int64, messageID int, text string) error
	SendAudio(ctx context.Context, chatID int64, upload Upload) error
	SendDocument(ctx context.Context, chatID int64, upload Upload) error
}

type Bot struct {
	Api *tgbotapi.BotAPI

	maxUploadSize int64
	attempts      int
	retryDelay    time.Duration
}

var _ Service = (*Bot)(nil)

func NewBot(cfg *config.Config) (*Bot, error) {
	return newBot(cfg, tgbotapi.APIEndpoint)
}

func newBot(cfg *config.Config, endpoint string) (*Bot, error) {
	client, err := httpClient(cfg.Proxy)
	if err != nil {
		return nil, err
	}
	api, err := tgbotapi.NewBotAPIWithClient(cfg.BotToken, endpoint, client)
	if err != nil {
		logutils.Log.WithError(err).Error("Error creating bot")
		return nil, fmt.Errorf("error creating bot: %w", err)
	}
	api.Debug = cfg.LogLevel == "debug"
	logutils.Log.Infof("Authorized on account %s", api.Self.UserName)

	return &Bot{
		Api:           api,
		maxUploadSize: cfg.DownloadSettings.MaxUploadSize,
		attempts:      DefaultUploadAttempts,
		retryDelay:    defaultRetryDelay,
	}, nil
}

func httpClient(proxy string) (*http.Client, error) {
	client := &http.Client{Timeout: requestTimeout}
	if proxy == "" {
		return client, nil
	}
	proxyURL, err := url.Parse(proxy)
	if err != nil {
		return nil, utils.WrapError(err, "invalid proxy URL", map[string]any{"proxy": proxy})
	}
	client.Transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
	return client, nil
}

func (b *Bot) SendMessage(chatID int64, text string) {
	if _, err := b.SendMessageReturningID(chatID, text); err != nil {
		logutils.Log.WithError(err).Errorf("Message not sent: %s", text)
	}
}

func (b *Bot) SendMessageReturningID(chatID int64, text string) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	sent, err := b.Api.Send(msg)
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

func (b *Bot) EditMessage(chatID int64, messageID int, text string) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	if _, err := b.Api.Request(edit); err != nil {
		if isNotModified(err) {
			return nil
		}
		logutils.Log.WithError(err).WithFields(map[string]any{
			"chat_id":    chatID,
			"message_id": messageID,
		}).Debug("Failed to edit message")
		return err
	}
	return nil
}

// SendAudio sends an MP3 so Telegram shows it in its player with performer and title.
func (b *Bot) SendAudio(ctx context.Context, chatID int64, upload Upload) error {
	return b.sendFile(ctx, chatID, upload, func(file tgbotapi.RequestFileData) tgbotapi.Chattable {
		audio := tgbotapi.NewAudio(chatID, file)
		audio.Performer = upload.Performer
		audio.Title = upload.Title
		audio.Caption = upload.Caption
		return audio
	})
}

func (b *Bot) SendDocument(ctx context.Context, chatID int64, upload Upload) error {
	return b.sendFile(ctx, chatID, upload, func(file tgbotapi.RequestFileData) tgbotapi.Chattable {
		doc := tgbotapi.NewDocument(chatID, file)
		doc.Caption = upload.Caption
		return doc
	})
}

func (b *Bot) sendFile(
	ctx context.Context,
	chatID int64,
	upload Upload,
	build func(tgbotapi.RequestFileData) tgbotapi.Chattable,
) error {
	if err := checkSize(upload.Path, b.maxUploadSize); err != nil {
		return err
	}

	err := withRetry(ctx, b.attempts, b.retryDelay, func() error {
		f, err := os.Open(upload.Path)
		if err != nil {
			return permanent(err)
		}
		defer f.Close()

		_, err = b.Api.Send(build(tgbotapi.FileReader{Name: upload.Name, Reader: f}))
		return classifyAPIError(err)
	})
	if err != nil {
		if errors.Is(err, utils.ErrArtifactTooLarge) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return utils.WrapError(utils.CausedBy(utils.ErrDeliveryFailed, err), "upload failed", map[string]any{
			"chat_id": chatID,
			"file":    upload.Name,
		})
	}

	logutils.Log.WithFields(map[string]any{
		"chat_id": chatID,
		"file":    upload.Name,
	}).Info("File sent")
	return nil
}

// checkSize rejects files above the bot API upload limit before any bytes are sent.
func checkSize(path string, limit int64) error {
	info, err := os.Stat(path)
	if err != nil {
		return utils.CausedBy(utils.ErrDeliveryFailed, err)
	}
	if limit > 0 && info.Size() > limit {
		return utils.WrapError(utils.ErrArtifactTooLarge, "artifact exceeds upload limit", map[string]any{
			"size":  info.Size(),
			"limit": limit,
		})
	}
	return nil
}

// SetCommands registers the command list shown in Telegram clients.
func (b *Bot) SetCommands(commands []tgbotapi.BotCommand) error {
	if _, err := b.Api.Request(tgbotapi.NewSetMyCommands(commands...)); err != nil {
		return utils.WrapError(err, "failed to set bot commands", nil)
	}
	return nil
}

// DeleteWebhook switches the bot to long polling. Updates queued while the bot was
// down are dropped when dropPending is set.
func (b *Bot) DeleteWebhook(dropPending bool) error {
	if _, err := b.Api.Request(tgbotapi.DeleteWebhookConfig{DropPendingUpdates: dropPending}); err != nil {
		return utils.WrapError(err, "failed to delete webhook", nil)
	}
	return nil
}

func (b *Bot) SetWebhook(webhookURL string) error {
	wh, err := tgbotapi.NewWebhook(webhookURL)
	if err != nil {
		return utils.WrapError(err, "invalid webhook URL", map[string]any{"url": webhookURL})
	}
	if _, err := b.Api.Request(wh); err != nil {
		return utils.WrapError(err, "failed to set webhook", map[string]any{"url": webhookURL})
	}
	return nil
}

func (b *Bot) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return b.Api.GetUpdatesChan(config)
}

func (b *Bot) StopReceivingUpdates() {
	b.Api.StopReceivingUpdates()
}
