package handlers

import (
	"sync"

	"github.com/NikitaDmitryuk/telegram-music-bot/internal/bot"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/downloader"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/lang"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/logutils"
)

// progressReporter keeps one status message per request up to date. Percent updates
// are only logged so the chat is not flooded with edits.
type progressReporter struct {
	bot    bot.Service
	chatID int64

	mu        sync.Mutex
	messageID int
	last      string
}

func newProgressReporter(b bot.Service, chatID int64) *progressReporter {
	return &progressReporter{bot: b, chatID: chatID}
}

func (p *progressReporter) start(text string) {
	id, err := p.bot.SendMessageReturningID(p.chatID, text)
	if err != nil {
		logutils.Log.WithError(err).WithField("chat_id", p.chatID).Warn("Failed to send status message")
		return
	}
	p.mu.Lock()
	p.messageID = id
	p.last = text
	p.mu.Unlock()
}

// update replaces the status text, or sends a new message if the first one failed.
func (p *progressReporter) update(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if text == p.last {
		return
	}
	p.last = text

	if p.messageID == 0 {
		p.bot.SendMessage(p.chatID, text)
		return
	}
	if err := p.bot.EditMessage(p.chatID, p.messageID, text); err != nil {
		p.bot.SendMessage(p.chatID, text)
	}
}

func (p *progressReporter) report(progress downloader.Progress) {
	switch progress.Stage {
	case downloader.StageItemStarted:
		title := progress.Title
		if title == "" {
			title = "…"
		}
		p.update(lang.Translate("download.item", map[string]any{
			"Index": progress.Index,
			"Total": progress.Total,
			"Title": title,
		}))
	case downloader.StageItemFailed:
		logutils.Log.WithFields(map[string]any{
			"chat_id": p.chatID,
			"index":   progress.Index,
			"title":   progress.Title,
		}).Info("Playlist item skipped")
	case downloader.StageDownloading:
		logutils.Log.WithFields(map[string]any{
			"chat_id": p.chatID,
			"index":   progress.Index,
			"percent": progress.Percent,
		}).Debug("Download progress")
	}
}
