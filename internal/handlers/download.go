package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/NikitaDmitryuk/telegram-music-bot/internal/bot"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/classifier"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/database"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/downloader"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/lang"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/logutils"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/packager"
)

// HandleLink classifies text and, for a supported link, starts the download pipeline.
// With sync set the call returns only after the request finished.
func (h *Handler) HandleLink(ctx context.Context, chatID int64, messageID int, text string, sync bool) {
	state := newStateLog(logutils.Log.WithField("chat_id", chatID))
	state.set(stateClassifying)

	req := classifier.Classify(text)
	if !isSupported(req) {
		logutils.Log.WithFields(map[string]any{
			"chat_id": chatID,
			"text":    text,
		}).Info("Unrecognized link")
		state.set(stateReplying)
		h.bot.SendMessage(chatID, lang.Translate("general.unrecognized_link", nil))
		state.set(stateIdle)
		return
	}

	if !h.limiter.Allow(chatID) {
		h.bot.SendMessage(chatID, lang.Translate("general.rate_limited", nil))
		return
	}
	if !h.tryMarkBusy(chatID) {
		h.bot.SendMessage(chatID, lang.Translate("general.busy", nil))
		return
	}

	name := fmt.Sprintf("chat-%d-msg-%d", chatID, messageID)
	task := func(taskCtx context.Context) {
		defer h.clearBusy(chatID)
		h.process(taskCtx, chatID, req)
	}

	if sync {
		if err := h.downloads.Run(ctx, name, task); err != nil {
			h.clearBusy(chatID)
			h.replyError(chatID, err, 0)
		}
		return
	}

	queued, err := h.downloads.Submit(name, task)
	if err != nil {
		h.clearBusy(chatID)
		h.replyError(chatID, err, 0)
		return
	}
	if queued {
		h.bot.SendMessage(chatID, lang.Translate("general.queued", nil))
	}
}

// process runs one request from download to reply. The workspace is removed on every
// path, including cancellation and timeout.
func (h *Handler) process(ctx context.Context, chatID int64, req classifier.Request) {
	if ctx.Err() != nil {
		logutils.Log.WithField("chat_id", chatID).Info("Request dropped before it started")
		return
	}
	started := time.Now()
	reqLog := logutils.Log.WithFields(map[string]any{
		"chat_id":  chatID,
		"url":      req.URL,
		"platform": req.Platform.String(),
		"kind":     req.Kind.String(),
	})
	state := newStateLog(reqLog)
	state.current = stateClassifying

	entry := database.Entry{
		ChatID:   chatID,
		URL:      req.URL,
		Platform: req.Platform.String(),
		Kind:     req.Kind.String(),
	}
	var artifactSize int64
	fail := func(err error) {
		state.set(stateReplying)
		reqLog.WithError(err).Warn("Request failed")
		h.replyError(chatID, err, artifactSize)
		entry.Status = database.StatusFailed
		entry.Error = err.Error()
		h.record(ctx, entry, started)
		state.set(stateIdle)
	}

	state.set(stateDownloading)

	if err := h.workspaces.CheckSpace(h.cfg.DownloadSettings.MinFreeSpace); err != nil {
		fail(err)
		return
	}
	ws, err := h.workspaces.Create()
	if err != nil {
		fail(err)
		return
	}
	defer func() {
		if err := ws.Cleanup(); err != nil {
			reqLog.WithError(err).Error("Failed to remove request workspace")
		}
	}()

	d, err := h.registry.Lookup(req.Platform)
	if err != nil {
		fail(err)
		return
	}

	progress := newProgressReporter(h.bot, chatID)
	progress.start(lang.Translate("download.started", nil))

	result, err := d.Fetch(ctx, downloader.Job{
		URL:      req.URL,
		Platform: req.Platform,
		Kind:     req.Kind,
		Dir:      ws.Dir,
		MaxItems: h.cfg.DownloadSettings.MaxPlaylistItems,
		Progress: progress.report,
	})
	if err != nil {
		fail(downloader.Classify(err))
		return
	}
	entry.Tracks = len(result.Tracks)
	entry.Skipped = result.Skipped

	state.set(statePackaging)
	if len(result.Tracks) > 1 {
		progress.update(lang.Translate("download.packaging", nil))
	}
	artifact, err := packager.Package(result, ws.Dir)
	if err != nil {
		fail(err)
		return
	}
	if size, err := artifact.Size(); err == nil {
		artifactSize = size
	}

	state.set(stateReplying)
	progress.update(lang.Translate("download.sending", nil))
	if err := h.deliver(ctx, chatID, artifact); err != nil {
		fail(err)
		return
	}

	if artifact.Archive || result.Skipped > 0 {
		total := result.Requested
		if total < len(result.Tracks) {
			total = len(result.Tracks)
		}
		h.bot.SendMessage(chatID, lang.Translate("download.summary", map[string]any{
			"Sent":  len(result.Tracks),
			"Total": total,
		}))
	}
	if result.Skipped > 0 {
		h.bot.SendMessage(chatID, lang.Translate("download.skipped", map[string]any{"Skipped": result.Skipped}))
	}

	reqLog.WithFields(map[string]any{
		"tracks":   len(result.Tracks),
		"skipped":  result.Skipped,
		"artifact": artifact.Name,
		"duration": time.Since(started).Round(time.Millisecond),
	}).Info("Request completed")

	entry.Status = database.StatusCompleted
	h.record(ctx, entry, started)
	state.set(stateIdle)
}

// deliver sends a single track as audio and an archive as a document.
func (h *Handler) deliver(ctx context.Context, chatID int64, artifact packager.Artifact) error {
	if artifact.Archive {
		return h.bot.SendDocument(ctx, chatID, bot.Upload{
			Path: artifact.Path,
			Name: artifact.Name,
		})
	}

	track := artifact.Tracks[0]
	performer, title := track.Artist, track.Title
	if performer == "" || title == "" {
		performer, title = splitDisplayName(track.DisplayName)
	}
	return h.bot.SendAudio(ctx, chatID, bot.Upload{
		Path:      artifact.Path,
		Name:      artifact.Name,
		Performer: performer,
		Title:     title,
	})
}

func splitDisplayName(display string) (string, string) {
	if artist, title, ok := strings.Cut(display, " - "); ok {
		return artist, title
	}
	return "", display
}

// record writes the journal entry even when the request context is already done.
func (h *Handler) record(ctx context.Context, entry database.Entry, started time.Time) {
	entry.Duration = time.Since(started)
	if err := h.journal.Record(context.WithoutCancel(ctx), entry); err != nil {
		logutils.Log.WithError(err).Warn("Failed to record request in journal")
	}
}

// errorIsCancel reports a request stopped by shutdown rather than by its own timeout.
func errorIsCancel(err error) bool {
	return errors.Is(err, context.Canceled)
}
