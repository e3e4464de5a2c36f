package downloader

import (
	"context"
	"time"

	"github.com/NikitaDmitryuk/telegram-music-bot/internal/logutils"
)

// updateLoop remembers what previous checks saw so each tick logs only what changed.
type updateLoop struct {
	updater  Updater
	version  string
	failures int
}

// tick runs one update check. A failed check leaves the installed yt-dlp in place.
func (l *updateLoop) tick(ctx context.Context) {
	outcome, err := l.updater.RunUpdate(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		l.failures++
		logutils.Log.WithError(err).WithFields(map[string]any{
			"version":              l.version,
			"consecutive_failures": l.failures,
		}).Warn("yt-dlp update check failed, keeping the installed version")
		return
	}

	if l.failures > 0 {
		logutils.Log.WithField("failed_checks", l.failures).Info("yt-dlp update check recovered")
		l.failures = 0
	}

	switch {
	case outcome.Updated:
		logutils.Log.WithFields(map[string]any{
			"from": l.version,
			"to":   outcome.Version,
		}).Info("yt-dlp updated")
	case outcome.Version != l.version:
		logutils.Log.WithField("version", outcome.Version).Info("yt-dlp is up to date")
	default:
		logutils.Log.WithField("version", outcome.Version).Debug("yt-dlp is up to date")
	}
	if outcome.Version != "" {
		l.version = outcome.Version
	}
}

// StartPeriodicUpdater checks for yt-dlp updates once at start when onStart is set,
// then every interval until ctx is done. A non-positive interval disables the ticker.
func StartPeriodicUpdater(ctx context.Context, interval time.Duration, onStart bool, u Updater) {
	if u == nil {
		return
	}
	loop := &updateLoop{updater: u}
	if onStart {
		loop.tick(ctx)
	}
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logutils.Log.WithField("interval", interval).Info("Starting periodic yt-dlp updater")

	for {
		select {
		case <-ctx.Done():
			logutils.Log.Info("Stopping periodic yt-dlp updater")
			return
		case <-ticker.C:
			loop.tick(ctx)
		}
	}
}
