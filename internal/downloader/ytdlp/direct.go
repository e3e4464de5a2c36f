package ytdlp

import (
	"context"
	"fmt"

	"github.com/NikitaDmitryuk/telegram-music-bot/internal/classifier"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/downloader"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/logutils"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/metadata"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/transcode"
)

// Direct serves platforms yt-dlp can read from the link itself (YouTube, SoundCloud).
type Direct struct {
	base
	lister metadata.PlaylistLister
}

// NewDirect builds the direct downloader. lister may be nil; when set, YouTube playlists
// are listed up front and fetched item by item.
func NewDirect(runner *Runner, transcoder *transcode.Transcoder, lister metadata.PlaylistLister) *Direct {
	return &Direct{base: base{runner: runner, transcoder: transcoder}, lister: lister}
}

func (d *Direct) Fetch(ctx context.Context, job downloader.Job) (*downloader.Result, error) {
	job.Report(downloader.Progress{Stage: downloader.StageResolving})

	if job.Kind != classifier.Playlist {
		return d.fetchLink(ctx, job)
	}

	if d.lister != nil && job.Platform == classifier.YouTube {
		playlist, err := d.lister.List(ctx, job.URL, job.MaxItems)
		switch {
		case err == nil && len(playlist.Entries) > 0:
			return d.fetchEntries(ctx, job, playlist)
		case ctx.Err() != nil:
			return nil, ctx.Err()
		default:
			logutils.Log.WithError(err).WithField("url", job.URL).Warn("Playlist listing failed, falling back to yt-dlp playlist mode")
		}
	}
	return d.fetchPlaylist(ctx, job)
}

// fetchLink downloads a single-track link. A link yt-dlp still expands to several
// files (a SoundCloud set) keeps all of them.
func (d *Direct) fetchLink(ctx context.Context, job downloader.Job) (*downloader.Result, error) {
	files, _, err := d.runner.Fetch(ctx, job.URL, job.Dir, fetchOptions{Prefix: "001"}, d.percentListener(job, 0, 1))
	if err != nil {
		return nil, downloader.Classify(err)
	}

	return d.collect(ctx, job, files[0].PlaylistTitle, len(files),
		func(i int) string { return files[i].Title },
		func(ctx context.Context, i int) (downloader.Track, error) {
			return d.finish(ctx, job, files[i], nil, i+1)
		})
}

func (d *Direct) fetchEntries(ctx context.Context, job downloader.Job, playlist *metadata.Playlist) (*downloader.Result, error) {
	total := len(playlist.Entries)
	logutils.Log.WithFields(map[string]any{
		"playlist": playlist.Title,
		"items":    total,
	}).Info("Downloading listed playlist")

	return d.collect(ctx, job, playlist.Title, total,
		func(i int) string { return playlist.Entries[i].Title },
		func(ctx context.Context, i int) (downloader.Track, error) {
			entry := playlist.Entries[i]
			files, _, err := d.runner.Fetch(ctx, entry.URL, job.Dir,
				fetchOptions{Prefix: fmt.Sprintf("%03d", i+1)}, d.percentListener(job, i+1, total))
			if err != nil {
				return downloader.Track{}, err
			}
			return d.finish(ctx, job, files[0], nil, i+1)
		})
}

// fetchPlaylist lets yt-dlp walk the playlist in one run, then converts what arrived.
func (d *Direct) fetchPlaylist(ctx context.Context, job downloader.Job) (*downloader.Result, error) {
	l := listener{
		onItem: func(index, total int) {
			job.Report(downloader.Progress{Stage: downloader.StageItemStarted, Index: index, Total: total})
		},
	}
	files, failures, err := d.runner.Fetch(ctx, job.URL, job.Dir,
		fetchOptions{Playlist: true, MaxItems: job.MaxItems, Prefix: "pl"}, l)
	if err != nil {
		return nil, downloader.Classify(err)
	}

	total := len(files)
	result, err := d.collect(ctx, job, files[0].PlaylistTitle, total,
		func(i int) string { return files[i].Title },
		func(ctx context.Context, i int) (downloader.Track, error) {
			seq := files[i].Index
			if seq <= 0 {
				seq = i + 1
			}
			return d.finish(ctx, job, files[i], nil, seq)
		})
	if err != nil {
		return nil, err
	}
	result.Requested += failures
	result.Skipped += failures
	return result, nil
}
