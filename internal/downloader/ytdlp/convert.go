package ytdlp

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/NikitaDmitryuk/telegram-music-bot/internal/classifier"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/downloader"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/logutils"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/tags"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/transcode"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/utils"
)

// base holds what both downloader variants share: the yt-dlp runner and the MP3 step.
type base struct {
	runner     *Runner
	transcoder *transcode.Transcoder
}

// finish converts one fetched source into a tagged MP3 named after its display name.
// hint, when set, wins over what yt-dlp reported.
func (b *base) finish(ctx context.Context, job downloader.Job, file fetchedFile, hint *tags.Info, seq int) (downloader.Track, error) {
	info := sourceInfo(file)
	if hint != nil {
		if hint.Artist != "" {
			info.Artist = hint.Artist
		}
		if hint.Title != "" {
			info.Title = hint.Title
		}
		if hint.Album != "" {
			info.Album = hint.Album
		}
	}
	artist, title := splitArtistTitle(info.Artist, utils.CleanTrackTitle(info.Title))
	display := utils.DisplayName(artist, title)

	job.Report(downloader.Progress{Stage: downloader.StageConverting, Index: seq, Title: display})

	dst := filepath.Join(job.Dir, fmt.Sprintf("%03d %s", seq, utils.AudioFileName(display)))
	meta := transcode.Metadata{Artist: artist, Title: title, Album: info.Album}
	if job.Kind == classifier.Playlist && seq > 0 {
		meta.Track = seq
	}
	if err := b.transcoder.ToMP3(ctx, file.Path, dst, meta); err != nil {
		return downloader.Track{}, err
	}

	logutils.Log.WithFields(map[string]any{
		"track": display,
		"path":  dst,
	}).Debug("Track ready")
	return downloader.Track{Path: dst, DisplayName: display, Artist: artist, Title: title}, nil
}

// sourceInfo prefers the fields yt-dlp printed and fills gaps from the file's own tags.
func sourceInfo(file fetchedFile) tags.Info {
	printed := tags.Info{Artist: file.Artist, Title: file.Title, Album: file.Album}
	if printed.Artist != "" && printed.Title != "" {
		return printed
	}
	fromFile := tags.ReadOr(file.Path, tags.Info{})
	if printed.Artist == "" {
		printed.Artist = fromFile.Artist
	}
	if printed.Title == "" {
		printed.Title = fromFile.Title
	}
	if printed.Album == "" {
		printed.Album = fromFile.Album
	}
	return printed
}

// splitArtistTitle handles uploads titled "Artist - Title" by channels that are not the artist.
func splitArtistTitle(artist, title string) (string, string) {
	artist = strings.TrimSpace(strings.TrimSuffix(artist, " - Topic"))
	parts := strings.SplitN(title, " - ", 2)
	if len(parts) != 2 {
		return artist, title
	}
	candidate, rest := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	if candidate == "" || rest == "" {
		return artist, title
	}
	if artist == "" || strings.EqualFold(candidate, artist) || looksLikeChannel(artist) {
		return candidate, rest
	}
	return artist, title
}

func looksLikeChannel(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, "vevo") || strings.Contains(lower, "records") || strings.Contains(lower, "music")
}

// collect runs fetch for every item of a request. A single-track request fails on the
// first error; collections skip failed items and fail only when nothing was produced.
func (b *base) collect(
	ctx context.Context,
	job downloader.Job,
	title string,
	total int,
	titleAt func(i int) string,
	fetch func(ctx context.Context, i int) (downloader.Track, error),
) (*downloader.Result, error) {
	strict := total == 1
	result := &downloader.Result{Title: title, Requested: total}
	var lastErr error

	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !strict {
			job.Report(downloader.Progress{Stage: downloader.StageItemStarted, Index: i + 1, Total: total, Title: titleAt(i)})
		}

		track, err := fetch(ctx, i)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if strict {
				return nil, downloader.Classify(err)
			}
			logutils.Log.WithError(err).WithFields(map[string]any{
				"index": i + 1,
				"title": titleAt(i),
			}).Warn("Skipping playlist item")
			job.Report(downloader.Progress{Stage: downloader.StageItemFailed, Index: i + 1, Total: total, Title: titleAt(i)})
			result.Skipped++
			lastErr = err
			continue
		}
		result.Tracks = append(result.Tracks, track)
	}

	if len(result.Tracks) == 0 {
		if lastErr == nil {
			lastErr = errors.New("nothing to download")
		}
		return nil, downloader.Classify(lastErr)
	}
	if result.Title == "" {
		result.Title = result.Tracks[0].DisplayName
	}
	return result, nil
}

func (*base) percentListener(job downloader.Job, index, total int) listener {
	return listener{onPercent: func(percent float64) {
		job.Report(downloader.Progress{Stage: downloader.StageDownloading, Index: index, Total: total, Percent: percent})
	}}
}
