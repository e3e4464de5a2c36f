package ytdlp

import (
	"context"
	"fmt"

	"github.com/NikitaDmitryuk/telegram-music-bot/internal/downloader"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/logutils"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/metadata"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/tags"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/transcode"
)

const searchPrefix = "ytsearch1:"

// Search serves platforms whose audio yt-dlp cannot fetch (Spotify, Apple Music):
// the page is resolved to song names and each song is fetched from YouTube.
type Search struct {
	base
	resolver metadata.Resolver
	searcher metadata.VideoSearcher
}

// NewSearch builds the search downloader. searcher may be nil, in which case
// yt-dlp's own ytsearch1: is used.
func NewSearch(runner *Runner, transcoder *transcode.Transcoder, resolver metadata.Resolver, searcher metadata.VideoSearcher) *Search {
	return &Search{base: base{runner: runner, transcoder: transcoder}, resolver: resolver, searcher: searcher}
}

func (s *Search) Fetch(ctx context.Context, job downloader.Job) (*downloader.Result, error) {
	job.Report(downloader.Progress{Stage: downloader.StageResolving})

	resolution, err := s.resolver.Resolve(ctx, job.URL, job.Kind, job.MaxItems)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, downloader.Classify(err)
	}

	refs := resolution.Tracks
	if job.MaxItems > 0 && len(refs) > job.MaxItems {
		refs = refs[:job.MaxItems]
	}
	total := len(refs)

	logutils.Log.WithFields(map[string]any{
		"url":    job.URL,
		"title":  resolution.Title,
		"tracks": total,
	}).Info("Resolved page to search queries")

	return s.collect(ctx, job, resolution.Title, total,
		func(i int) string { return refs[i].Query() },
		func(ctx context.Context, i int) (downloader.Track, error) {
			ref := refs[i]
			target := s.target(ctx, ref.Query())
			files, _, err := s.runner.Fetch(ctx, target, job.Dir,
				fetchOptions{Prefix: fmt.Sprintf("%03d", i+1)}, s.percentListener(job, i+1, total))
			if err != nil {
				return downloader.Track{}, err
			}
			hint := &tags.Info{Artist: ref.Artist, Title: ref.Title, Album: ref.Album}
			return s.finish(ctx, job, files[0], hint, i+1)
		})
}

// target picks what yt-dlp should download for a query.
func (s *Search) target(ctx context.Context, query string) string {
	if s.searcher != nil {
		videoURL, err := s.searcher.Search(ctx, query)
		if err == nil && videoURL != "" {
			return videoURL
		}
		if err != nil {
			logutils.Log.WithError(err).WithField("query", query).Warn("YouTube API search failed, using ytsearch")
		}
	}
	return searchPrefix + query
}
