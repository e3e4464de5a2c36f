package app

import (
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/classifier"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/config"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/downloader"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/downloader/ytdlp"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/logutils"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/metadata"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/process"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/transcode"
)

// NewRegistry wires one downloader per supported platform. YouTube and SoundCloud are
// fetched by yt-dlp directly; Spotify and Apple Music are resolved to song names first
// and searched on YouTube.
func NewRegistry(cfg *config.Config, executor process.Executor) *downloader.Registry {
	runner := ytdlp.NewRunner(cfg.ToolSettings.YtdlpPath, cfg.Proxy, executor)
	transcoder := transcode.New(cfg.ToolSettings.FFmpegPath, cfg.AudioSettings.Bitrate, executor)

	var searcher metadata.VideoSearcher
	if cfg.YouTubeAPIKey != "" {
		searcher = metadata.NewYouTubeAPI(cfg.YouTubeAPIKey, cfg.Proxy)
		logutils.Log.Info("YouTube Data API search enabled")
	}

	direct := ytdlp.NewDirect(runner, transcoder, metadata.NewYouTubePlaylists(cfg.Proxy))
	search := ytdlp.NewSearch(runner, transcoder, metadata.NewPageResolver(cfg.Proxy), searcher)

	registry := downloader.NewRegistry()
	registry.Register(classifier.YouTube, direct)
	registry.Register(classifier.SoundCloud, direct)
	registry.Register(classifier.Spotify, search)
	registry.Register(classifier.AppleMusic, search)
	return registry
}

// NewUpdater returns the yt-dlp self-updater.
func NewUpdater(cfg *config.Config, executor process.Executor) downloader.Updater {
	return ytdlp.NewUpdater(cfg.ToolSettings.YtdlpPath, executor)
}
