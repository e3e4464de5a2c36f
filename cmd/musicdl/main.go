// Command musicdl downloads the same links the bot accepts into a local directory.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/NikitaDmitryuk/telegram-music-bot/internal/app"
	tmbconfig "github.com/NikitaDmitryuk/telegram-music-bot/internal/config"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/logutils"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/process"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/utils"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/workspace"
	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"
)

func main() {
	var (
		outDir   string
		bitrate  int
		maxItems int
		logLevel string
		proxy    string
		quiet    bool
	)
	pflag.StringVarP(&outDir, "output", "o", ".", "Directory to save MP3 files and playlist archives to")
	pflag.IntVarP(&bitrate, "bitrate", "b", tmbconfig.DefaultAudioBitrate, "MP3 bitrate in kbit/s")
	pflag.IntVarP(&maxItems, "max-items", "n", tmbconfig.DefaultMaxPlaylistItems, "Maximum number of playlist items")
	pflag.DurationP("timeout", "t", 0, "Per-link time limit, 0 for none")
	pflag.StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	pflag.StringVar(&proxy, "proxy", "", "Proxy URL for yt-dlp and metadata requests")
	pflag.BoolVarP(&quiet, "quiet", "q", false, "Do not show progress bars")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] URL [URL...]\n\n", os.Args[0])
		fmt.Fprintln(os.Stderr, "Supported links: YouTube, Spotify, Apple Music, SoundCloud.")
		fmt.Fprintln(os.Stderr, "Options:")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	links := pflag.Args()
	if len(links) == 0 {
		pflag.Usage()
		os.Exit(2)
	}

	logutils.InitLogger(logLevel)

	config := tmbconfig.Load()
	flags := pflag.CommandLine
	if flags.Changed("bitrate") || config.AudioSettings.Bitrate == 0 {
		config.AudioSettings.Bitrate = bitrate
	}
	if flags.Changed("max-items") || config.DownloadSettings.MaxPlaylistItems == 0 {
		config.DownloadSettings.MaxPlaylistItems = maxItems
	}
	if flags.Changed("timeout") {
		config.DownloadSettings.DownloadTimeout, _ = flags.GetDuration("timeout")
	}
	if flags.Changed("proxy") {
		config.Proxy = proxy
	}
	if err := config.ValidateDownloadSettings(); err != nil {
		logutils.Log.WithError(err).Fatal("Invalid settings")
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		logutils.Log.WithError(err).Fatal("Failed to create output directory")
	}
	workspaces, err := workspace.NewManager(config.TempDir)
	if err != nil {
		logutils.Log.WithError(err).Fatal("Failed to prepare temp directory")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	f := &fetcher{
		registry:   app.NewRegistry(config, process.NewOSExecutor()),
		workspaces: workspaces,
		maxItems:   config.DownloadSettings.MaxPlaylistItems,
		outDir:     outDir,
	}
	if !quiet {
		f.progress = os.Stderr
	}

	failed := 0
	for _, link := range links {
		linkCtx, cancel := ctx, context.CancelFunc(func() {})
		if timeout := config.DownloadSettings.DownloadTimeout; timeout > 0 {
			linkCtx, cancel = context.WithTimeout(ctx, timeout)
		}
		result, err := f.fetch(linkCtx, link)
		cancel()

		if err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "%s: %s\n", link, utils.UserErrorMessage(err))
			if ctx.Err() != nil {
				break
			}
			continue
		}

		size := ""
		if info, err := os.Stat(result.Path); err == nil {
			size = humanize.Bytes(uint64(info.Size()))
		}
		fmt.Printf("%s (%d tracks, %s)\n", result.Path, result.Tracks, size)
		if result.Skipped > 0 {
			fmt.Fprintf(os.Stderr, "%s: skipped %d unavailable item(s)\n", link, result.Skipped)
		}
	}

	if failed > 0 {
		os.Exit(1)
	}
}
