package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/NikitaDmitryuk/telegram-music-bot/internal/classifier"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/downloader"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/logutils"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/packager"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/utils"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/workspace"
	"github.com/schollz/progressbar/v3"
)

const outputFileMode = 0o644

// fetcher downloads links the same way the bot does, but saves the artifact locally.
type fetcher struct {
	registry   *downloader.Registry
	workspaces *workspace.Manager
	maxItems   int
	outDir     string
	// progress receives the progress bar; nil disables it.
	progress io.Writer
}

type saved struct {
	Path    string
	Tracks  int
	Skipped int
}

func (f *fetcher) fetch(ctx context.Context, link string) (*saved, error) {
	req := classifier.Classify(link)
	if req.Platform == classifier.Unknown {
		return nil, utils.WrapError(utils.ErrUnrecognizedURL, "unsupported link", map[string]any{"link": link})
	}
	d, err := f.registry.Lookup(req.Platform)
	if err != nil {
		return nil, err
	}

	ws, err := f.workspaces.Create()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := ws.Cleanup(); err != nil {
			logutils.Log.WithError(err).Warn("Failed to remove workspace")
		}
	}()

	bar := newBar(f.progress, req.Platform.String())
	result, err := d.Fetch(ctx, downloader.Job{
		URL:      req.URL,
		Platform: req.Platform,
		Kind:     req.Kind,
		Dir:      ws.Dir,
		MaxItems: f.maxItems,
		Progress: bar.report,
	})
	bar.finish()
	if err != nil {
		return nil, downloader.Classify(err)
	}

	artifact, err := packager.Package(result, ws.Dir)
	if err != nil {
		return nil, err
	}

	dst := uniquePath(filepath.Join(f.outDir, artifact.Name))
	if err := moveFile(artifact.Path, dst); err != nil {
		return nil, utils.WrapError(err, "failed to save download", map[string]any{"path": dst})
	}
	return &saved{Path: dst, Tracks: len(result.Tracks), Skipped: result.Skipped}, nil
}

// uniquePath appends " (n)" before the extension until the name is free.
func uniquePath(path string) string {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return path
	}
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s (%d)%s", stem, i, ext)
		if _, err := os.Stat(candidate); errors.Is(err, os.ErrNotExist) {
			return candidate
		}
	}
}

// moveFile renames src to dst, copying when they are on different filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, outputFileMode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return err
	}
	return os.Remove(src)
}

// bar renders downloader progress as a terminal progress bar, one run per item.
type bar struct {
	pb *progressbar.ProgressBar
}

func newBar(w io.Writer, description string) *bar {
	if w == nil {
		return &bar{}
	}
	return &bar{pb: progressbar.NewOptions(100,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetWidth(30),
	)}
}

func (b *bar) report(p downloader.Progress) {
	if b.pb == nil {
		return
	}
	switch p.Stage {
	case downloader.StageResolving:
		b.pb.Describe("resolving")
	case downloader.StageItemStarted:
		b.pb.Reset()
		b.pb.Describe(fmt.Sprintf("[%d/%d] %s", p.Index, p.Total, p.Title))
	case downloader.StageDownloading:
		_ = b.pb.Set(int(p.Percent))
	case downloader.StageConverting:
		_ = b.pb.Set(100)
		b.pb.Describe("converting " + p.Title)
	case downloader.StageItemFailed:
		logutils.Log.WithField("item", p.Title).Warn("Item skipped")
	}
}

func (b *bar) finish() {
	if b.pb != nil {
		_ = b.pb.Finish()
	}
}
