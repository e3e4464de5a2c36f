package ytdlp

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/NikitaDmitryuk/telegram-music-bot/internal/logutils"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/process"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/utils"
)

const (
	defaultYtdlpBinary = "yt-dlp"
	printPrefix        = "TMB"
	fieldSeparator     = "\t"
	audioFormat        = "bestaudio/best"
)

// printTemplate makes yt-dlp report every finished file on one stdout line.
var printTemplate = strings.Join([]string{
	printPrefix,
	"%(filepath)s",
	"%(artist,creator,uploader,channel|)s",
	"%(track,title|)s",
	"%(album|)s",
	"%(playlist_index|0)s",
	"%(playlist_title|)s",
}, fieldSeparator)

var (
	percentPattern = regexp.MustCompile(`^\[download\]\s+(\d+(?:\.\d+)?)%`)
	itemPattern    = regexp.MustCompile(`^\[download\] Downloading (?:item|video) (\d+) of (\d+)`)
)

// fetchedFile is one file yt-dlp reported after moving it into place.
type fetchedFile struct {
	Path          string
	Artist        string
	Title         string
	Album         string
	Index         int
	PlaylistTitle string
}

type fetchOptions struct {
	Playlist bool
	MaxItems int
	// Prefix keeps names of separately fetched items apart inside one workspace.
	Prefix string
}

type listener struct {
	onPercent func(float64)
	onItem    func(index, total int)
}

// Runner drives the yt-dlp binary.
type Runner struct {
	binary   string
	proxy    string
	executor process.Executor
}

func NewRunner(binary, proxy string, executor process.Executor) *Runner {
	if binary == "" {
		binary = defaultYtdlpBinary
	}
	return &Runner{binary: binary, proxy: proxy, executor: executor}
}

func (r *Runner) buildArgs(target, dir string, opts fetchOptions) []string {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "src"
	}
	args := []string{
		"--newline",
		"--no-warnings",
		"--no-colors",
		"--no-mtime",
		"--embed-metadata",
		"-f", audioFormat,
		"-o", filepath.Join(dir, prefix+"-%(playlist_index|0)s-%(id)s.%(ext)s"),
		"--print", "after_move:" + printTemplate,
	}
	if opts.Playlist {
		args = append(args, "--yes-playlist", "--ignore-errors")
		if opts.MaxItems > 0 {
			args = append(args, "--playlist-end", strconv.Itoa(opts.MaxItems))
		}
	} else {
		args = append(args, "--no-playlist")
	}
	if r.proxy != "" {
		args = append(args, "--proxy", r.proxy)
	}
	return append(args, "--", target)
}

// Fetch downloads target into dir. In playlist mode partial success is returned with
// the number of failed items; otherwise any failure is an error.
func (r *Runner) Fetch(ctx context.Context, target, dir string, opts fetchOptions, l listener) ([]fetchedFile, int, error) {
	args := r.buildArgs(target, dir, opts)

	logutils.Log.WithFields(map[string]any{
		"target":   target,
		"playlist": opts.Playlist,
	}).Info("Starting yt-dlp download")

	var files []fetchedFile
	out, runErr := r.executor.Run(ctx, r.binary, args, func(line string) {
		if file, ok := parsePrintLine(line); ok {
			files = append(files, file)
			return
		}
		if match := itemPattern.FindStringSubmatch(line); match != nil && l.onItem != nil {
			index, _ := strconv.Atoi(match[1])
			total, _ := strconv.Atoi(match[2])
			l.onItem(index, total)
			return
		}
		if match := percentPattern.FindStringSubmatch(line); match != nil && l.onPercent != nil {
			if percent, err := strconv.ParseFloat(match[1], 64); err == nil {
				l.onPercent(percent)
			}
		}
	})

	files = existingFiles(files, dir)
	failures := countErrors(out.Stderr)

	if runErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, 0, ctxErr
		}
		if !opts.Playlist || len(files) == 0 {
			msg := toolMessage(out, runErr)
			logutils.Log.WithError(runErr).WithField("target", target).Errorf("yt-dlp failed: %s", msg)
			return nil, failures, utils.CausedBy(utils.ErrDownloadFailed, errors.New(msg))
		}
		logutils.Log.WithFields(map[string]any{
			"target":   target,
			"fetched":  len(files),
			"failures": failures,
		}).Warn("yt-dlp finished with errors, keeping downloaded items")
		if failures == 0 {
			failures = 1
		}
	}

	if len(files) == 0 {
		return nil, failures, utils.CausedBy(utils.ErrDownloadFailed, errors.New("yt-dlp produced no audio file"))
	}
	return files, failures, nil
}

func parsePrintLine(line string) (fetchedFile, bool) {
	if !strings.HasPrefix(line, printPrefix+fieldSeparator) {
		return fetchedFile{}, false
	}
	fields := strings.Split(line, fieldSeparator)
	if len(fields) < 7 || fields[1] == "" {
		return fetchedFile{}, false
	}
	index, _ := strconv.Atoi(fields[5])
	return fetchedFile{
		Path:          fields[1],
		Artist:        placeholderToEmpty(fields[2]),
		Title:         placeholderToEmpty(fields[3]),
		Album:         placeholderToEmpty(fields[4]),
		Index:         index,
		PlaylistTitle: placeholderToEmpty(fields[6]),
	}, true
}

// placeholderToEmpty drops yt-dlp's "NA" marker for missing fields.
func placeholderToEmpty(s string) string {
	s = strings.TrimSpace(s)
	if s == "NA" {
		return ""
	}
	return s
}

// existingFiles keeps reported files that exist inside dir.
func existingFiles(files []fetchedFile, dir string) []fetchedFile {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		absDir = dir
	}
	kept := files[:0]
	for _, f := range files {
		absPath, err := filepath.Abs(f.Path)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(absDir, absPath)
		if err != nil || strings.HasPrefix(rel, "..") {
			logutils.Log.WithField("path", f.Path).Warn("yt-dlp reported a file outside the workspace")
			continue
		}
		if _, err := os.Stat(f.Path); err != nil {
			continue
		}
		kept = append(kept, f)
	}
	return kept
}

func countErrors(stderr []byte) int {
	count := 0
	for _, line := range strings.Split(string(stderr), "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "ERROR:") {
			count++
		}
	}
	return count
}

// toolMessage picks the last ERROR line yt-dlp wrote, or the last line of any output.
func toolMessage(out process.Output, err error) string {
	lines := strings.Split(strings.TrimSpace(string(out.Stderr)), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); strings.HasPrefix(line, "ERROR:") {
			return strings.TrimSpace(strings.TrimPrefix(line, "ERROR:"))
		}
	}
	if msg := out.Message(); msg != "" {
		all := strings.Split(msg, "\n")
		return strings.TrimSpace(all[len(all)-1])
	}
	return err.Error()
}
