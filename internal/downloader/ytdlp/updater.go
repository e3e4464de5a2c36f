package ytdlp

import (
	"bufio"
	"context"
	"strings"
	"time"

	"github.com/NikitaDmitryuk/telegram-music-bot/internal/downloader"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/process"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/utils"
)

const updateTimeout = 3 * time.Minute

type ytdlpUpdater struct {
	binaryPath string
	executor   process.Executor
}

// RunUpdate runs "yt-dlp -U" and reports whether a new build was installed.
func (u *ytdlpUpdater) RunUpdate(ctx context.Context) (downloader.UpdateOutcome, error) {
	updateCtx, cancel := context.WithTimeout(ctx, updateTimeout)
	defer cancel()

	output, err := u.executor.Run(updateCtx, u.binaryPath, []string{"-U"}, nil)
	out := strings.TrimSpace(string(output.Stdout) + "\n" + string(output.Stderr))
	if err != nil {
		return downloader.UpdateOutcome{}, utils.WrapError(err, "yt-dlp -U failed", map[string]any{
			"binary": u.binaryPath,
			"output": out,
		})
	}
	return parseUpdateOutput(out), nil
}

// parseUpdateOutput reads the version yt-dlp -U ends up on. It prints
// "Updated yt-dlp to <version>" after installing and
// "yt-dlp is up to date (<version>)" or "Latest version: <version>" otherwise.
func parseUpdateOutput(out string) downloader.UpdateOutcome {
	var outcome downloader.UpdateOutcome
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "Updated yt-dlp to "):
			outcome.Updated = true
			outcome.Version = strings.TrimPrefix(line, "Updated yt-dlp to ")
		case strings.HasPrefix(line, "yt-dlp is up to date (") && !outcome.Updated:
			outcome.Version = strings.TrimSuffix(strings.TrimPrefix(line, "yt-dlp is up to date ("), ")")
		case strings.HasPrefix(line, "Latest version: ") && outcome.Version == "":
			outcome.Version = strings.TrimPrefix(line, "Latest version: ")
		}
	}
	return outcome
}

func NewUpdater(binaryPath string, executor process.Executor) downloader.Updater {
	if binaryPath == "" {
		binaryPath = defaultYtdlpBinary
	}
	return &ytdlpUpdater{binaryPath: binaryPath, executor: executor}
}
