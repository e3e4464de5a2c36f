package transcode

import (
	"context"
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/NikitaDmitryuk/telegram-music-bot/internal/logutils"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/process"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/utils"
)

const defaultFFmpegBinary = "ffmpeg"

// Metadata is written into the ID3v2 tag of the produced MP3.
type Metadata struct {
	Artist string
	Title  string
	Album  string
	Track  int
}

type Transcoder struct {
	binary   string
	bitrate  int
	executor process.Executor
}

func New(binary string, bitrateKbps int, executor process.Executor) *Transcoder {
	if binary == "" {
		binary = defaultFFmpegBinary
	}
	return &Transcoder{binary: binary, bitrate: bitrateKbps, executor: executor}
}

// ToMP3 encodes src into dst and removes src once dst is written. A failed run leaves
// no partial dst behind.
func (t *Transcoder) ToMP3(ctx context.Context, src, dst string, meta Metadata) error {
	args := t.buildArgs(src, dst, meta)

	logutils.Log.WithFields(map[string]any{
		"src":     src,
		"dst":     dst,
		"bitrate": t.bitrate,
	}).Debug("Converting to MP3")

	out, err := t.executor.Run(ctx, t.binary, args, nil)
	if err != nil {
		_ = os.Remove(dst)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		msg := out.Message()
		if msg == "" {
			msg = err.Error()
		}
		return utils.CausedBy(utils.ErrConversionFailed, errors.New(lastLine(msg)))
	}

	if info, statErr := os.Stat(dst); statErr != nil || info.Size() == 0 {
		_ = os.Remove(dst)
		return utils.CausedBy(utils.ErrConversionFailed, errors.New("ffmpeg produced no output"))
	}

	if src != dst {
		if err := os.Remove(src); err != nil && !os.IsNotExist(err) {
			logutils.Log.WithError(err).WithField("src", src).Warn("Failed to remove source file after conversion")
		}
	}
	return nil
}

func (t *Transcoder) buildArgs(src, dst string, meta Metadata) []string {
	args := []string{
		"-hide_banner", "-loglevel", "error", "-nostdin", "-y",
		"-i", src,
		"-vn", "-map", "0:a:0",
		"-codec:a", "libmp3lame",
		"-b:a", strconv.Itoa(t.bitrate) + "k",
		"-id3v2_version", "3",
		"-map_metadata", "-1",
	}
	if meta.Artist != "" {
		args = append(args, "-metadata", "artist="+meta.Artist)
	}
	if meta.Title != "" {
		args = append(args, "-metadata", "title="+meta.Title)
	}
	if meta.Album != "" {
		args = append(args, "-metadata", "album="+meta.Album)
	}
	if meta.Track > 0 {
		args = append(args, "-metadata", "track="+strconv.Itoa(meta.Track))
	}
	return append(args, dst)
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
