package packager

import (
	"archive/zip"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/NikitaDmitryuk/telegram-music-bot/internal/downloader"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/logutils"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/utils"
)

const fallbackArchiveName = "playlist.zip"

// Artifact is the single file sent back to the user.
type Artifact struct {
	Path    string
	Name    string
	Archive bool
	Tracks  []downloader.Track
}

// Size returns the artifact size in bytes.
func (a Artifact) Size() (int64, error) {
	info, err := os.Stat(a.Path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Package turns a download result into one artifact. A single track is returned as is;
// several tracks are zipped into dir, one "Artist - Title.mp3" entry each, in order.
func Package(result *downloader.Result, dir string) (Artifact, error) {
	if result == nil || len(result.Tracks) == 0 {
		return Artifact{}, utils.CausedBy(utils.ErrDownloadFailed, errors.New("no tracks to package"))
	}

	if len(result.Tracks) == 1 {
		track := result.Tracks[0]
		return Artifact{
			Path:   track.Path,
			Name:   utils.AudioFileName(track.DisplayName),
			Tracks: result.Tracks,
		}, nil
	}

	name := archiveName(result.Title)
	path := filepath.Join(dir, name)
	if err := writeArchive(path, result.Tracks); err != nil {
		_ = os.Remove(path)
		return Artifact{}, utils.WrapError(utils.CausedBy(utils.ErrPackagingFailed, err), "failed to build archive", map[string]any{
			"archive": path,
			"tracks":  len(result.Tracks),
		})
	}

	logutils.Log.WithFields(map[string]any{
		"archive": name,
		"tracks":  len(result.Tracks),
	}).Info("Playlist packaged")

	return Artifact{Path: path, Name: name, Archive: true, Tracks: result.Tracks}, nil
}

func archiveName(title string) string {
	name := utils.SanitizeFileName(title)
	if name == "" {
		return fallbackArchiveName
	}
	return name + ".zip"
}

func writeArchive(path string, tracks []downloader.Track) (err error) {
	out, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := out.Close(); err == nil {
			err = closeErr
		}
	}()

	zw := zip.NewWriter(out)
	for _, track := range tracks {
		if err := addEntry(zw, track); err != nil {
			_ = zw.Close()
			return err
		}
	}
	return zw.Close()
}

func addEntry(zw *zip.Writer, track downloader.Track) error {
	src, err := os.Open(track.Path)
	if err != nil {
		return err
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return err
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = utils.AudioFileName(track.DisplayName)
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, src)
	return err
}
