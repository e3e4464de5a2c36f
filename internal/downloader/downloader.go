package downloader

import (
	"context"

	"github.com/NikitaDmitryuk/telegram-music-bot/internal/classifier"
)

// Stage tells progress listeners what a Downloader is doing.
type Stage int

const (
	StageResolving Stage = iota
	StageItemStarted
	StageDownloading
	StageConverting
	StageItemFailed
)

type Progress struct {
	Stage   Stage
	Index   int // 1-based position inside a playlist, 0 for single tracks
	Total   int
	Title   string
	Percent float64
}

type ProgressFunc func(Progress)

// Job is one fetch request. Dir is the request workspace; every file the Downloader
// writes must stay inside it.
type Job struct {
	URL      string
	Platform classifier.Platform
	Kind     classifier.Kind
	Dir      string
	MaxItems int
	Progress ProgressFunc
}

// Report calls the progress callback if one is set.
func (j Job) Report(p Progress) {
	if j.Progress != nil {
		j.Progress(p)
	}
}

// Track is one converted MP3. DisplayName follows "Artist - Title".
type Track struct {
	Path        string
	DisplayName string
	Artist      string
	Title       string
}

type Result struct {
	// Title names the playlist or album; for single tracks it is the track's display name.
	Title  string
	Tracks []Track
	// Requested is the number of items the source listed (after the playlist cap).
	Requested int
	Skipped   int
}

type Downloader interface {
	Fetch(ctx context.Context, job Job) (*Result, error)
}

// UpdateOutcome is what one update check found. Version is empty when the tool
// did not report it.
type UpdateOutcome struct {
	Updated bool
	Version string
}

type Updater interface {
	RunUpdate(ctx context.Context) (UpdateOutcome, error)
}
