// Package metadata turns links the downloader cannot fetch directly (Spotify, Apple Music)
// into YouTube searches, and lists YouTube playlists.
package metadata

import (
	"context"
	"strings"

	"github.com/NikitaDmitryuk/telegram-music-bot/internal/classifier"
)

// TrackRef names a song without pointing at any audio.
type TrackRef struct {
	Artist string
	Title  string
	Album  string
}

// Query is the text used to look the song up on YouTube.
func (t TrackRef) Query() string {
	switch {
	case t.Artist == "":
		return t.Title
	case t.Title == "":
		return t.Artist
	case strings.Contains(strings.ToLower(t.Title), strings.ToLower(t.Artist)):
		return t.Title
	default:
		return t.Artist + " " + t.Title
	}
}

// Resolution is what a page resolves to: a collection title and its songs in order.
type Resolution struct {
	Title  string
	Tracks []TrackRef
}

type Resolver interface {
	Resolve(ctx context.Context, pageURL string, kind classifier.Kind, limit int) (*Resolution, error)
}

// VideoSearcher finds the watch URL of the best match for a query. An empty URL
// with a nil error means nothing was found.
type VideoSearcher interface {
	Search(ctx context.Context, query string) (string, error)
}

type PlaylistEntry struct {
	URL    string
	Title  string
	Author string
}

type Playlist struct {
	Title   string
	Entries []PlaylistEntry
}

type PlaylistLister interface {
	List(ctx context.Context, playlistURL string, limit int) (*Playlist, error)
}
