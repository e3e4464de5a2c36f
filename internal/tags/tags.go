package tags

import (
	"os"
	"strings"

	"github.com/dhowden/tag"
)

// Info is the subset of tag data the bot shows to users.
type Info struct {
	Artist string
	Title  string
	Album  string
}

// Read returns the artist, title and album stored in an audio file's tags.
func Read(path string) (Info, error) {
	file, err := os.Open(path)
	if err != nil {
		return Info{}, err
	}
	defer file.Close()

	metadata, err := tag.ReadFrom(file)
	if err != nil {
		return Info{}, err
	}

	artist := strings.TrimSpace(metadata.Artist())
	if artist == "" {
		artist = strings.TrimSpace(metadata.AlbumArtist())
	}
	return Info{
		Artist: artist,
		Title:  strings.TrimSpace(metadata.Title()),
		Album:  strings.TrimSpace(metadata.Album()),
	}, nil
}

// ReadOr returns the tags of path, falling back to the given values for anything missing
// or unreadable.
func ReadOr(path string, fallback Info) Info {
	info, err := Read(path)
	if err != nil {
		return fallback
	}
	if info.Artist == "" {
		info.Artist = fallback.Artist
	}
	if info.Title == "" {
		info.Title = fallback.Title
	}
	if info.Album == "" {
		info.Album = fallback.Album
	}
	return info
}
