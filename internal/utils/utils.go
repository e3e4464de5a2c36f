package utils

import (
	"os"
	"regexp"
	"strings"
)

const (
	maxFileNameLength = 120
	unknownArtist     = "Unknown Artist"
	unknownTitle      = "Unknown Title"
)

var (
	unsafeFileNameChars = regexp.MustCompile(`[\\/:*?"<>|\x00-\x1f]+`)
	repeatedSpaces      = regexp.MustCompile(`\s{2,}`)
	bracketNoise        = regexp.MustCompile(`(?i)\s*[\[(](official[^\])]*|lyrics?[^\])]*|audio|hd|hq|4k|mv|m/v)[\])]`)
)

// SanitizeFileName strips characters that are not allowed in file names on common
// filesystems and in zip entries. Spaces, dashes and unicode letters are kept.
func SanitizeFileName(name string) string {
	cleaned := unsafeFileNameChars.ReplaceAllString(name, " ")
	cleaned = repeatedSpaces.ReplaceAllString(cleaned, " ")
	cleaned = strings.Trim(cleaned, " .")
	if runes := []rune(cleaned); len(runes) > maxFileNameLength {
		cleaned = strings.TrimSpace(string(runes[:maxFileNameLength]))
	}
	return cleaned
}

// CleanTrackTitle removes the usual "(Official Video)" style decorations from an uploaded title.
func CleanTrackTitle(title string) string {
	return strings.TrimSpace(repeatedSpaces.ReplaceAllString(bracketNoise.ReplaceAllString(title, ""), " "))
}

// DisplayName renders the "Artist - Title" convention. A title that already starts
// with the artist is not prefixed twice.
func DisplayName(artist, title string) string {
	artist = strings.TrimSpace(artist)
	title = CleanTrackTitle(title)
	switch {
	case artist == "" && title == "":
		return unknownArtist + " - " + unknownTitle
	case artist == "":
		if strings.Contains(title, " - ") {
			return title
		}
		return unknownArtist + " - " + title
	case title == "":
		return artist + " - " + unknownTitle
	case strings.HasPrefix(strings.ToLower(title), strings.ToLower(artist)+" - "):
		return title
	default:
		return artist + " - " + title
	}
}

// AudioFileName turns a display name into a safe "Artist - Title.mp3" file name.
func AudioFileName(displayName string) string {
	name := SanitizeFileName(displayName)
	if name == "" {
		name = unknownArtist + " - " + unknownTitle
	}
	return name + ".mp3"
}

func IsEmptyDirectory(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	return len(entries) == 0
}
