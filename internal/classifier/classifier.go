package classifier

import (
	"net/url"
	"regexp"
	"strings"
)

type Platform int

const (
	Unknown Platform = iota
	YouTube
	Spotify
	AppleMusic
	SoundCloud
)

func (p Platform) String() string {
	switch p {
	case YouTube:
		return "youtube"
	case Spotify:
		return "spotify"
	case AppleMusic:
		return "apple_music"
	case SoundCloud:
		return "soundcloud"
	default:
		return "unknown"
	}
}

type Kind int

const (
	Track Kind = iota
	Playlist
)

func (k Kind) String() string {
	if k == Playlist {
		return "playlist"
	}
	return "track"
}

// Request is a classified chat message. URL is the normalized link for known platforms
// and the trimmed input otherwise.
type Request struct {
	URL      string
	Platform Platform
	Kind     Kind
}

var linkPattern = regexp.MustCompile(`(?i)^https?://\S+$`)

var platformHosts = []struct {
	host     string
	platform Platform
}{
	{"youtube.com", YouTube},
	{"open.spotify.com", Spotify},
	{"music.apple.com", AppleMusic},
	{"soundcloud.com", SoundCloud},
}

// IsLink reports whether text is a single http(s) link.
func IsLink(text string) bool {
	return linkPattern.MatchString(strings.TrimSpace(text))
}

// Classify maps a message to a platform and kind. It never touches the network.
func Classify(text string) Request {
	text = strings.TrimSpace(text)
	req := Request{URL: text, Platform: Unknown, Kind: Track}
	if !IsLink(text) {
		return req
	}

	u, err := url.Parse(NormalizeURL(text))
	if err != nil || u.Hostname() == "" {
		return req
	}

	req.Platform = platformForHost(u.Hostname())
	if req.Platform == Unknown {
		return req
	}
	req.URL = u.String()
	if hasCollectionSegment(u.Path) {
		req.Kind = Playlist
	}
	return req
}

func platformForHost(host string) Platform {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	for _, candidate := range platformHosts {
		if host == candidate.host || strings.HasSuffix(host, "."+candidate.host) {
			return candidate.platform
		}
	}
	return Unknown
}

func hasCollectionSegment(path string) bool {
	for _, segment := range strings.Split(path, "/") {
		switch strings.ToLower(segment) {
		case "playlist", "album":
			return true
		}
	}
	return false
}

// trackingParams are dropped from every recognized link.
var trackingParams = []string{"si", "feature", "pp", "nd", "ls", "fbclid", "gclid"}

// NormalizeURL rewrites youtu.be short links to watch URLs and removes tracking
// parameters. YouTube watch links keep only v; playlist links keep only list.
// Input that does not parse is returned unchanged.
func NormalizeURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return raw
	}
	host := strings.ToLower(u.Hostname())

	if host == "youtu.be" || host == "www.youtu.be" {
		id := strings.Trim(u.Path, "/")
		if i := strings.Index(id, "/"); i >= 0 {
			id = id[:i]
		}
		if id == "" {
			return raw
		}
		return "https://www.youtube.com/watch?v=" + url.QueryEscape(id)
	}

	query := u.Query()
	if platformForHost(host) == YouTube {
		switch {
		case strings.HasPrefix(u.Path, "/watch") && query.Get("v") != "":
			u.RawQuery = url.Values{"v": {query.Get("v")}}.Encode()
		case hasCollectionSegment(u.Path) && query.Get("list") != "":
			u.RawQuery = url.Values{"list": {query.Get("list")}}.Encode()
		}
		u.Fragment = ""
		return u.String()
	}

	for key := range query {
		if strings.HasPrefix(strings.ToLower(key), "utm_") {
			query.Del(key)
		}
	}
	for _, key := range trackingParams {
		query.Del(key)
	}
	u.RawQuery = query.Encode()
	u.Fragment = ""
	return u.String()
}
