package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/NikitaDmitryuk/telegram-music-bot/internal/classifier"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/logutils"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/utils"
	"github.com/go-resty/resty/v2"
	"golang.org/x/net/html"
)

const (
	defaultPageTimeout = 15 * time.Second
	browserUserAgent   = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

var (
	appleTitlePattern   = regexp.MustCompile(`^(.+?) by (.+?) on Apple Music$`)
	spotifyTitlePattern = regexp.MustCompile(`^(.+?) - (?:song|single|album|ep)(?: and lyrics)? by (.+?) \| Spotify$`)
	spotifySuffix       = regexp.MustCompile(`\s*\|\s*Spotify.*$`)
	slugPattern         = regexp.MustCompile(`/(?:album|song)/([^/?#]+)`)
	trailingDigits      = regexp.MustCompile(`\s+\d+$`)
)

// PageResolver reads song names from the public HTML of Spotify and Apple Music pages:
// Open Graph tags, music:* tags and JSON-LD blocks.
type PageResolver struct {
	client *resty.Client
}

func NewPageResolver(proxy string) *PageResolver {
	client := resty.New().
		SetTimeout(defaultPageTimeout).
		SetHeader("User-Agent", browserUserAgent).
		SetHeader("Accept-Language", "en-US,en;q=0.9").
		SetRetryCount(1)
	if proxy != "" {
		client.SetProxy(proxy)
	}
	return &PageResolver{client: client}
}

func (r *PageResolver) Resolve(ctx context.Context, pageURL string, kind classifier.Kind, limit int) (*Resolution, error) {
	if songURL, ok := appleSongURL(pageURL); ok {
		logutils.Log.WithField("url", pageURL).Debug("Apple Music album link points at a single song")
		pageURL = songURL
		kind = classifier.Track
	}

	meta, err := r.fetch(ctx, pageURL)
	if err != nil {
		if kind == classifier.Track {
			if title := titleFromSlug(pageURL); title != "" {
				logutils.Log.WithError(err).WithField("url", pageURL).Warn("Page fetch failed, using title from link")
				return &Resolution{Title: title, Tracks: []TrackRef{{Title: title}}}, nil
			}
		}
		return nil, utils.CausedBy(utils.ErrDownloadFailed, err)
	}

	if kind == classifier.Track {
		track := meta.track()
		if track.Title == "" {
			return nil, utils.CausedBy(utils.ErrDownloadFailed, errors.New("could not find the song title on the page"))
		}
		return &Resolution{Title: utils.DisplayName(track.Artist, track.Title), Tracks: []TrackRef{track}}, nil
	}

	res := &Resolution{Title: meta.collectionTitle()}
	res.Tracks = meta.ldTracks
	if len(res.Tracks) == 0 {
		res.Tracks = r.resolveSongPages(ctx, meta.songs, limit)
	}
	if limit > 0 && len(res.Tracks) > limit {
		res.Tracks = res.Tracks[:limit]
	}
	if len(res.Tracks) == 0 {
		return nil, utils.CausedBy(utils.ErrDownloadFailed, errors.New("no tracks found on the page"))
	}

	logutils.Log.WithFields(map[string]any{
		"url":    pageURL,
		"title":  res.Title,
		"tracks": len(res.Tracks),
	}).Info("Resolved collection page")
	return res, nil
}

func (r *PageResolver) resolveSongPages(ctx context.Context, songURLs []string, limit int) []TrackRef {
	var tracks []TrackRef
	for _, songURL := range songURLs {
		if limit > 0 && len(tracks) >= limit {
			break
		}
		if ctx.Err() != nil {
			break
		}
		meta, err := r.fetch(ctx, songURL)
		if err != nil {
			logutils.Log.WithError(err).WithField("url", songURL).Warn("Failed to resolve song page")
			continue
		}
		if track := meta.track(); track.Title != "" {
			tracks = append(tracks, track)
		}
	}
	return tracks
}

func (r *PageResolver) fetch(ctx context.Context, pageURL string) (*pageMeta, error) {
	resp, err := r.client.R().SetContext(ctx).Get(pageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("page returned %s", resp.Status())
	}
	return parsePage(resp.Body())
}

type pageMeta struct {
	title         string
	ogTitle       string
	ogDescription string
	musician      string
	songs         []string
	ldName        string
	ldArtist      string
	ldTracks      []TrackRef
}

func parsePage(body []byte) (*pageMeta, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}

	meta := &pageMeta{}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if meta.title == "" && n.FirstChild != nil {
					meta.title = cleanText(n.FirstChild.Data)
				}
			case "meta":
				meta.addMeta(n)
			case "script":
				if attr(n, "type") == "application/ld+json" && n.FirstChild != nil {
					meta.addLD(n.FirstChild.Data)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return meta, nil
}

func (m *pageMeta) addMeta(n *html.Node) {
	key := attr(n, "property")
	if key == "" {
		key = attr(n, "name")
	}
	content := cleanText(attr(n, "content"))
	if content == "" {
		return
	}
	switch key {
	case "og:title":
		m.ogTitle = content
	case "og:description":
		m.ogDescription = content
	case "music:musician_description":
		if m.musician == "" {
			m.musician = content
		}
	case "music:song":
		m.songs = append(m.songs, content)
	}
}

type ldDocument struct {
	Type     string          `json:"@type"`
	Name     string          `json:"name"`
	ByArtist json.RawMessage `json:"byArtist"`
	Tracks   []ldDocument    `json:"tracks"`
}

type ldName struct {
	Name string `json:"name"`
}

func (d ldDocument) artist() string {
	if len(d.ByArtist) == 0 {
		return ""
	}
	var many []ldName
	if err := json.Unmarshal(d.ByArtist, &many); err == nil {
		names := make([]string, 0, len(many))
		for _, a := range many {
			if a.Name != "" {
				names = append(names, a.Name)
			}
		}
		return strings.Join(names, ", ")
	}
	var one ldName
	if err := json.Unmarshal(d.ByArtist, &one); err == nil {
		return one.Name
	}
	return ""
}

func (m *pageMeta) addLD(raw string) {
	var doc ldDocument
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return
	}
	switch doc.Type {
	case "MusicRecording":
		m.ldName = doc.Name
		m.ldArtist = doc.artist()
	case "MusicAlbum", "MusicPlaylist":
		m.ldName = doc.Name
		m.ldArtist = doc.artist()
		for _, t := range doc.Tracks {
			if t.Name == "" {
				continue
			}
			artist := t.artist()
			if artist == "" {
				artist = m.ldArtist
			}
			m.ldTracks = append(m.ldTracks, TrackRef{Artist: artist, Title: t.Name, Album: doc.Name})
		}
	}
}

// track picks the best artist/title pair the page offers.
func (m *pageMeta) track() TrackRef {
	if m.ldName != "" && m.ldArtist != "" && len(m.ldTracks) == 0 {
		return TrackRef{Artist: m.ldArtist, Title: m.ldName}
	}
	for _, candidate := range []string{m.ogTitle, m.title} {
		if match := appleTitlePattern.FindStringSubmatch(candidate); match != nil {
			return TrackRef{Artist: match[2], Title: match[1]}
		}
		if match := spotifyTitlePattern.FindStringSubmatch(candidate); match != nil {
			return TrackRef{Artist: match[2], Title: match[1]}
		}
	}

	title := m.ogTitle
	if title == "" {
		title = strings.TrimSpace(spotifySuffix.ReplaceAllString(m.title, ""))
	}
	artist := m.musician
	if artist == "" && m.ogDescription != "" {
		// Spotify: "Artist · Album · Song · 2020"
		if parts := strings.Split(m.ogDescription, " · "); len(parts) > 1 {
			artist = strings.TrimSpace(parts[0])
		}
	}
	return TrackRef{Artist: artist, Title: title}
}

func (m *pageMeta) collectionTitle() string {
	if m.ldName != "" {
		return m.ldName
	}
	for _, candidate := range []string{m.ogTitle, m.title} {
		if match := appleTitlePattern.FindStringSubmatch(candidate); match != nil {
			return match[1]
		}
		if match := spotifyTitlePattern.FindStringSubmatch(candidate); match != nil {
			return match[1]
		}
	}
	if m.ogTitle != "" {
		return m.ogTitle
	}
	return strings.TrimSpace(spotifySuffix.ReplaceAllString(m.title, ""))
}

// appleSongURL rewrites /<cc>/album/<slug>/<id>?i=<song> to the song's own page.
func appleSongURL(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	songID := u.Query().Get("i")
	if songID == "" {
		return "", false
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) < 2 || segments[1] != "album" {
		return "", false
	}
	return (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/" + segments[0] + "/song/" + songID}).String(), true
}

// titleFromSlug turns /album/some-song-name/123 into "some song name".
func titleFromSlug(raw string) string {
	match := slugPattern.FindStringSubmatch(raw)
	if match == nil {
		return ""
	}
	title, err := url.PathUnescape(match[1])
	if err != nil {
		title = match[1]
	}
	title = strings.NewReplacer("-", " ", "_", " ").Replace(title)
	title = strings.TrimSpace(trailingDigits.ReplaceAllString(title, ""))
	if len(title) <= 3 {
		return ""
	}
	return title
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func cleanText(s string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(s), "\u200e\u200f"))
}
