package metadata

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/NikitaDmitryuk/telegram-music-bot/internal/logutils"
	"github.com/kkdai/youtube/v2"
)

const playlistTimeout = 30 * time.Second

// YouTubePlaylists lists playlist entries with kkdai/youtube, without downloading anything.
type YouTubePlaylists struct {
	client *youtube.Client
}

func NewYouTubePlaylists(proxy string) *YouTubePlaylists {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxy != "" {
		if proxyURL, err := url.Parse(proxy); err == nil {
			transport.Proxy = http.ProxyURL(proxyURL)
		} else {
			logutils.Log.WithError(err).Warn("Ignoring invalid proxy for playlist listing")
		}
	}
	return &YouTubePlaylists{
		client: &youtube.Client{HTTPClient: &http.Client{Timeout: playlistTimeout, Transport: transport}},
	}
}

func (p *YouTubePlaylists) List(ctx context.Context, playlistURL string, limit int) (*Playlist, error) {
	playlist, err := p.client.GetPlaylistContext(ctx, playlistURL)
	if err != nil {
		return nil, fmt.Errorf("failed to list playlist: %w", err)
	}

	result := &Playlist{Title: playlist.Title}
	for _, entry := range playlist.Videos {
		if entry == nil || entry.ID == "" {
			continue
		}
		if limit > 0 && len(result.Entries) >= limit {
			break
		}
		result.Entries = append(result.Entries, PlaylistEntry{
			URL:    "https://www.youtube.com/watch?v=" + entry.ID,
			Title:  entry.Title,
			Author: entry.Author,
		})
	}

	logutils.Log.WithFields(map[string]any{
		"playlist": playlist.Title,
		"listed":   len(result.Entries),
		"total":    len(playlist.Videos),
	}).Debug("Listed YouTube playlist")
	return result, nil
}
