package metadata

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/NikitaDmitryuk/telegram-music-bot/internal/logutils"
	"github.com/go-resty/resty/v2"
)

const (
	youtubeAPIBaseURL = "https://www.googleapis.com/youtube/v3"
	youtubeAPITimeout = 10 * time.Second
)

// YouTubeAPI searches videos through the YouTube Data API v3.
type YouTubeAPI struct {
	Client  *resty.Client
	APIKey  string
	BaseURL string
}

type youtubeSearchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title        string `json:"title"`
			ChannelTitle string `json:"channelTitle"`
		} `json:"snippet"`
	} `json:"items"`
}

func NewYouTubeAPI(apiKey, proxy string) *YouTubeAPI {
	return newYouTubeAPI(youtubeAPIBaseURL, apiKey, proxy)
}

func newYouTubeAPI(baseURL, apiKey, proxy string) *YouTubeAPI {
	client := resty.New().SetBaseURL(baseURL).SetTimeout(youtubeAPITimeout)
	if proxy != "" {
		client.SetProxy(proxy)
	}
	logutils.Log.Debugf("Initialized YouTube Data API client with baseURL: %s", baseURL)
	return &YouTubeAPI{Client: client, APIKey: apiKey, BaseURL: baseURL}
}

// Search returns the watch URL of the most relevant video for query.
func (y *YouTubeAPI) Search(ctx context.Context, query string) (string, error) {
	params := url.Values{}
	params.Set("key", y.APIKey)
	params.Set("q", query)
	params.Set("part", "snippet")
	params.Set("type", "video")
	params.Set("maxResults", "1")
	params.Set("order", "relevance")

	logutils.Log.WithField("query", query).Debug("Searching YouTube Data API")

	resp, err := y.Client.R().
		SetContext(ctx).
		SetQueryString(params.Encode()).
		SetResult(&youtubeSearchResponse{}).
		Get("/search")
	if err != nil {
		return "", fmt.Errorf("failed to perform YouTube search request: %w", err)
	}
	if resp.IsError() {
		logutils.Log.WithField("status", resp.Status()).Warn("YouTube Data API returned error status")
		return "", fmt.Errorf("youtube search error: %s", resp.Status())
	}

	result, ok := resp.Result().(*youtubeSearchResponse)
	if !ok || result == nil {
		return "", fmt.Errorf("failed to parse YouTube search response")
	}
	for _, item := range result.Items {
		if item.ID.VideoID != "" {
			logutils.Log.WithFields(map[string]any{
				"query": query,
				"title": item.Snippet.Title,
			}).Debug("YouTube search match")
			return "https://www.youtube.com/watch?v=" + item.ID.VideoID, nil
		}
	}
	return "", nil
}
