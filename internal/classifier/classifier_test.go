package classifier

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		platform Platform
		kind     Kind
		url      string
	}{
		{
			name:     "Spotify track",
			input:    "https://open.spotify.com/track/abc123",
			platform: Spotify,
			kind:     Track,
			url:      "https://open.spotify.com/track/abc123",
		},
		{
			name:     "Spotify track with share id",
			input:    "https://open.spotify.com/track/abc123?si=deadbeef",
			platform: Spotify,
			kind:     Track,
			url:      "https://open.spotify.com/track/abc123",
		},
		{
			name:     "Upper-case scheme",
			input:    "HTTPS://open.spotify.com/track/abc123",
			platform: Spotify,
			kind:     Track,
			url:      "https://open.spotify.com/track/abc123",
		},
		{
			name:     "Spotify playlist",
			input:    "https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M",
			platform: Spotify,
			kind:     Playlist,
		},
		{
			name:     "Spotify album",
			input:    "https://open.spotify.com/album/4aawyAB9vmqN3uQ7FjRGTy",
			platform: Spotify,
			kind:     Playlist,
		},
		{
			name:     "YouTube watch with tracking",
			input:    "https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42&feature=share",
			platform: YouTube,
			kind:     Track,
			url:      "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		},
		{
			name:     "YouTube short link",
			input:    "https://youtu.be/dQw4w9WgXcQ?si=abc",
			platform: YouTube,
			kind:     Track,
			url:      "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		},
		{
			name:     "YouTube playlist",
			input:    "https://www.youtube.com/playlist?list=PL123&si=x",
			platform: YouTube,
			kind:     Playlist,
			url:      "https://www.youtube.com/playlist?list=PL123",
		},
		{
			name:     "YouTube Music subdomain",
			input:    "https://music.youtube.com/watch?v=abc",
			platform: YouTube,
			kind:     Track,
		},
		{
			name:     "Apple Music album",
			input:    "https://music.apple.com/us/album/some-album/1440857781",
			platform: AppleMusic,
			kind:     Playlist,
		},
		{
			name:     "Apple Music playlist",
			input:    "https://music.apple.com/us/playlist/todays-hits/pl.f4d106fed2bd41149aaacabb233eb5eb",
			platform: AppleMusic,
			kind:     Playlist,
		},
		{
			name:     "Apple Music song",
			input:    "https://music.apple.com/us/song/some-song/1440857790",
			platform: AppleMusic,
			kind:     Track,
		},
		{
			name:     "SoundCloud track",
			input:    "https://soundcloud.com/artist/track-name",
			platform: SoundCloud,
			kind:     Track,
		},
		{
			name:     "SoundCloud mobile",
			input:    "https://m.soundcloud.com/artist/track-name",
			platform: SoundCloud,
			kind:     Track,
		},
		{
			name:     "plain text",
			input:    "not a url",
			platform: Unknown,
			kind:     Track,
			url:      "not a url",
		},
		{
			name:     "empty",
			input:    "   ",
			platform: Unknown,
			kind:     Track,
		},
		{
			name:     "unknown host",
			input:    "https://example.com/album/1",
			platform: Unknown,
			kind:     Track,
		},
		{
			name:     "lookalike host",
			input:    "https://notyoutube.com/watch?v=abc",
			platform: Unknown,
			kind:     Track,
		},
		{
			name:     "no scheme",
			input:    "open.spotify.com/track/abc123",
			platform: Unknown,
			kind:     Track,
		},
		{
			name:     "ftp scheme",
			input:    "ftp://soundcloud.com/a/b",
			platform: Unknown,
			kind:     Track,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.input)
			if got.Platform != tt.platform {
				t.Errorf("Platform = %v, want %v", got.Platform, tt.platform)
			}
			if got.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", got.Kind, tt.kind)
			}
			if tt.url != "" && got.URL != tt.url {
				t.Errorf("URL = %q, want %q", got.URL, tt.url)
			}
		})
	}
}

func TestIsLink(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"https://example.com", true},
		{"  http://example.com/path?q=1  ", true},
		{"HTTPS://music.apple.com/us/album/x/1", true},
		{"Http://example.com", true},
		{"example.com", false},
		{"ftp://example.com", false},
		{"https://example.com/path with spaces", false},
		{"https://example.com\nhttps://other.com", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsLink(tt.input); got != tt.expected {
			t.Errorf("IsLink(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"https://youtu.be/abc123", "https://www.youtube.com/watch?v=abc123"},
		{"https://open.spotify.com/track/x?utm_source=copy&si=1", "https://open.spotify.com/track/x"},
		{"https://music.apple.com/us/album/a/1?i=2", "https://music.apple.com/us/album/a/1?i=2"},
		{"https://soundcloud.com/a/b#t=10", "https://soundcloud.com/a/b"},
		{"not a url", "not a url"},
	}

	for _, tt := range tests {
		if got := NormalizeURL(tt.input); got != tt.want {
			t.Errorf("NormalizeURL(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestStrings(t *testing.T) {
	if AppleMusic.String() != "apple_music" || Unknown.String() != "unknown" {
		t.Errorf("unexpected platform names %q %q", AppleMusic, Unknown)
	}
	if Playlist.String() != "playlist" || Track.String() != "track" {
		t.Errorf("unexpected kind names %q %q", Playlist, Track)
	}
}
