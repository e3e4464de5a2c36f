package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/NikitaDmitryuk/telegram-music-bot/internal/logutils"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/utils"
	"github.com/joho/godotenv"
)

const (
	DefaultAudioBitrate           = 192
	DefaultMaxPlaylistItems       = 20
	DefaultMaxConcurrentDownloads = 1
	DefaultDownloadTimeout        = 0 // 0 means no timeout (infinite)
	DefaultMaxUploadSize          = 50 * 1024 * 1024
	DefaultCleanupInterval        = 30 * time.Minute
	DefaultWorkspaceMaxAge        = 2 * time.Hour
	DefaultRateLimitPerMinute     = 6
	DefaultWebhookListen          = ":8080"
	DefaultMinFreeSpace           = 100 * 1024 * 1024

	minAudioBitrate = 32
	maxAudioBitrate = 320
)

type Config struct {
	BotToken      string
	Lang          string
	LogLevel      string
	TempDir       string
	YouTubeAPIKey string
	Proxy         string
	DatabasePath  string

	// RateLimitPerMinute caps download requests per chat; 0 disables the limiter.
	RateLimitPerMinute int

	AudioSettings    AudioConfig
	DownloadSettings DownloadConfig
	ToolSettings     ToolConfig
	CleanupSettings  CleanupConfig
	WebhookSettings  WebhookConfig
}

type AudioConfig struct {
	// Bitrate in kbit/s for the MP3 encoder.
	Bitrate int
}

type DownloadConfig struct {
	MaxConcurrentDownloads int
	MaxPlaylistItems       int
	DownloadTimeout        time.Duration
	MaxUploadSize          int64
	// MinFreeSpace is checked under TEMP_DIR before a download starts; 0 disables it.
	MinFreeSpace int64
}

type ToolConfig struct {
	YtdlpPath           string
	FFmpegPath          string
	YtdlpUpdateOnStart  bool
	YtdlpUpdateInterval time.Duration
}

type CleanupConfig struct {
	Interval time.Duration
	MaxAge   time.Duration
}

type WebhookConfig struct {
	URL    string
	Listen string
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return intValue
		}
		logutils.Log.WithField("key", key).Warnf("Invalid integer %q, using default %d", value, defaultValue)
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
			return duration
		}
		logutils.Log.WithField("key", key).Warnf("Invalid duration %q, using default %s", value, defaultValue)
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}

// loadDotEnv reads a .env file into the process environment. Variables already set win.
func loadDotEnv(path string) {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logutils.Log.WithField("path", path).Debug("No .env file found, using process environment")
			return
		}
		logutils.Log.WithError(err).WithField("path", path).Warn("Failed to load .env file")
	}
}

// Load reads the configuration without validating it. Entry points that do not talk
// to Telegram (the CLI) use it directly.
func Load() *Config {
	loadDotEnv(getEnv("ENV_FILE", ".env"))

	return &Config{
		BotToken:           getEnv("BOT_TOKEN", ""),
		Lang:               normalizeLang(getEnv("LANG", "en")),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		TempDir:            getEnv("TEMP_DIR", filepath.Join(os.TempDir(), "telegram-music-bot")),
		YouTubeAPIKey:      getEnv("YOUTUBE_API_KEY", ""),
		Proxy:              getEnv("PROXY", ""),
		DatabasePath:       getEnv("DATABASE_PATH", ""),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", DefaultRateLimitPerMinute),

		AudioSettings: AudioConfig{
			Bitrate: getEnvInt("AUDIO_BITRATE", DefaultAudioBitrate),
		},

		DownloadSettings: DownloadConfig{
			MaxConcurrentDownloads: getEnvInt("MAX_CONCURRENT_DOWNLOADS", DefaultMaxConcurrentDownloads),
			MaxPlaylistItems:       getEnvInt("MAX_PLAYLIST_ITEMS", DefaultMaxPlaylistItems),
			DownloadTimeout:        getEnvDuration("DOWNLOAD_TIMEOUT", DefaultDownloadTimeout),
			MaxUploadSize:          int64(getEnvInt("MAX_UPLOAD_SIZE", DefaultMaxUploadSize)),
			MinFreeSpace:           int64(getEnvInt("MIN_FREE_SPACE", DefaultMinFreeSpace)),
		},

		ToolSettings: ToolConfig{
			YtdlpPath:           getEnv("YTDLP_PATH", "yt-dlp"),
			FFmpegPath:          getEnv("FFMPEG_PATH", "ffmpeg"),
			YtdlpUpdateOnStart:  getEnvBool("YTDLP_UPDATE_ON_START", false),
			YtdlpUpdateInterval: getEnvDuration("YTDLP_UPDATE_INTERVAL", 0),
		},

		CleanupSettings: CleanupConfig{
			Interval: getEnvDuration("CLEANUP_INTERVAL", DefaultCleanupInterval),
			MaxAge:   getEnvDuration("WORKSPACE_MAX_AGE", DefaultWorkspaceMaxAge),
		},

		WebhookSettings: WebhookConfig{
			URL:    getEnv("WEBHOOK_URL", ""),
			Listen: getEnv("WEBHOOK_LISTEN", DefaultWebhookListen),
		},
	}
}

// NewConfig loads and validates the bot configuration. A missing BOT_TOKEN is an error.
func NewConfig() (*Config, error) {
	config := Load()

	if err := config.validate(); err != nil {
		return nil, utils.WrapError(err, "configuration validation failed", map[string]any{
			"lang":      config.Lang,
			"temp_dir":  config.TempDir,
			"log_level": config.LogLevel,
		})
	}

	return config, nil
}

// normalizeLang turns values such as "ru_RU.UTF-8" into "ru".
func normalizeLang(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if i := strings.IndexAny(value, "_.-@"); i > 0 {
		value = value[:i]
	}
	if value == "" || value == "c" || value == "posix" {
		return "en"
	}
	return value
}
