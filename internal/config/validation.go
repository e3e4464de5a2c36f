package config

import (
	"errors"
	"fmt"
	"net/url"
)

func (c *Config) validate() error {
	if err := c.validateRequiredFields(); err != nil {
		return err
	}
	if err := c.ValidateDownloadSettings(); err != nil {
		return err
	}
	if err := c.validateWebhook(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateRequiredFields() error {
	if c.BotToken == "" {
		return errors.New("BOT_TOKEN is required")
	}
	if c.TempDir == "" {
		return errors.New("TEMP_DIR must not be empty")
	}
	return nil
}

// ValidateDownloadSettings checks the settings shared by the bot and the CLI.
func (c *Config) ValidateDownloadSettings() error {
	if c.AudioSettings.Bitrate < minAudioBitrate || c.AudioSettings.Bitrate > maxAudioBitrate {
		return fmt.Errorf("AUDIO_BITRATE must be between %d and %d, got %d",
			minAudioBitrate, maxAudioBitrate, c.AudioSettings.Bitrate)
	}
	if c.DownloadSettings.MaxConcurrentDownloads <= 0 {
		return errors.New("MAX_CONCURRENT_DOWNLOADS must be greater than 0")
	}
	if c.DownloadSettings.MaxPlaylistItems <= 0 {
		return errors.New("MAX_PLAYLIST_ITEMS must be greater than 0")
	}
	if c.DownloadSettings.DownloadTimeout < 0 {
		return errors.New("DOWNLOAD_TIMEOUT must not be negative")
	}
	if c.DownloadSettings.MaxUploadSize <= 0 {
		return errors.New("MAX_UPLOAD_SIZE must be greater than 0")
	}
	if c.DownloadSettings.MinFreeSpace < 0 {
		return errors.New("MIN_FREE_SPACE must not be negative")
	}
	if c.CleanupSettings.Interval < 0 || c.CleanupSettings.MaxAge < 0 {
		return errors.New("CLEANUP_INTERVAL and WORKSPACE_MAX_AGE must not be negative")
	}
	if c.ToolSettings.YtdlpUpdateInterval < 0 {
		return errors.New("YTDLP_UPDATE_INTERVAL must not be negative")
	}
	if c.RateLimitPerMinute < 0 {
		return errors.New("RATE_LIMIT_PER_MINUTE must not be negative")
	}
	if c.Proxy != "" {
		if _, err := url.Parse(c.Proxy); err != nil {
			return fmt.Errorf("PROXY is not a valid URL: %w", err)
		}
	}
	return nil
}

func (c *Config) validateWebhook() error {
	if c.WebhookSettings.URL == "" {
		return nil
	}
	u, err := url.Parse(c.WebhookSettings.URL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("WEBHOOK_URL is not a valid URL: %s", c.WebhookSettings.URL)
	}
	if u.Scheme != "https" {
		return errors.New("WEBHOOK_URL must use https")
	}
	if c.WebhookSettings.Listen == "" {
		return errors.New("WEBHOOK_LISTEN is required when WEBHOOK_URL is set")
	}
	return nil
}
