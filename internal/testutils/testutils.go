package testutils

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/NikitaDmitryuk/telegram-music-bot/internal/config"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/database"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/downloader"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/utils"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const testFileMode = 0o600

// TestConfig creates a configuration suitable for testing
func TestConfig(tempDir string) *config.Config {
	return &config.Config{
		BotToken: "test-bot-token",
		Lang:     "en",
		LogLevel: "debug",
		TempDir:  tempDir,

		AudioSettings: config.AudioConfig{Bitrate: config.DefaultAudioBitrate},

		DownloadSettings: config.DownloadConfig{
			MaxConcurrentDownloads: 1,
			MaxPlaylistItems:       config.DefaultMaxPlaylistItems,
			DownloadTimeout:        30 * time.Second,
			MaxUploadSize:          config.DefaultMaxUploadSize,
		},

		ToolSettings: config.ToolConfig{
			YtdlpPath:  "yt-dlp",
			FFmpegPath: "ffmpeg",
		},

		CleanupSettings: config.CleanupConfig{
			Interval: time.Minute,
			MaxAge:   time.Hour,
		},
	}
}

// TextMessage builds an incoming private-chat text update. Commands get the
// bot_command entity Telegram attaches to them.
func TextMessage(chatID int64, messageID int, text string) *tgbotapi.Message {
	msg := &tgbotapi.Message{
		MessageID: messageID,
		Chat:      &tgbotapi.Chat{ID: chatID, Type: "private"},
		From:      &tgbotapi.User{ID: chatID, UserName: "tester"},
		Text:      text,
	}
	if len(text) > 1 && text[0] == '/' {
		end := len(text)
		for i, r := range text {
			if r == ' ' {
				end = i
				break
			}
		}
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: end}}
	}
	return msg
}

// FakeTrack is what FakeDownloader writes for one item.
type FakeTrack struct {
	DisplayName string
	Content     string
	Fail        bool
}

// FakeDownloader writes MP3 stand-ins into the job workspace.
type FakeDownloader struct {
	mu    sync.Mutex
	Title string
	Items []FakeTrack
	// Err, if set, is returned before anything is written.
	Err error
	// Block makes Fetch wait for ctx cancellation after writing the first file.
	Block bool

	Jobs []downloader.Job
}

var _ downloader.Downloader = (*FakeDownloader)(nil)

func (f *FakeDownloader) Fetch(ctx context.Context, job downloader.Job) (*downloader.Result, error) {
	f.mu.Lock()
	f.Jobs = append(f.Jobs, job)
	f.mu.Unlock()

	job.Report(downloader.Progress{Stage: downloader.StageResolving})
	if f.Err != nil {
		return nil, f.Err
	}

	result := &downloader.Result{Title: f.Title, Requested: len(f.Items)}
	for i, item := range f.Items {
		if len(f.Items) > 1 {
			job.Report(downloader.Progress{Stage: downloader.StageItemStarted, Index: i + 1, Total: len(f.Items), Title: item.DisplayName})
		}
		if item.Fail {
			result.Skipped++
			continue
		}
		path := filepath.Join(job.Dir, fmt.Sprintf("%03d %s.mp3", i+1, item.DisplayName))
		if err := os.WriteFile(path, []byte(item.Content), testFileMode); err != nil {
			return nil, err
		}
		result.Tracks = append(result.Tracks, downloader.Track{Path: path, DisplayName: item.DisplayName})

		if f.Block {
			<-ctx.Done()
			return nil, ctx.Err()
		}
	}
	if len(result.Tracks) == 0 {
		return nil, utils.CausedBy(utils.ErrDownloadFailed, errors.New("nothing downloaded"))
	}
	if result.Title == "" {
		result.Title = result.Tracks[0].DisplayName
	}
	return result, nil
}

// JobCount returns how many times Fetch was called.
func (f *FakeDownloader) JobCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Jobs)
}

// MemoryJournal is an in-process journal for handler tests.
type MemoryJournal struct {
	mu      sync.Mutex
	Entries []database.Entry
}

func (j *MemoryJournal) Record(_ context.Context, entry database.Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Entries = append(j.Entries, entry)
	return nil
}

func (j *MemoryJournal) Stats(context.Context) (database.Stats, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var stats database.Stats
	for _, e := range j.Entries {
		switch e.Status {
		case database.StatusCompleted:
			stats.Completed++
		case database.StatusFailed:
			stats.Failed++
		}
	}
	return stats, nil
}

func (*MemoryJournal) Close() error { return nil }

// Snapshot returns a copy of the recorded entries.
func (j *MemoryJournal) Snapshot() []database.Entry {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]database.Entry(nil), j.Entries...)
}
