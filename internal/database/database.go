package database

import (
	"context"
	"time"

	"github.com/NikitaDmitryuk/telegram-music-bot/internal/config"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/logutils"
)

// Status is the outcome of one download request.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Entry is one finished request as the journal stores it.
type Entry struct {
	ChatID   int64
	URL      string
	Platform string
	Kind     string
	Status   Status
	Tracks   int
	Skipped  int
	Error    string
	Duration time.Duration
}

// Stats are the journal totals shown by /status.
type Stats struct {
	Completed int64
	Failed    int64
}

// Journal records finished requests.
type Journal interface {
	Record(ctx context.Context, entry Entry) error
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

// NewJournal opens the SQLite journal at config.DatabasePath. An empty path disables
// the journal.
func NewJournal(config *config.Config) (Journal, error) {
	if config.DatabasePath == "" {
		logutils.Log.Info("DATABASE_PATH not set, request journal disabled")
		return NoopJournal{}, nil
	}

	journal := NewSQLiteJournal()
	if err := journal.Init(config.DatabasePath); err != nil {
		logutils.Log.WithError(err).Error("Failed to initialize the database")
		return nil, err
	}
	return journal, nil
}

// NoopJournal drops every entry.
type NoopJournal struct{}

func (NoopJournal) Record(context.Context, Entry) error  { return nil }
func (NoopJournal) Stats(context.Context) (Stats, error) { return Stats{}, nil }
func (NoopJournal) Close() error                         { return nil }
