package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/NikitaDmitryuk/telegram-music-bot/internal/logutils"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type SQLiteJournal struct {
	db *gorm.DB
}

var _ Journal = (*SQLiteJournal)(nil)

func NewSQLiteJournal() *SQLiteJournal {
	return &SQLiteJournal{}
}

func (s *SQLiteJournal) Init(dbPath string) error {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if dbPath == ":memory:" {
		// every pooled connection would otherwise see its own empty database
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}

	s.db = db

	if err := s.db.AutoMigrate(&Request{}); err != nil {
		return fmt.Errorf("auto migration failed: %w", err)
	}

	logutils.Log.WithField("path", dbPath).Info("Database initialized successfully")
	return nil
}

func (s *SQLiteJournal) Record(ctx context.Context, entry Entry) error {
	row := Request{
		ChatID:     entry.ChatID,
		URL:        entry.URL,
		Platform:   entry.Platform,
		Kind:       entry.Kind,
		Status:     string(entry.Status),
		Tracks:     entry.Tracks,
		Skipped:    entry.Skipped,
		Error:      entry.Error,
		DurationMs: entry.Duration.Milliseconds(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to record request: %w", err)
	}
	return nil
}

func (s *SQLiteJournal) Stats(ctx context.Context) (Stats, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	err := s.db.WithContext(ctx).Model(&Request{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return Stats{}, fmt.Errorf("failed to read journal stats: %w", err)
	}

	var stats Stats
	for _, r := range rows {
		switch Status(r.Status) {
		case StatusCompleted:
			stats.Completed = r.Count
		case StatusFailed:
			stats.Failed = r.Count
		}
	}
	return stats, nil
}

// Recent returns the latest requests of a chat, newest first.
func (s *SQLiteJournal) Recent(ctx context.Context, chatID int64, limit int) ([]Request, error) {
	var rows []Request
	err := s.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("id desc").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (s *SQLiteJournal) Close() error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Shutdown closes the database for the shutdown manager.
func (s *SQLiteJournal) Shutdown(context.Context) error {
	return s.Close()
}

func (*SQLiteJournal) Name() string {
	return "database"
}
