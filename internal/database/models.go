package database

import "time"

// Request is the journal table row.
type Request struct {
	ID         uint   `gorm:"primaryKey"`
	ChatID     int64  `gorm:"index"`
	URL        string `gorm:"not null"`
	Platform   string
	Kind       string
	Status     string `gorm:"index"`
	Tracks     int
	Skipped    int
	Error      string
	DurationMs int64
	CreatedAt  time.Time
}
