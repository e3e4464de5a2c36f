package ratelimit

import (
	"sync"
	"time"

	"github.com/NikitaDmitryuk/telegram-music-bot/internal/logutils"
	"golang.org/x/time/rate"
)

const (
	idleBucketTTL   = 24 * time.Hour
	cleanupInterval = time.Hour
)

// Limiter decides whether a chat may start another download.
type Limiter interface {
	Allow(chatID int64) bool
}

// ChatLimiter keeps one token bucket per chat. perMinute requests refill evenly over a
// minute and up to perMinute may be spent at once.
type ChatLimiter struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	buckets  map[int64]*bucket
	lastSweep time.Time
	now      func() time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// New returns a per-chat limiter, or a no-op limiter when perMinute is not positive.
func New(perMinute int) Limiter {
	if perMinute <= 0 {
		return NoOpLimiter{}
	}
	return &ChatLimiter{
		limit:   rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   perMinute,
		buckets: make(map[int64]*bucket),
		now:     time.Now,
	}
}

func (l *ChatLimiter) Allow(chatID int64) bool {
	now := l.now()

	l.mu.Lock()
	l.sweep(now)
	b, ok := l.buckets[chatID]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[chatID] = b
	}
	b.lastSeen = now
	l.mu.Unlock()

	if b.limiter.AllowN(now, 1) {
		return true
	}
	logutils.Log.WithField("chat_id", chatID).Debug("Rate limit exceeded")
	return false
}

// sweep drops buckets of chats idle for a day. Callers hold l.mu.
func (l *ChatLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < cleanupInterval {
		return
	}
	l.lastSweep = now
	for chatID, b := range l.buckets {
		if now.Sub(b.lastSeen) > idleBucketTTL {
			delete(l.buckets, chatID)
		}
	}
}

// NoOpLimiter allows everything.
type NoOpLimiter struct{}

func (NoOpLimiter) Allow(int64) bool { return true }
