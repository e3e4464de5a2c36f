package manager

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// ErrShuttingDown is returned for work submitted after Shutdown started.
var ErrShuttingDown = errors.New("download manager is shutting down")

// Task is one download request. ctx is cancelled on timeout or shutdown.
type Task func(ctx context.Context)

// Service is what request handlers need from the manager.
type Service interface {
	// Submit starts task in the background. queued reports that every slot was busy
	// and the task waits for one.
	Submit(name string, task Task) (queued bool, err error)
	// Run executes task on the calling goroutine once a slot is free.
	Run(ctx context.Context, name string, task Task) error
	ActiveCount() int
	QueuedCount() int
	Slots() int
}

// DownloadManager bounds concurrent downloads with a weighted semaphore.
type DownloadManager struct {
	sem     *semaphore.Weighted
	slots   int
	timeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	active map[string]time.Time
	queued int
	closed bool
}
