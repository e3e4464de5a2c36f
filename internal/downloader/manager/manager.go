package manager

import (
	"context"
	"time"

	"github.com/NikitaDmitryuk/telegram-music-bot/internal/config"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/logutils"
	"golang.org/x/sync/semaphore"
)

func NewDownloadManager(settings config.DownloadConfig) *DownloadManager {
	slots := settings.MaxConcurrentDownloads
	if slots <= 0 {
		slots = config.DefaultMaxConcurrentDownloads
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &DownloadManager{
		sem:     semaphore.NewWeighted(int64(slots)),
		slots:   slots,
		timeout: settings.DownloadTimeout,
		ctx:     ctx,
		cancel:  cancel,
		active:  make(map[string]time.Time),
	}
}

func (dm *DownloadManager) Submit(name string, task Task) (bool, error) {
	dm.mu.Lock()
	if dm.closed {
		dm.mu.Unlock()
		return false, ErrShuttingDown
	}
	dm.wg.Add(1)
	dm.mu.Unlock()

	if dm.sem.TryAcquire(1) {
		go dm.execute(dm.ctx, name, task)
		return false, nil
	}

	dm.mu.Lock()
	dm.queued++
	position := dm.queued
	dm.mu.Unlock()

	logutils.Log.WithFields(map[string]any{
		"request":  name,
		"position": position,
	}).Info("All download slots busy, request queued")

	go func() {
		err := dm.sem.Acquire(dm.ctx, 1)
		dm.mu.Lock()
		dm.queued--
		dm.mu.Unlock()
		if err != nil {
			// the task still runs, with a cancelled context, so it can release what it holds
			logutils.Log.WithField("request", name).Warn("Dropping queued request on shutdown")
			defer dm.wg.Done()
			task(dm.ctx)
			return
		}
		dm.execute(dm.ctx, name, task)
	}()
	return true, nil
}

func (dm *DownloadManager) Run(ctx context.Context, name string, task Task) error {
	dm.mu.Lock()
	if dm.closed {
		dm.mu.Unlock()
		return ErrShuttingDown
	}
	dm.wg.Add(1)
	dm.mu.Unlock()

	if err := dm.sem.Acquire(ctx, 1); err != nil {
		dm.wg.Done()
		return err
	}
	dm.execute(ctx, name, task)
	return nil
}

// execute runs task holding one slot. The slot is released even if task panics.
func (dm *DownloadManager) execute(parent context.Context, name string, task Task) {
	ctx, cancel := dm.jobContext(parent)
	started := time.Now()

	dm.mu.Lock()
	dm.active[name] = started
	dm.mu.Unlock()

	defer func() {
		cancel()
		dm.mu.Lock()
		delete(dm.active, name)
		dm.mu.Unlock()
		dm.sem.Release(1)
		dm.wg.Done()

		if r := recover(); r != nil {
			logutils.Log.WithField("request", name).Errorf("Download task panicked: %v", r)
		}
		logutils.Log.WithFields(map[string]any{
			"request":  name,
			"duration": time.Since(started).Round(time.Millisecond),
		}).Debug("Download slot released")
	}()

	task(ctx)
}

// jobContext derives the request context. A zero timeout means no deadline. Shutdown
// cancels tasks started from Submit even when the caller's context is unrelated.
func (dm *DownloadManager) jobContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(dm.ctx, cancel)
	release := func() {
		stop()
		cancel()
	}
	if dm.timeout <= 0 {
		return ctx, release
	}
	timed, cancelTimed := context.WithTimeout(ctx, dm.timeout)
	return timed, func() {
		cancelTimed()
		release()
	}
}

func (dm *DownloadManager) ActiveCount() int {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return len(dm.active)
}

func (dm *DownloadManager) QueuedCount() int {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return dm.queued
}

func (dm *DownloadManager) Slots() int {
	return dm.slots
}

// StopAllDownloads cancels running and queued tasks without waiting for them.
func (dm *DownloadManager) StopAllDownloads() {
	dm.mu.Lock()
	dm.closed = true
	running := len(dm.active)
	dm.mu.Unlock()

	logutils.Log.WithField("active", running).Info("Stopping all downloads")
	dm.cancel()
}

// Shutdown stops all downloads and waits until their cleanup finished or ctx ends.
func (dm *DownloadManager) Shutdown(ctx context.Context) error {
	dm.StopAllDownloads()

	done := make(chan struct{})
	go func() {
		dm.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (*DownloadManager) Name() string {
	return "download manager"
}
