package bot

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/NikitaDmitryuk/telegram-music-bot/internal/logutils"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/utils"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// permanent marks err as not worth retrying.
func permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

type retryAfterError struct {
	err   error
	delay time.Duration
}

func (e *retryAfterError) Error() string { return e.err.Error() }
func (e *retryAfterError) Unwrap() error { return e.err }

// withRetry calls fn up to attempts times, doubling the delay after each failure.
// A flood-control reply from Telegram overrides the delay with its retry_after.
func withRetry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if attempt == attempts {
			break
		}

		wait := delay
		var ra *retryAfterError
		if errors.As(err, &ra) && ra.delay > 0 {
			wait = ra.delay
		}
		logutils.Log.WithError(err).WithFields(map[string]any{
			"attempt": attempt,
			"wait":    wait,
		}).Warn("Upload failed, retrying")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}

	var ra *retryAfterError
	if errors.As(err, &ra) {
		return ra.err
	}
	return err
}

// classifyAPIError sorts bot API failures into too large, rate limited, permanent and transient.
func classifyAPIError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	switch {
	case apiErr.Code == http.StatusRequestEntityTooLarge:
		return permanent(utils.CausedBy(utils.ErrArtifactTooLarge, err))
	case apiErr.Code == http.StatusTooManyRequests:
		return &retryAfterError{err: err, delay: time.Duration(apiErr.RetryAfter) * time.Second}
	case apiErr.Code >= 400 && apiErr.Code < 500:
		return permanent(err)
	default:
		return err
	}
}

func isNotModified(err error) bool {
	return err != nil && strings.Contains(err.Error(), "message is not modified")
}
