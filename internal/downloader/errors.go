package downloader

import (
	"context"
	"errors"

	"github.com/NikitaDmitryuk/telegram-music-bot/internal/utils"
)

// Classify maps a raw tool error to the sentinel the bot reports. Cancellation and
// timeouts pass through untouched, as do errors already carrying a sentinel.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, utils.ErrDownloadFailed),
		errors.Is(err, utils.ErrConversionFailed),
		errors.Is(err, utils.ErrUnrecognizedURL):
		return err
	default:
		return utils.CausedBy(utils.ErrDownloadFailed, err)
	}
}
