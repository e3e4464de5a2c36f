package utils

import (
	"errors"
	"strings"
	"unicode/utf8"
)

var (
	ErrUnrecognizedURL    = errors.New("unrecognized link")
	ErrDownloadFailed     = errors.New("download failed")
	ErrConversionFailed   = errors.New("conversion failed")
	ErrPackagingFailed    = errors.New("packaging failed")
	ErrArtifactTooLarge   = errors.New("file too large to send")
	ErrDeliveryFailed     = errors.New("delivery failed")
	ErrRateLimited        = errors.New("rate limit exceeded")
	ErrConfigurationError = errors.New("configuration error")
	ErrInsufficientSpace  = errors.New("not enough disk space")
)

// maxUserErrorLength keeps tool output readable inside a chat reply.
const maxUserErrorLength = 300

type WrappedError struct {
	Err     error
	Message string
	Context map[string]any
}

func (w *WrappedError) Error() string {
	if w.Message != "" {
		return w.Message + ": " + w.Err.Error()
	}
	return w.Err.Error()
}

func (w *WrappedError) Unwrap() error {
	return w.Err
}

func WrapError(err error, message string, ctx map[string]any) error {
	return &WrappedError{
		Err:     err,
		Message: message,
		Context: ctx,
	}
}

// CausedBy wraps cause under the sentinel kind so both match with errors.Is.
func CausedBy(kind, cause error) error {
	if cause == nil {
		return kind
	}
	return &kindError{kind: kind, cause: cause}
}

type kindError struct {
	kind  error
	cause error
}

func (e *kindError) Error() string {
	return e.kind.Error() + ": " + e.cause.Error()
}

func (e *kindError) Unwrap() []error {
	return []error{e.kind, e.cause}
}

// RootError returns the innermost error in the chain (for user-facing messages without wrapper text).
func RootError(err error) error {
	for {
		switch e := err.(type) {
		case *kindError:
			err = e.cause
		default:
			next := errors.Unwrap(err)
			if next == nil {
				return err
			}
			err = next
		}
	}
}

// UserErrorMessage returns the root cause of err, reduced to its last meaningful line
// and truncated so it fits a chat reply.
func UserErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.TrimSpace(RootError(err).Error())
	if lines := strings.Split(msg, "\n"); len(lines) > 1 {
		for i := len(lines) - 1; i >= 0; i-- {
			if line := strings.TrimSpace(lines[i]); line != "" {
				msg = line
				break
			}
		}
	}
	if utf8.RuneCountInString(msg) > maxUserErrorLength {
		runes := []rune(msg)
		msg = string(runes[:maxUserErrorLength]) + "…"
	}
	return msg
}
