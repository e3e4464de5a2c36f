package utils

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestWrapError(t *testing.T) {
	originalErr := errors.New("original error")
	context := map[string]any{
		"key1": "value1",
		"key2": 123,
	}

	wrappedErr := WrapError(originalErr, "wrapped message", context)

	if !errors.Is(wrappedErr, originalErr) {
		t.Errorf("Wrapped error should contain the original error")
	}

	if wrappedErr.Error() != "wrapped message: original error" {
		t.Errorf("Expected 'wrapped message: original error', got '%s'", wrappedErr.Error())
	}

	var wrappedError *WrappedError
	if !errors.As(wrappedErr, &wrappedError) {
		t.Fatalf("Should be able to assert as WrappedError")
	}
	if len(wrappedError.Context) != 2 {
		t.Errorf("Expected 2 context items, got %d", len(wrappedError.Context))
	}
}

func TestWrappedError_EmptyMessage(t *testing.T) {
	err := WrapError(errors.New("test error"), "", nil)
	if err.Error() != "test error" {
		t.Errorf("expected bare error text, got %q", err.Error())
	}
}

func TestCausedBy_MatchesKindAndCause(t *testing.T) {
	cause := errors.New("yt-dlp exited with status 1")
	err := CausedBy(ErrDownloadFailed, cause)

	if !errors.Is(err, ErrDownloadFailed) {
		t.Error("expected errors.Is(err, ErrDownloadFailed)")
	}
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is(err, cause)")
	}
	if errors.Is(err, ErrConversionFailed) {
		t.Error("did not expect ErrConversionFailed")
	}
	if got := err.Error(); got != "download failed: yt-dlp exited with status 1" {
		t.Errorf("unexpected message %q", got)
	}
}

func TestCausedBy_NilCause(t *testing.T) {
	if err := CausedBy(ErrPackagingFailed, nil); err != ErrPackagingFailed {
		t.Errorf("expected the bare sentinel, got %v", err)
	}
}

func TestRootError(t *testing.T) {
	root := errors.New("ERROR: Video unavailable")
	err := WrapError(CausedBy(ErrDownloadFailed, fmt.Errorf("fetch: %w", root)), "request failed", nil)

	if got := RootError(err); got != root {
		t.Errorf("RootError = %v, want %v", got, root)
	}
}

func TestUserErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "nil",
			err:      nil,
			expected: "",
		},
		{
			name:     "last non-empty line of tool output",
			err:      CausedBy(ErrDownloadFailed, errors.New("WARNING: something\nERROR: Private video\n\n")),
			expected: "ERROR: Private video",
		},
		{
			name:     "single line",
			err:      CausedBy(ErrConversionFailed, errors.New("ffmpeg exited with status 1")),
			expected: "ffmpeg exited with status 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserErrorMessage(tt.err); got != tt.expected {
				t.Errorf("UserErrorMessage() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestUserErrorMessage_Truncates(t *testing.T) {
	long := strings.Repeat("x", maxUserErrorLength+50)
	got := UserErrorMessage(errors.New(long))
	if len([]rune(got)) != maxUserErrorLength+1 {
		t.Errorf("expected %d runes, got %d", maxUserErrorLength+1, len([]rune(got)))
	}
	if !strings.HasSuffix(got, "…") {
		t.Errorf("expected ellipsis suffix, got %q", got[len(got)-5:])
	}
}
