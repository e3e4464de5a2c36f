package transcode

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/NikitaDmitryuk/telegram-music-bot/internal/logutils"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/process"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/utils"
)

func TestMain(m *testing.M) {
	logutils.InitLogger("error")
	os.Exit(m.Run())
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("audio"), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestToMP3(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "source.webm")
	dst := filepath.Join(dir, "Artist - Song.mp3")
	writeFile(t, src)

	executor := process.NewMockExecutor()
	executor.SetHandler("ffmpeg", func(args []string) (process.Output, error) {
		writeFile(t, args[len(args)-1])
		return process.Output{}, nil
	})

	tr := New("", 192, executor)
	err := tr.ToMP3(context.Background(), src, dst, Metadata{Artist: "Artist", Title: "Song"})
	if err != nil {
		t.Fatalf("ToMP3: %v", err)
	}

	if _, err := os.Stat(dst); err != nil {
		t.Errorf("mp3 missing: %v", err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Errorf("source should be removed after conversion")
	}

	args := executor.GetCommands()[0].Args
	for _, want := range []string{"libmp3lame", "192k", "artist=Artist", "title=Song"} {
		if !slices.Contains(args, want) {
			t.Errorf("args %v missing %q", args, want)
		}
	}
}

func TestToMP3Failure(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "source.webm")
	dst := filepath.Join(dir, "out.mp3")
	writeFile(t, src)

	executor := process.NewMockExecutor()
	executor.SetHandler("ffmpeg", func(args []string) (process.Output, error) {
		writeFile(t, args[len(args)-1])
		return process.Output{Stderr: []byte("Stream map '0:a:0' matches no streams.")}, errors.New("exit status 1")
	})

	err := New("ffmpeg", 192, executor).ToMP3(context.Background(), src, dst, Metadata{})
	if !errors.Is(err, utils.ErrConversionFailed) {
		t.Fatalf("expected ErrConversionFailed, got %v", err)
	}
	if utils.UserErrorMessage(err) != "Stream map '0:a:0' matches no streams." {
		t.Errorf("unexpected message %q", utils.UserErrorMessage(err))
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Error("partial output should be removed")
	}
}

func TestToMP3EmptyOutput(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "source.webm")
	writeFile(t, src)

	err := New("ffmpeg", 128, process.NewMockExecutor()).ToMP3(context.Background(), src, filepath.Join(dir, "out.mp3"), Metadata{})
	if !errors.Is(err, utils.ErrConversionFailed) {
		t.Fatalf("expected ErrConversionFailed, got %v", err)
	}
}

func TestToMP3Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := New("ffmpeg", 192, process.NewMockExecutor()).ToMP3(ctx, "in", filepath.Join(t.TempDir(), "out.mp3"), Metadata{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
