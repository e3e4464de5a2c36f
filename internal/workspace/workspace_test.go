package workspace

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/NikitaDmitryuk/telegram-music-bot/internal/logutils"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/utils"
)

func TestMain(m *testing.M) {
	logutils.InitLogger("error")
	os.Exit(m.Run())
}

func TestCreateAndCleanup(t *testing.T) {
	m, err := NewManager(filepath.Join(t.TempDir(), "tmp"))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	ws, err := m.Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !strings.HasPrefix(filepath.Base(ws.Dir), "req-") {
		t.Errorf("unexpected workspace name %q", ws.Dir)
	}
	if m.ActiveCount() != 1 {
		t.Errorf("ActiveCount = %d, want 1", m.ActiveCount())
	}

	if err := os.WriteFile(ws.Path("track.webm"), []byte("data"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := ws.Cleanup(); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if err := ws.Cleanup(); err != nil {
		t.Fatalf("second Cleanup: %v", err)
	}

	if _, err := os.Stat(ws.Dir); !os.IsNotExist(err) {
		t.Errorf("workspace still exists: %v", err)
	}
	if m.ActiveCount() != 0 {
		t.Errorf("ActiveCount = %d, want 0", m.ActiveCount())
	}
	if !utils.IsEmptyDirectory(m.Root()) {
		t.Error("temp root should be empty after cleanup")
	}
}

func TestWorkspacesAreUnique(t *testing.T) {
	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		ws, err := m.Create()
		if err != nil {
			t.Fatal(err)
		}
		if seen[ws.Dir] {
			t.Fatalf("duplicate workspace %s", ws.Dir)
		}
		seen[ws.Dir] = true
	}
}

func TestSweep(t *testing.T) {
	root := t.TempDir()
	m, err := NewManager(root)
	if err != nil {
		t.Fatal(err)
	}

	active, err := m.Create()
	if err != nil {
		t.Fatal(err)
	}
	stale := filepath.Join(root, "req-stale")
	if err := os.Mkdir(stale, 0o755); err != nil {
		t.Fatal(err)
	}
	strayFile := filepath.Join(root, "leftover.mp3")
	if err := os.WriteFile(strayFile, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	unrelatedDir := filepath.Join(root, "keep-me")
	if err := os.Mkdir(unrelatedDir, 0o755); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-3 * time.Hour)
	for _, p := range []string{stale, strayFile, active.Dir} {
		if err := os.Chtimes(p, old, old); err != nil {
			t.Fatal(err)
		}
	}

	fresh := filepath.Join(root, "req-fresh")
	if err := os.Mkdir(fresh, 0o755); err != nil {
		t.Fatal(err)
	}

	removed, err := m.Sweep(time.Hour)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Errorf("stale workspace should be removed: %v", err)
	}
	for _, p := range []string{active.Dir, fresh, unrelatedDir, strayFile} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("%s should survive the sweep: %v", p, err)
		}
	}

	removed, err = m.Sweep(0)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Errorf("zero max age sweep removed %d, want 1 (the fresh workspace)", removed)
	}
	if _, err := os.Stat(active.Dir); err != nil {
		t.Errorf("active workspace must never be swept: %v", err)
	}
}

func TestSweepKeepsFilesItDidNotCreate(t *testing.T) {
	root := t.TempDir()
	m, err := NewManager(root)
	if err != nil {
		t.Fatal(err)
	}

	names := []string{"journal.db", "req-notes.txt", "song.mp3"}
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(root, name), []byte("x"), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	removed, err := m.Sweep(0)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if removed != 0 {
		t.Errorf("removed = %d, want 0", removed)
	}
	for _, name := range names {
		if _, err := os.Stat(filepath.Join(root, name)); err != nil {
			t.Errorf("%s should survive the sweep: %v", name, err)
		}
	}
}

func TestCreateFailureLeavesNothingActive(t *testing.T) {
	root := filepath.Join(t.TempDir(), "tmp")
	m, err := NewManager(root)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.RemoveAll(root); err != nil {
		t.Fatal(err)
	}

	if _, err := m.Create(); err == nil {
		t.Fatal("Create should fail when the temp root is gone")
	}
	if m.ActiveCount() != 0 {
		t.Errorf("ActiveCount = %d, want 0", m.ActiveCount())
	}
}

func TestSweepNeverRemovesWorkspaceBeingCreated(t *testing.T) {
	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	stop := make(chan struct{})
	swept := make(chan struct{})
	go func() {
		defer close(swept)
		for {
			select {
			case <-stop:
				return
			default:
				_, _ = m.Sweep(0)
			}
		}
	}()

	for i := 0; i < 200; i++ {
		ws, err := m.Create()
		if err != nil {
			close(stop)
			t.Fatalf("Create: %v", err)
		}
		if _, err := os.Stat(ws.Dir); err != nil {
			close(stop)
			t.Fatalf("workspace swept while in use: %v", err)
		}
		if err := ws.Cleanup(); err != nil {
			close(stop)
			t.Fatal(err)
		}
	}
	close(stop)
	<-swept
}

func TestStartJanitorStopsOnCancel(t *testing.T) {
	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.StartJanitor(ctx, 10*time.Millisecond, time.Hour)
		close(done)
	}()
	time.Sleep(25 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop after cancel")
	}
}

func TestStartJanitorZeroInterval(t *testing.T) {
	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	done := make(chan struct{})
	go func() {
		m.StartJanitor(context.Background(), 0, time.Hour)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("StartJanitor with zero interval should return immediately")
	}
}

func TestCheckSpace(t *testing.T) {
	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	if err := m.CheckSpace(0); err != nil {
		t.Errorf("CheckSpace(0) error = %v", err)
	}
	if err := m.CheckSpace(1); err != nil {
		t.Errorf("CheckSpace(1) error = %v", err)
	}
	if err := m.CheckSpace(1 << 62); !errors.Is(err, utils.ErrInsufficientSpace) {
		t.Errorf("CheckSpace(huge) error = %v, want ErrInsufficientSpace", err)
	}
}
