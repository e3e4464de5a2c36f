package workspace

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/NikitaDmitryuk/telegram-music-bot/internal/logutils"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/utils"
	"github.com/google/uuid"
)

const (
	dirPrefix = "req-"
	dirPerm   = 0o755
)

// Manager owns TEMP_DIR. Every request works inside its own req-<uuid> directory,
// so concurrent requests never share file names.
type Manager struct {
	root   string
	mu     sync.Mutex
	active map[string]struct{}
}

// Workspace is a request-scoped directory. Cleanup removes it with everything inside.
type Workspace struct {
	ID  string
	Dir string

	manager *Manager
	once    sync.Once
}

func NewManager(root string) (*Manager, error) {
	if err := os.MkdirAll(root, dirPerm); err != nil {
		return nil, utils.WrapError(err, "failed to create temp directory", map[string]any{"path": root})
	}
	return &Manager{root: root, active: make(map[string]struct{})}, nil
}

func (m *Manager) Root() string {
	return m.root
}

// Create allocates a fresh workspace and marks it active so the janitor leaves it alone.
func (m *Manager) Create() (*Workspace, error) {
	id := uuid.NewString()
	dir := filepath.Join(m.root, dirPrefix+id)

	// Registered before it exists so a concurrent Sweep never sees it unowned.
	m.mu.Lock()
	m.active[dir] = struct{}{}
	m.mu.Unlock()

	if err := os.Mkdir(dir, dirPerm); err != nil {
		m.mu.Lock()
		delete(m.active, dir)
		m.mu.Unlock()
		return nil, utils.WrapError(err, "failed to create workspace", map[string]any{"path": dir})
	}

	logutils.Log.WithField("workspace", dir).Debug("Workspace created")
	return &Workspace{ID: id, Dir: dir, manager: m}, nil
}

// ActiveCount is the number of workspaces that have not been cleaned up yet.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// Path joins name onto the workspace directory.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.Dir, name)
}

// Cleanup removes the workspace. It is safe to call more than once.
func (w *Workspace) Cleanup() error {
	var err error
	w.once.Do(func() {
		err = os.RemoveAll(w.Dir)
		if w.manager != nil {
			w.manager.mu.Lock()
			delete(w.manager.active, w.Dir)
			w.manager.mu.Unlock()
		}
		if err != nil {
			logutils.Log.WithError(err).WithField("workspace", w.Dir).Error("Failed to remove workspace")
			return
		}
		logutils.Log.WithField("workspace", w.Dir).Debug("Workspace removed")
	})
	return err
}

// Sweep removes inactive req-* workspaces under the root that are older than maxAge.
// A zero maxAge removes every workspace not in use. Anything else under the root is
// left alone. It returns the number of removed workspaces.
func (m *Manager) Sweep(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		return 0, utils.WrapError(err, "failed to read temp directory", map[string]any{"path": m.root})
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		path := filepath.Join(m.root, entry.Name())
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), dirPrefix) {
			continue
		}
		if m.isActive(path) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if maxAge > 0 && info.ModTime().After(cutoff) {
			continue
		}
		if err := os.RemoveAll(path); err != nil {
			logutils.Log.WithError(err).WithField("path", path).Warn("Failed to remove stale workspace")
			continue
		}
		removed++
	}

	if removed > 0 {
		logutils.Log.WithField("removed", removed).Info("Stale workspaces removed")
	}
	return removed, nil
}

func (m *Manager) isActive(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.active[path]
	return ok
}

// StartJanitor sweeps stale workspaces every interval until ctx is done.
func (m *Manager) StartJanitor(ctx context.Context, interval, maxAge time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logutils.Log.WithFields(map[string]any{
		"interval": interval,
		"max_age":  maxAge,
	}).Info("Starting workspace janitor")

	for {
		select {
		case <-ctx.Done():
			logutils.Log.Info("Stopping workspace janitor")
			return
		case <-ticker.C:
			if _, err := m.Sweep(maxAge); err != nil {
				logutils.Log.WithError(err).Warn("Workspace sweep failed")
			}
		}
	}
}
