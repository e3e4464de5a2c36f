package workspace

import (
	"syscall"

	"github.com/NikitaDmitryuk/telegram-music-bot/internal/logutils"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/utils"
	"github.com/dustin/go-humanize"
)

// AvailableSpace reports the bytes an unprivileged process may still write under path.
func AvailableSpace(path string) (uint64, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return 0, err
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}

// CheckSpace fails with ErrInsufficientSpace when fewer than required bytes are free
// under the root. A non-positive required skips the check.
func (m *Manager) CheckSpace(required int64) error {
	if required <= 0 {
		return nil
	}
	available, err := AvailableSpace(m.root)
	if err != nil {
		logutils.Log.WithError(err).WithField("path", m.root).Error("Failed to get filesystem stats")
		return nil
	}

	logutils.Log.WithFields(map[string]any{
		"required_space":  humanize.Bytes(uint64(required)),
		"available_space": humanize.Bytes(available),
	}).Debug("Checking available disk space")

	if available < uint64(required) {
		return utils.WrapError(utils.ErrInsufficientSpace, "not enough free space in temp directory", map[string]any{
			"path":      m.root,
			"required":  required,
			"available": available,
		})
	}
	return nil
}
