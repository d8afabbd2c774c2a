package syncer

import (
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	vxerrors "github.com/vaultidx/vaultidx/internal/errors"
)

// InstanceLock guards the data directory against concurrent writers.
// Two processes syncing the same index would corrupt the secondary
// indexes even with SQLite's own locking, so only one instance may run.
type InstanceLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewInstanceLock creates a lock at <dataDir>/.vaultidx.lock.
func NewInstanceLock(dataDir string) *InstanceLock {
	path := filepath.Join(dataDir, ".vaultidx.lock")
	return &InstanceLock{path: path, flock: flock.New(path)}
}

// Acquire takes the lock without blocking. Another live instance makes
// this fail immediately.
func (l *InstanceLock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return vxerrors.Wrapf(vxerrors.ErrCodeVaultIO, err, "create lock directory")
	}
	acquired, err := l.flock.TryLock()
	if err != nil {
		return vxerrors.Wrapf(vxerrors.ErrCodeVaultIO, err, "acquire instance lock")
	}
	if !acquired {
		return vxerrors.New(vxerrors.ErrCodeConfigInvalid,
			"another vaultidx instance is using this data directory", nil).
			WithDetail("lock", l.path).
			WithSuggestion("stop the other instance or use a different data directory")
	}
	l.locked = true
	return nil
}

// Release drops the lock. Safe to call when not held.
func (l *InstanceLock) Release() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	return l.flock.Unlock()
}
