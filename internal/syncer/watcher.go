package syncer

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	vxerrors "github.com/vaultidx/vaultidx/internal/errors"
	"github.com/vaultidx/vaultidx/internal/vault"
)

// Watcher watches the vault for markdown changes and emits debounced
// event batches. Directories are watched recursively; new directories
// are added as they appear.
type Watcher struct {
	fsw       *fsnotify.Watcher
	vault     *vault.Vault
	debouncer *Debouncer
	logger    *slog.Logger
	root      string

	mu      sync.Mutex
	stopped bool
	stopCh  chan struct{}
}

// NewWatcher creates a watcher over the vault root.
func NewWatcher(v *vault.Vault, window time.Duration, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, vxerrors.Wrapf(vxerrors.ErrCodeVaultIO, err, "create filesystem watcher")
	}
	return &Watcher{
		fsw:       fsw,
		vault:     v,
		debouncer: NewDebouncer(window, logger),
		logger:    logger,
		root:      v.Root(),
		stopCh:    make(chan struct{}),
	}, nil
}

// Start watches until the context is cancelled or Stop is called.
// It blocks; run it in its own goroutine.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addRecursive(w.root); err != nil {
		return vxerrors.Wrapf(vxerrors.ErrCodeVaultIO, err, "watch vault directories")
	}
	w.logger.Info("vault watcher started", slog.String("root", w.root))

	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", slog.String("error", err.Error()))
		}
	}
}

// Batches returns the debounced event batches.
func (w *Watcher) Batches() <-chan []Event {
	return w.debouncer.Output()
}

// Stop stops the watcher. Safe to call more than once.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	w.stopped = true
	close(w.stopCh)
	_ = w.fsw.Close()
	w.debouncer.Stop()
}

func (w *Watcher) handle(event fsnotify.Event) {
	relPath, err := filepath.Rel(w.root, event.Name)
	if err != nil || skipPath(relPath) {
		return
	}
	relPath = filepath.ToSlash(relPath)

	info, statErr := os.Stat(event.Name)
	isDir := statErr == nil && info.IsDir()

	if isDir {
		// Watch directories created after startup so nested notes are
		// picked up.
		if event.Op&fsnotify.Create != 0 {
			_ = w.addRecursive(event.Name)
		}
		return
	}
	if !vault.IsMarkdown(relPath) {
		return
	}

	var op Op
	switch {
	case event.Op&fsnotify.Create != 0:
		op = OpCreate
	case event.Op&fsnotify.Write != 0:
		op = OpModify
	case event.Op&fsnotify.Remove != 0, event.Op&fsnotify.Rename != 0:
		// A rename away from the watched tree looks like a delete; if
		// the target landed inside the vault a create event follows.
		op = OpDelete
	default:
		return
	}

	w.debouncer.Add(Event{Path: relPath, Op: op, Timestamp: time.Now()})
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		relPath, _ := filepath.Rel(w.root, path)
		if relPath != "." && skipPath(relPath) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

// skipPath filters hidden files and directories, which covers .git and
// the data directory.
func skipPath(relPath string) bool {
	if relPath == "." || relPath == "" {
		return true
	}
	for _, part := range strings.Split(filepath.ToSlash(relPath), "/") {
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}
