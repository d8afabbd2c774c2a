// Package vault is the content store: a directory tree of human-edited
// markdown notes, organized into purpose-based folders. The vault is the
// sole source of truth; every other store in vaultidx is derived from it
// and can be discarded.
package vault

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	vxerrors "github.com/vaultidx/vaultidx/internal/errors"
)

// Vault provides safe access to the notes directory. All paths are
// relative to the root and validated before any I/O.
type Vault struct {
	root string
}

// NoteInfo describes a markdown file on disk.
type NoteInfo struct {
	Path       string // relative, slash-separated
	SizeBytes  int64
	ModifiedAt time.Time
}

// New creates a Vault for the given root directory, creating it if absent.
func New(root string) (*Vault, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, vxerrors.ValidationError("invalid vault root", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, vxerrors.Wrap(vxerrors.ErrCodeVaultIO, err)
	}
	return &Vault{root: abs}, nil
}

// Root returns the absolute vault root.
func (v *Vault) Root() string {
	return v.root
}

// Resolve validates a relative note path and returns its absolute location.
// Paths that are absolute, contain "..", or otherwise resolve outside the
// root are rejected before any I/O.
func (v *Vault) Resolve(rel string) (string, error) {
	if rel == "" {
		return "", vxerrors.ValidationError("path is empty", nil)
	}
	rel = filepath.FromSlash(rel)
	if filepath.IsAbs(rel) {
		return "", vxerrors.PathEscape(rel)
	}

	abs := filepath.Join(v.root, rel)
	// Join cleans the path; anything still outside the root escaped.
	if abs != v.root && !strings.HasPrefix(abs, v.root+string(filepath.Separator)) {
		return "", vxerrors.PathEscape(rel)
	}
	return abs, nil
}

// Read returns the full content of a note.
func (v *Vault) Read(rel string) (string, error) {
	abs, err := v.Resolve(rel)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", vxerrors.NotFound(rel)
		}
		return "", vxerrors.Wrap(vxerrors.ErrCodeVaultIO, err)
	}
	return string(data), nil
}

// ReadLines returns a window of a note, startLine 1-based inclusive.
// lineCount <= 0 means through end of file.
func (v *Vault) ReadLines(rel string, startLine, lineCount int) (string, error) {
	content, err := v.Read(rel)
	if err != nil {
		return "", err
	}
	if startLine <= 0 {
		startLine = 1
	}
	lines := strings.Split(content, "\n")
	if startLine > len(lines) {
		return "", nil
	}
	end := len(lines)
	if lineCount > 0 && startLine-1+lineCount < end {
		end = startLine - 1 + lineCount
	}
	return strings.Join(lines[startLine-1:end], "\n"), nil
}

// Stat returns file info for a note.
func (v *Vault) Stat(rel string) (*NoteInfo, error) {
	abs, err := v.Resolve(rel)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, vxerrors.NotFound(rel)
		}
		return nil, vxerrors.Wrap(vxerrors.ErrCodeVaultIO, err)
	}
	return &NoteInfo{Path: filepath.ToSlash(rel), SizeBytes: info.Size(), ModifiedAt: info.ModTime()}, nil
}

// List walks the vault and returns every markdown file, sorted by path.
// Hidden directories (including the data dir) are skipped.
func (v *Vault) List() ([]*NoteInfo, error) {
	var notes []*NoteInfo
	err := filepath.WalkDir(v.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != v.root && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !IsMarkdown(name) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(v.root, path)
		if err != nil {
			return err
		}
		notes = append(notes, &NoteInfo{
			Path:       filepath.ToSlash(rel),
			SizeBytes:  info.Size(),
			ModifiedAt: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, vxerrors.Wrap(vxerrors.ErrCodeVaultIO, err)
	}
	sort.Slice(notes, func(i, j int) bool { return notes[i].Path < notes[j].Path })
	return notes, nil
}

// Contains reports whether an absolute path lies inside the vault and is
// a markdown file. Used by the watcher to filter events.
func (v *Vault) Contains(abs string) (string, bool) {
	if !strings.HasPrefix(abs, v.root+string(filepath.Separator)) {
		return "", false
	}
	rel, err := filepath.Rel(v.root, abs)
	if err != nil {
		return "", false
	}
	slashed := filepath.ToSlash(rel)
	for _, part := range strings.Split(slashed, "/") {
		if strings.HasPrefix(part, ".") {
			return "", false
		}
	}
	if !IsMarkdown(rel) {
		return "", false
	}
	return slashed, true
}

// IsMarkdown reports whether a file name has a markdown extension.
func IsMarkdown(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".md", ".markdown":
		return true
	}
	return false
}
