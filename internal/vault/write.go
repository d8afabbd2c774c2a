package vault

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	vxerrors "github.com/vaultidx/vaultidx/internal/errors"
)

var headingLine = regexp.MustCompile(`^(#{1,6})\s+(.+?)\s*$`)

// WriteOptions controls Write behavior.
type WriteOptions struct {
	// Section targets a heading block by its title. Empty targets the
	// whole file.
	Section string

	// Replace overwrites the target (file or section body) instead of
	// appending to it.
	Replace bool
}

// Write creates or updates a note. Parent directories are created as
// needed. Concurrent writers are not merged: last write to disk wins.
func (v *Vault) Write(rel, content string, opts WriteOptions) error {
	abs, err := v.Resolve(rel)
	if err != nil {
		return err
	}
	if !IsMarkdown(rel) {
		return vxerrors.New(vxerrors.ErrCodeNotMarkdown, "only .md files can be written: "+rel, nil)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return vxerrors.Wrap(vxerrors.ErrCodeVaultIO, err)
	}

	existing, err := os.ReadFile(abs)
	if err != nil && !os.IsNotExist(err) {
		return vxerrors.Wrap(vxerrors.ErrCodeVaultIO, err)
	}

	var updated string
	switch {
	case opts.Section != "":
		updated, err = applySection(string(existing), opts.Section, content, opts.Replace)
		if err != nil {
			return err
		}
	case opts.Replace || len(existing) == 0:
		updated = ensureTrailingNewline(content)
	default:
		updated = ensureTrailingNewline(string(existing)) + "\n" + ensureTrailingNewline(content)
	}

	if err := os.WriteFile(abs, []byte(updated), 0o644); err != nil {
		return vxerrors.Wrap(vxerrors.ErrCodeVaultIO, err)
	}
	return nil
}

// applySection updates the body of the heading block titled section.
// Appending to a missing section creates it; replacing a missing section
// is an error because there is no target to replace.
func applySection(existing, section, content string, replace bool) (string, error) {
	lines := strings.Split(existing, "\n")

	start := -1 // line index of the section heading
	level := 0
	for i, line := range lines {
		m := headingLine.FindStringSubmatch(line)
		if m != nil && strings.EqualFold(m[2], section) {
			start = i
			level = len(m[1])
			break
		}
	}

	if start == -1 {
		if replace {
			return "", vxerrors.New(vxerrors.ErrCodeSectionAbsent,
				"section not found: "+section, nil)
		}
		var b strings.Builder
		if strings.TrimSpace(existing) != "" {
			b.WriteString(ensureTrailingNewline(existing))
			b.WriteString("\n")
		}
		b.WriteString("## " + section + "\n\n")
		b.WriteString(ensureTrailingNewline(content))
		return b.String(), nil
	}

	// The section body runs until the next heading of the same or a
	// shallower level.
	end := len(lines)
	for i := start + 1; i < len(lines); i++ {
		if m := headingLine.FindStringSubmatch(lines[i]); m != nil && len(m[1]) <= level {
			end = i
			break
		}
	}

	var b strings.Builder
	b.WriteString(strings.Join(lines[:start+1], "\n"))
	b.WriteString("\n\n")
	if !replace {
		body := strings.TrimRight(strings.Join(lines[start+1:end], "\n"), "\n")
		if strings.TrimSpace(body) != "" {
			b.WriteString(body)
			b.WriteString("\n\n")
		}
	}
	b.WriteString(ensureTrailingNewline(content))
	if end < len(lines) {
		b.WriteString("\n")
		b.WriteString(strings.Join(lines[end:], "\n"))
	}
	return ensureTrailingNewline(b.String()), nil
}

func ensureTrailingNewline(s string) string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return ""
	}
	return s + "\n"
}
