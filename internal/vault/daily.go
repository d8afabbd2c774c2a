package vault

import (
	"fmt"
	"path"
	"time"

	vxerrors "github.com/vaultidx/vaultidx/internal/errors"
)

// DailyFolder is the folder holding one note per day.
const DailyFolder = "daily"

// DailyPath returns the relative path of the daily note for t.
func DailyPath(t time.Time) string {
	return path.Join(DailyFolder, t.Format("2006-01-02")+".md")
}

// AppendDailyEntry appends a timestamped entry to today's daily note,
// creating the note (with a date heading) if absent. Returns the note's
// relative path.
func (v *Vault) AppendDailyEntry(text string, now time.Time) (string, error) {
	rel := DailyPath(now)

	existing, err := v.Read(rel)
	if err != nil && vxerrors.GetCode(err) != vxerrors.ErrCodeNotFound {
		return "", err
	}

	entry := fmt.Sprintf("- **%s** %s", now.Format("15:04"), text)
	if existing == "" {
		header := fmt.Sprintf("# %s\n", now.Format("2006-01-02"))
		if err := v.Write(rel, header+"\n"+entry, WriteOptions{Replace: true}); err != nil {
			return "", err
		}
		return rel, nil
	}

	if err := v.Write(rel, entry, WriteOptions{}); err != nil {
		return "", err
	}
	return rel, nil
}
