package vault

import "strings"

// Category is the purpose-based source category of a note, derived from
// its top-level folder. Grouping by category encodes retrieval priority:
// search results surface reference material before daily logs or session
// transcripts regardless of raw score.
type Category string

const (
	CategoryReference Category = "reference"
	CategoryProjects  Category = "projects"
	CategoryInbox     Category = "inbox"
	CategoryDaily     Category = "daily"
	CategorySessions  Category = "sessions"
	CategoryOther     Category = "other"
)

// CategoryOrder is the fixed priority order for grouped search results.
// The most authoritative category comes first.
var CategoryOrder = []Category{
	CategoryReference,
	CategoryProjects,
	CategoryInbox,
	CategoryDaily,
	CategorySessions,
	CategoryOther,
}

// CategoryOf derives the category from a relative note path.
func CategoryOf(relPath string) Category {
	folder, _, found := strings.Cut(relPath, "/")
	if !found {
		return CategoryOther
	}
	switch folder {
	case "reference":
		return CategoryReference
	case "projects":
		return CategoryProjects
	case "inbox":
		return CategoryInbox
	case "daily":
		return CategoryDaily
	case "sessions":
		return CategorySessions
	}
	return CategoryOther
}

// ValidCategory reports whether s names a known category.
func ValidCategory(s string) bool {
	for _, c := range CategoryOrder {
		if string(c) == s {
			return true
		}
	}
	return false
}
