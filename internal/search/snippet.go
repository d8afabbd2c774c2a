package search

import (
	"strings"
	"unicode"
)

// makeSnippet extracts a bounded excerpt from chunk text, centered on
// the first matched term when one is present.
func makeSnippet(text string, terms []string) string {
	text = strings.Join(strings.Fields(text), " ")
	if len(text) <= snippetMaxChars {
		return text
	}

	center := firstMatch(text, terms)
	start := center - snippetMaxChars/2
	if start < 0 {
		start = 0
	}
	end := start + snippetMaxChars
	if end > len(text) {
		end = len(text)
		start = end - snippetMaxChars
	}

	snippet := trimToWords(text[start:end], start > 0, end < len(text))
	return snippet
}

// firstMatch returns the byte offset of the earliest matched term,
// or 0 when none match.
func firstMatch(text string, terms []string) int {
	lower := strings.ToLower(text)
	best := -1
	for _, term := range terms {
		if idx := strings.Index(lower, strings.ToLower(term)); idx >= 0 {
			if best == -1 || idx < best {
				best = idx
			}
		}
	}
	if best < 0 {
		return 0
	}
	return best
}

// trimToWords drops partial words at cut edges and adds ellipses.
func trimToWords(s string, cutLeft, cutRight bool) string {
	if cutLeft {
		if idx := strings.IndexFunc(s, unicode.IsSpace); idx >= 0 {
			s = s[idx+1:]
		}
		s = "…" + s
	}
	if cutRight {
		if idx := strings.LastIndexFunc(s, unicode.IsSpace); idx >= 0 {
			s = s[:idx]
		}
		s += "…"
	}
	return s
}
