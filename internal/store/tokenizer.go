package store

import (
	"strings"
	"unicode"
)

// queryStopWords are dropped from search queries. Chunk text is left
// alone; FTS5 and Bleve handle their own document-side tokenization.
var queryStopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "for": {}, "from": {}, "has": {}, "he": {},
	"in": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {},
	"or": {}, "that": {}, "the": {}, "to": {}, "was": {}, "were": {},
	"will": {}, "with": {},
}

// QueryTokens lowercases and splits a query into search terms, dropping
// stop words and single characters. Returns nil when nothing survives;
// if filtering would drop everything, the raw tokens are kept so short
// queries like "a b" still search.
func QueryTokens(query string) []string {
	raw := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	if len(raw) == 0 {
		return nil
	}

	tokens := make([]string, 0, len(raw))
	for _, t := range raw {
		if len(t) < 2 {
			continue
		}
		if _, stop := queryStopWords[t]; stop {
			continue
		}
		tokens = append(tokens, t)
	}
	if len(tokens) == 0 {
		return raw
	}
	return tokens
}
