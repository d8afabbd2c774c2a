package chunk

import (
	"regexp"
	"strings"
)

var (
	headingPattern = regexp.MustCompile(`^(#{1,6})\s+(.+?)\s*$`)
	sentenceEnd    = regexp.MustCompile(`[.!?]+(\s+|$)`)
)

// Split chunks markdown text into an ordered sequence. The algorithm, in
// priority order: split on the top two heading levels; oversized sections
// split on paragraph boundaries; oversized paragraphs split on sentence
// boundaries. When a section yields multiple chunks, the trailing overlap
// tokens of the previous chunk are prepended to the next one.
//
// Empty input yields an empty sequence. An oversized single sentence is
// emitted whole, never dropped or truncated.
func Split(text string, opts Options) []Chunk {
	opts = opts.withDefaults()
	if strings.TrimSpace(text) == "" {
		return nil
	}

	lines := strings.Split(text, "\n")

	// nearest[i] is the title of the last heading at or before line i.
	nearest := make([]string, len(lines))
	current := ""
	for i, line := range lines {
		if m := headingPattern.FindStringSubmatch(line); m != nil {
			current = m[2]
		}
		nearest[i] = current
	}

	var chunks []Chunk
	for _, sec := range splitSections(lines) {
		chunks = append(chunks, chunkSection(lines, nearest, sec, opts)...)
	}
	return chunks
}

// lineRange is a 0-based inclusive range of line indexes.
type lineRange struct {
	start, end int
}

// splitSections cuts the file at headings of level 1..sectionHeadingLevel.
// Content before the first such heading forms its own section.
func splitSections(lines []string) []lineRange {
	var sections []lineRange
	start := 0
	for i, line := range lines {
		m := headingPattern.FindStringSubmatch(line)
		if m == nil || len(m[1]) > sectionHeadingLevel || i == start {
			continue
		}
		sections = append(sections, lineRange{start, i - 1})
		start = i
	}
	sections = append(sections, lineRange{start, len(lines) - 1})
	return sections
}

// unit is a packable piece of a section: a paragraph, or one sentence of
// an oversized paragraph.
type unit struct {
	text     string
	lines    lineRange
	paraIdx  int
	sentence bool
}

// chunkSection turns one section into one or more chunks.
func chunkSection(lines []string, nearest []string, sec lineRange, opts Options) []Chunk {
	secText := strings.TrimRight(strings.Join(lines[sec.start:sec.end+1], "\n"), "\n \t")
	if strings.TrimSpace(secText) == "" {
		return nil
	}

	heading := nearest[sec.start]

	// A section that is only its heading line carries no indexable body.
	if trimmed := strings.TrimSpace(secText); headingPattern.MatchString(trimmed) &&
		!strings.Contains(trimmed, "\n") {
		return nil
	}

	if EstimateTokens(secText) <= opts.MaxTokens {
		endLine := sec.start + strings.Count(secText, "\n")
		return []Chunk{{
			Heading:   heading,
			StartLine: sec.start + 1,
			EndLine:   endLine + 1,
			Text:      secText,
		}}
	}

	units := sectionUnits(lines, sec, opts.MaxTokens)
	return packUnits(units, nearest, opts)
}

// sectionUnits splits a section into paragraph units, breaking oversized
// paragraphs into sentence units.
func sectionUnits(lines []string, sec lineRange, maxTokens int) []unit {
	var units []unit
	paraIdx := 0

	i := sec.start
	for i <= sec.end {
		if strings.TrimSpace(lines[i]) == "" {
			i++
			continue
		}
		j := i
		for j <= sec.end && strings.TrimSpace(lines[j]) != "" {
			j++
		}
		para := strings.Join(lines[i:j], "\n")
		rng := lineRange{i, j - 1}

		if EstimateTokens(para) <= maxTokens {
			units = append(units, unit{text: para, lines: rng, paraIdx: paraIdx})
		} else {
			for _, s := range splitSentences(para) {
				units = append(units, unit{text: s, lines: rng, paraIdx: paraIdx, sentence: true})
			}
		}
		paraIdx++
		i = j
	}
	return units
}

// packUnits greedily packs units into chunks up to the token budget,
// prepending the overlap tail of the previous chunk on continuations.
func packUnits(units []unit, nearest []string, opts Options) []Chunk {
	var chunks []Chunk
	var pending []unit
	pendingTokens := 0

	flush := func() {
		if len(pending) == 0 {
			return
		}
		core := joinUnits(pending)
		c := Chunk{
			Heading:   nearest[pending[0].lines.start],
			StartLine: pending[0].lines.start + 1,
			EndLine:   pending[len(pending)-1].lines.end + 1,
			Text:      core,
		}
		if len(chunks) > 0 && opts.OverlapTokens > 0 {
			prev := chunks[len(chunks)-1]
			if tail := overlapTail(prev.Text, opts.OverlapTokens); tail != "" {
				c.Text = tail + "\n\n" + core
			}
		}
		chunks = append(chunks, c)
		pending = nil
		pendingTokens = 0
	}

	for _, u := range units {
		t := EstimateTokens(u.text)
		if len(pending) > 0 && pendingTokens+t > opts.MaxTokens {
			flush()
		}
		// A single unit over budget (an unsplittable sentence) is
		// emitted whole.
		pending = append(pending, u)
		pendingTokens += t
	}
	flush()

	return chunks
}

// joinUnits reassembles units: sentence units of the same paragraph join
// with a space, everything else with a blank line.
func joinUnits(units []unit) string {
	var b strings.Builder
	for i, u := range units {
		if i > 0 {
			prev := units[i-1]
			if u.sentence && prev.sentence && u.paraIdx == prev.paraIdx {
				b.WriteString(" ")
			} else {
				b.WriteString("\n\n")
			}
		}
		b.WriteString(u.text)
	}
	return b.String()
}

// splitSentences breaks a paragraph at sentence-ending punctuation.
// Text without terminal punctuation comes back as one sentence.
func splitSentences(para string) []string {
	var out []string
	rest := para
	for rest != "" {
		loc := sentenceEnd.FindStringIndex(rest)
		if loc == nil {
			break
		}
		if s := strings.TrimSpace(rest[:loc[1]]); s != "" {
			out = append(out, s)
		}
		rest = rest[loc[1]:]
	}
	if s := strings.TrimSpace(rest); s != "" {
		out = append(out, s)
	}
	return out
}

// overlapTail returns roughly the last n tokens of text, cut at a word
// boundary.
func overlapTail(text string, tokens int) string {
	budget := tokens * CharsPerToken
	if len(text) <= budget {
		return text
	}
	tail := text[len(text)-budget:]
	if idx := strings.IndexAny(tail, " \n\t"); idx >= 0 {
		tail = tail[idx+1:]
	}
	return strings.TrimSpace(tail)
}
