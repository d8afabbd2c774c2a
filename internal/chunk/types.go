// Package chunk splits markdown text into ordered, bounded chunks for
// indexing. The chunker is a pure function of its input: no I/O, no state.
package chunk

// Token budget defaults. Tokens are estimated with a fixed chars-per-token
// ratio; exact tokenization is not worth a model dependency here.
const (
	// DefaultMaxTokens is the per-chunk token budget.
	DefaultMaxTokens = 400

	// DefaultOverlapTokens is prepended from the previous chunk when a
	// section splits, so concepts spanning the split stay retrievable
	// from either side.
	DefaultOverlapTokens = 80

	// CharsPerToken is the rough chars-to-token ratio for English prose.
	CharsPerToken = 4

	// sectionHeadingLevel is the deepest heading level that starts a new
	// section; deeper headings stay inside their parent section.
	sectionHeadingLevel = 2
)

// Chunk is a bounded segment of a markdown note, the unit of indexing
// and retrieval.
type Chunk struct {
	// Heading is the nearest heading above the chunk, empty if none.
	Heading string

	// StartLine and EndLine are 1-based inclusive and refer to the
	// chunk's own content in the source file, excluding any overlap
	// prefix. They are preserved for citation.
	StartLine int
	EndLine   int

	// Text is the chunk content, including the overlap prefix on
	// continuation chunks.
	Text string
}

// Options configures the chunker.
type Options struct {
	MaxTokens     int
	OverlapTokens int
}

// withDefaults fills zero options.
func (o Options) withDefaults() Options {
	if o.MaxTokens <= 0 {
		o.MaxTokens = DefaultMaxTokens
	}
	if o.OverlapTokens < 0 {
		o.OverlapTokens = 0
	} else if o.OverlapTokens == 0 {
		o.OverlapTokens = DefaultOverlapTokens
	}
	return o
}

// EstimateTokens approximates the token count of text.
func EstimateTokens(text string) int {
	return (len(text) + CharsPerToken - 1) / CharsPerToken
}
