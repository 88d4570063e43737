package chunker

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/codepathfinder/repocontext/pkg/types"
)

const (
	// DefaultChunkTokens is the target size of a chunk in tokens
	DefaultChunkTokens = 500

	// DefaultOverlapTokens is how much trailing text is repeated at the start of the next chunk
	DefaultOverlapTokens = 50

	// CharsPerToken is the heuristic for estimating tokens (chars/4)
	CharsPerToken = 4

	paragraphSeparator = "\n\n"
)

// blankLine matches a paragraph boundary: a newline, optional horizontal
// whitespace, and another newline.
var blankLine = regexp.MustCompile(`\n[ \t]*\n`)

// Options configures chunk sizing. Zero values take the package defaults.
type Options struct {
	ChunkTokens   int
	OverlapTokens int
	CharsPerToken int
}

// DefaultOptions returns the standard sizing: ~500 token chunks with ~50 tokens of overlap
func DefaultOptions() Options {
	return Options{
		ChunkTokens:   DefaultChunkTokens,
		OverlapTokens: DefaultOverlapTokens,
		CharsPerToken: CharsPerToken,
	}
}

// Chunker splits documents into overlapping paragraph-aligned chunks.
// It holds no state between calls and is safe for concurrent use.
type Chunker struct {
	targetChars   int
	overlapChars  int
	charsPerToken int
}

// New creates a Chunker with the given options
func New(opts Options) *Chunker {
	if opts.ChunkTokens <= 0 {
		opts.ChunkTokens = DefaultChunkTokens
	}
	if opts.OverlapTokens < 0 {
		opts.OverlapTokens = 0
	}
	if opts.CharsPerToken <= 0 {
		opts.CharsPerToken = CharsPerToken
	}

	return &Chunker{
		targetChars:   opts.ChunkTokens * opts.CharsPerToken,
		overlapChars:  opts.OverlapTokens * opts.CharsPerToken,
		charsPerToken: opts.CharsPerToken,
	}
}

// Chunk splits one document into ordered chunks.
//
// Paragraphs are accumulated greedily. When adding the next paragraph would
// push the buffer past the target size, the buffer is emitted and the next
// buffer starts with the trailing overlap of the emitted one. A paragraph
// larger than the target is emitted whole, never split.
func (c *Chunker) Chunk(doc types.Document) []types.Chunk {
	paragraphs := splitParagraphs(doc.Content)
	if len(paragraphs) == 0 {
		return []types.Chunk{}
	}

	chunks := make([]types.Chunk, 0, len(paragraphs))
	emit := func(content string) {
		chunks = append(chunks, types.Chunk{
			FilePath:   doc.FilePath,
			Content:    content,
			ChunkIndex: len(chunks),
			TokenCount: c.estimateTokens(content),
		})
	}

	var buf string
	for _, p := range paragraphs {
		if buf == "" {
			buf = p
			continue
		}

		if len(buf)+len(p) > c.targetChars {
			emit(buf)
			if tail := c.overlapTail(buf); tail != "" {
				buf = tail + paragraphSeparator + p
			} else {
				buf = p
			}
			continue
		}

		buf += paragraphSeparator + p
	}

	if buf != "" {
		emit(buf)
	}

	return chunks
}

// ChunkAll chunks every document in order and concatenates the results
func (c *Chunker) ChunkAll(docs []types.Document) []types.Chunk {
	all := make([]types.Chunk, 0, len(docs))
	for _, doc := range docs {
		all = append(all, c.Chunk(doc)...)
	}
	return all
}

// EstimateTokens approximates the token count of text
func (c *Chunker) EstimateTokens(text string) int {
	return c.estimateTokens(text)
}

func (c *Chunker) estimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + c.charsPerToken - 1) / c.charsPerToken
}

// overlapTail returns the trimmed trailing overlap of an emitted chunk,
// cut on a rune boundary.
func (c *Chunker) overlapTail(content string) string {
	if c.overlapChars <= 0 {
		return ""
	}
	if len(content) <= c.overlapChars {
		return strings.TrimSpace(content)
	}

	start := len(content) - c.overlapChars
	for start < len(content) && !utf8.RuneStart(content[start]) {
		start++
	}
	return strings.TrimSpace(content[start:])
}

// splitParagraphs breaks content on blank lines, dropping empty paragraphs
func splitParagraphs(content string) []string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	if strings.TrimSpace(content) == "" {
		return nil
	}

	raw := blankLine.Split(content, -1)
	paragraphs := make([]string, 0, len(raw))
	for _, p := range raw {
		if p = strings.TrimSpace(p); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	return paragraphs
}
