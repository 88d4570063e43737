// Package chunker divides repository documents into overlapping, paragraph-aligned chunks.
//
// # Basic Usage
//
//	c := chunker.New(chunker.DefaultOptions())
//	chunks := c.Chunk(types.Document{FilePath: "CONTRIBUTING.md", Content: text})
//
//	for _, chunk := range chunks {
//	    fmt.Printf("%s #%d: ~%d tokens\n", chunk.FilePath, chunk.ChunkIndex, chunk.TokenCount)
//	}
//
// # Strategy
//
// Text is split on blank lines into paragraphs. Paragraphs are packed into a
// buffer until the next one would exceed the target size (ChunkTokens ×
// CharsPerToken characters, the separator between them not counted). The
// buffer is then emitted and the next one is seeded with the last
// OverlapTokens × CharsPerToken characters of the emitted chunk, so a
// sentence near a boundary appears in both neighbours.
//
// Guarantees:
//   - blank or whitespace-only documents produce no chunks
//   - chunk indices are 0..n-1 in emission order
//   - a paragraph larger than the target becomes one oversized chunk
//   - every paragraph of the input appears in at least one chunk
//
// Token counts are estimated at four characters per token. They are meant
// for budgeting, not billing.
package chunker
