// Package vectorwriter chunks document content and writes embedding points
// into the vector store.
package vectorwriter

// Chunk is one character window over document content.
type Chunk struct {
	Ordinal int
	Text    string
}

// Chunker splits text into overlapping character windows. The last chunk
// may be shorter; empty content produces zero chunks.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker creates a chunker. Non-positive size falls back to 1000;
// overlap is clamped below size.
func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size - 1
	}
	return &Chunker{size: size, overlap: overlap}
}

// Chunk splits text into windows of the configured size and overlap.
// Windows are rune-aligned so multi-byte content never splits mid-character.
func (c *Chunker) Chunk(text string) []Chunk {
	if text == "" {
		return nil
	}
	runes := []rune(text)
	step := c.size - c.overlap
	chunks := make([]Chunk, 0, (len(runes)+step-1)/step)
	ordinal := 0
	for start := 0; start < len(runes); start += step {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, Chunk{Ordinal: ordinal, Text: string(runes[start:end])})
		ordinal++
		if end >= len(runes) {
			break
		}
	}
	return chunks
}
