// Package chunker splits file content into overlapping line windows. The
// window is the atomic retrieval unit: big enough to carry context, small
// enough to embed and rerank cheaply.
package chunker

import "strings"

const (
	// DefaultWindowLines is the window height in lines.
	DefaultWindowLines = 40
	// DefaultOverlapLines is how many lines consecutive windows share.
	DefaultOverlapLines = 10
)

// Chunk is a bounded, overlapping slice of a file's text.
// Line numbers are 1-indexed and inclusive.
type Chunk struct {
	FilePath  string
	Language  string
	StartLine int
	EndLine   int
	Content   string
	Type      string // "code" or "document"
}

// Chunker produces fixed-size overlapping windows.
type Chunker struct {
	WindowLines  int
	OverlapLines int
}

// New returns a chunker with the default window and overlap.
func New() *Chunker {
	return &Chunker{
		WindowLines:  DefaultWindowLines,
		OverlapLines: DefaultOverlapLines,
	}
}

// Split chunks src into overlapping windows. Empty content yields no chunks.
// The final window may be shorter than WindowLines; it is never empty.
func (c *Chunker) Split(relPath, language, chunkType string, src []byte) []Chunk {
	if len(src) == 0 {
		return nil
	}

	window := c.WindowLines
	if window <= 0 {
		window = DefaultWindowLines
	}
	overlap := c.OverlapLines
	if overlap < 0 {
		overlap = DefaultOverlapLines
	}
	// The step must stay positive even for windows smaller than the
	// default overlap.
	if overlap >= window {
		overlap = window - 1
	}

	lines := strings.Split(string(src), "\n")
	// Drop a trailing empty element from a final newline.
	if n := len(lines); n > 1 && lines[n-1] == "" {
		lines = lines[:n-1]
	}

	var chunks []Chunk
	step := window - overlap
	for i := 0; i < len(lines); i += step {
		end := i + window
		if end > len(lines) {
			end = len(lines)
		}
		chunks = append(chunks, Chunk{
			FilePath:  relPath,
			Language:  language,
			StartLine: i + 1,
			EndLine:   end,
			Content:   strings.Join(lines[i:end], "\n"),
			Type:      chunkType,
		})
		if end >= len(lines) {
			break
		}
	}
	return chunks
}
