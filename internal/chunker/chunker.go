// Package chunker splits long-form course content into overlapping windows
// sized for embedding generation.
package chunker

import "strings"

// DefaultChunkSize is the default window size in characters.
const DefaultChunkSize = 512

// DefaultOverlap is the default number of characters shared between
// consecutive windows.
const DefaultOverlap = 128

// Splitter produces fixed-size overlapping chunks from text.
type Splitter struct {
	chunkSize int
	overlap   int
}

// Option configures the splitter.
type Option func(*Splitter)

// WithChunkSize sets the window size in characters.
func WithChunkSize(size int) Option {
	return func(s *Splitter) {
		if size > 0 {
			s.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between windows in characters.
func WithOverlap(overlap int) Option {
	return func(s *Splitter) {
		if overlap >= 0 {
			s.overlap = overlap
		}
	}
}

// New creates a splitter with the given options.
func New(opts ...Option) *Splitter {
	s := &Splitter{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultOverlap,
	}
	for _, opt := range opts {
		opt(s)
	}
	// Overlap must leave forward progress per window.
	if s.overlap >= s.chunkSize {
		s.overlap = s.chunkSize / 4
	}
	return s
}

// Split cuts text into overlapping windows. Empty or whitespace-only input
// produces no chunks. Windows step on rune boundaries so multi-byte text is
// never cut mid-character.
func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	length := len(runes)
	step := s.chunkSize - s.overlap
	chunks := make([]string, 0, length/step+1)

	for start := 0; start < length; start += step {
		end := start + s.chunkSize
		if end > length {
			end = length
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == length {
			break
		}
	}

	return chunks
}
