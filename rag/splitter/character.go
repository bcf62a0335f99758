package splitter

import (
	"fmt"
	"strings"

	"github.com/smallnest/coachrag/rag"
)

// Default chunking parameters
const (
	DefaultChunkSize    = 1200
	DefaultChunkOverlap = 200
)

// Span is a half-open range [Start, End) of rune offsets into the source text
type Span struct {
	Start int
	End   int
}

// CharacterSplitter cuts text into fixed-size windows of characters where
// consecutive windows share ChunkOverlap characters
type CharacterSplitter struct {
	ChunkSize    int
	ChunkOverlap int
}

// NewCharacterSplitter creates a validated CharacterSplitter
func NewCharacterSplitter(chunkSize, chunkOverlap int) (*CharacterSplitter, error) {
	s := &CharacterSplitter{
		ChunkSize:    chunkSize,
		ChunkOverlap: chunkOverlap,
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewDefaultSplitter returns a splitter with the 1200/200 defaults
func NewDefaultSplitter() *CharacterSplitter {
	return &CharacterSplitter{
		ChunkSize:    DefaultChunkSize,
		ChunkOverlap: DefaultChunkOverlap,
	}
}

// Validate checks that the window advances and stays bounded
func (s *CharacterSplitter) Validate() error {
	if s.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", rag.ErrInvalidArgument, s.ChunkSize)
	}
	if s.ChunkOverlap < 0 {
		return fmt.Errorf("%w: chunk overlap must not be negative, got %d", rag.ErrInvalidArgument, s.ChunkOverlap)
	}
	if s.ChunkOverlap >= s.ChunkSize {
		return fmt.Errorf("%w: chunk overlap %d must be smaller than chunk size %d",
			rag.ErrInvalidArgument, s.ChunkOverlap, s.ChunkSize)
	}
	return nil
}

// Spans returns the untrimmed windows the text is cut into. Every window is
// at most ChunkSize runes, consecutive windows overlap by exactly
// ChunkOverlap runes, and the windows cover the whole text.
func (s *CharacterSplitter) Spans(text string) ([]Span, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	n := len([]rune(text))
	var spans []Span
	start := 0
	for start < n {
		end := min(start+s.ChunkSize, n)
		spans = append(spans, Span{Start: start, End: end})
		if end == n {
			break
		}
		start = end - s.ChunkOverlap
	}
	return spans, nil
}

// SplitText splits text into trimmed, non-empty chunks
func (s *CharacterSplitter) SplitText(text string) ([]string, error) {
	spans, err := s.Spans(text)
	if err != nil {
		return nil, err
	}
	runes := []rune(text)
	chunks := make([]string, 0, len(spans))
	for _, sp := range spans {
		chunk := strings.TrimSpace(string(runes[sp.Start:sp.End]))
		if chunk == "" {
			continue
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}
