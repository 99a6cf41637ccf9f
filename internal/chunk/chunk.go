// Package chunk splits extracted document text into overlapping segments
// sized for embedding.
package chunk

import (
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
)

// Defaults for segment sizing.
const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 50
)

// Splitter produces bounded, overlapping text segments. It prefers natural
// boundaries (paragraph, sentence, word) and falls back to a hard character
// cut when a span has none.
type Splitter struct {
	inner textsplitter.RecursiveCharacter
}

// Option configures a Splitter.
type Option func(*settings)

type settings struct {
	chunkSize    int
	chunkOverlap int
}

// WithChunkSize sets the maximum segment length in characters.
func WithChunkSize(n int) Option {
	return func(s *settings) { s.chunkSize = n }
}

// WithChunkOverlap sets the overlap between consecutive segments.
func WithChunkOverlap(n int) Option {
	return func(s *settings) { s.chunkOverlap = n }
}

// NewSplitter creates a Splitter with the given options applied over the
// defaults.
func NewSplitter(opts ...Option) *Splitter {
	s := settings{
		chunkSize:    DefaultChunkSize,
		chunkOverlap: DefaultChunkOverlap,
	}
	for _, opt := range opts {
		opt(&s)
	}

	return &Splitter{
		inner: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(s.chunkSize),
			textsplitter.WithChunkOverlap(s.chunkOverlap),
		),
	}
}

// Split returns the ordered segments of text. Whitespace-only segments are
// dropped; a result with no usable segments is returned as an empty slice,
// which callers treat as a failed extraction.
func (s *Splitter) Split(text string) ([]string, error) {
	segments, err := s.inner.SplitText(text)
	if err != nil {
		return nil, err
	}

	usable := segments[:0]
	for _, seg := range segments {
		if strings.TrimSpace(seg) == "" {
			continue
		}
		usable = append(usable, seg)
	}
	return usable, nil
}
