// Package extract converts raw file bytes into plain text.
//
// Formats are handled by independent Extractor implementations registered in
// a Registry keyed by file extension. Dispatch considers only the filename's
// extension, never the declared content type.
package extract

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Sentinel errors for extraction operations.
var (
	// ErrUnsupportedFileType is returned when no extractor is registered
	// for the file's extension.
	ErrUnsupportedFileType = errors.New("unsupported file type")

	// ErrExtractionFailed is returned when a registered extractor cannot
	// parse the file contents.
	ErrExtractionFailed = errors.New("text extraction failed")
)

// Extractor converts raw file bytes of one format into plain text.
type Extractor interface {
	Extract(ctx context.Context, content []byte) (string, error)
}

// Registry dispatches extraction to the Extractor registered for a file
// extension. Register all extractors before first use; the registry is
// read-only afterward and safe for concurrent use.
type Registry struct {
	byExt map[string]Extractor
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byExt: make(map[string]Extractor)}
}

// NewDefaultRegistry creates a Registry with all built-in extractors
// registered.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(".pdf", &PDF{})
	r.Register(".txt", &PlainText{})
	r.Register(".csv", &CSV{})
	r.Register(".xlsx", &XLSX{})
	r.Register(".ppt", &Slides{})
	r.Register(".pptx", &Slides{})
	r.Register(".doc", &WordDocument{})
	r.Register(".docx", &WordDocument{})
	return r
}

// Register binds an extension (with leading dot, case-insensitive) to an
// extractor, replacing any previous binding.
func (r *Registry) Register(ext string, e Extractor) {
	r.byExt[strings.ToLower(ext)] = e
}

// Extract dispatches on the filename's extension and runs the matching
// extractor.
//
// It returns ErrUnsupportedFileType when no extractor is registered for the
// extension, and wraps every extractor failure in ErrExtractionFailed so
// callers can treat parse errors uniformly. Whitespace-only results are left
// to the caller to reject.
func (r *Registry) Extract(ctx context.Context, content []byte, filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	e, ok := r.byExt[ext]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFileType, ext)
	}

	text, err := e.Extract(ctx, content)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	return text, nil
}

// Supported returns the registered extensions.
func (r *Registry) Supported() []string {
	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	return exts
}
