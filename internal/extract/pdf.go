package extract

import (
	"bytes"
	"context"
	"strings"

	"github.com/tmc/langchaingo/documentloaders"
)

// PDF extracts text from PDF files, one page at a time.
type PDF struct{}

// Extract concatenates the text of every page, separated by newline. Pages
// yielding no text contribute nothing; a PDF whose pages are all empty
// produces an empty string, which the caller rejects.
func (p *PDF) Extract(ctx context.Context, content []byte) (string, error) {
	loader := documentloaders.NewPDF(bytes.NewReader(content), int64(len(content)))

	pages, err := loader.Load(ctx)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, page := range pages {
		if strings.TrimSpace(page.PageContent) == "" {
			continue
		}
		b.WriteString(page.PageContent)
		b.WriteString("\n")
	}
	return b.String(), nil
}
