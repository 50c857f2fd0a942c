// Package extractor turns a source document into ordered page texts.
package extractor

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/procurahq/docintel/internal/config"
)

// PageText is one extracted page: 1-indexed, no gaps.
type PageText struct {
	PageNumber int
	Text       string
}

// Extractor extracts per-page text from a source document.
type Extractor interface {
	ExtractPages(ctx context.Context, sourcePath string) ([]PageText, error)
}

// NewExtractor creates an Extractor based on config.
func NewExtractor(cfg config.ExtractorConfig) (Extractor, error) {
	switch cfg.Provider {
	case "local", "":
		return NewPdfToText(cfg.PdfToTextPath), nil
	default:
		return nil, eris.Errorf("extractor: unknown provider %q", cfg.Provider)
	}
}

// CountWords returns the number of whitespace-separated words in text.
func CountWords(text string) int {
	return len(strings.Fields(text))
}
