package extractor

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/rotisserie/eris"
)

// PdfToText extracts page text using the pdftotext CLI tool. pdftotext emits
// a form feed between pages, which is what makes per-page splitting possible.
type PdfToText struct {
	binPath string
}

// NewPdfToText creates a PdfToText extractor. If binPath is empty, "pdftotext" is used.
func NewPdfToText(binPath string) *PdfToText {
	if binPath == "" {
		binPath = "pdftotext"
	}
	return &PdfToText{binPath: binPath}
}

// ExtractPages runs pdftotext -layout on the given PDF and splits stdout on
// form feeds into 1-indexed pages. Trailing empty pages are dropped but
// interior blank pages are preserved so page numbers stay gapless.
func (p *PdfToText) ExtractPages(ctx context.Context, pdfPath string) ([]PageText, error) {
	cmd := exec.CommandContext(ctx, p.binPath, "-layout", pdfPath, "-")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, eris.Wrapf(err, "extractor: pdftotext failed for %s: %s", pdfPath, stderr.String())
	}

	return SplitFormFeeds(stdout.String()), nil
}

// SplitFormFeeds splits raw pdftotext output into pages on form-feed
// characters.
func SplitFormFeeds(raw string) []PageText {
	parts := strings.Split(raw, "\f")

	// pdftotext ends output with a form feed, leaving one trailing empty part.
	for len(parts) > 0 && strings.TrimSpace(parts[len(parts)-1]) == "" {
		parts = parts[:len(parts)-1]
	}

	pages := make([]PageText, len(parts))
	for i, part := range parts {
		pages[i] = PageText{
			PageNumber: i + 1,
			Text:       strings.TrimRight(part, "\n"),
		}
	}
	return pages
}
