package pipeline

import (
	"fmt"
	"strings"

	"github.com/procurahq/docintel/internal/model"
)

// SegmentPages groups pages into ordered batches. A batch closes when adding
// the next page would push it past wordCap or past maxPages pages. A single
// page larger than wordCap gets its own batch; pages are never split.
func SegmentPages(pages []model.Page, wordCap, maxPages int) []model.Batch {
	if wordCap <= 0 {
		wordCap = 5000
	}
	if maxPages <= 0 {
		maxPages = 10
	}

	var batches []model.Batch
	var current model.Batch

	flush := func() {
		if len(current.Pages) == 0 {
			return
		}
		current.BatchNumber = len(batches) + 1
		current.ConsolidatedText = consolidate(current.Pages)
		batches = append(batches, current)
		current = model.Batch{}
	}

	for _, page := range pages {
		if len(current.Pages) > 0 &&
			(current.TotalWords+page.WordCount > wordCap || len(current.Pages) >= maxPages) {
			flush()
		}
		current.Pages = append(current.Pages, page)
		current.TotalWords += page.WordCount
	}
	flush()

	return batches
}

// consolidate joins batch pages into one text block with page markers so the
// extraction model can attribute findings to specific pages.
func consolidate(pages []model.Page) string {
	var b strings.Builder
	for i, p := range pages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "=== PAGINA %d ===\n", p.PageNumber)
		b.WriteString(p.Text)
	}
	return b.String()
}
