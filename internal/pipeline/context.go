package pipeline

import (
	"fmt"
	"strings"

	"github.com/procurahq/docintel/internal/model"
)

// Accumulator carries what earlier batches already extracted so later batches
// can reference it instead of re-extracting. Entries are deduplicated; insert
// order is preserved. One accumulator lives for exactly one processing run.
type Accumulator struct {
	sections    []string
	entityKeys  []string
	eventKeys   []string
	seenSection map[string]bool
	seenEntity  map[string]bool
	seenEvent   map[string]bool
}

func NewAccumulator() *Accumulator {
	return &Accumulator{
		seenSection: make(map[string]bool),
		seenEntity:  make(map[string]bool),
		seenEvent:   make(map[string]bool),
	}
}

func (a *Accumulator) AddSections(sections []model.Section) {
	for _, s := range sections {
		label := s.Number
		if s.Title != "" {
			label = s.Number + " " + s.Title
		}
		if label == "" || a.seenSection[label] {
			continue
		}
		a.seenSection[label] = true
		a.sections = append(a.sections, label)
	}
}

func (a *Accumulator) AddEntities(entities []model.Entity) {
	for _, e := range entities {
		if e.SemanticKey == "" || a.seenEntity[e.SemanticKey] {
			continue
		}
		a.seenEntity[e.SemanticKey] = true
		a.entityKeys = append(a.entityKeys, fmt.Sprintf("%s (%s)", e.SemanticKey, e.Type))
	}
}

func (a *Accumulator) AddEvents(events []model.TimelineEvent) {
	for _, ev := range events {
		if ev.SourceKey == "" || a.seenEvent[ev.SourceKey] {
			continue
		}
		a.seenEvent[ev.SourceKey] = true
		a.eventKeys = append(a.eventKeys, ev.SourceKey)
	}
}

// EntityCount reports how many distinct semantic keys have been seen.
func (a *Accumulator) EntityCount() int {
	return len(a.entityKeys)
}

// Render produces the context block injected into extraction prompts.
// Empty when no batch has contributed yet.
func (a *Accumulator) Render() string {
	if len(a.sections) == 0 && len(a.entityKeys) == 0 && len(a.eventKeys) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("CONTEXTO DOS BLOCOS ANTERIORES:\n")
	if len(a.sections) > 0 {
		b.WriteString("Secoes ja identificadas: " + strings.Join(a.sections, "; ") + "\n")
	}
	if len(a.entityKeys) > 0 {
		b.WriteString("Entidades ja extraidas: " + strings.Join(a.entityKeys, "; ") + "\n")
	}
	if len(a.eventKeys) > 0 {
		b.WriteString("Eventos de cronograma ja registrados: " + strings.Join(a.eventKeys, "; ") + "\n")
	}
	return b.String()
}
