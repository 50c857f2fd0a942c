package pipeline

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/procurahq/docintel/internal/model"
)

// SectionArena collects stage-1 sections across batches. Parent links are
// resolved at the end of the run so a child extracted in an early batch can
// still attach to a parent that only shows up in a later batch.
type SectionArena struct {
	documentID string
	byNumber   map[string]*model.Section
	order      []string
}

func NewSectionArena(documentID string) *SectionArena {
	return &SectionArena{
		documentID: documentID,
		byNumber:   make(map[string]*model.Section),
	}
}

// Add merges a batch of sections. The first extraction of a section number
// wins; later ones only fill in a missing title or parent.
func (a *SectionArena) Add(sections []model.Section) {
	for _, incoming := range sections {
		if incoming.Number == "" {
			continue
		}
		existing, ok := a.byNumber[incoming.Number]
		if !ok {
			s := incoming
			s.ID = uuid.New().String()
			s.DocumentID = a.documentID
			a.byNumber[s.Number] = &s
			a.order = append(a.order, s.Number)
			continue
		}
		if existing.Title == "" {
			existing.Title = incoming.Title
		}
		if existing.ParentNumber == "" {
			existing.ParentNumber = incoming.ParentNumber
		}
	}
}

// Resolve links children to their parents by section number. Sections whose
// parent never appeared stay top-level.
func (a *SectionArena) Resolve() []model.Section {
	out := make([]model.Section, 0, len(a.order))
	for _, number := range a.order {
		s := a.byNumber[number]
		if s.ParentNumber != "" {
			if parent, ok := a.byNumber[s.ParentNumber]; ok && parent.Number != s.Number {
				s.ParentID = parent.ID
			} else {
				zap.L().Info("sections: parent never extracted, keeping top-level",
					zap.String("document_id", a.documentID),
					zap.String("section", s.Number),
					zap.String("parent", s.ParentNumber),
				)
			}
		}
		out = append(out, *s)
	}
	return out
}

// Count reports how many distinct sections have been collected.
func (a *SectionArena) Count() int {
	return len(a.order)
}

// Sections returns the collected sections without resolving parents.
func (a *SectionArena) Sections() []model.Section {
	out := make([]model.Section, 0, len(a.order))
	for _, number := range a.order {
		out = append(out, *a.byNumber[number])
	}
	return out
}
