package model

// SectionLevel is the depth of a structural outline node.
type SectionLevel string

const (
	LevelChapter   SectionLevel = "CHAPTER"
	LevelSection   SectionLevel = "SECTION"
	LevelClause    SectionLevel = "CLAUSE"
	LevelSubclause SectionLevel = "SUBCLAUSE"
	LevelItem      SectionLevel = "ITEM"
)

// ParseSectionLevel maps a raw level string to a SectionLevel, defaulting to
// CLAUSE for anything unrecognized.
func ParseSectionLevel(raw string) SectionLevel {
	switch SectionLevel(raw) {
	case LevelChapter, LevelSection, LevelClause, LevelSubclause, LevelItem:
		return SectionLevel(raw)
	default:
		return LevelClause
	}
}

// Section is a node in the hierarchical structural outline. ParentNumber may
// reference a section that has not been created yet within the same batch;
// ParentID is filled in by a later resolution pass.
type Section struct {
	ID           string       `json:"id"`
	DocumentID   string       `json:"document_id"`
	Level        SectionLevel `json:"level"`
	Number       string       `json:"number,omitempty"`
	Title        string       `json:"title"`
	ParentID     string       `json:"parent_id,omitempty"`
	ParentNumber string       `json:"parent_number,omitempty"`
	PageNumber   int          `json:"page_number"`
}
