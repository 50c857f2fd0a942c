package model

// Severity grades a risk's impact.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// Probability grades a risk's likelihood.
type Probability string

const (
	ProbabilityCertain  Probability = "CERTAIN"
	ProbabilityLikely   Probability = "LIKELY"
	ProbabilityPossible Probability = "POSSIBLE"
	ProbabilityUnlikely Probability = "UNLIKELY"
)

// ParseSeverity maps a raw severity, defaulting to MEDIUM.
func ParseSeverity(raw string) Severity {
	switch Severity(raw) {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return Severity(raw)
	default:
		return SeverityMedium
	}
}

// ParseProbability maps a raw probability, defaulting to POSSIBLE.
func ParseProbability(raw string) Probability {
	switch Probability(raw) {
	case ProbabilityCertain, ProbabilityLikely, ProbabilityPossible, ProbabilityUnlikely:
		return Probability(raw)
	default:
		return ProbabilityPossible
	}
}

// SeverityRank returns the ordinal rank 1..4 (LOW=1 .. CRITICAL=4).
func SeverityRank(s Severity) int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	default:
		return 1
	}
}

// ProbabilityRank returns the ordinal rank 1..4 (UNLIKELY=1 .. CERTAIN=4).
func ProbabilityRank(p Probability) int {
	switch p {
	case ProbabilityCertain:
		return 4
	case ProbabilityLikely:
		return 3
	case ProbabilityPossible:
		return 2
	default:
		return 1
	}
}

// Risk is an assessed exposure extracted from the document.
type Risk struct {
	ID                string       `json:"id"`
	DocumentID        string       `json:"document_id"`
	Category          string       `json:"category"`
	Subcategory       string       `json:"subcategory,omitempty"`
	Title             string       `json:"title"`
	Description       string       `json:"description,omitempty"`
	Trigger           string       `json:"trigger,omitempty"`
	Consequence       string       `json:"consequence,omitempty"`
	Severity          Severity     `json:"severity"`
	Probability       Probability  `json:"probability"`
	Mitigation        string       `json:"mitigation,omitempty"`
	LinkedEntityIDs   []string     `json:"linked_entity_ids,omitempty"`
	LinkedTimelineIDs []string     `json:"linked_timeline_ids,omitempty"`
	LinkedSectionIDs  []string     `json:"linked_section_ids,omitempty"`
	Sources           []Provenance `json:"sources,omitempty"`
}
