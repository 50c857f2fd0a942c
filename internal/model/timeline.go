package model

import "time"

// DateType classifies how an event's date is expressed.
type DateType string

const (
	DateFixed    DateType = "FIXED"
	DateRelative DateType = "RELATIVE"
	DateRange    DateType = "RANGE"
)

// ParseDateType maps a raw date type, defaulting to FIXED.
func ParseDateType(raw string) DateType {
	switch DateType(raw) {
	case DateFixed, DateRelative, DateRange:
		return DateType(raw)
	default:
		return DateFixed
	}
}

// Importance ranks a timeline event.
type Importance string

const (
	ImportanceCritical Importance = "CRITICAL"
	ImportanceHigh     Importance = "HIGH"
	ImportanceMedium   Importance = "MEDIUM"
	ImportanceLow      Importance = "LOW"
)

// ParseImportance maps a raw importance, defaulting to MEDIUM.
func ParseImportance(raw string) Importance {
	switch Importance(raw) {
	case ImportanceCritical, ImportanceHigh, ImportanceMedium, ImportanceLow:
		return Importance(raw)
	default:
		return ImportanceMedium
	}
}

// RelativeRef anchors a RELATIVE event to another event.
type RelativeRef struct {
	EventID   string `json:"event_id"`
	Offset    int    `json:"offset"`
	Unit      string `json:"unit"`      // "days", "months"
	Direction string `json:"direction"` // "before" or "after"
}

// Urgency is per-event penalty/deadline/blocking metadata. DaysUntilDeadline
// depends on the wall clock at consolidation time and is recomputed on every
// consolidation pass, never treated as a stored fact.
type Urgency struct {
	HasPenalty        bool   `json:"has_penalty"`
	PenaltyAmount     string `json:"penalty_amount,omitempty"`
	DaysUntilDeadline *int   `json:"days_until_deadline,omitempty"`
	BlockingForOthers bool   `json:"blocking_for_others"`
}

// TimelineEvent is a consolidated temporal event. SourceKey is the
// deduplication identity across batches.
type TimelineEvent struct {
	ID                 string       `json:"id"`
	DocumentID         string       `json:"document_id"`
	SourceKey          string       `json:"source_key"`
	Date               *time.Time   `json:"date,omitempty"`
	DateRaw            string       `json:"date_raw,omitempty"`
	DateType           DateType     `json:"date_type"`
	RelativeTo         *RelativeRef `json:"relative_to,omitempty"`
	EventType          string       `json:"event_type"`
	Importance         Importance   `json:"importance"`
	LinkedPenalties    []string     `json:"linked_penalties,omitempty"`
	LinkedRequirements []string     `json:"linked_requirements,omitempty"`
	LinkedObligations  []string     `json:"linked_obligations,omitempty"`
	LinkedRiskIDs      []string     `json:"linked_risk_ids,omitempty"`
	Urgency            Urgency      `json:"urgency"`
	Tags               []string     `json:"tags,omitempty"`
	SourceEntityID     string       `json:"source_entity_id,omitempty"`
	PageNumber         int          `json:"page_number,omitempty"`
}
