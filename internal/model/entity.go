package model

import "time"

// EntityType classifies an extracted entity.
type EntityType string

const (
	EntityDeadline    EntityType = "PRAZO"
	EntityObligation  EntityType = "OBRIGACAO"
	EntityPenalty     EntityType = "MULTA"
	EntitySanction    EntityType = "SANCAO"
	EntityRequirement EntityType = "REQUISITO"
	EntityRiskFlag    EntityType = "RISCO"
	EntityMoney       EntityType = "VALOR"
	EntityParty       EntityType = "PARTE"
	EntityGuarantee   EntityType = "GARANTIA"
)

// AllEntityTypes returns every defined entity type.
func AllEntityTypes() []EntityType {
	return []EntityType{
		EntityDeadline,
		EntityObligation,
		EntityPenalty,
		EntitySanction,
		EntityRequirement,
		EntityRiskFlag,
		EntityMoney,
		EntityParty,
		EntityGuarantee,
	}
}

// ParseEntityType maps a raw type string to an EntityType, defaulting to
// REQUISITO for anything unrecognized.
func ParseEntityType(raw string) EntityType {
	for _, t := range AllEntityTypes() {
		if EntityType(raw) == t {
			return t
		}
	}
	return EntityRequirement
}

// IsPenaltyType reports whether the type carries a financial/sanction
// consequence (MULTA or SANCAO).
func IsPenaltyType(t EntityType) bool {
	return t == EntityPenalty || t == EntitySanction
}

// Provenance points at the page and excerpt an extraction came from.
type Provenance struct {
	PageNumber int     `json:"page_number"`
	Excerpt    string  `json:"excerpt,omitempty"`
	Confidence float64 `json:"confidence"`
}

// RelatedKey is a cross-entity reference by semantic key.
type RelatedKey struct {
	SemanticKey  string `json:"semantic_key"`
	Relationship string `json:"relationship,omitempty"`
}

// DeadlineMeta holds PRAZO-specific fields.
type DeadlineMeta struct {
	DateRaw  string `json:"date_raw,omitempty"`
	Unit     string `json:"unit,omitempty"`
	Quantity int    `json:"quantity,omitempty"`
	Business bool   `json:"business_days,omitempty"`
}

// ObligationMeta holds OBRIGACAO-specific fields.
type ObligationMeta struct {
	Party     string `json:"party,omitempty"`
	Recurring bool   `json:"recurring,omitempty"`
	Frequency string `json:"frequency,omitempty"`
}

// PenaltyMeta holds MULTA/SANCAO-specific fields.
type PenaltyMeta struct {
	Amount    string `json:"amount,omitempty"`
	Basis     string `json:"basis,omitempty"`
	Cap       string `json:"cap,omitempty"`
	PerDay    bool   `json:"per_day,omitempty"`
	Condition string `json:"condition,omitempty"`
}

// RequirementMeta holds REQUISITO-specific fields.
type RequirementMeta struct {
	Category  string `json:"category,omitempty"`
	Mandatory bool   `json:"mandatory,omitempty"`
	Evidence  string `json:"evidence,omitempty"`
}

// RiskMeta holds RISCO-specific fields.
type RiskMeta struct {
	Category    string `json:"category,omitempty"`
	Trigger     string `json:"trigger,omitempty"`
	Consequence string `json:"consequence,omitempty"`
}

// MoneyMeta holds VALOR-specific fields.
type MoneyMeta struct {
	Amount   string `json:"amount,omitempty"`
	Currency string `json:"currency,omitempty"`
	Context  string `json:"context,omitempty"`
}

// PartyMeta holds PARTE-specific fields.
type PartyMeta struct {
	Role       string `json:"role,omitempty"`
	Identifier string `json:"identifier,omitempty"`
}

// GuaranteeMeta holds GARANTIA-specific fields.
type GuaranteeMeta struct {
	Kind    string `json:"kind,omitempty"`
	Amount  string `json:"amount,omitempty"`
	Percent string `json:"percent,omitempty"`
}

// EntityMetadata is a tagged union over the per-type variant structs: exactly
// the variant matching Entity.Type is populated, all others are nil.
type EntityMetadata struct {
	Deadline    *DeadlineMeta    `json:"deadline,omitempty"`
	Obligation  *ObligationMeta  `json:"obligation,omitempty"`
	Penalty     *PenaltyMeta     `json:"penalty,omitempty"`
	Requirement *RequirementMeta `json:"requirement,omitempty"`
	Risk        *RiskMeta        `json:"risk,omitempty"`
	Money       *MoneyMeta       `json:"money,omitempty"`
	Party       *PartyMeta       `json:"party,omitempty"`
	Guarantee   *GuaranteeMeta   `json:"guarantee,omitempty"`
}

// IsZero reports whether no variant is populated.
func (m EntityMetadata) IsZero() bool {
	return m.Deadline == nil && m.Obligation == nil && m.Penalty == nil &&
		m.Requirement == nil && m.Risk == nil && m.Money == nil &&
		m.Party == nil && m.Guarantee == nil
}

// Entity is a typed, deduplicated extraction. SemanticKey is the
// deduplication identity: at most one live Entity exists per
// (document, semantic key).
type Entity struct {
	ID          string         `json:"id"`
	DocumentID  string         `json:"document_id"`
	Type        EntityType     `json:"type"`
	Name        string         `json:"name"`
	RawValue    string         `json:"raw_value,omitempty"`
	SemanticKey string         `json:"semantic_key"`
	Metadata    EntityMetadata `json:"metadata"`
	Confidence  float64        `json:"confidence"`
	Provenance  []Provenance   `json:"provenance"`
	RelatedKeys []RelatedKey   `json:"related_keys,omitempty"`
	RelatedIDs  []string       `json:"related_ids,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// ConflictType classifies a reconciliation disagreement.
type ConflictType string

const (
	ConflictValueMismatch    ConflictType = "VALUE_MISMATCH"
	ConflictMetadataConflict ConflictType = "METADATA_CONFLICT"
)

// ConflictResolution records how a conflict was settled.
type ConflictResolution string

const (
	ResolutionKeptExisting         ConflictResolution = "KEPT_EXISTING"
	ResolutionReplacedWithIncoming ConflictResolution = "REPLACED_WITH_INCOMING"
	ResolutionMerged               ConflictResolution = "MERGED"
)

// ReconciliationConflict is a recorded disagreement between two extractions
// sharing the same semantic key. A data point, not an error.
type ReconciliationConflict struct {
	ID           string             `json:"id"`
	DocumentID   string             `json:"document_id"`
	SemanticKey  string             `json:"semantic_key"`
	ConflictType ConflictType       `json:"conflict_type"`
	Resolution   ConflictResolution `json:"resolution"`
	Existing     Entity             `json:"existing"`
	Incoming     Entity             `json:"incoming"`
	DetectedAt   time.Time          `json:"detected_at"`
}
