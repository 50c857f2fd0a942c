package pipeline

import (
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/procurahq/docintel/internal/model"
	"github.com/procurahq/docintel/pkg/anthropic"
)

// Tool names the extraction model calls to hand results back. Stage 1 offers
// only save_sections; stage 2 offers the other three.
const (
	toolSaveSections       = "save_sections"
	toolSaveEntities       = "save_entities"
	toolSaveTimelineEvents = "save_timeline_events"
	toolSaveRisks          = "save_risks"
)

func sectionsTool() anthropic.ToolDef {
	return anthropic.ToolDef{
		Name:        toolSaveSections,
		Description: "Registra a estrutura hierarquica de secoes encontrada no bloco de texto.",
		Properties: map[string]any{
			"sections": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"level":         map[string]any{"type": "string", "enum": []string{"CHAPTER", "SECTION", "CLAUSE", "SUBCLAUSE", "ITEM"}},
						"number":        map[string]any{"type": "string"},
						"title":         map[string]any{"type": "string"},
						"parent_number": map[string]any{"type": "string"},
						"page_number":   map[string]any{"type": "integer"},
					},
					"required": []string{"level", "number"},
				},
			},
		},
		Required: []string{"sections"},
	}
}

func entitiesTool() anthropic.ToolDef {
	return anthropic.ToolDef{
		Name:        toolSaveEntities,
		Description: "Registra entidades juridicas e comerciais extraidas do bloco (prazos, obrigacoes, multas, valores, partes, garantias, requisitos, riscos, sancoes).",
		Properties: map[string]any{
			"entities": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"type":         map[string]any{"type": "string", "enum": []string{"PRAZO", "OBRIGACAO", "MULTA", "SANCAO", "REQUISITO", "RISCO", "VALOR", "PARTE", "GARANTIA"}},
						"name":         map[string]any{"type": "string"},
						"raw_value":    map[string]any{"type": "string"},
						"semantic_key": map[string]any{"type": "string", "description": "Chave estavel no formato tipo:slug, ex. prazo:entrega-proposta"},
						"confidence":   map[string]any{"type": "number"},
						"page_number":  map[string]any{"type": "integer"},
						"excerpt":      map[string]any{"type": "string"},
						"metadata":     map[string]any{"type": "object"},
						"related_keys": map[string]any{
							"type": "array",
							"items": map[string]any{
								"type": "object",
								"properties": map[string]any{
									"semantic_key": map[string]any{"type": "string"},
									"relationship": map[string]any{"type": "string"},
								},
							},
						},
					},
					"required": []string{"type", "name", "semantic_key"},
				},
			},
		},
		Required: []string{"entities"},
	}
}

func timelineTool() anthropic.ToolDef {
	return anthropic.ToolDef{
		Name:        toolSaveTimelineEvents,
		Description: "Registra eventos de cronograma (datas fixas, relativas e intervalos) com seus vinculos.",
		Properties: map[string]any{
			"events": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"source_key":  map[string]any{"type": "string"},
						"date":        map[string]any{"type": "string", "description": "Data ISO (YYYY-MM-DD) quando fixa"},
						"date_raw":    map[string]any{"type": "string"},
						"date_type":   map[string]any{"type": "string", "enum": []string{"FIXED", "RELATIVE", "RANGE"}},
						"event_type":  map[string]any{"type": "string"},
						"importance":  map[string]any{"type": "string", "enum": []string{"CRITICAL", "HIGH", "MEDIUM", "LOW"}},
						"page_number": map[string]any{"type": "integer"},
						"relative_to": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"event_key": map[string]any{"type": "string"},
								"offset":    map[string]any{"type": "integer"},
								"unit":      map[string]any{"type": "string", "enum": []string{"days", "months"}},
								"direction": map[string]any{"type": "string", "enum": []string{"before", "after"}},
							},
						},
						"linked_penalties":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
						"linked_requirements": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
						"linked_obligations":  map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
						"tags":                map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					},
					"required": []string{"source_key", "event_type"},
				},
			},
		},
		Required: []string{"events"},
	}
}

func risksTool() anthropic.ToolDef {
	return anthropic.ToolDef{
		Name:        toolSaveRisks,
		Description: "Registra riscos identificados no bloco com severidade, probabilidade e mitigacao.",
		Properties: map[string]any{
			"risks": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"category":           map[string]any{"type": "string"},
						"subcategory":        map[string]any{"type": "string"},
						"title":              map[string]any{"type": "string"},
						"description":        map[string]any{"type": "string"},
						"trigger":            map[string]any{"type": "string"},
						"consequence":        map[string]any{"type": "string"},
						"severity":           map[string]any{"type": "string", "enum": []string{"CRITICAL", "HIGH", "MEDIUM", "LOW"}},
						"probability":        map[string]any{"type": "string", "enum": []string{"CERTAIN", "LIKELY", "POSSIBLE", "UNLIKELY"}},
						"mitigation":         map[string]any{"type": "string"},
						"linked_entity_keys": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
						"page_number":        map[string]any{"type": "integer"},
						"excerpt":            map[string]any{"type": "string"},
					},
					"required": []string{"category", "title", "severity", "probability"},
				},
			},
		},
		Required: []string{"risks"},
	}
}

// --- wire payloads ---

type sectionPayload struct {
	Sections []struct {
		Level        string `json:"level"`
		Number       string `json:"number"`
		Title        string `json:"title"`
		ParentNumber string `json:"parent_number"`
		PageNumber   int    `json:"page_number"`
	} `json:"sections"`
}

type entityPayload struct {
	Entities []struct {
		Type        string              `json:"type"`
		Name        string              `json:"name"`
		RawValue    string              `json:"raw_value"`
		SemanticKey string              `json:"semantic_key"`
		Confidence  float64             `json:"confidence"`
		PageNumber  int                 `json:"page_number"`
		Excerpt     string              `json:"excerpt"`
		Metadata    json.RawMessage     `json:"metadata"`
		RelatedKeys []relatedKeyPayload `json:"related_keys"`
	} `json:"entities"`
}

type relatedKeyPayload struct {
	SemanticKey  string `json:"semantic_key"`
	Relationship string `json:"relationship"`
}

type timelinePayload struct {
	Events []struct {
		SourceKey  string `json:"source_key"`
		Date       string `json:"date"`
		DateRaw    string `json:"date_raw"`
		DateType   string `json:"date_type"`
		EventType  string `json:"event_type"`
		Importance string `json:"importance"`
		PageNumber int    `json:"page_number"`
		RelativeTo *struct {
			EventKey  string `json:"event_key"`
			Offset    int    `json:"offset"`
			Unit      string `json:"unit"`
			Direction string `json:"direction"`
		} `json:"relative_to"`
		LinkedPenalties    []string `json:"linked_penalties"`
		LinkedRequirements []string `json:"linked_requirements"`
		LinkedObligations  []string `json:"linked_obligations"`
		Tags               []string `json:"tags"`
	} `json:"events"`
}

type riskPayload struct {
	Risks []struct {
		Category         string   `json:"category"`
		Subcategory      string   `json:"subcategory"`
		Title            string   `json:"title"`
		Description      string   `json:"description"`
		Trigger          string   `json:"trigger"`
		Consequence      string   `json:"consequence"`
		Severity         string   `json:"severity"`
		Probability      string   `json:"probability"`
		Mitigation       string   `json:"mitigation"`
		LinkedEntityKeys []string `json:"linked_entity_keys"`
		PageNumber       int      `json:"page_number"`
		Excerpt          string   `json:"excerpt"`
	} `json:"risks"`
}

// StageRisk is a parsed risk still carrying semantic-key links; the ids are
// resolved after reconciliation.
type StageRisk struct {
	Risk             model.Risk
	LinkedEntityKeys []string
}

// parseSections decodes a save_sections call. Entries without a number are
// dropped; unknown levels default to CLAUSE.
func parseSections(raw json.RawMessage, documentID string) []model.Section {
	var payload sectionPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		zap.L().Warn("extract: malformed save_sections payload", zap.Error(err))
		return nil
	}

	var out []model.Section
	for _, s := range payload.Sections {
		if s.Number == "" {
			continue
		}
		out = append(out, model.Section{
			DocumentID:   documentID,
			Level:        model.ParseSectionLevel(s.Level),
			Number:       s.Number,
			Title:        s.Title,
			ParentNumber: s.ParentNumber,
			PageNumber:   s.PageNumber,
		})
	}
	return out
}

// parseEntities decodes a save_entities call. Entries without a semantic key
// or name are dropped; unknown types default to REQUISITO; confidence is
// clamped to [0,1].
func parseEntities(raw json.RawMessage, documentID string) []model.Entity {
	var payload entityPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		zap.L().Warn("extract: malformed save_entities payload", zap.Error(err))
		return nil
	}

	var out []model.Entity
	for _, e := range payload.Entities {
		if e.SemanticKey == "" || e.Name == "" {
			continue
		}

		entityType := model.ParseEntityType(e.Type)
		confidence := clamp01(e.Confidence)

		var related []model.RelatedKey
		for _, rk := range e.RelatedKeys {
			if rk.SemanticKey == "" {
				continue
			}
			related = append(related, model.RelatedKey{
				SemanticKey:  rk.SemanticKey,
				Relationship: rk.Relationship,
			})
		}

		out = append(out, model.Entity{
			DocumentID:  documentID,
			Type:        entityType,
			Name:        e.Name,
			RawValue:    e.RawValue,
			SemanticKey: e.SemanticKey,
			Metadata:    parseEntityMetadata(entityType, e.Metadata),
			Confidence:  confidence,
			Provenance: []model.Provenance{{
				PageNumber: e.PageNumber,
				Excerpt:    e.Excerpt,
				Confidence: confidence,
			}},
			RelatedKeys: related,
		})
	}
	return out
}

// parseEntityMetadata decodes the type-specific metadata variant. A decode
// failure leaves the metadata empty rather than failing the entity.
func parseEntityMetadata(t model.EntityType, raw json.RawMessage) model.EntityMetadata {
	var meta model.EntityMetadata
	if len(raw) == 0 {
		return meta
	}

	var err error
	switch t {
	case model.EntityDeadline:
		meta.Deadline = &model.DeadlineMeta{}
		err = json.Unmarshal(raw, meta.Deadline)
	case model.EntityObligation:
		meta.Obligation = &model.ObligationMeta{}
		err = json.Unmarshal(raw, meta.Obligation)
	case model.EntityPenalty, model.EntitySanction:
		meta.Penalty = &model.PenaltyMeta{}
		err = json.Unmarshal(raw, meta.Penalty)
	case model.EntityRequirement:
		meta.Requirement = &model.RequirementMeta{}
		err = json.Unmarshal(raw, meta.Requirement)
	case model.EntityRiskFlag:
		meta.Risk = &model.RiskMeta{}
		err = json.Unmarshal(raw, meta.Risk)
	case model.EntityMoney:
		meta.Money = &model.MoneyMeta{}
		err = json.Unmarshal(raw, meta.Money)
	case model.EntityParty:
		meta.Party = &model.PartyMeta{}
		err = json.Unmarshal(raw, meta.Party)
	case model.EntityGuarantee:
		meta.Guarantee = &model.GuaranteeMeta{}
		err = json.Unmarshal(raw, meta.Guarantee)
	}
	if err != nil {
		zap.L().Warn("extract: malformed entity metadata",
			zap.String("type", string(t)),
			zap.Error(err),
		)
		return model.EntityMetadata{}
	}
	return meta
}

// parseTimelineEvents decodes a save_timeline_events call. Entries without a
// source key are dropped; unparseable dates stay nil with the raw text kept.
func parseTimelineEvents(raw json.RawMessage, documentID string) []model.TimelineEvent {
	var payload timelinePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		zap.L().Warn("extract: malformed save_timeline_events payload", zap.Error(err))
		return nil
	}

	var out []model.TimelineEvent
	for _, e := range payload.Events {
		if e.SourceKey == "" {
			continue
		}

		ev := model.TimelineEvent{
			DocumentID: documentID,
			SourceKey:  e.SourceKey,
			DateRaw:    e.DateRaw,
			DateType:   model.ParseDateType(e.DateType),
			EventType:  e.EventType,
			Importance: model.ParseImportance(e.Importance),
			PageNumber: e.PageNumber,

			LinkedPenalties:    e.LinkedPenalties,
			LinkedRequirements: e.LinkedRequirements,
			LinkedObligations:  e.LinkedObligations,
			Tags:               e.Tags,
		}

		if e.Date != "" {
			if d, err := parseDate(e.Date); err == nil {
				ev.Date = &d
			} else if ev.DateRaw == "" {
				ev.DateRaw = e.Date
			}
		}

		if e.RelativeTo != nil && e.RelativeTo.EventKey != "" {
			ev.RelativeTo = &model.RelativeRef{
				EventID:   e.RelativeTo.EventKey,
				Offset:    e.RelativeTo.Offset,
				Unit:      e.RelativeTo.Unit,
				Direction: e.RelativeTo.Direction,
			}
		}

		out = append(out, ev)
	}
	return out
}

// parseRisks decodes a save_risks call. Entries without a title are dropped;
// unknown severities default to MEDIUM and probabilities to POSSIBLE.
func parseRisks(raw json.RawMessage, documentID string) []StageRisk {
	var payload riskPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		zap.L().Warn("extract: malformed save_risks payload", zap.Error(err))
		return nil
	}

	var out []StageRisk
	for _, r := range payload.Risks {
		if r.Title == "" {
			continue
		}
		risk := model.Risk{
			DocumentID:  documentID,
			Category:    r.Category,
			Subcategory: r.Subcategory,
			Title:       r.Title,
			Description: r.Description,
			Trigger:     r.Trigger,
			Consequence: r.Consequence,
			Severity:    model.ParseSeverity(r.Severity),
			Probability: model.ParseProbability(r.Probability),
			Mitigation:  r.Mitigation,
		}
		if r.PageNumber > 0 || r.Excerpt != "" {
			risk.Sources = []model.Provenance{{PageNumber: r.PageNumber, Excerpt: r.Excerpt}}
		}
		out = append(out, StageRisk{Risk: risk, LinkedEntityKeys: r.LinkedEntityKeys})
	}
	return out
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", time.RFC3339, "02/01/2006"} {
		if d, err := time.Parse(layout, s); err == nil {
			return d.UTC(), nil
		}
	}
	return time.Time{}, eris.New("unrecognized date: " + s)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
