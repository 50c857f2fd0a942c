package pipeline

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/procurahq/docintel/internal/model"
)

func TestParseSections_DefaultsAndDrops(t *testing.T) {
	raw := json.RawMessage(`{"sections": [
		{"level": "SECTION", "number": "5", "title": "Das Obrigacoes", "page_number": 12},
		{"level": "NONSENSE", "number": "5.1", "parent_number": "5"},
		{"level": "CLAUSE", "title": "sem numero"}
	]}`)

	sections := parseSections(raw, "doc-1")
	require.Len(t, sections, 2)
	assert.Equal(t, model.LevelSection, sections[0].Level)
	assert.Equal(t, model.LevelClause, sections[1].Level, "unknown level defaults to CLAUSE")
	assert.Equal(t, "5", sections[1].ParentNumber)
}

func TestParseSections_MalformedPayload(t *testing.T) {
	assert.Nil(t, parseSections(json.RawMessage(`{"sections": "not an array"}`), "doc-1"))
}

func TestParseEntities_Defensive(t *testing.T) {
	raw := json.RawMessage(`{"entities": [
		{"type": "PRAZO", "name": "Entrega", "raw_value": "10 dias", "semantic_key": "prazo:entrega",
		 "confidence": 1.7, "page_number": 4, "excerpt": "no prazo de 10 dias",
		 "metadata": {"quantity": 10, "unit": "dias", "business_days": true},
		 "related_keys": [{"semantic_key": "multa:atraso", "relationship": "penalidade"}, {"relationship": "vazio"}]},
		{"type": "TIPO_DESCONHECIDO", "name": "Algo", "semantic_key": "x:algo", "confidence": -1},
		{"type": "MULTA", "name": "Sem chave"}
	]}`)

	entities := parseEntities(raw, "doc-1")
	require.Len(t, entities, 2)

	e := entities[0]
	assert.Equal(t, model.EntityDeadline, e.Type)
	assert.Equal(t, 1.0, e.Confidence, "confidence clamped to 1")
	require.NotNil(t, e.Metadata.Deadline)
	assert.Equal(t, 10, e.Metadata.Deadline.Quantity)
	assert.True(t, e.Metadata.Deadline.Business)
	require.Len(t, e.RelatedKeys, 1, "related key without semantic_key dropped")
	assert.Equal(t, "multa:atraso", e.RelatedKeys[0].SemanticKey)
	require.Len(t, e.Provenance, 1)
	assert.Equal(t, 4, e.Provenance[0].PageNumber)

	assert.Equal(t, model.EntityRequirement, entities[1].Type, "unknown type defaults to REQUISITO")
	assert.Equal(t, 0.0, entities[1].Confidence, "confidence clamped to 0")
}

func TestParseEntities_MetadataVariantMatchesType(t *testing.T) {
	raw := json.RawMessage(`{"entities": [
		{"type": "MULTA", "name": "Multa diaria", "semantic_key": "multa:atraso",
		 "metadata": {"amount": "0,5%", "per_day": true}}
	]}`)

	entities := parseEntities(raw, "doc-1")
	require.Len(t, entities, 1)
	require.NotNil(t, entities[0].Metadata.Penalty)
	assert.True(t, entities[0].Metadata.Penalty.PerDay)
	assert.Nil(t, entities[0].Metadata.Deadline)
}

func TestParseTimelineEvents_DateHandling(t *testing.T) {
	raw := json.RawMessage(`{"events": [
		{"source_key": "prazo:abertura", "date": "2026-09-10", "date_type": "FIXED", "event_type": "abertura", "importance": "CRITICAL"},
		{"source_key": "prazo:vistoria", "date": "em breve", "date_type": "QUALQUER", "event_type": "vistoria"},
		{"source_key": "prazo:inicio", "date_type": "RELATIVE", "event_type": "inicio",
		 "relative_to": {"event_key": "prazo:abertura", "offset": 5, "unit": "days", "direction": "after"}},
		{"event_type": "sem chave"}
	]}`)

	events := parseTimelineEvents(raw, "doc-1")
	require.Len(t, events, 3)

	require.NotNil(t, events[0].Date)
	assert.Equal(t, model.ImportanceCritical, events[0].Importance)

	assert.Nil(t, events[1].Date, "unparseable date stays nil")
	assert.Equal(t, "em breve", events[1].DateRaw)
	assert.Equal(t, model.DateFixed, events[1].DateType, "unknown date type defaults to FIXED")
	assert.Equal(t, model.ImportanceMedium, events[1].Importance, "missing importance defaults to MEDIUM")

	require.NotNil(t, events[2].RelativeTo)
	assert.Equal(t, "prazo:abertura", events[2].RelativeTo.EventID)
}

func TestParseTimelineEvents_BrazilianDateFormat(t *testing.T) {
	raw := json.RawMessage(`{"events": [
		{"source_key": "prazo:entrega", "date": "10/09/2026", "date_type": "FIXED", "event_type": "entrega"}
	]}`)

	events := parseTimelineEvents(raw, "doc-1")
	require.Len(t, events, 1)
	require.NotNil(t, events[0].Date)
	assert.Equal(t, 10, events[0].Date.Day())
	assert.Equal(t, 9, int(events[0].Date.Month()))
}

func TestParseRisks_Defensive(t *testing.T) {
	raw := json.RawMessage(`{"risks": [
		{"category": "financeiro", "title": "Garantia alta", "severity": "HIGH", "probability": "LIKELY",
		 "linked_entity_keys": ["garantia:contratual"], "page_number": 22, "excerpt": "garantia de 10%"},
		{"category": "prazo", "title": "Cronograma apertado", "severity": "ENORME", "probability": ""},
		{"category": "sem titulo", "severity": "LOW", "probability": "UNLIKELY"}
	]}`)

	risks := parseRisks(raw, "doc-1")
	require.Len(t, risks, 2)

	assert.Equal(t, model.SeverityHigh, risks[0].Risk.Severity)
	assert.Equal(t, []string{"garantia:contratual"}, risks[0].LinkedEntityKeys)
	require.Len(t, risks[0].Risk.Sources, 1)
	assert.Equal(t, 22, risks[0].Risk.Sources[0].PageNumber)

	assert.Equal(t, model.SeverityMedium, risks[1].Risk.Severity, "unknown severity defaults to MEDIUM")
	assert.Equal(t, model.ProbabilityPossible, risks[1].Risk.Probability, "missing probability defaults to POSSIBLE")
}
