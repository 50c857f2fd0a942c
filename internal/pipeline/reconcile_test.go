package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/procurahq/docintel/internal/model"
)

func deadlineEntity(key, rawValue string, confidence float64, page int) model.Entity {
	return model.Entity{
		Type:        model.EntityDeadline,
		Name:        "Prazo " + key,
		RawValue:    rawValue,
		SemanticKey: key,
		Confidence:  confidence,
		Provenance:  []model.Provenance{{PageNumber: page, Excerpt: rawValue, Confidence: confidence}},
	}
}

func TestReconciler_FirstIngestCreates(t *testing.T) {
	r := NewReconciler("doc-1", nil)
	r.Ingest([]model.Entity{deadlineEntity("prazo:entrega", "10 dias", 0.9, 3)})

	entities := r.Entities()
	require.Len(t, entities, 1)
	assert.NotEmpty(t, entities[0].ID)
	assert.Equal(t, "doc-1", entities[0].DocumentID)
	assert.False(t, entities[0].CreatedAt.IsZero())
	assert.Empty(t, r.Conflicts())
}

func TestReconciler_IgnoresEmptyKey(t *testing.T) {
	r := NewReconciler("doc-1", nil)
	r.Ingest([]model.Entity{{Name: "sem chave"}})
	assert.Empty(t, r.Entities())
}

func TestReconciler_SameValueMergesProvenance(t *testing.T) {
	r := NewReconciler("doc-1", nil)
	r.Ingest([]model.Entity{deadlineEntity("prazo:entrega", "10 dias", 0.8, 3)})
	r.Ingest([]model.Entity{deadlineEntity("prazo:entrega", "10 dias", 0.95, 7)})

	entities := r.Entities()
	require.Len(t, entities, 1)
	assert.Len(t, entities[0].Provenance, 2)
	assert.Equal(t, 0.95, entities[0].Confidence)
	assert.Empty(t, r.Conflicts(), "re-extraction of the same value is not a conflict")
}

func TestReconciler_DuplicateProvenanceNotRepeated(t *testing.T) {
	r := NewReconciler("doc-1", nil)
	same := deadlineEntity("prazo:entrega", "10 dias", 0.8, 3)
	r.Ingest([]model.Entity{same})
	r.Ingest([]model.Entity{same})

	entities := r.Entities()
	require.Len(t, entities, 1)
	assert.Len(t, entities[0].Provenance, 1)
}

func TestReconciler_ValueMismatchKeepsExisting(t *testing.T) {
	r := NewReconciler("doc-1", nil)
	r.Ingest([]model.Entity{deadlineEntity("prazo:entrega", "10 dias", 0.8, 3)})
	r.Ingest([]model.Entity{deadlineEntity("prazo:entrega", "15 dias", 0.9, 8)})

	entities := r.Entities()
	require.Len(t, entities, 1)
	assert.Equal(t, "10 dias", entities[0].RawValue)
	assert.Len(t, entities[0].Provenance, 2, "losing extraction still contributes provenance")

	conflicts := r.Conflicts()
	require.Len(t, conflicts, 1)
	assert.Equal(t, model.ConflictValueMismatch, conflicts[0].ConflictType)
	assert.Equal(t, model.ResolutionKeptExisting, conflicts[0].Resolution)
	assert.Equal(t, "10 dias", conflicts[0].Existing.RawValue)
	assert.Equal(t, "15 dias", conflicts[0].Incoming.RawValue)
}

func TestReconciler_MetadataConflict(t *testing.T) {
	a := deadlineEntity("prazo:entrega", "10 dias", 0.8, 3)
	a.Metadata = model.EntityMetadata{Deadline: &model.DeadlineMeta{Quantity: 10, Unit: "dias"}}
	b := deadlineEntity("prazo:entrega", "10 dias", 0.8, 5)
	b.Metadata = model.EntityMetadata{Deadline: &model.DeadlineMeta{Quantity: 10, Unit: "dias", Business: true}}

	r := NewReconciler("doc-1", nil)
	r.Ingest([]model.Entity{a})
	r.Ingest([]model.Entity{b})

	conflicts := r.Conflicts()
	require.Len(t, conflicts, 1)
	assert.Equal(t, model.ConflictMetadataConflict, conflicts[0].ConflictType)
}

func TestReconciler_PreferConfidentPolicy(t *testing.T) {
	r := NewReconciler("doc-1", PreferConfident)
	r.Ingest([]model.Entity{deadlineEntity("prazo:entrega", "10 dias", 0.6, 3)})
	r.Ingest([]model.Entity{deadlineEntity("prazo:entrega", "15 dias", 0.9, 8)})

	entities := r.Entities()
	require.Len(t, entities, 1)
	assert.Equal(t, "15 dias", entities[0].RawValue)

	conflicts := r.Conflicts()
	require.Len(t, conflicts, 1)
	assert.Equal(t, model.ResolutionReplacedWithIncoming, conflicts[0].Resolution)
	// The surviving entity keeps the original identity.
	id, ok := r.Lookup("prazo:entrega")
	require.True(t, ok)
	assert.Equal(t, conflicts[0].Existing.ID, id)
}

func TestReconciler_ResolveRelated(t *testing.T) {
	penalty := model.Entity{
		Type:        model.EntityPenalty,
		Name:        "Multa por atraso",
		SemanticKey: "multa:atraso",
	}
	deadline := deadlineEntity("prazo:entrega", "10 dias", 0.9, 3)
	deadline.RelatedKeys = []model.RelatedKey{
		{SemanticKey: "multa:atraso", Relationship: "penalidade"},
		{SemanticKey: "requisito:inexistente"},
	}

	r := NewReconciler("doc-1", nil)
	r.Ingest([]model.Entity{deadline})
	// The referenced entity only shows up in a later batch.
	r.Ingest([]model.Entity{penalty})

	dropped := r.ResolveRelated()
	assert.Equal(t, 1, dropped)

	entities := r.Entities()
	require.Len(t, entities, 2)
	penaltyID, _ := r.Lookup("multa:atraso")
	assert.Equal(t, []string{penaltyID}, entities[0].RelatedIDs)
}

func TestReconciler_EntityByKey(t *testing.T) {
	r := NewReconciler("doc-1", nil)
	r.Ingest([]model.Entity{deadlineEntity("prazo:entrega", "10 dias", 0.9, 3)})

	e, ok := r.EntityByKey("prazo:entrega")
	require.True(t, ok)
	assert.Equal(t, "10 dias", e.RawValue)

	_, ok = r.EntityByKey("prazo:nada")
	assert.False(t, ok)
}
