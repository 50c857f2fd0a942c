package pipeline

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/procurahq/docintel/internal/model"
)

// ConflictPolicy decides which of two extractions of the same semantic key
// survives. It returns the surviving entity and how the conflict was settled.
type ConflictPolicy func(existing, incoming model.Entity) (model.Entity, model.ConflictResolution)

// KeepExisting is the default policy: the first extraction wins and the
// incoming one only contributes its provenance.
func KeepExisting(existing, incoming model.Entity) (model.Entity, model.ConflictResolution) {
	existing.Provenance = appendProvenance(existing.Provenance, incoming.Provenance)
	return existing, model.ResolutionKeptExisting
}

// PreferConfident keeps whichever extraction reported higher confidence.
func PreferConfident(existing, incoming model.Entity) (model.Entity, model.ConflictResolution) {
	if incoming.Confidence > existing.Confidence {
		incoming.ID = existing.ID
		incoming.CreatedAt = existing.CreatedAt
		incoming.Provenance = appendProvenance(incoming.Provenance, existing.Provenance)
		return incoming, model.ResolutionReplacedWithIncoming
	}
	existing.Provenance = appendProvenance(existing.Provenance, incoming.Provenance)
	return existing, model.ResolutionKeptExisting
}

// Reconciler maintains at most one live entity per semantic key within a
// document run. Related-key links are resolved lazily at the end of the run,
// after every batch has had a chance to contribute the referenced entity.
type Reconciler struct {
	documentID string
	policy     ConflictPolicy
	byKey      map[string]*model.Entity
	order      []string
	conflicts  []model.ReconciliationConflict
}

func NewReconciler(documentID string, policy ConflictPolicy) *Reconciler {
	if policy == nil {
		policy = KeepExisting
	}
	return &Reconciler{
		documentID: documentID,
		policy:     policy,
		byKey:      make(map[string]*model.Entity),
	}
}

// Ingest merges a batch of freshly extracted entities. Entities without a
// semantic key are ignored.
func (r *Reconciler) Ingest(entities []model.Entity) {
	for _, incoming := range entities {
		if incoming.SemanticKey == "" {
			continue
		}

		existing, ok := r.byKey[incoming.SemanticKey]
		if !ok {
			e := incoming
			if e.ID == "" {
				e.ID = uuid.New().String()
			}
			e.DocumentID = r.documentID
			if e.CreatedAt.IsZero() {
				e.CreatedAt = time.Now().UTC()
			}
			r.byKey[e.SemanticKey] = &e
			r.order = append(r.order, e.SemanticKey)
			continue
		}

		conflictType, conflicting := classifyConflict(*existing, incoming)
		if !conflicting {
			// Same facts extracted twice: just accumulate provenance.
			existing.Provenance = appendProvenance(existing.Provenance, incoming.Provenance)
			existing.RelatedKeys = appendRelatedKeys(existing.RelatedKeys, incoming.RelatedKeys)
			if incoming.Confidence > existing.Confidence {
				existing.Confidence = incoming.Confidence
			}
			continue
		}

		resolved, resolution := r.policy(*existing, incoming)
		resolved.RelatedKeys = appendRelatedKeys(existing.RelatedKeys, incoming.RelatedKeys)
		r.conflicts = append(r.conflicts, model.ReconciliationConflict{
			ID:           uuid.New().String(),
			DocumentID:   r.documentID,
			SemanticKey:  incoming.SemanticKey,
			ConflictType: conflictType,
			Resolution:   resolution,
			Existing:     *existing,
			Incoming:     incoming,
			DetectedAt:   time.Now().UTC(),
		})
		*existing = resolved
	}
}

// classifyConflict reports whether two extractions of the same key disagree.
func classifyConflict(existing, incoming model.Entity) (model.ConflictType, bool) {
	if existing.RawValue != incoming.RawValue && incoming.RawValue != "" && existing.RawValue != "" {
		return model.ConflictValueMismatch, true
	}
	if incoming.Metadata.IsZero() || existing.Metadata.IsZero() {
		return "", false
	}
	a, _ := json.Marshal(existing.Metadata)
	b, _ := json.Marshal(incoming.Metadata)
	if string(a) != string(b) {
		return model.ConflictMetadataConflict, true
	}
	return "", false
}

// Lookup returns the live entity id for a semantic key.
func (r *Reconciler) Lookup(key string) (string, bool) {
	e, ok := r.byKey[key]
	if !ok {
		return "", false
	}
	return e.ID, true
}

// EntityByKey returns a copy of the live entity for a semantic key.
func (r *Reconciler) EntityByKey(key string) (model.Entity, bool) {
	e, ok := r.byKey[key]
	if !ok {
		return model.Entity{}, false
	}
	return *e, true
}

// ResolveRelated converts semantic-key links into entity id links. Keys that
// no batch ever produced are dropped and counted.
func (r *Reconciler) ResolveRelated() (dropped int) {
	for _, key := range r.order {
		e := r.byKey[key]
		for _, rel := range e.RelatedKeys {
			id, ok := r.Lookup(rel.SemanticKey)
			if !ok {
				dropped++
				zap.L().Debug("reconcile: dropping unresolved related key",
					zap.String("entity", e.SemanticKey),
					zap.String("related", rel.SemanticKey),
				)
				continue
			}
			e.RelatedIDs = append(e.RelatedIDs, id)
		}
	}
	return dropped
}

// Entities returns the live entities in first-seen order.
func (r *Reconciler) Entities() []model.Entity {
	out := make([]model.Entity, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, *r.byKey[key])
	}
	return out
}

func (r *Reconciler) Conflicts() []model.ReconciliationConflict {
	return r.conflicts
}

// appendProvenance merges provenance lists, skipping exact duplicates.
func appendProvenance(dst, src []model.Provenance) []model.Provenance {
	for _, p := range src {
		dup := false
		for _, q := range dst {
			if q.PageNumber == p.PageNumber && q.Excerpt == p.Excerpt {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, p)
		}
	}
	return dst
}

func appendRelatedKeys(dst, src []model.RelatedKey) []model.RelatedKey {
	for _, rk := range src {
		dup := false
		for _, existing := range dst {
			if existing.SemanticKey == rk.SemanticKey {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, rk)
		}
	}
	return dst
}
