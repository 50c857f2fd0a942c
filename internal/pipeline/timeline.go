package pipeline

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/procurahq/docintel/internal/model"
)

// EntityLookup resolves a semantic key to its live entity.
type EntityLookup func(key string) (model.Entity, bool)

// Consolidator maintains one live timeline event per source key within a
// document run. Relative dates and urgency are computed in Finalize, after
// all batches have contributed.
type Consolidator struct {
	documentID string
	byKey      map[string]*model.TimelineEvent
	order      []string
}

func NewConsolidator(documentID string) *Consolidator {
	return &Consolidator{
		documentID: documentID,
		byKey:      make(map[string]*model.TimelineEvent),
	}
}

// Ingest merges a batch of events. Re-extractions of the same source key
// keep the first event and union its links.
func (c *Consolidator) Ingest(events []model.TimelineEvent) {
	for _, incoming := range events {
		if incoming.SourceKey == "" {
			continue
		}

		existing, ok := c.byKey[incoming.SourceKey]
		if !ok {
			ev := incoming
			if ev.ID == "" {
				ev.ID = uuid.New().String()
			}
			ev.DocumentID = c.documentID
			c.byKey[ev.SourceKey] = &ev
			c.order = append(c.order, ev.SourceKey)
			continue
		}

		existing.LinkedPenalties = unionStrings(existing.LinkedPenalties, incoming.LinkedPenalties)
		existing.LinkedRequirements = unionStrings(existing.LinkedRequirements, incoming.LinkedRequirements)
		existing.LinkedObligations = unionStrings(existing.LinkedObligations, incoming.LinkedObligations)
		existing.Tags = unionStrings(existing.Tags, incoming.Tags)
		if existing.Date == nil && incoming.Date != nil {
			existing.Date = incoming.Date
			existing.DateType = incoming.DateType
			existing.DateRaw = incoming.DateRaw
		}
	}
}

// Finalize resolves relative dates, computes urgency against the wall
// clock, and links penalty entities. Relative references are followed one
// hop: an event anchored to another relative event stays undated.
func (c *Consolidator) Finalize(now time.Time, lookup EntityLookup) []model.TimelineEvent {
	log := zap.L().With(zap.String("document_id", c.documentID))

	// Resolve relative dates against events that carry a fixed date.
	for _, key := range c.order {
		ev := c.byKey[key]
		if ev.DateType != model.DateRelative || ev.Date != nil || ev.RelativeTo == nil {
			continue
		}
		base, ok := c.byKey[ev.RelativeTo.EventID]
		if !ok || base.Date == nil {
			log.Warn("timeline: unresolvable relative date",
				zap.String("event", ev.SourceKey),
				zap.String("anchor", ev.RelativeTo.EventID),
			)
			continue
		}
		resolved := applyOffset(*base.Date, ev.RelativeTo)
		ev.Date = &resolved
	}

	// Mark events that anchor other events' dates.
	anchored := make(map[string]bool)
	for _, key := range c.order {
		if ref := c.byKey[key].RelativeTo; ref != nil {
			anchored[ref.EventID] = true
		}
	}

	out := make([]model.TimelineEvent, 0, len(c.order))
	for _, key := range c.order {
		ev := c.byKey[key]

		ev.Urgency.BlockingForOthers = anchored[ev.SourceKey]
		ev.Urgency.HasPenalty = len(ev.LinkedPenalties) > 0
		ev.Urgency.PenaltyAmount = ""
		ev.Urgency.DaysUntilDeadline = nil

		if ev.Urgency.HasPenalty && lookup != nil {
			for _, penaltyKey := range ev.LinkedPenalties {
				if ent, ok := lookup(penaltyKey); ok && ent.RawValue != "" {
					ev.Urgency.PenaltyAmount = ent.RawValue
					break
				}
			}
		}

		if ev.Date != nil {
			days := daysUntil(now, *ev.Date)
			ev.Urgency.DaysUntilDeadline = &days
		}

		if ent, ok := lookupEntityForEvent(lookup, ev.SourceKey); ok {
			ev.SourceEntityID = ent.ID
		}

		out = append(out, *ev)
	}
	return out
}

// lookupEntityForEvent ties an event back to the entity that produced it,
// when its source key is itself a semantic key.
func lookupEntityForEvent(lookup EntityLookup, sourceKey string) (model.Entity, bool) {
	if lookup == nil {
		return model.Entity{}, false
	}
	return lookup(sourceKey)
}

func applyOffset(base time.Time, ref *model.RelativeRef) time.Time {
	offset := ref.Offset
	if ref.Direction == "before" {
		offset = -offset
	}
	switch ref.Unit {
	case "months":
		return base.AddDate(0, offset, 0)
	default:
		return base.AddDate(0, 0, offset)
	}
}

// daysUntil counts whole days from now to the deadline, rounding partial
// days up so a deadline later today reads as 1, not 0. Past deadlines
// come out negative.
func daysUntil(now, deadline time.Time) int {
	diff := deadline.Sub(now)
	days := int(diff / (24 * time.Hour))
	if diff > 0 && diff%(24*time.Hour) != 0 {
		days++
	}
	return days
}

func unionStrings(dst, src []string) []string {
	for _, s := range src {
		dup := false
		for _, existing := range dst {
			if existing == s {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, s)
		}
	}
	return dst
}
