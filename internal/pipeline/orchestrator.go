package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/procurahq/docintel/internal/config"
	"github.com/procurahq/docintel/internal/extractor"
	"github.com/procurahq/docintel/internal/model"
	"github.com/procurahq/docintel/internal/resilience"
	"github.com/procurahq/docintel/internal/store"
	"github.com/procurahq/docintel/pkg/anthropic"
)

const stage1SystemText = `You are a legal document analyst processing Brazilian procurement and contract documents (editais, contratos, termos de referencia). The document text is in Portuguese. Identify the hierarchical section structure of the text block you receive and report it through the save_sections tool. Report every chapter, section, clause, subclause and item you can identify, with its number exactly as printed. Call the tool once with all sections found.`

const stage2SystemText = `You are a legal document analyst processing Brazilian procurement and contract documents. The document text is in Portuguese. Extract from the text block: (1) legal and commercial entities via save_entities, (2) schedule events via save_timeline_events, (3) risks to a bidder via save_risks. Semantic keys must be stable lowercase slugs in the form "tipo:descricao-curta" so the same fact extracted twice produces the same key. Reference entities already extracted in earlier blocks by their semantic key instead of re-extracting them. Only report what the text supports; do not invent values. Call each tool at most once.`

const batchPromptFormat = `Documento: %s
Bloco %d de %d (paginas %v)

%s%s`

// Runner drives the two-stage extraction over a document: stage 1 maps the
// section structure, stage 2 extracts entities, timeline events and risks.
// Batches run sequentially so each batch sees the accumulated context of the
// ones before it.
type Runner struct {
	cfg       *config.Config
	store     store.Store
	oracle    anthropic.Client
	extractor extractor.Extractor
	policy    ConflictPolicy
}

func NewRunner(cfg *config.Config, st store.Store, oracle anthropic.Client, ext extractor.Extractor) *Runner {
	return &Runner{
		cfg:       cfg,
		store:     st,
		oracle:    oracle,
		extractor: ext,
		policy:    KeepExisting,
	}
}

// WithConflictPolicy overrides the default keep-existing reconciliation policy.
func (r *Runner) WithConflictPolicy(policy ConflictPolicy) *Runner {
	r.policy = policy
	return r
}

// Process runs the full extraction pipeline for one document. Prior
// extraction results are discarded; pages are kept unless none exist yet, in
// which case they are pulled from the source file first.
func (r *Runner) Process(ctx context.Context, documentID string) (*model.ProcessResult, error) {
	start := time.Now()
	log := zap.L().With(zap.String("document_id", documentID))

	doc, err := r.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	setStatus := func(status model.DocumentStatus) {
		if statusErr := r.store.UpdateDocumentStatus(ctx, documentID, status); statusErr != nil {
			log.Warn("process: failed to update status", zap.Error(statusErr))
		}
	}
	setStatus(model.DocStatusProcessing)

	pages, err := r.ensurePages(ctx, doc)
	if err != nil {
		setStatus(model.DocStatusFailed)
		return nil, err
	}
	if len(pages) == 0 {
		setStatus(model.DocStatusFailed)
		return nil, eris.Errorf("process: document has no pages: %s", documentID)
	}

	// Reprocessing always starts from a clean slate.
	if err := r.store.ClearExtraction(ctx, documentID); err != nil {
		setStatus(model.DocStatusFailed)
		return nil, err
	}

	batches := SegmentPages(pages, r.cfg.Pipeline.WordCap, r.cfg.Pipeline.MaxPagesPerBatch)
	log.Info("process: segmented document",
		zap.Int("pages", len(pages)),
		zap.Int("batches", len(batches)),
	)

	result := &model.ProcessResult{DocumentID: documentID}

	accumulator := NewAccumulator()
	arena := NewSectionArena(documentID)
	reconciler := NewReconciler(documentID, r.policy)
	consolidator := NewConsolidator(documentID)
	var stageRisks []StageRisk

	stage1System := anthropic.BuildCachedSystemBlocks(stage1SystemText)
	stage2System := anthropic.BuildCachedSystemBlocks(stage2SystemText)

	for _, batch := range batches {
		batchStart := time.Now()
		outcome := model.BatchOutcome{
			DocumentID:     documentID,
			BatchNumber:    batch.BatchNumber,
			PagesProcessed: len(batch.Pages),
			Success:        true,
		}

		// Rendered per stage: stage 2 must see the sections stage 1 of
		// this same batch just added to the accumulator.
		buildPrompt := func() string {
			return fmt.Sprintf(batchPromptFormat,
				doc.Name,
				batch.BatchNumber, len(batches), batch.PageNumbers(),
				contextBlock(accumulator),
				batch.ConsolidatedText,
			)
		}

		// Stage 1: section structure. Failure here degrades the run but
		// does not fail the batch.
		resp, err := r.callOracle(ctx, anthropic.MessageRequest{
			Model:      r.cfg.Anthropic.ExtractModel,
			MaxTokens:  int64(r.cfg.Anthropic.MaxTokens),
			System:     stage1System,
			Messages:   []anthropic.Message{{Role: "user", Content: buildPrompt()}},
			Tools:      []anthropic.ToolDef{sectionsTool()},
			ToolChoice: "any",
		}, "stage1")
		if err != nil {
			log.Warn("process: stage 1 failed, continuing without structure",
				zap.Int("batch", batch.BatchNumber),
				zap.Error(err),
			)
		} else {
			result.TokenUsage.Add(toModelUsage(resp.Usage))
			for _, call := range anthropic.ToolCalls(resp) {
				if call.ToolName != toolSaveSections {
					continue
				}
				sections := parseSections(call.ToolInput, documentID)
				arena.Add(sections)
				accumulator.AddSections(sections)
				outcome.Counts.Sections += len(sections)
			}
		}

		// Stage 2: entities, timeline, risks. Failure is fatal for the
		// batch; the run moves on to the next one.
		resp, err = r.callOracle(ctx, anthropic.MessageRequest{
			Model:      r.cfg.Anthropic.ExtractModel,
			MaxTokens:  int64(r.cfg.Anthropic.MaxTokens),
			System:     stage2System,
			Messages:   []anthropic.Message{{Role: "user", Content: buildPrompt()}},
			Tools:      []anthropic.ToolDef{entitiesTool(), timelineTool(), risksTool()},
			ToolChoice: "any",
		}, "stage2")
		if err != nil {
			log.Error("process: stage 2 failed, skipping batch",
				zap.Int("batch", batch.BatchNumber),
				zap.Error(err),
			)
			outcome.Success = false
			outcome.Error = err.Error()
		} else {
			result.TokenUsage.Add(toModelUsage(resp.Usage))
			// Zero tool calls is a valid empty result (boilerplate pages).
			for _, call := range anthropic.ToolCalls(resp) {
				switch call.ToolName {
				case toolSaveEntities:
					entities := parseEntities(call.ToolInput, documentID)
					reconciler.Ingest(entities)
					accumulator.AddEntities(entities)
					outcome.Counts.Entities += len(entities)
				case toolSaveTimelineEvents:
					events := parseTimelineEvents(call.ToolInput, documentID)
					consolidator.Ingest(events)
					accumulator.AddEvents(events)
					outcome.Counts.TimelineEvents += len(events)
				case toolSaveRisks:
					risks := parseRisks(call.ToolInput, documentID)
					stageRisks = append(stageRisks, risks...)
					outcome.Counts.Risks += len(risks)
				}
			}
		}

		outcome.ProcessingTimeMs = time.Since(batchStart).Milliseconds()
		if saveErr := r.store.SaveBatchOutcome(ctx, outcome); saveErr != nil {
			log.Warn("process: failed to save batch outcome", zap.Error(saveErr))
		}
		result.Batches = append(result.Batches, outcome)
		result.Counts.Add(outcome.Counts)

		log.Info("process: batch done",
			zap.Int("batch", batch.BatchNumber),
			zap.Bool("success", outcome.Success),
			zap.Int("entities", outcome.Counts.Entities),
			zap.Int64("duration_ms", outcome.ProcessingTimeMs),
		)
	}

	// Cross-batch resolution now that every batch has contributed.
	result.DroppedLinks = reconciler.ResolveRelated()
	entities := reconciler.Entities()
	conflicts := reconciler.Conflicts()
	result.Conflicts = len(conflicts)

	events := consolidator.Finalize(time.Now().UTC(), reconciler.EntityByKey)
	sections := arena.Resolve()
	risks, droppedRiskLinks := resolveRiskLinks(stageRisks, reconciler)
	result.DroppedLinks += droppedRiskLinks
	risks = RankRisks(risks)

	if err := r.persist(ctx, sections, entities, events, risks, conflicts); err != nil {
		setStatus(model.DocStatusFailed)
		return nil, err
	}

	// Completion gate.
	succeeded := 0
	for _, b := range result.Batches {
		if b.Success {
			succeeded++
		}
	}
	result.AllSucceeded = succeeded == len(result.Batches)

	switch {
	case succeeded == 0 && len(result.Batches) > 0:
		result.Status = model.DocStatusFailed
	case !result.AllSucceeded && r.cfg.Pipeline.StrictCompletion:
		result.Status = model.DocStatusFailed
	default:
		result.Status = model.DocStatusCompleted
	}
	setStatus(result.Status)

	result.DurationMs = time.Since(start).Milliseconds()
	toOracleUsage(result.TokenUsage).LogCost(r.cfg.Anthropic.ExtractModel, "process")

	log.Info("process: document done",
		zap.String("status", string(result.Status)),
		zap.Int("batches", len(result.Batches)),
		zap.Int("entities", len(entities)),
		zap.Int("timeline_events", len(events)),
		zap.Int("risks", len(risks)),
		zap.Int("conflicts", result.Conflicts),
		zap.Int("dropped_links", result.DroppedLinks),
		zap.Int64("duration_ms", result.DurationMs),
	)
	return result, nil
}

// ensurePages returns the document's pages, extracting them from the source
// file on first processing.
func (r *Runner) ensurePages(ctx context.Context, doc *model.Document) ([]model.Page, error) {
	pages, err := r.store.ListPages(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	if len(pages) > 0 {
		return pages, nil
	}

	if r.extractor == nil {
		return nil, nil
	}
	extracted, err := r.extractor.ExtractPages(ctx, doc.SourcePath)
	if err != nil {
		return nil, eris.Wrapf(err, "process: extract pages from %s", doc.SourcePath)
	}

	pages = make([]model.Page, 0, len(extracted))
	for _, pt := range extracted {
		pages = append(pages, model.Page{
			ID:         uuid.New().String(),
			DocumentID: doc.ID,
			PageNumber: pt.PageNumber,
			Text:       pt.Text,
			WordCount:  extractor.CountWords(pt.Text),
		})
	}
	if err := r.store.ReplacePages(ctx, doc.ID, pages); err != nil {
		return nil, err
	}
	return pages, nil
}

func (r *Runner) callOracle(ctx context.Context, req anthropic.MessageRequest, stage string) (*anthropic.MessageResponse, error) {
	retryCfg := resilience.DefaultRetryConfig()
	if r.cfg.Anthropic.RetryAttempts > 0 {
		retryCfg.MaxAttempts = r.cfg.Anthropic.RetryAttempts
	}
	retryCfg.OnRetry = resilience.RetryLogger("anthropic", stage)

	return resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return r.oracle.CreateMessage(ctx, req)
	})
}

func (r *Runner) persist(
	ctx context.Context,
	sections []model.Section,
	entities []model.Entity,
	events []model.TimelineEvent,
	risks []model.Risk,
	conflicts []model.ReconciliationConflict,
) error {
	if err := r.store.SaveSections(ctx, sections); err != nil {
		return err
	}
	if err := r.store.SaveEntities(ctx, entities); err != nil {
		return err
	}
	if err := r.store.SaveTimelineEvents(ctx, events); err != nil {
		return err
	}
	if err := r.store.SaveRisks(ctx, risks); err != nil {
		return err
	}
	return r.store.SaveConflicts(ctx, conflicts)
}

// resolveRiskLinks converts semantic-key links on staged risks into entity
// ids and assigns risk ids. Unresolvable keys are dropped and counted.
func resolveRiskLinks(staged []StageRisk, reconciler *Reconciler) ([]model.Risk, int) {
	dropped := 0
	risks := make([]model.Risk, 0, len(staged))
	for _, sr := range staged {
		risk := sr.Risk
		if risk.ID == "" {
			risk.ID = uuid.New().String()
		}
		for _, key := range sr.LinkedEntityKeys {
			if id, ok := reconciler.Lookup(key); ok {
				risk.LinkedEntityIDs = append(risk.LinkedEntityIDs, id)
			} else {
				dropped++
			}
		}
		risks = append(risks, risk)
	}
	return risks, dropped
}

func contextBlock(acc *Accumulator) string {
	rendered := acc.Render()
	if rendered == "" {
		return ""
	}
	return rendered + "\n"
}

func toModelUsage(u anthropic.TokenUsage) model.TokenUsage {
	return model.TokenUsage{
		InputTokens:         int(u.InputTokens),
		OutputTokens:        int(u.OutputTokens),
		CacheCreationTokens: int(u.CacheCreationInputTokens),
		CacheReadTokens:     int(u.CacheReadInputTokens),
	}
}

func toOracleUsage(u model.TokenUsage) anthropic.TokenUsage {
	return anthropic.TokenUsage{
		InputTokens:              int64(u.InputTokens),
		OutputTokens:             int64(u.OutputTokens),
		CacheCreationInputTokens: int64(u.CacheCreationTokens),
		CacheReadInputTokens:     int64(u.CacheReadTokens),
	}
}
