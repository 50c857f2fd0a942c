package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/procurahq/docintel/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func createTestDocument(t *testing.T, st *SQLiteStore) *model.Document {
	t.Helper()
	doc, err := st.CreateDocument(context.Background(), "edital.pdf", "/tmp/edital.pdf")
	require.NoError(t, err)
	return doc
}

// --- Documents ---

func TestSQLite_Document_CreateAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	doc := createTestDocument(t, st)
	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, model.DocStatusPending, doc.Status)

	got, err := st.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "edital.pdf", got.Name)
	assert.Equal(t, "/tmp/edital.pdf", got.SourcePath)
}

func TestSQLite_Document_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetDocument(context.Background(), "no-such-doc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "document not found")
}

func TestSQLite_Document_StatusTransitions(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	doc := createTestDocument(t, st)

	for _, status := range []model.DocumentStatus{
		model.DocStatusProcessing,
		model.DocStatusCompleted,
	} {
		require.NoError(t, st.UpdateDocumentStatus(ctx, doc.ID, status))
		got, err := st.GetDocument(ctx, doc.ID)
		require.NoError(t, err)
		assert.Equal(t, status, got.Status)
	}
}

func TestSQLite_Document_StatusMissing(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.UpdateDocumentStatus(context.Background(), "no-such-doc", model.DocStatusFailed)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "document not found")
}

// --- Pages ---

func TestSQLite_Pages_ReplaceAndList(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	doc := createTestDocument(t, st)

	pages := []model.Page{
		{ID: "p1", DocumentID: doc.ID, PageNumber: 1, Text: "primeira pagina", WordCount: 2},
		{ID: "p2", DocumentID: doc.ID, PageNumber: 2, Text: "segunda pagina", WordCount: 2},
	}
	require.NoError(t, st.ReplacePages(ctx, doc.ID, pages))

	got, err := st.ListPages(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].PageNumber)
	assert.Equal(t, "segunda pagina", got[1].Text)

	updated, err := st.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, updated.PageCount)
}

func TestSQLite_Pages_ReplaceDiscardsOld(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	doc := createTestDocument(t, st)

	require.NoError(t, st.ReplacePages(ctx, doc.ID, []model.Page{
		{ID: "p1", DocumentID: doc.ID, PageNumber: 1, Text: "old", WordCount: 1},
		{ID: "p2", DocumentID: doc.ID, PageNumber: 2, Text: "old", WordCount: 1},
		{ID: "p3", DocumentID: doc.ID, PageNumber: 3, Text: "old", WordCount: 1},
	}))
	require.NoError(t, st.ReplacePages(ctx, doc.ID, []model.Page{
		{ID: "p4", DocumentID: doc.ID, PageNumber: 1, Text: "new", WordCount: 1},
	}))

	got, err := st.ListPages(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "new", got[0].Text)
}

// --- Extraction records ---

func TestSQLite_Entities_UpsertRoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	doc := createTestDocument(t, st)

	ent := model.Entity{
		ID:          "ent-1",
		DocumentID:  doc.ID,
		Type:        model.EntityDeadline,
		Name:        "Entrega da proposta",
		RawValue:    "15/03/2026",
		SemanticKey: "prazo:entrega-proposta",
		Metadata: model.EntityMetadata{
			Deadline: &model.DeadlineMeta{DateRaw: "15/03/2026"},
		},
		Confidence: 0.92,
		Provenance: []model.Provenance{{PageNumber: 3, Excerpt: "ate 15/03/2026", Confidence: 0.92}},
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, st.SaveEntities(ctx, []model.Entity{ent}))

	got, err := st.ListEntities(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "prazo:entrega-proposta", got[0].SemanticKey)
	require.NotNil(t, got[0].Metadata.Deadline)
	assert.Equal(t, "15/03/2026", got[0].Metadata.Deadline.DateRaw)

	// Second save with the same id replaces the record.
	ent.Confidence = 0.97
	require.NoError(t, st.SaveEntities(ctx, []model.Entity{ent}))
	got, err = st.ListEntities(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 0.97, got[0].Confidence)
}

func TestSQLite_TimelineEvents_RoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	doc := createTestDocument(t, st)

	date := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	ev := model.TimelineEvent{
		ID:              "tl-1",
		DocumentID:      doc.ID,
		SourceKey:       "prazo:abertura-sessao",
		Date:            &date,
		DateType:        model.DateFixed,
		EventType:       "abertura",
		Importance:      model.ImportanceCritical,
		LinkedPenalties: []string{"multa:atraso-entrega"},
		Urgency:         model.Urgency{HasPenalty: true},
	}
	require.NoError(t, st.SaveTimelineEvents(ctx, []model.TimelineEvent{ev}))

	got, err := st.ListTimelineEvents(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.ImportanceCritical, got[0].Importance)
	assert.True(t, got[0].Urgency.HasPenalty)
}

func TestSQLite_Risks_RoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	doc := createTestDocument(t, st)

	require.NoError(t, st.SaveRisks(ctx, []model.Risk{{
		ID:          "risk-1",
		DocumentID:  doc.ID,
		Category:    "financeiro",
		Title:       "Garantia contratual elevada",
		Severity:    model.SeverityHigh,
		Probability: model.ProbabilityLikely,
	}}))

	got, err := st.ListRisks(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.SeverityHigh, got[0].Severity)
}

func TestSQLite_Conflicts_RoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	doc := createTestDocument(t, st)

	require.NoError(t, st.SaveConflicts(ctx, []model.ReconciliationConflict{{
		ID:           "conf-1",
		DocumentID:   doc.ID,
		SemanticKey:  "valor:garantia",
		ConflictType: model.ConflictValueMismatch,
		Resolution:   model.ResolutionKeptExisting,
		DetectedAt:   time.Now().UTC(),
	}}))

	got, err := st.ListConflicts(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.ConflictValueMismatch, got[0].ConflictType)
}

func TestSQLite_ClearExtraction(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	doc := createTestDocument(t, st)

	require.NoError(t, st.SaveEntities(ctx, []model.Entity{{ID: "e1", DocumentID: doc.ID, SemanticKey: "k1"}}))
	require.NoError(t, st.SaveRisks(ctx, []model.Risk{{ID: "r1", DocumentID: doc.ID, Title: "t"}}))
	require.NoError(t, st.SaveBatchOutcome(ctx, model.BatchOutcome{DocumentID: doc.ID, BatchNumber: 1}))

	require.NoError(t, st.ClearExtraction(ctx, doc.ID))

	ents, err := st.ListEntities(ctx, doc.ID)
	require.NoError(t, err)
	assert.Empty(t, ents)
	risks, err := st.ListRisks(ctx, doc.ID)
	require.NoError(t, err)
	assert.Empty(t, risks)
	outcomes, err := st.ListBatchOutcomes(ctx, doc.ID)
	require.NoError(t, err)
	assert.Empty(t, outcomes)
}

// --- Embeddings ---

func TestSQLite_Embeddings_SaveCountDelete(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	doc := createTestDocument(t, st)

	embs := []model.PageEmbedding{
		{ID: "emb-1", DocumentID: doc.ID, PageID: "p1", PageNumber: 1, Text: "texto", Vector: []float32{0.1, 0.2}},
		{ID: "emb-2", DocumentID: doc.ID, PageID: "p2", PageNumber: 2, Text: "mais texto", Vector: []float32{0.3, 0.4}},
	}
	require.NoError(t, st.SaveEmbeddings(ctx, embs))

	n, err := st.CountEmbeddings(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := st.ListEmbeddings(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []float32{0.1, 0.2}, got[0].Vector)

	require.NoError(t, st.DeleteEmbeddings(ctx, doc.ID))
	n, err = st.CountEmbeddings(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestSQLite_Embeddings_UpsertByPage(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	doc := createTestDocument(t, st)

	require.NoError(t, st.SaveEmbeddings(ctx, []model.PageEmbedding{
		{ID: "emb-1", DocumentID: doc.ID, PageNumber: 1, Vector: []float32{0.1}},
	}))
	require.NoError(t, st.SaveEmbeddings(ctx, []model.PageEmbedding{
		{ID: "emb-1", DocumentID: doc.ID, PageNumber: 1, Vector: []float32{0.9}},
	}))

	got, err := st.ListEmbeddings(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []float32{0.9}, got[0].Vector)
}

// --- Conversations ---

func TestSQLite_Conversation_Lifecycle(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	doc := createTestDocument(t, st)

	conv, err := st.CreateConversation(ctx, doc.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, conv.ID)

	got, err := st.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, doc.ID, got.DocumentID)

	missing, err := st.GetConversation(ctx, "no-such-conv")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSQLite_Messages_AppendAndList(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	doc := createTestDocument(t, st)
	conv, err := st.CreateConversation(ctx, doc.ID)
	require.NoError(t, err)

	base := time.Now().UTC()
	for i := 0; i < 4; i++ {
		role := model.RoleUser
		if i%2 == 1 {
			role = model.RoleAssistant
		}
		_, err := st.AppendMessage(ctx, model.Message{
			ConversationID: conv.ID,
			Role:           role,
			Content:        "mensagem",
			SourcePages:    []int{i + 1},
			CreatedAt:      base.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}

	// Limit returns the most recent messages in chronological order.
	msgs, err := st.ListMessages(ctx, conv.ID, 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, []int{3}, msgs[0].SourcePages)
	assert.Equal(t, []int{4}, msgs[1].SourcePages)
	assert.True(t, msgs[0].CreatedAt.Before(msgs[1].CreatedAt))
}

// --- Stats ---

func TestSQLite_DocumentStats(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	doc := createTestDocument(t, st)

	require.NoError(t, st.ReplacePages(ctx, doc.ID, []model.Page{
		{ID: "p1", DocumentID: doc.ID, PageNumber: 1, Text: "texto", WordCount: 1},
	}))
	require.NoError(t, st.SaveEntities(ctx, []model.Entity{
		{ID: "e1", DocumentID: doc.ID, SemanticKey: "k1"},
		{ID: "e2", DocumentID: doc.ID, SemanticKey: "k2"},
	}))
	require.NoError(t, st.SaveRisks(ctx, []model.Risk{{ID: "r1", DocumentID: doc.ID, Title: "t"}}))

	stats, err := st.DocumentStats(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Pages)
	assert.Equal(t, 2, stats.Entities)
	assert.Equal(t, 1, stats.Risks)
	assert.Equal(t, 0, stats.TimelineEvents)
}
