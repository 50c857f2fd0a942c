package store

import (
	"context"

	"github.com/procurahq/docintel/internal/model"
)

// Store defines the persistence interface for the document pipeline. All
// extraction output (sections, entities, timeline events, risks, conflicts,
// batch outcomes) is cleared and recreated on reprocessing; embeddings
// survive until explicitly regenerated.
type Store interface {
	// Documents
	CreateDocument(ctx context.Context, name, sourcePath string) (*model.Document, error)
	GetDocument(ctx context.Context, documentID string) (*model.Document, error)
	UpdateDocumentStatus(ctx context.Context, documentID string, status model.DocumentStatus) error

	// Pages
	ReplacePages(ctx context.Context, documentID string, pages []model.Page) error
	ListPages(ctx context.Context, documentID string) ([]model.Page, error)

	// Extraction output
	ClearExtraction(ctx context.Context, documentID string) error
	SaveSections(ctx context.Context, sections []model.Section) error
	ListSections(ctx context.Context, documentID string) ([]model.Section, error)
	SaveEntities(ctx context.Context, entities []model.Entity) error
	ListEntities(ctx context.Context, documentID string) ([]model.Entity, error)
	SaveTimelineEvents(ctx context.Context, events []model.TimelineEvent) error
	ListTimelineEvents(ctx context.Context, documentID string) ([]model.TimelineEvent, error)
	SaveRisks(ctx context.Context, risks []model.Risk) error
	ListRisks(ctx context.Context, documentID string) ([]model.Risk, error)
	SaveConflicts(ctx context.Context, conflicts []model.ReconciliationConflict) error
	ListConflicts(ctx context.Context, documentID string) ([]model.ReconciliationConflict, error)
	SaveBatchOutcome(ctx context.Context, outcome model.BatchOutcome) error
	ListBatchOutcomes(ctx context.Context, documentID string) ([]model.BatchOutcome, error)

	// Embeddings
	SaveEmbeddings(ctx context.Context, embeddings []model.PageEmbedding) error
	ListEmbeddings(ctx context.Context, documentID string) ([]model.PageEmbedding, error)
	CountEmbeddings(ctx context.Context, documentID string) (int, error)
	DeleteEmbeddings(ctx context.Context, documentID string) error

	// Conversations
	CreateConversation(ctx context.Context, documentID string) (*model.Conversation, error)
	GetConversation(ctx context.Context, conversationID string) (*model.Conversation, error)
	AppendMessage(ctx context.Context, msg model.Message) (*model.Message, error)
	ListMessages(ctx context.Context, conversationID string, limit int) ([]model.Message, error)

	// Stats
	DocumentStats(ctx context.Context, documentID string) (*model.DocumentStats, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
