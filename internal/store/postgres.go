package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/procurahq/docintel/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. Narrow so tests can
// substitute a mock pool.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hottest store operations.
var preparedStatements = map[string]string{
	"get_document":      `SELECT id, name, source_path, status, page_count, created_at, updated_at FROM documents WHERE id = $1`,
	"update_doc_status": `UPDATE documents SET status = $1, updated_at = $2 WHERE id = $3`,
	"list_pages":        `SELECT id, document_id, page_number, text, word_count FROM pages WHERE document_id = $1 ORDER BY page_number`,
	"upsert_entity":     `INSERT INTO entities (id, document_id, semantic_key, data) VALUES ($1, $2, $3, $4) ON CONFLICT (id) DO UPDATE SET data = excluded.data`,
	"count_embeddings":  `SELECT COUNT(*) FROM embeddings WHERE document_id = $1`,
	"list_embeddings":   `SELECT data FROM embeddings WHERE document_id = $1 ORDER BY page_number`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS documents (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name        TEXT NOT NULL,
	source_path TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'pending',
	page_count  INTEGER NOT NULL DEFAULT 0,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS pages (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	document_id TEXT NOT NULL REFERENCES documents(id),
	page_number INTEGER NOT NULL,
	text        TEXT NOT NULL,
	word_count  INTEGER NOT NULL,
	UNIQUE(document_id, page_number)
);

CREATE TABLE IF NOT EXISTS sections (
	id          TEXT PRIMARY KEY,
	document_id TEXT NOT NULL,
	data        JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS entities (
	id           TEXT PRIMARY KEY,
	document_id  TEXT NOT NULL,
	semantic_key TEXT NOT NULL,
	data         JSONB NOT NULL,
	UNIQUE(document_id, semantic_key)
);

CREATE TABLE IF NOT EXISTS timeline_events (
	id          TEXT PRIMARY KEY,
	document_id TEXT NOT NULL,
	source_key  TEXT NOT NULL,
	data        JSONB NOT NULL,
	UNIQUE(document_id, source_key)
);

CREATE TABLE IF NOT EXISTS risks (
	id          TEXT PRIMARY KEY,
	document_id TEXT NOT NULL,
	data        JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS conflicts (
	id          TEXT PRIMARY KEY,
	document_id TEXT NOT NULL,
	data        JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS batch_outcomes (
	document_id  TEXT NOT NULL,
	batch_number INTEGER NOT NULL,
	data         JSONB NOT NULL,
	PRIMARY KEY(document_id, batch_number)
);

CREATE TABLE IF NOT EXISTS embeddings (
	id          TEXT PRIMARY KEY,
	document_id TEXT NOT NULL,
	page_number INTEGER NOT NULL,
	data        JSONB NOT NULL,
	UNIQUE(document_id, page_number)
);

CREATE TABLE IF NOT EXISTS conversations (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	document_id TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS messages (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	conversation_id TEXT NOT NULL REFERENCES conversations(id),
	role            TEXT NOT NULL,
	content         TEXT NOT NULL,
	source_pages    JSONB,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_pages_document ON pages(document_id);
CREATE INDEX IF NOT EXISTS idx_sections_document ON sections(document_id);
CREATE INDEX IF NOT EXISTS idx_entities_document ON entities(document_id);
CREATE INDEX IF NOT EXISTS idx_timeline_document ON timeline_events(document_id);
CREATE INDEX IF NOT EXISTS idx_risks_document ON risks(document_id);
CREATE INDEX IF NOT EXISTS idx_conflicts_document ON conflicts(document_id);
CREATE INDEX IF NOT EXISTS idx_embeddings_document ON embeddings(document_id);
CREATE INDEX IF NOT EXISTS idx_conversations_document ON conversations(document_id);
CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateDocument(ctx context.Context, name, sourcePath string) (*model.Document, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO documents (id, name, source_path, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, name, sourcePath, string(model.DocStatusPending), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert document")
	}

	return &model.Document{
		ID:         id,
		Name:       name,
		SourcePath: sourcePath,
		Status:     model.DocStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, documentID string) (*model.Document, error) {
	var d model.Document
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, source_path, status, page_count, created_at, updated_at FROM documents WHERE id = $1`,
		documentID,
	).Scan(&d.ID, &d.Name, &d.SourcePath, &d.Status, &d.PageCount, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Errorf("document not found: %s", documentID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get document %s", documentID)
	}
	return &d, nil
}

func (s *PostgresStore) UpdateDocumentStatus(ctx context.Context, documentID string, status model.DocumentStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE documents SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), documentID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update document status %s", documentID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("document not found: %s", documentID)
	}
	return nil
}

func (s *PostgresStore) ReplacePages(ctx context.Context, documentID string, pages []model.Page) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin replace pages")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM pages WHERE document_id = $1`, documentID); err != nil {
		return eris.Wrap(err, "postgres: delete pages")
	}
	for _, p := range pages {
		if _, err := tx.Exec(ctx,
			`INSERT INTO pages (id, document_id, page_number, text, word_count) VALUES ($1, $2, $3, $4, $5)`,
			p.ID, documentID, p.PageNumber, p.Text, p.WordCount,
		); err != nil {
			return eris.Wrapf(err, "postgres: insert page %d", p.PageNumber)
		}
	}
	if _, err := tx.Exec(ctx,
		`UPDATE documents SET page_count = $1, updated_at = $2 WHERE id = $3`,
		len(pages), time.Now().UTC(), documentID,
	); err != nil {
		return eris.Wrap(err, "postgres: update page count")
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit replace pages")
}

func (s *PostgresStore) ListPages(ctx context.Context, documentID string) ([]model.Page, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, document_id, page_number, text, word_count FROM pages WHERE document_id = $1 ORDER BY page_number`,
		documentID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list pages")
	}
	defer rows.Close()

	var pages []model.Page
	for rows.Next() {
		var p model.Page
		if err := rows.Scan(&p.ID, &p.DocumentID, &p.PageNumber, &p.Text, &p.WordCount); err != nil {
			return nil, eris.Wrap(err, "postgres: scan page")
		}
		pages = append(pages, p)
	}
	return pages, eris.Wrap(rows.Err(), "postgres: list pages iterate")
}

func (s *PostgresStore) ClearExtraction(ctx context.Context, documentID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin clear extraction")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, table := range []string{"sections", "entities", "timeline_events", "risks", "conflicts", "batch_outcomes"} {
		if _, err := tx.Exec(ctx, `DELETE FROM `+table+` WHERE document_id = $1`, documentID); err != nil {
			return eris.Wrapf(err, "postgres: clear %s", table)
		}
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit clear extraction")
}

func (s *PostgresStore) upsertJSON(ctx context.Context, table, id, documentID, extraCol, extraVal string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return eris.Wrapf(err, "postgres: marshal %s", table)
	}

	if extraCol != "" {
		_, err = s.pool.Exec(ctx,
			`INSERT INTO `+table+` (id, document_id, `+extraCol+`, data) VALUES ($1, $2, $3, $4)
			 ON CONFLICT (id) DO UPDATE SET data = excluded.data`,
			id, documentID, extraVal, data,
		)
	} else {
		_, err = s.pool.Exec(ctx,
			`INSERT INTO `+table+` (id, document_id, data) VALUES ($1, $2, $3)
			 ON CONFLICT (id) DO UPDATE SET data = excluded.data`,
			id, documentID, data,
		)
	}
	return eris.Wrapf(err, "postgres: upsert %s %s", table, id)
}

func listJSONPg[T any](ctx context.Context, s *PostgresStore, table, documentID string) ([]T, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT data FROM `+table+` WHERE document_id = $1`, documentID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list %s", table)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrapf(err, "postgres: scan %s", table)
		}
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, eris.Wrapf(err, "postgres: unmarshal %s", table)
		}
		out = append(out, v)
	}
	return out, eris.Wrapf(rows.Err(), "postgres: list %s iterate", table)
}

func (s *PostgresStore) SaveSections(ctx context.Context, sections []model.Section) error {
	for _, sec := range sections {
		if err := s.upsertJSON(ctx, "sections", sec.ID, sec.DocumentID, "", "", sec); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) ListSections(ctx context.Context, documentID string) ([]model.Section, error) {
	return listJSONPg[model.Section](ctx, s, "sections", documentID)
}

func (s *PostgresStore) SaveEntities(ctx context.Context, entities []model.Entity) error {
	for _, e := range entities {
		if err := s.upsertJSON(ctx, "entities", e.ID, e.DocumentID, "semantic_key", e.SemanticKey, e); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) ListEntities(ctx context.Context, documentID string) ([]model.Entity, error) {
	return listJSONPg[model.Entity](ctx, s, "entities", documentID)
}

func (s *PostgresStore) SaveTimelineEvents(ctx context.Context, events []model.TimelineEvent) error {
	for _, ev := range events {
		if err := s.upsertJSON(ctx, "timeline_events", ev.ID, ev.DocumentID, "source_key", ev.SourceKey, ev); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) ListTimelineEvents(ctx context.Context, documentID string) ([]model.TimelineEvent, error) {
	return listJSONPg[model.TimelineEvent](ctx, s, "timeline_events", documentID)
}

func (s *PostgresStore) SaveRisks(ctx context.Context, risks []model.Risk) error {
	for _, r := range risks {
		if err := s.upsertJSON(ctx, "risks", r.ID, r.DocumentID, "", "", r); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) ListRisks(ctx context.Context, documentID string) ([]model.Risk, error) {
	return listJSONPg[model.Risk](ctx, s, "risks", documentID)
}

func (s *PostgresStore) SaveConflicts(ctx context.Context, conflicts []model.ReconciliationConflict) error {
	for _, c := range conflicts {
		if err := s.upsertJSON(ctx, "conflicts", c.ID, c.DocumentID, "", "", c); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) ListConflicts(ctx context.Context, documentID string) ([]model.ReconciliationConflict, error) {
	return listJSONPg[model.ReconciliationConflict](ctx, s, "conflicts", documentID)
}

func (s *PostgresStore) SaveBatchOutcome(ctx context.Context, outcome model.BatchOutcome) error {
	data, err := json.Marshal(outcome)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal batch outcome")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO batch_outcomes (document_id, batch_number, data) VALUES ($1, $2, $3)
		 ON CONFLICT (document_id, batch_number) DO UPDATE SET data = excluded.data`,
		outcome.DocumentID, outcome.BatchNumber, data,
	)
	return eris.Wrapf(err, "postgres: upsert batch outcome %d", outcome.BatchNumber)
}

func (s *PostgresStore) ListBatchOutcomes(ctx context.Context, documentID string) ([]model.BatchOutcome, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT data FROM batch_outcomes WHERE document_id = $1 ORDER BY batch_number`, documentID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list batch outcomes")
	}
	defer rows.Close()

	var out []model.BatchOutcome
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan batch outcome")
		}
		var o model.BatchOutcome
		if err := json.Unmarshal(data, &o); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal batch outcome")
		}
		out = append(out, o)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list batch outcomes iterate")
}

func (s *PostgresStore) SaveEmbeddings(ctx context.Context, embeddings []model.PageEmbedding) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin save embeddings")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, e := range embeddings {
		data, err := json.Marshal(e)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal embedding")
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO embeddings (id, document_id, page_number, data) VALUES ($1, $2, $3, $4)
			 ON CONFLICT (document_id, page_number) DO UPDATE SET data = excluded.data`,
			e.ID, e.DocumentID, e.PageNumber, data,
		); err != nil {
			return eris.Wrapf(err, "postgres: upsert embedding page %d", e.PageNumber)
		}
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit save embeddings")
}

func (s *PostgresStore) ListEmbeddings(ctx context.Context, documentID string) ([]model.PageEmbedding, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT data FROM embeddings WHERE document_id = $1 ORDER BY page_number`, documentID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list embeddings")
	}
	defer rows.Close()

	var out []model.PageEmbedding
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan embedding")
		}
		var e model.PageEmbedding
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal embedding")
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list embeddings iterate")
}

func (s *PostgresStore) CountEmbeddings(ctx context.Context, documentID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM embeddings WHERE document_id = $1`, documentID).Scan(&n)
	return n, eris.Wrap(err, "postgres: count embeddings")
}

func (s *PostgresStore) DeleteEmbeddings(ctx context.Context, documentID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM embeddings WHERE document_id = $1`, documentID)
	return eris.Wrap(err, "postgres: delete embeddings")
}

func (s *PostgresStore) CreateConversation(ctx context.Context, documentID string) (*model.Conversation, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO conversations (id, document_id, created_at, updated_at) VALUES ($1, $2, $3, $4)`,
		id, documentID, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert conversation")
	}
	return &model.Conversation{ID: id, DocumentID: documentID, CreatedAt: now, UpdatedAt: now}, nil
}

func (s *PostgresStore) GetConversation(ctx context.Context, conversationID string) (*model.Conversation, error) {
	var c model.Conversation
	err := s.pool.QueryRow(ctx,
		`SELECT id, document_id, created_at, updated_at FROM conversations WHERE id = $1`,
		conversationID,
	).Scan(&c.ID, &c.DocumentID, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get conversation %s", conversationID)
	}
	return &c, nil
}

func (s *PostgresStore) AppendMessage(ctx context.Context, msg model.Message) (*model.Message, error) {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	pagesJSON, err := json.Marshal(msg.SourcePages)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal source pages")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO messages (id, conversation_id, role, content, source_pages, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		msg.ID, msg.ConversationID, string(msg.Role), msg.Content, pagesJSON, msg.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert message")
	}

	if _, err := s.pool.Exec(ctx,
		`UPDATE conversations SET updated_at = $1 WHERE id = $2`,
		msg.CreatedAt, msg.ConversationID,
	); err != nil {
		return nil, eris.Wrap(err, "postgres: touch conversation")
	}
	return &msg, nil
}

func (s *PostgresStore) ListMessages(ctx context.Context, conversationID string, limit int) ([]model.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, conversation_id, role, content, source_pages, created_at FROM messages
		 WHERE conversation_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2`,
		conversationID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list messages")
	}
	defer rows.Close()

	var msgs []model.Message
	for rows.Next() {
		var m model.Message
		var pagesJSON []byte
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &pagesJSON, &m.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan message")
		}
		if len(pagesJSON) > 0 {
			if err := json.Unmarshal(pagesJSON, &m.SourcePages); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal source pages")
			}
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: list messages iterate")
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (s *PostgresStore) DocumentStats(ctx context.Context, documentID string) (*model.DocumentStats, error) {
	doc, err := s.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	stats := &model.DocumentStats{DocumentID: documentID, Status: doc.Status}
	counts := []struct {
		table string
		dst   *int
	}{
		{"pages", &stats.Pages},
		{"sections", &stats.Sections},
		{"entities", &stats.Entities},
		{"timeline_events", &stats.TimelineEvents},
		{"risks", &stats.Risks},
		{"embeddings", &stats.Embeddings},
		{"conversations", &stats.Conversations},
	}
	for _, c := range counts {
		if err := s.pool.QueryRow(ctx,
			`SELECT COUNT(*) FROM `+c.table+` WHERE document_id = $1`, documentID,
		).Scan(c.dst); err != nil {
			return nil, eris.Wrapf(err, "postgres: count %s", c.table)
		}
	}
	return stats, nil
}
