package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/procurahq/docintel/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Complex records are
// persisted as JSON blobs keyed by id plus the columns queries filter on.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS documents (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	source_path TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'pending',
	page_count  INTEGER NOT NULL DEFAULT 0,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS pages (
	id          TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES documents(id),
	page_number INTEGER NOT NULL,
	text        TEXT NOT NULL,
	word_count  INTEGER NOT NULL,
	UNIQUE(document_id, page_number)
);

CREATE TABLE IF NOT EXISTS sections (
	id          TEXT PRIMARY KEY,
	document_id TEXT NOT NULL,
	data        TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS entities (
	id           TEXT PRIMARY KEY,
	document_id  TEXT NOT NULL,
	semantic_key TEXT NOT NULL,
	data         TEXT NOT NULL,
	UNIQUE(document_id, semantic_key)
);

CREATE TABLE IF NOT EXISTS timeline_events (
	id          TEXT PRIMARY KEY,
	document_id TEXT NOT NULL,
	source_key  TEXT NOT NULL,
	data        TEXT NOT NULL,
	UNIQUE(document_id, source_key)
);

CREATE TABLE IF NOT EXISTS risks (
	id          TEXT PRIMARY KEY,
	document_id TEXT NOT NULL,
	data        TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS conflicts (
	id          TEXT PRIMARY KEY,
	document_id TEXT NOT NULL,
	data        TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS batch_outcomes (
	document_id  TEXT NOT NULL,
	batch_number INTEGER NOT NULL,
	data         TEXT NOT NULL,
	PRIMARY KEY(document_id, batch_number)
);

CREATE TABLE IF NOT EXISTS embeddings (
	id          TEXT PRIMARY KEY,
	document_id TEXT NOT NULL,
	page_number INTEGER NOT NULL,
	data        TEXT NOT NULL,
	UNIQUE(document_id, page_number)
);

CREATE TABLE IF NOT EXISTS conversations (
	id          TEXT PRIMARY KEY,
	document_id TEXT NOT NULL,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS messages (
	id              TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL REFERENCES conversations(id),
	role            TEXT NOT NULL,
	content         TEXT NOT NULL,
	source_pages    TEXT,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
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

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateDocument(ctx context.Context, name, sourcePath string) (*model.Document, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, name, source_path, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, name, sourcePath, string(model.DocStatusPending), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert document")
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

func (s *SQLiteStore) GetDocument(ctx context.Context, documentID string) (*model.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, source_path, status, page_count, created_at, updated_at FROM documents WHERE id = ?`,
		documentID,
	)

	var d model.Document
	err := row.Scan(&d.ID, &d.Name, &d.SourcePath, &d.Status, &d.PageCount, &d.CreatedAt, &d.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("document not found: %s", documentID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan document")
	}
	return &d, nil
}

func (s *SQLiteStore) UpdateDocumentStatus(ctx context.Context, documentID string, status model.DocumentStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), documentID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update document status %s", documentID)
	}
	return checkRowsAffected(res, "document", documentID)
}

func (s *SQLiteStore) ReplacePages(ctx context.Context, documentID string, pages []model.Page) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin replace pages")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM pages WHERE document_id = ?`, documentID); err != nil {
		return eris.Wrap(err, "sqlite: delete pages")
	}
	for _, p := range pages {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO pages (id, document_id, page_number, text, word_count) VALUES (?, ?, ?, ?, ?)`,
			p.ID, documentID, p.PageNumber, p.Text, p.WordCount,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert page %d", p.PageNumber)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE documents SET page_count = ?, updated_at = ? WHERE id = ?`,
		len(pages), time.Now().UTC(), documentID,
	); err != nil {
		return eris.Wrap(err, "sqlite: update page count")
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit replace pages")
}

func (s *SQLiteStore) ListPages(ctx context.Context, documentID string) ([]model.Page, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, page_number, text, word_count FROM pages WHERE document_id = ? ORDER BY page_number`,
		documentID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list pages")
	}
	defer rows.Close()

	var pages []model.Page
	for rows.Next() {
		var p model.Page
		if err := rows.Scan(&p.ID, &p.DocumentID, &p.PageNumber, &p.Text, &p.WordCount); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan page")
		}
		pages = append(pages, p)
	}
	return pages, eris.Wrap(rows.Err(), "sqlite: list pages iterate")
}

func (s *SQLiteStore) ClearExtraction(ctx context.Context, documentID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin clear extraction")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, table := range []string{"sections", "entities", "timeline_events", "risks", "conflicts", "batch_outcomes"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE document_id = ?`, documentID); err != nil {
			return eris.Wrapf(err, "sqlite: clear %s", table)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit clear extraction")
}

// upsertJSON inserts or replaces a JSON-encoded record keyed by id.
func (s *SQLiteStore) upsertJSON(ctx context.Context, table, id, documentID string, extraCol, extraVal string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return eris.Wrapf(err, "sqlite: marshal %s", table)
	}

	if extraCol != "" {
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO `+table+` (id, document_id, `+extraCol+`, data) VALUES (?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET data = excluded.data`,
			id, documentID, extraVal, string(data),
		)
	} else {
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO `+table+` (id, document_id, data) VALUES (?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET data = excluded.data`,
			id, documentID, string(data),
		)
	}
	return eris.Wrapf(err, "sqlite: upsert %s %s", table, id)
}

// listJSON loads all JSON-encoded records of a table for a document.
func listJSON[T any](ctx context.Context, s *SQLiteStore, table, documentID string) ([]T, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM `+table+` WHERE document_id = ?`, documentID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list %s", table)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrapf(err, "sqlite: scan %s", table)
		}
		var v T
		if err := json.Unmarshal([]byte(data), &v); err != nil {
			return nil, eris.Wrapf(err, "sqlite: unmarshal %s", table)
		}
		out = append(out, v)
	}
	return out, eris.Wrapf(rows.Err(), "sqlite: list %s iterate", table)
}

func (s *SQLiteStore) SaveSections(ctx context.Context, sections []model.Section) error {
	for _, sec := range sections {
		if err := s.upsertJSON(ctx, "sections", sec.ID, sec.DocumentID, "", "", sec); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) ListSections(ctx context.Context, documentID string) ([]model.Section, error) {
	return listJSON[model.Section](ctx, s, "sections", documentID)
}

func (s *SQLiteStore) SaveEntities(ctx context.Context, entities []model.Entity) error {
	for _, e := range entities {
		if err := s.upsertJSON(ctx, "entities", e.ID, e.DocumentID, "semantic_key", e.SemanticKey, e); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) ListEntities(ctx context.Context, documentID string) ([]model.Entity, error) {
	return listJSON[model.Entity](ctx, s, "entities", documentID)
}

func (s *SQLiteStore) SaveTimelineEvents(ctx context.Context, events []model.TimelineEvent) error {
	for _, ev := range events {
		if err := s.upsertJSON(ctx, "timeline_events", ev.ID, ev.DocumentID, "source_key", ev.SourceKey, ev); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) ListTimelineEvents(ctx context.Context, documentID string) ([]model.TimelineEvent, error) {
	return listJSON[model.TimelineEvent](ctx, s, "timeline_events", documentID)
}

func (s *SQLiteStore) SaveRisks(ctx context.Context, risks []model.Risk) error {
	for _, r := range risks {
		if err := s.upsertJSON(ctx, "risks", r.ID, r.DocumentID, "", "", r); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) ListRisks(ctx context.Context, documentID string) ([]model.Risk, error) {
	return listJSON[model.Risk](ctx, s, "risks", documentID)
}

func (s *SQLiteStore) SaveConflicts(ctx context.Context, conflicts []model.ReconciliationConflict) error {
	for _, c := range conflicts {
		if err := s.upsertJSON(ctx, "conflicts", c.ID, c.DocumentID, "", "", c); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) ListConflicts(ctx context.Context, documentID string) ([]model.ReconciliationConflict, error) {
	return listJSON[model.ReconciliationConflict](ctx, s, "conflicts", documentID)
}

func (s *SQLiteStore) SaveBatchOutcome(ctx context.Context, outcome model.BatchOutcome) error {
	data, err := json.Marshal(outcome)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal batch outcome")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO batch_outcomes (document_id, batch_number, data) VALUES (?, ?, ?)
		 ON CONFLICT(document_id, batch_number) DO UPDATE SET data = excluded.data`,
		outcome.DocumentID, outcome.BatchNumber, string(data),
	)
	return eris.Wrapf(err, "sqlite: upsert batch outcome %d", outcome.BatchNumber)
}

func (s *SQLiteStore) ListBatchOutcomes(ctx context.Context, documentID string) ([]model.BatchOutcome, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM batch_outcomes WHERE document_id = ? ORDER BY batch_number`, documentID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list batch outcomes")
	}
	defer rows.Close()

	var out []model.BatchOutcome
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan batch outcome")
		}
		var o model.BatchOutcome
		if err := json.Unmarshal([]byte(data), &o); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal batch outcome")
		}
		out = append(out, o)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list batch outcomes iterate")
}

func (s *SQLiteStore) SaveEmbeddings(ctx context.Context, embeddings []model.PageEmbedding) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save embeddings")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, e := range embeddings {
		data, err := json.Marshal(e)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal embedding")
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO embeddings (id, document_id, page_number, data) VALUES (?, ?, ?, ?)
			 ON CONFLICT(document_id, page_number) DO UPDATE SET data = excluded.data`,
			e.ID, e.DocumentID, e.PageNumber, string(data),
		); err != nil {
			return eris.Wrapf(err, "sqlite: upsert embedding page %d", e.PageNumber)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit save embeddings")
}

func (s *SQLiteStore) ListEmbeddings(ctx context.Context, documentID string) ([]model.PageEmbedding, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM embeddings WHERE document_id = ? ORDER BY page_number`, documentID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list embeddings")
	}
	defer rows.Close()

	var out []model.PageEmbedding
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan embedding")
		}
		var e model.PageEmbedding
		if err := json.Unmarshal([]byte(data), &e); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal embedding")
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list embeddings iterate")
}

func (s *SQLiteStore) CountEmbeddings(ctx context.Context, documentID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM embeddings WHERE document_id = ?`, documentID).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count embeddings")
}

func (s *SQLiteStore) DeleteEmbeddings(ctx context.Context, documentID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM embeddings WHERE document_id = ?`, documentID)
	return eris.Wrap(err, "sqlite: delete embeddings")
}

func (s *SQLiteStore) CreateConversation(ctx context.Context, documentID string) (*model.Conversation, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, document_id, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		id, documentID, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert conversation")
	}
	return &model.Conversation{ID: id, DocumentID: documentID, CreatedAt: now, UpdatedAt: now}, nil
}

func (s *SQLiteStore) GetConversation(ctx context.Context, conversationID string) (*model.Conversation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, document_id, created_at, updated_at FROM conversations WHERE id = ?`,
		conversationID,
	)

	var c model.Conversation
	err := row.Scan(&c.ID, &c.DocumentID, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan conversation")
	}
	return &c, nil
}

func (s *SQLiteStore) AppendMessage(ctx context.Context, msg model.Message) (*model.Message, error) {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	pagesJSON, err := json.Marshal(msg.SourcePages)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal source pages")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, role, content, source_pages, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.ConversationID, string(msg.Role), msg.Content, string(pagesJSON), msg.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert message")
	}

	if _, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET updated_at = ? WHERE id = ?`,
		msg.CreatedAt, msg.ConversationID,
	); err != nil {
		return nil, eris.Wrap(err, "sqlite: touch conversation")
	}
	return &msg, nil
}

func (s *SQLiteStore) ListMessages(ctx context.Context, conversationID string, limit int) ([]model.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, role, content, source_pages, created_at FROM messages
		 WHERE conversation_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		conversationID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list messages")
	}
	defer rows.Close()

	var msgs []model.Message
	for rows.Next() {
		var m model.Message
		var pagesJSON sql.NullString
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &pagesJSON, &m.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan message")
		}
		if pagesJSON.Valid && pagesJSON.String != "" {
			if err := json.Unmarshal([]byte(pagesJSON.String), &m.SourcePages); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal source pages")
			}
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: list messages iterate")
	}

	// Reverse into chronological order.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (s *SQLiteStore) DocumentStats(ctx context.Context, documentID string) (*model.DocumentStats, error) {
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
		if err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM `+c.table+` WHERE document_id = ?`, documentID,
		).Scan(c.dst); err != nil {
			return nil, eris.Wrapf(err, "sqlite: count %s", c.table)
		}
	}
	return stats, nil
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}
