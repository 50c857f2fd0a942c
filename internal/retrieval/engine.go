package retrieval

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/procurahq/docintel/internal/config"
	"github.com/procurahq/docintel/internal/model"
	"github.com/procurahq/docintel/internal/store"
	"github.com/procurahq/docintel/pkg/anthropic"
)

// Engine builds per-page embeddings, serves similarity search over them and
// backs the grounded chat loop.
type Engine struct {
	cfg      *config.Config
	store    store.Store
	embedder Embedder
	oracle   anthropic.Client
}

func NewEngine(cfg *config.Config, st store.Store, embedder Embedder, oracle anthropic.Client) *Engine {
	return &Engine{
		cfg:      cfg,
		store:    st,
		embedder: embedder,
		oracle:   oracle,
	}
}

// PrepareResult reports what an embedding preparation pass did.
type PrepareResult struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

// Prepare embeds the document's pages that are long enough and not yet
// embedded. With regenerate set, existing embeddings are dropped first.
func (e *Engine) Prepare(ctx context.Context, documentID string, regenerate bool) (*PrepareResult, error) {
	log := zap.L().With(zap.String("document_id", documentID))

	pages, err := e.store.ListPages(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, eris.Errorf("retrieval: document has no pages: %s", documentID)
	}

	if regenerate {
		if err := e.store.DeleteEmbeddings(ctx, documentID); err != nil {
			return nil, err
		}
	}

	existing, err := e.store.ListEmbeddings(ctx, documentID)
	if err != nil {
		return nil, err
	}
	embedded := make(map[int]bool, len(existing))
	for _, emb := range existing {
		embedded[emb.PageNumber] = true
	}

	minChars := e.cfg.Retrieval.MinPageChars
	if minChars <= 0 {
		minChars = 50
	}

	result := &PrepareResult{}
	var eligible []model.Page
	for _, page := range pages {
		if len(page.Text) < minChars || embedded[page.PageNumber] {
			result.Skipped++
			continue
		}
		eligible = append(eligible, page)
	}
	if len(eligible) == 0 {
		return result, nil
	}

	texts := make([]string, len(eligible))
	for i, page := range eligible {
		texts[i] = page.Text
	}
	vectors, err := e.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(eligible) {
		return nil, eris.Errorf("retrieval: provider returned %d vectors for %d pages", len(vectors), len(eligible))
	}

	embeddings := make([]model.PageEmbedding, len(eligible))
	for i, page := range eligible {
		embeddings[i] = model.PageEmbedding{
			ID:         uuid.New().String(),
			DocumentID: documentID,
			PageID:     page.ID,
			PageNumber: page.PageNumber,
			Text:       page.Text,
			Vector:     vectors[i],
		}
	}
	if err := e.store.SaveEmbeddings(ctx, embeddings); err != nil {
		return nil, err
	}
	result.Created = len(embeddings)

	log.Info("retrieval: prepared embeddings",
		zap.Int("created", result.Created),
		zap.Int("skipped", result.Skipped),
	)
	return result, nil
}

// IsReady reports whether enough of the document is embedded to ground chat.
func (e *Engine) IsReady(ctx context.Context, documentID string) (bool, error) {
	doc, err := e.store.GetDocument(ctx, documentID)
	if err != nil {
		return false, err
	}
	embedded, err := e.store.CountEmbeddings(ctx, documentID)
	if err != nil {
		return false, err
	}

	ratio := e.cfg.Retrieval.ReadinessRatio
	if ratio <= 0 {
		ratio = 0.8
	}
	return embedded > 0 && float64(embedded) >= ratio*float64(doc.PageCount), nil
}

// ScoredPage is one similarity-search hit.
type ScoredPage struct {
	PageNumber int
	Text       string
	Similarity float64
}

// Search embeds the query and returns the top-K pages by cosine similarity,
// filtered to the similarity floor.
func (e *Engine) Search(ctx context.Context, documentID, query string, topK int) ([]ScoredPage, error) {
	if topK <= 0 {
		topK = e.cfg.Retrieval.TopK
	}
	if topK <= 0 {
		topK = 5
	}

	vectors, err := e.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, eris.Wrap(err, "retrieval: embed query")
	}
	queryVector := vectors[0]

	embeddings, err := e.store.ListEmbeddings(ctx, documentID)
	if err != nil {
		return nil, err
	}

	threshold := e.cfg.Retrieval.SimilarityThreshold
	if threshold <= 0 {
		threshold = 0.3
	}

	var hits []ScoredPage
	for _, emb := range embeddings {
		sim := CosineSimilarity(queryVector, emb.Vector)
		if sim < threshold {
			continue
		}
		hits = append(hits, ScoredPage{
			PageNumber: emb.PageNumber,
			Text:       emb.Text,
			Similarity: sim,
		})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Similarity > hits[j].Similarity })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// CosineSimilarity computes the cosine of the angle between two vectors.
// A dimension mismatch is a programming error and panics.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		panic(fmt.Sprintf("cosine similarity: dimension mismatch %d != %d", len(a), len(b)))
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
