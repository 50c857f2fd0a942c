package retrieval

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rotisserie/eris"

	"github.com/procurahq/docintel/internal/config"
)

// Embedder turns texts into vectors, same length and order as the input.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// openaiEmbedder implements Embedder with the OpenAI embeddings API. Requests
// are chunked to the provider batch limit and rate-limit errors retried with
// exponential backoff; other API errors fail immediately.
type openaiEmbedder struct {
	client    openai.Client
	model     string
	batchSize int
}

func NewOpenAIEmbedder(cfg config.OpenAIConfig) Embedder {
	batchSize := cfg.MaxBatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	return &openaiEmbedder{
		client:    openai.NewClient(option.WithAPIKey(cfg.Key)),
		model:     cfg.EmbeddingModel,
		batchSize: batchSize,
	}
}

func (e *openaiEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var vectors [][]float32
	for i := 0; i < len(texts); i += e.batchSize {
		end := min(i+e.batchSize, len(texts))
		batch, err := e.embedBatch(ctx, texts[i:end])
		if err != nil {
			return nil, eris.Wrapf(err, "retrieval: embed batch %d-%d", i, end)
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

func (e *openaiEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var vectors [][]float32

	operation := func() error {
		resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Input: openai.EmbeddingNewParamsInputUnion{
				OfArrayOfStrings: texts,
			},
			Model: openai.EmbeddingModel(e.model),
		})
		if err != nil {
			if isRateLimitError(err) {
				return err
			}
			return backoff.Permanent(err)
		}

		vectors = make([][]float32, len(resp.Data))
		for i, data := range resp.Data {
			vectors[i] = toFloat32(data.Embedding)
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	err := backoff.Retry(operation, backoff.WithContext(b, ctx))
	return vectors, err
}

func isRateLimitError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}

// The API returns float64; storage keeps float32.
func toFloat32(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
