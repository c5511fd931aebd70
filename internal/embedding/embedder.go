package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
)

const (
	// DefaultModel is the embedding model used when none is configured.
	DefaultModel = "text-embedding-3-small"

	// Dimension is the vector size for DefaultModel. The vector index
	// collection is created with this dimension.
	Dimension = 1536

	// DefaultBatchSize is the upstream per-call input limit. The service
	// rejects larger batches, so inputs are chunked into groups of this size.
	DefaultBatchSize = 20
)

// Embedder generates embeddings in batches with exponential backoff on
// transient failures. Validation failures (4xx) surface immediately.
type Embedder struct {
	client    *Client
	batchSize int
}

// NewEmbedder creates an Embedder. batchSize values outside (0, DefaultBatchSize]
// fall back to DefaultBatchSize to respect the upstream limit.
func NewEmbedder(client *Client, batchSize int) *Embedder {
	if batchSize <= 0 || batchSize > DefaultBatchSize {
		batchSize = DefaultBatchSize
	}
	return &Embedder{client: client, batchSize: batchSize}
}

// GenerateEmbeddings embeds texts in input order. The output always has one
// vector per input text, every vector non-empty with a consistent dimension.
func (e *Embedder) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	all := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += e.batchSize {
		end := min(i+e.batchSize, len(texts))
		batch := texts[i:end]

		vectors, err := e.embedBatchWithRetry(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("batch %d-%d: %w", i, end, err)
		}
		all = append(all, vectors...)
	}

	if err := validateShape(all, len(texts)); err != nil {
		return nil, err
	}
	return all, nil
}

// embedBatchWithRetry embeds one batch, retrying transient failures (429, 5xx,
// transport errors) with exponential backoff. Validation errors (other 4xx)
// are permanent and fail immediately.
func (e *Embedder) embedBatchWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var vectors [][]float32

	operation := func() error {
		resp, err := e.client.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Input: openai.EmbeddingNewParamsInputUnion{
				OfArrayOfStrings: texts,
			},
			Model: openai.EmbeddingModel(e.client.model),
		})
		if err != nil {
			if isTransient(err) {
				return err
			}
			return backoff.Permanent(fmt.Errorf("%w: %v", ErrInvalidInput, err))
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

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, err
	}
	return vectors, nil
}

// isTransient classifies failures by status class: rate limits and server
// errors retry, client errors do not. Transport-level failures (timeouts,
// connection resets) carry no status and are treated as transient.
func isTransient(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

// validateShape enforces the output contract: one vector per input, all
// vectors non-empty with a consistent dimension.
func validateShape(vectors [][]float32, want int) error {
	if len(vectors) != want {
		return fmt.Errorf("%w: got %d vectors for %d texts", ErrShapeMismatch, len(vectors), want)
	}
	dim := 0
	for i, v := range vectors {
		if len(v) == 0 {
			return fmt.Errorf("%w: vector %d is empty", ErrShapeMismatch, i)
		}
		if dim == 0 {
			dim = len(v)
		} else if len(v) != dim {
			return fmt.Errorf("%w: vector %d has %d dimensions, expected %d", ErrShapeMismatch, i, len(v), dim)
		}
	}
	return nil
}

// toFloat32 converts the API's float64 output to the float32 representation
// used everywhere downstream, so storage layers never see mixed numeric types.
func toFloat32(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
