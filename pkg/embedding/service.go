package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	DefaultBatchSize  = 16
	DefaultMaxRetries = 3
	defaultBackoff    = 500 * time.Millisecond
)

// Config encapsulates embedding service parameters.
type Config struct {
	BatchSize  int
	MaxRetries int
	Backoff    time.Duration
}

// DefaultConfig returns the default embedding service configuration.
func DefaultConfig() Config {
	return Config{
		BatchSize:  DefaultBatchSize,
		MaxRetries: DefaultMaxRetries,
		Backoff:    defaultBackoff,
	}
}

// Service turns text into embedding vectors through an EmbeddingProvider,
// splitting input into fixed-size batches to respect provider request limits.
// Output order always corresponds 1:1 with input order. Safe for concurrent
// use; the service holds no per-call state.
type Service struct {
	provider   EmbeddingProvider
	batchSize  int
	maxRetries int
	backoff    time.Duration
}

func NewService(provider EmbeddingProvider, cfg Config) *Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultBackoff
	}
	return &Service{
		provider:   provider,
		batchSize:  cfg.BatchSize,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.Backoff,
	}
}

// Embed converts texts into vectors. A failure on any batch fails the whole
// call; the returned ProviderError carries the index of the failed batch.
func (s *Service) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for batchIdx := 0; batchIdx*s.batchSize < len(texts); batchIdx++ {
		start := batchIdx * s.batchSize
		end := start + s.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		batchVectors, err := s.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, s.wrapBatchError(err, batchIdx)
		}
		if len(batchVectors) != end-start {
			return nil, &ProviderError{
				Kind:  KindTransport,
				Batch: batchIdx,
				Err:   fmt.Errorf("provider returned %d vectors for %d inputs", len(batchVectors), end-start),
			}
		}
		vectors = append(vectors, batchVectors...)
	}
	return vectors, nil
}

// EmbedOne embeds a single text.
func (s *Service) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, nil
	}
	return vectors[0], nil
}

func (s *Service) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff between retries.
			wait := s.backoff * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}

		vectors, err := s.provider.Embed(ctx, batch)
		if err == nil {
			return vectors, nil
		}
		lastErr = err

		if Classify(err) == KindInvalidInput {
			return nil, err
		}
	}
	return nil, lastErr
}

func (s *Service) wrapBatchError(err error, batchIdx int) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return &ProviderError{Kind: pe.Kind, Batch: batchIdx, Err: pe.Err}
	}
	return &ProviderError{Kind: KindTransport, Batch: batchIdx, Err: err}
}

// CosineSimilarity computes the cosine of the angle between two vectors,
// in [-1, 1]. It returns 0.0 when either vector is empty or the dimensions
// disagree, so that absent embeddings rank at the bottom instead of failing.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0.0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0.0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// NormalizeUnit rescales a vector to unit length. Cosine distance push-down in
// pgvector expects normalized vectors for accurate similarity.
func NormalizeUnit(vec []float32) []float32 {
	var magnitude float64
	for _, v := range vec {
		magnitude += float64(v) * float64(v)
	}
	magnitude = math.Sqrt(magnitude)
	if magnitude == 0 {
		return vec
	}

	normalized := make([]float32, len(vec))
	for i, v := range vec {
		normalized[i] = float32(float64(v) / magnitude)
	}
	return normalized
}
