package embedding

import "context"

// EmbeddingProvider defines the boundary to an external embedding backend.
// A provider receives one batch of texts and must return exactly one vector
// per input, in input order.
type EmbeddingProvider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
