package contract

import (
	"context"
	"time"

	"ai-assistant-be/internal/entity"

	"github.com/google/uuid"
)

// ScoredChunk wraps a chunk embedding with its similarity score and the
// message it belongs to.
type ScoredChunk struct {
	Embedding  *entity.MessageEmbedding
	Message    *entity.Message
	Similarity float64 // cosine similarity, 1.0 = identical
}

// SearchFilter narrows similarity search at the storage layer, so filtering
// is pushed down instead of applied client-side.
type SearchFilter struct {
	UserId *int64
	Since  *time.Time
}

type MessageEmbeddingRepository interface {
	Create(ctx context.Context, embedding *entity.MessageEmbedding) error
	CreateBulk(ctx context.Context, embeddings []*entity.MessageEmbedding) error
	FindByMessageId(ctx context.Context, messageId uuid.UUID) ([]*entity.MessageEmbedding, error)
	CountByMessageId(ctx context.Context, messageId uuid.UUID) (int64, error)
	// SearchSimilarWithScore returns chunks with similarity >= threshold,
	// sorted by descending similarity with most-recent message first on ties.
	SearchSimilarWithScore(ctx context.Context, embedding []float32, limit int, threshold float64, filter SearchFilter) ([]*ScoredChunk, error)
}
