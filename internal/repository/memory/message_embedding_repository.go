package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/repository/contract"
	"ai-assistant-be/pkg/embedding"

	"github.com/google/uuid"
)

type MessageEmbeddingRepository struct {
	mu     sync.RWMutex
	chunks []*entity.MessageEmbedding

	// messages resolves chunk owners for filtering and hydration. Set via
	// AttachMessages after both repositories exist.
	messages *MessageRepository
}

func NewMessageEmbeddingRepository() *MessageEmbeddingRepository {
	return &MessageEmbeddingRepository{}
}

// AttachMessages wires the message repository used for ownership lookups.
func (r *MessageEmbeddingRepository) AttachMessages(messages *MessageRepository) {
	r.messages = messages
}

func (r *MessageEmbeddingRepository) Create(ctx context.Context, e *entity.MessageEmbedding) error {
	return r.CreateBulk(ctx, []*entity.MessageEmbedding{e})
}

func (r *MessageEmbeddingRepository) CreateBulk(ctx context.Context, embeddings []*entity.MessageEmbedding) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range embeddings {
		if e.Id == uuid.Nil {
			e.Id = uuid.New()
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = time.Now()
		}
		stored := *e
		r.chunks = append(r.chunks, &stored)
	}
	return nil
}

func (r *MessageEmbeddingRepository) FindByMessageId(ctx context.Context, messageId uuid.UUID) ([]*entity.MessageEmbedding, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var found []*entity.MessageEmbedding
	for _, c := range r.chunks {
		if c.MessageId == messageId {
			copied := *c
			found = append(found, &copied)
		}
	}
	sort.Slice(found, func(i, j int) bool {
		return found[i].ChunkIndex < found[j].ChunkIndex
	})
	return found, nil
}

func (r *MessageEmbeddingRepository) CountByMessageId(ctx context.Context, messageId uuid.UUID) (int64, error) {
	return int64(r.countForMessage(messageId)), nil
}

func (r *MessageEmbeddingRepository) SearchSimilarWithScore(
	ctx context.Context,
	query []float32,
	limit int,
	threshold float64,
	filter contract.SearchFilter,
) ([]*contract.ScoredChunk, error) {
	if limit <= 0 {
		limit = 5
	}

	r.mu.RLock()
	candidates := make([]*entity.MessageEmbedding, len(r.chunks))
	copy(candidates, r.chunks)
	r.mu.RUnlock()

	var scored []*contract.ScoredChunk
	for _, c := range candidates {
		var owner *entity.Message
		if r.messages != nil {
			owner = r.messages.get(c.MessageId)
		}
		if owner == nil {
			continue
		}
		if filter.UserId != nil && owner.UserId != *filter.UserId {
			continue
		}
		if filter.Since != nil && owner.CreatedAt.Before(*filter.Since) {
			continue
		}

		similarity := embedding.CosineSimilarity(query, c.Embedding)
		if similarity < threshold {
			continue
		}

		copied := *c
		scored = append(scored, &contract.ScoredChunk{
			Embedding:  &copied,
			Message:    owner,
			Similarity: similarity,
		})
	}

	// Descending similarity, most recent message first on ties.
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Similarity != scored[j].Similarity {
			return scored[i].Similarity > scored[j].Similarity
		}
		return scored[i].Message.CreatedAt.After(scored[j].Message.CreatedAt)
	})

	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

func (r *MessageEmbeddingRepository) countForMessage(messageId uuid.UUID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, c := range r.chunks {
		if c.MessageId == messageId {
			count++
		}
	}
	return count
}

var _ contract.MessageEmbeddingRepository = &MessageEmbeddingRepository{}
