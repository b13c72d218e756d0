package implementation

import (
	"context"

	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/mapper"
	"ai-assistant-be/internal/model"
	"ai-assistant-be/internal/repository/contract"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

type MessageEmbeddingRepositoryImpl struct {
	db            *gorm.DB
	mapper        *mapper.MessageEmbeddingMapper
	messageMapper *mapper.MessageMapper
}

func NewMessageEmbeddingRepository(db *gorm.DB) contract.MessageEmbeddingRepository {
	return &MessageEmbeddingRepositoryImpl{
		db:            db,
		mapper:        mapper.NewMessageEmbeddingMapper(),
		messageMapper: mapper.NewMessageMapper(),
	}
}

func (r *MessageEmbeddingRepositoryImpl) Create(ctx context.Context, embedding *entity.MessageEmbedding) error {
	m := r.mapper.ToModel(embedding)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*embedding = *r.mapper.ToEntity(m)
	return nil
}

func (r *MessageEmbeddingRepositoryImpl) CreateBulk(ctx context.Context, embeddings []*entity.MessageEmbedding) error {
	if len(embeddings) == 0 {
		return nil
	}
	models := r.mapper.ToModels(embeddings)
	if err := r.db.WithContext(ctx).Create(models).Error; err != nil {
		return err
	}
	for i, m := range models {
		*embeddings[i] = *r.mapper.ToEntity(m)
	}
	return nil
}

func (r *MessageEmbeddingRepositoryImpl) FindByMessageId(ctx context.Context, messageId uuid.UUID) ([]*entity.MessageEmbedding, error) {
	var models []*model.MessageEmbedding
	err := r.db.WithContext(ctx).
		Where("message_id = ?", messageId).
		Order("chunk_index ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	entities := make([]*entity.MessageEmbedding, len(models))
	for i, m := range models {
		entities[i] = r.mapper.ToEntity(m)
	}
	return entities, nil
}

func (r *MessageEmbeddingRepositoryImpl) CountByMessageId(ctx context.Context, messageId uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.MessageEmbedding{}).
		Where("message_id = ?", messageId).
		Count(&count).Error
	return count, err
}

// SearchSimilarWithScore runs similarity search with all filters pushed down
// to Postgres. pgvector's cosine distance is 1 - cosine_similarity, so
// 1 - (embedding <=> query) recovers the similarity. Ties in similarity are
// broken by most-recent message first, which keeps result order
// deterministic.
func (r *MessageEmbeddingRepositoryImpl) SearchSimilarWithScore(
	ctx context.Context,
	embedding []float32,
	limit int,
	threshold float64,
	filter contract.SearchFilter,
) ([]*contract.ScoredChunk, error) {
	if limit <= 0 {
		limit = 5
	}

	type result struct {
		model.MessageEmbedding
		Similarity float64
	}
	var results []result

	queryVector := pgvector.NewVector(embedding)

	query := r.db.WithContext(ctx).
		Table("message_embeddings").
		Select("message_embeddings.*, 1 - (embedding <=> ?) as similarity", queryVector).
		Joins("JOIN messages ON messages.id = message_embeddings.message_id").
		Where("1 - (embedding <=> ?) >= ?", queryVector, threshold)

	if filter.UserId != nil {
		query = query.Where("messages.user_id = ?", *filter.UserId)
	}
	if filter.Since != nil {
		query = query.Where("messages.created_at >= ?", *filter.Since)
	}

	err := query.
		Order("similarity DESC, messages.created_at DESC").
		Limit(limit).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	scored := make([]*contract.ScoredChunk, len(results))
	messageIds := make([]uuid.UUID, 0, len(results))
	for i, res := range results {
		e := res.MessageEmbedding
		scored[i] = &contract.ScoredChunk{
			Embedding:  r.mapper.ToEntity(&e),
			Similarity: res.Similarity,
		}
		messageIds = append(messageIds, e.MessageId)
	}

	if err := r.hydrateMessages(ctx, scored, messageIds); err != nil {
		return nil, err
	}
	return scored, nil
}

func (r *MessageEmbeddingRepositoryImpl) hydrateMessages(ctx context.Context, scored []*contract.ScoredChunk, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	var models []*model.Message
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&models).Error; err != nil {
		return err
	}

	byId := make(map[uuid.UUID]*entity.Message, len(models))
	for _, m := range models {
		byId[m.Id] = r.messageMapper.ToEntity(m)
	}
	for _, chunk := range scored {
		chunk.Message = byId[chunk.Embedding.MessageId]
	}
	return nil
}
