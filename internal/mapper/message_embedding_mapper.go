package mapper

import (
	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/model"

	"github.com/pgvector/pgvector-go"
)

type MessageEmbeddingMapper struct{}

func NewMessageEmbeddingMapper() *MessageEmbeddingMapper {
	return &MessageEmbeddingMapper{}
}

func (m *MessageEmbeddingMapper) ToEntity(e *model.MessageEmbedding) *entity.MessageEmbedding {
	if e == nil {
		return nil
	}
	return &entity.MessageEmbedding{
		Id:         e.Id,
		MessageId:  e.MessageId,
		ChunkIndex: e.ChunkIndex,
		ChunkText:  e.ChunkText,
		Embedding:  e.Embedding.Slice(),
		CreatedAt:  e.CreatedAt,
	}
}

func (m *MessageEmbeddingMapper) ToModel(e *entity.MessageEmbedding) *model.MessageEmbedding {
	if e == nil {
		return nil
	}
	return &model.MessageEmbedding{
		Id:         e.Id,
		MessageId:  e.MessageId,
		ChunkIndex: e.ChunkIndex,
		ChunkText:  e.ChunkText,
		Embedding:  pgvector.NewVector(e.Embedding),
		CreatedAt:  e.CreatedAt,
	}
}

func (m *MessageEmbeddingMapper) ToModels(embeddings []*entity.MessageEmbedding) []*model.MessageEmbedding {
	models := make([]*model.MessageEmbedding, len(embeddings))
	for i, e := range embeddings {
		models[i] = m.ToModel(e)
	}
	return models
}
