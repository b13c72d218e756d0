package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

type MessageEmbedding struct {
	Id         uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	MessageId  uuid.UUID       `gorm:"type:uuid;not null;index"`
	ChunkIndex int             `gorm:"default:0"` // 0-based index for ordering within a message
	ChunkText  string          `gorm:"type:text"`
	Embedding  pgvector.Vector `gorm:"type:vector(256)"` // resized at migration to match MEMORY_TARGET_DIM
	CreatedAt  time.Time       `gorm:"autoCreateTime"`
}

func (MessageEmbedding) TableName() string {
	return "message_embeddings"
}
