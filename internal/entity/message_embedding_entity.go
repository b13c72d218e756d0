package entity

import (
	"time"

	"github.com/google/uuid"
)

// MessageEmbedding is one chunk of a message together with its vector.
// Chunks are ordered within a message by ChunkIndex and never mutated.
type MessageEmbedding struct {
	Id         uuid.UUID
	MessageId  uuid.UUID
	ChunkIndex int
	ChunkText  string
	Embedding  []float32
	CreatedAt  time.Time
}
