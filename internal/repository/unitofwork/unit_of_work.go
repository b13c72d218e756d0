package unitofwork

import (
	"context"

	"ai-assistant-be/internal/repository/contract"
)

// UnitOfWork scopes repository access to one logical operation. Begin opens a
// transaction so a message and its embeddings commit or roll back together.
type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	MessageRepository() contract.MessageRepository
	MessageEmbeddingRepository() contract.MessageEmbeddingRepository
}
