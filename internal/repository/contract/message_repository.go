package contract

import (
	"context"
	"time"

	"ai-assistant-be/internal/entity"

	"github.com/google/uuid"
)

// MessageRepository stores inbound chat messages. Writes are append-only;
// Delete exists solely as the compensating cleanup for the async embedding
// path, never as a user-facing operation.
type MessageRepository interface {
	Create(ctx context.Context, message *entity.Message) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindById(ctx context.Context, id uuid.UUID) (*entity.Message, error)
	// FindRecentByUser returns a user's messages, newest first.
	FindRecentByUser(ctx context.Context, userId int64, limit int) ([]*entity.Message, error)
	// FindRecentByChat returns a chat's messages, newest first.
	FindRecentByChat(ctx context.Context, chatId int64, limit int) ([]*entity.Message, error)
	// FindWithFile returns a user's document messages, newest first,
	// optionally restricted to one file type.
	FindWithFile(ctx context.Context, userId int64, fileType *string, limit int) ([]*entity.Message, error)
	// FindOrphaned returns messages older than the cutoff that have no
	// embedding rows yet. Used by the orphan sweep.
	FindOrphaned(ctx context.Context, olderThan time.Time) ([]*entity.Message, error)
}
