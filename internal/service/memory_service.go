package service

import (
	"context"
	"fmt"
	"time"

	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/pkg/logger"
	"ai-assistant-be/internal/repository/contract"
	"ai-assistant-be/internal/repository/unitofwork"

	"github.com/google/uuid"
)

type IMemoryService interface {
	SaveMessage(ctx context.Context, message *entity.Message) (uuid.UUID, error)
	SaveEmbeddings(ctx context.Context, messageId uuid.UUID, chunks []string, vectors [][]float32) error
	SaveMessageWithEmbeddings(ctx context.Context, message *entity.Message, chunks []string, vectors [][]float32) (uuid.UUID, error)
	GetMessage(ctx context.Context, id uuid.UUID) (*entity.Message, error)
	SearchSimilar(ctx context.Context, queryVector []float32, limit int, threshold float64, userId *int64, since *time.Time) ([]*contract.ScoredChunk, error)
	GetUserContext(ctx context.Context, userId int64, limit int) ([]*entity.Message, error)
	GetChatContext(ctx context.Context, chatId int64, limit int) ([]*entity.Message, error)
	GetFileContext(ctx context.Context, userId int64, fileType *string, limit int) ([]*entity.Message, error)
	FindOrphanedMessages(ctx context.Context, olderThan time.Time) ([]*entity.Message, error)
	DeleteMessage(ctx context.Context, id uuid.UUID) error
}

type memoryService struct {
	uowFactory unitofwork.RepositoryFactory
	logger     logger.ILogger
}

func NewMemoryService(uowFactory unitofwork.RepositoryFactory, log logger.ILogger) IMemoryService {
	return &memoryService{
		uowFactory: uowFactory,
		logger:     log,
	}
}

func (s *memoryService) SaveMessage(ctx context.Context, message *entity.Message) (uuid.UUID, error) {
	if message.Id == uuid.Nil {
		message.Id = uuid.New()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.MessageRepository().Create(ctx, message); err != nil {
		return uuid.Nil, fmt.Errorf("save message: %w", err)
	}
	return message.Id, nil
}

func (s *memoryService) SaveEmbeddings(ctx context.Context, messageId uuid.UUID, chunks []string, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunk/vector count mismatch: %d vs %d", len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return nil
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	embeddings := buildEmbeddings(messageId, chunks, vectors)
	if err := uow.MessageEmbeddingRepository().CreateBulk(ctx, embeddings); err != nil {
		return fmt.Errorf("save embeddings: %w", err)
	}
	return nil
}

// SaveMessageWithEmbeddings writes the message and all its chunk embeddings
// in one transaction. Embedding happened before this call, so no network
// operation runs while the transaction is open; a failure on either write
// rolls back both and nothing is orphaned.
func (s *memoryService) SaveMessageWithEmbeddings(ctx context.Context, message *entity.Message, chunks []string, vectors [][]float32) (uuid.UUID, error) {
	if len(chunks) != len(vectors) {
		return uuid.Nil, fmt.Errorf("chunk/vector count mismatch: %d vs %d", len(chunks), len(vectors))
	}
	if message.Id == uuid.Nil {
		message.Id = uuid.New()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("begin transaction: %w", err)
	}

	if err := uow.MessageRepository().Create(ctx, message); err != nil {
		_ = uow.Rollback()
		return uuid.Nil, fmt.Errorf("save message: %w", err)
	}

	if len(chunks) > 0 {
		embeddings := buildEmbeddings(message.Id, chunks, vectors)
		if err := uow.MessageEmbeddingRepository().CreateBulk(ctx, embeddings); err != nil {
			_ = uow.Rollback()
			return uuid.Nil, fmt.Errorf("save embeddings: %w", err)
		}
	}

	if err := uow.Commit(); err != nil {
		return uuid.Nil, fmt.Errorf("commit: %w", err)
	}

	s.logger.Info("MemoryService", "Message persisted with embeddings", map[string]interface{}{
		"message_id":  message.Id.String(),
		"chunk_count": len(chunks),
	})
	return message.Id, nil
}

func (s *memoryService) GetMessage(ctx context.Context, id uuid.UUID) (*entity.Message, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	return uow.MessageRepository().FindById(ctx, id)
}

func (s *memoryService) SearchSimilar(ctx context.Context, queryVector []float32, limit int, threshold float64, userId *int64, since *time.Time) ([]*contract.ScoredChunk, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	return uow.MessageEmbeddingRepository().SearchSimilarWithScore(ctx, queryVector, limit, threshold, contract.SearchFilter{
		UserId: userId,
		Since:  since,
	})
}

func (s *memoryService) GetUserContext(ctx context.Context, userId int64, limit int) ([]*entity.Message, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	return uow.MessageRepository().FindRecentByUser(ctx, userId, limit)
}

func (s *memoryService) GetChatContext(ctx context.Context, chatId int64, limit int) ([]*entity.Message, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	return uow.MessageRepository().FindRecentByChat(ctx, chatId, limit)
}

func (s *memoryService) GetFileContext(ctx context.Context, userId int64, fileType *string, limit int) ([]*entity.Message, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	return uow.MessageRepository().FindWithFile(ctx, userId, fileType, limit)
}

func (s *memoryService) FindOrphanedMessages(ctx context.Context, olderThan time.Time) ([]*entity.Message, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	return uow.MessageRepository().FindOrphaned(ctx, olderThan)
}

func (s *memoryService) DeleteMessage(ctx context.Context, id uuid.UUID) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	return uow.MessageRepository().Delete(ctx, id)
}

func buildEmbeddings(messageId uuid.UUID, chunks []string, vectors [][]float32) []*entity.MessageEmbedding {
	embeddings := make([]*entity.MessageEmbedding, 0, len(chunks))
	for i := range chunks {
		embeddings = append(embeddings, &entity.MessageEmbedding{
			Id:         uuid.New(),
			MessageId:  messageId,
			ChunkIndex: i,
			ChunkText:  chunks[i],
			Embedding:  vectors[i],
			CreatedAt:  time.Now(),
		})
	}
	return embeddings
}
