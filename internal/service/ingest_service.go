package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ai-assistant-be/internal/dto"
	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/pkg/logger"
	"ai-assistant-be/pkg/chunker"
	"ai-assistant-be/pkg/embedding"
	"ai-assistant-be/pkg/events"
	pkgNats "ai-assistant-be/pkg/nats"
	"ai-assistant-be/pkg/vector"

	"github.com/google/uuid"
)

var (
	// ErrMessageNotFound marks an embed event whose message row no longer
	// exists. Redelivery cannot fix it.
	ErrMessageNotFound = errors.New("message not found")

	// ErrNoFileContent marks an embed event for a message that carries no
	// document text. Redelivery cannot fix it.
	ErrNoFileContent = errors.New("message has no file content")
)

type IngestResult struct {
	MessageId  uuid.UUID
	ChunkCount int
	CreatedAt  time.Time
}

type IIngestService interface {
	// ProcessMessage chunks, embeds, and persists an inbound text message in
	// one transaction.
	ProcessMessage(ctx context.Context, userId, chatId int64, text string) (*IngestResult, error)

	// ProcessDocument extracts the document text, persists the message, and
	// queues the embedding work for the async worker.
	ProcessDocument(ctx context.Context, userId, chatId int64, caption string, content []byte, fileName, fileType string) (*IngestResult, error)

	// ProcessDocumentInline embeds and stores the chunks of an already
	// persisted document message. Called by the consumer.
	ProcessDocumentInline(ctx context.Context, messageId uuid.UUID) (int, error)
}

type ingestService struct {
	memory           IMemoryService
	chunker          *chunker.Chunker
	embedder         *embedding.Service
	normalizer       vector.Normalizer
	publisherService IPublisherService
	eventPublisher   *pkgNats.Publisher
	logger           logger.ILogger
}

func NewIngestService(
	memory IMemoryService,
	chunkerInst *chunker.Chunker,
	embedder *embedding.Service,
	normalizer vector.Normalizer,
	publisherService IPublisherService,
	eventPublisher *pkgNats.Publisher,
	log logger.ILogger,
) IIngestService {
	return &ingestService{
		memory:           memory,
		chunker:          chunkerInst,
		embedder:         embedder,
		normalizer:       normalizer,
		publisherService: publisherService,
		eventPublisher:   eventPublisher,
		logger:           log,
	}
}

func (s *ingestService) ProcessMessage(ctx context.Context, userId, chatId int64, text string) (*IngestResult, error) {
	chunks := s.chunker.Chunk(text)

	// Embed before opening the transaction so no lock is held across the
	// provider call.
	vectors, err := s.embedChunks(ctx, chunks)
	if err != nil {
		return nil, err
	}

	message := &entity.Message{
		Id:          uuid.New(),
		UserId:      userId,
		ChatId:      chatId,
		MessageText: text,
		CreatedAt:   time.Now(),
	}

	messageId, err := s.memory.SaveMessageWithEmbeddings(ctx, message, chunks, vectors)
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.NewMessageSaved(messageId.String(), userId, chatId, len(chunks)))

	return &IngestResult{
		MessageId:  messageId,
		ChunkCount: len(chunks),
		CreatedAt:  message.CreatedAt,
	}, nil
}

func (s *ingestService) ProcessDocument(ctx context.Context, userId, chatId int64, caption string, content []byte, fileName, fileType string) (*IngestResult, error) {
	fullText, chunks, err := s.chunker.ParseDocument(content, fileType)
	if err != nil {
		return nil, err
	}

	message := &entity.Message{
		Id:          uuid.New(),
		UserId:      userId,
		ChatId:      chatId,
		MessageText: caption,
		FileContent: &fullText,
		FileName:    &fileName,
		FileType:    &fileType,
		CreatedAt:   time.Now(),
	}

	messageId, err := s.memory.SaveMessage(ctx, message)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(dto.PublishEmbedMessage{MessageId: messageId})
	if err != nil {
		return nil, fmt.Errorf("marshal embed payload: %w", err)
	}
	if err := s.publisherService.Publish(ctx, payload); err != nil {
		// The message row stays behind; the orphan sweep re-enqueues it.
		s.logger.Warn("IngestService", "Failed to queue document embedding", map[string]interface{}{
			"message_id": messageId.String(),
			"error":      err.Error(),
		})
	}

	return &IngestResult{
		MessageId:  messageId,
		ChunkCount: len(chunks),
		CreatedAt:  message.CreatedAt,
	}, nil
}

func (s *ingestService) ProcessDocumentInline(ctx context.Context, messageId uuid.UUID) (int, error) {
	message, err := s.memory.GetMessage(ctx, messageId)
	if err != nil {
		return 0, fmt.Errorf("load message %s: %w", messageId, err)
	}
	if message == nil {
		return 0, fmt.Errorf("message %s: %w", messageId, ErrMessageNotFound)
	}
	if message.FileContent == nil {
		return 0, fmt.Errorf("message %s: %w", messageId, ErrNoFileContent)
	}

	chunks := s.chunker.Chunk(*message.FileContent)
	if len(chunks) == 0 {
		return 0, nil
	}

	vectors, err := s.embedChunks(ctx, chunks)
	if err != nil {
		return 0, err
	}

	if err := s.memory.SaveEmbeddings(ctx, messageId, chunks, vectors); err != nil {
		return 0, err
	}

	fileName := ""
	if message.FileName != nil {
		fileName = *message.FileName
	}
	s.publishEvent(ctx, events.NewDocumentProcessed(messageId.String(), fileName, len(chunks)))

	return len(chunks), nil
}

func (s *ingestService) embedChunks(ctx context.Context, chunks []string) ([][]float32, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	raw, err := s.embedder.Embed(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}

	normalized, err := s.normalizer.Normalize(raw)
	if err != nil {
		return nil, fmt.Errorf("normalize vectors: %w", err)
	}
	return normalized, nil
}

func (s *ingestService) publishEvent(ctx context.Context, event events.BaseEvent) {
	if s.eventPublisher == nil {
		return
	}
	if err := s.eventPublisher.Publish(ctx, event); err != nil {
		s.logger.Warn("IngestService", "Failed to publish event", map[string]interface{}{
			"event": event.EventType(),
			"error": err.Error(),
		})
	}
}
