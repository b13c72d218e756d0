package service

import (
	"context"
	"errors"
	"fmt"

	"ai-assistant-be/internal/dto"
	"ai-assistant-be/internal/pkg/logger"
	"ai-assistant-be/pkg/chunker"
	"ai-assistant-be/pkg/llm"
	"ai-assistant-be/pkg/rag/assembler"
	"ai-assistant-be/pkg/rag/pipeline"
)

// apologyReply is the single user-visible failure message. Internal detail
// stays in the logs.
const apologyReply = "Sorry, something went wrong while processing your message. Please try again."

type IAssistantService interface {
	HandleChat(ctx context.Context, req *dto.SendChatRequest) (*dto.SendChatResponse, error)
	HandleDocument(ctx context.Context, userId, chatId int64, caption string, content []byte, fileName, fileType string) (*dto.UploadDocumentResponse, error)
}

type assistantService struct {
	ingest      IIngestService
	assembler   *assembler.Assembler
	llmProvider llm.LLMProvider
	logger      logger.ILogger
}

func NewAssistantService(
	ingest IIngestService,
	contextAssembler *assembler.Assembler,
	llmProvider llm.LLMProvider,
	log logger.ILogger,
) IAssistantService {
	return &assistantService{
		ingest:      ingest,
		assembler:   contextAssembler,
		llmProvider: llmProvider,
		logger:      log,
	}
}

func (s *assistantService) HandleChat(ctx context.Context, req *dto.SendChatRequest) (*dto.SendChatResponse, error) {
	result, err := s.ingest.ProcessMessage(ctx, req.UserId, req.ChatId, req.Message)
	if err != nil {
		s.logger.Error("AssistantService", "Message ingestion failed", map[string]interface{}{
			"user_id": req.UserId,
			"chat_id": req.ChatId,
			"error":   err.Error(),
		})
		return nil, fmt.Errorf("ingest message: %w", err)
	}

	bundle, err := s.assembler.Assemble(ctx, assembler.Request{
		Query:          req.Message,
		UserId:         req.UserId,
		ChatId:         req.ChatId,
		TimeWindowDays: req.TimeWindowDays,
	})
	if err != nil {
		s.logger.Error("AssistantService", "Context assembly failed", map[string]interface{}{
			"user_id": req.UserId,
			"error":   err.Error(),
		})
		return s.apologize(result), nil
	}

	// One pipeline value per request; no state is shared across requests.
	p, err := pipeline.NewAssistantPipeline(s.llmProvider, s.logger)
	if err != nil {
		return nil, fmt.Errorf("build pipeline: %w", err)
	}

	reply, err := p.Execute(ctx, req.Message, bundle)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		s.logger.Error("AssistantService", "Pipeline execution failed", map[string]interface{}{
			"user_id": req.UserId,
			"chat_id": req.ChatId,
			"error":   err.Error(),
			"statuses": map[string]interface{}{
				pipeline.StagePlan:    string(p.Status(pipeline.StagePlan)),
				pipeline.StageExecute: string(p.Status(pipeline.StageExecute)),
				pipeline.StageReview:  string(p.Status(pipeline.StageReview)),
				pipeline.StageRespond: string(p.Status(pipeline.StageRespond)),
			},
		})
		return s.apologize(result), nil
	}

	return &dto.SendChatResponse{
		MessageId: result.MessageId,
		Reply:     reply,
		CreatedAt: result.CreatedAt,
	}, nil
}

func (s *assistantService) HandleDocument(ctx context.Context, userId, chatId int64, caption string, content []byte, fileName, fileType string) (*dto.UploadDocumentResponse, error) {
	result, err := s.ingest.ProcessDocument(ctx, userId, chatId, caption, content, fileName, fileType)
	if err != nil {
		var extractErr *chunker.ExtractionError
		if errors.As(err, &extractErr) {
			// Extraction problems are the user's to fix, not retried.
			return nil, err
		}
		s.logger.Error("AssistantService", "Document ingestion failed", map[string]interface{}{
			"user_id":   userId,
			"file_name": fileName,
			"error":     err.Error(),
		})
		return nil, fmt.Errorf("ingest document: %w", err)
	}

	return &dto.UploadDocumentResponse{
		MessageId:  result.MessageId,
		FileName:   fileName,
		FileType:   fileType,
		ChunkCount: result.ChunkCount,
		Reply:      fmt.Sprintf("Received %s. I split it into %d sections and I am indexing them now.", fileName, result.ChunkCount),
		CreatedAt:  result.CreatedAt,
	}, nil
}

func (s *assistantService) apologize(result *IngestResult) *dto.SendChatResponse {
	return &dto.SendChatResponse{
		MessageId: result.MessageId,
		Reply:     apologyReply,
		CreatedAt: result.CreatedAt,
	}
}
