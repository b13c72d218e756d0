package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"ai-assistant-be/internal/dto"
	"ai-assistant-be/internal/pkg/logger"
	"ai-assistant-be/pkg/embedding"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
	SweepOrphans(ctx context.Context) error
	RunOrphanSweeper(ctx context.Context, interval time.Duration)
}

type consumerService struct {
	pubSub           *gochannel.GoChannel
	topicName        string
	ingest           IIngestService
	memory           IMemoryService
	publisherService IPublisherService
	logger           logger.ILogger

	// orphanGrace is how old a message without embeddings must be before the
	// sweep treats it as stuck rather than in flight.
	orphanGrace time.Duration

	// maxSweepAttempts bounds re-enqueues per message before the
	// compensating delete removes the half-written row.
	maxSweepAttempts int

	mu            sync.Mutex
	sweepAttempts map[string]int
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	ingest IIngestService,
	memory IMemoryService,
	publisherService IPublisherService,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		pubSub:           pubSub,
		topicName:        topicName,
		ingest:           ingest,
		memory:           memory,
		publisherService: publisherService,
		logger:           log,
		orphanGrace:      5 * time.Minute,
		maxSweepAttempts: 3,
		sweepAttempts:    make(map[string]int),
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.PublishEmbedMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Error("ConsumerService", "Failed to unmarshal embed message", map[string]interface{}{
			"error": err.Error(),
		})
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	cs.logger.Info("ConsumerService", "Processing document embedding", map[string]interface{}{
		"message_id": payload.MessageId.String(),
	})

	chunkCount, err := cs.ingest.ProcessDocumentInline(ctx, payload.MessageId)
	if err != nil {
		if isPermanentError(err) {
			cs.logger.Error("ConsumerService", "Document embedding failed permanently, dropping event", map[string]interface{}{
				"message_id": payload.MessageId.String(),
				"error":      err.Error(),
			})
			msg.Ack()
			return
		}
		cs.logger.Warn("ConsumerService", "Document embedding failed, will retry", map[string]interface{}{
			"message_id": payload.MessageId.String(),
			"error":      err.Error(),
		})
		msg.Nack()
		return
	}

	cs.logger.Info("ConsumerService", "Document embedded", map[string]interface{}{
		"message_id":  payload.MessageId.String(),
		"chunk_count": chunkCount,
	})
	msg.Ack()
}

// isPermanentError reports failures that redelivery cannot fix: a missing or
// fileless message row, or input the embedding provider rejected. Such events
// are acked; rows that still need embeddings stay visible to the orphan sweep.
func isPermanentError(err error) bool {
	if errors.Is(err, ErrMessageNotFound) || errors.Is(err, ErrNoFileContent) {
		return true
	}
	var pe *embedding.ProviderError
	return errors.As(err, &pe) && pe.Kind == embedding.KindInvalidInput
}

// SweepOrphans finds messages that were persisted without embeddings and
// re-enqueues them. Messages that keep failing past maxSweepAttempts are
// deleted so the store does not accumulate unsearchable rows.
func (cs *consumerService) SweepOrphans(ctx context.Context) error {
	orphaned, err := cs.memory.FindOrphanedMessages(ctx, time.Now().Add(-cs.orphanGrace))
	if err != nil {
		return err
	}

	for _, m := range orphaned {
		// Text-only messages with no chunks are legitimate, only files
		// are expected to carry embeddings eventually.
		if !m.HasFile() {
			continue
		}

		id := m.Id.String()
		cs.mu.Lock()
		cs.sweepAttempts[id]++
		attempts := cs.sweepAttempts[id]
		cs.mu.Unlock()

		if attempts > cs.maxSweepAttempts {
			cs.logger.Warn("ConsumerService", "Deleting message that never embedded", map[string]interface{}{
				"message_id": id,
				"attempts":   attempts,
			})
			if err := cs.memory.DeleteMessage(ctx, m.Id); err != nil {
				cs.logger.Error("ConsumerService", "Compensating delete failed", map[string]interface{}{
					"message_id": id,
					"error":      err.Error(),
				})
			} else {
				cs.mu.Lock()
				delete(cs.sweepAttempts, id)
				cs.mu.Unlock()
			}
			continue
		}

		payload, err := json.Marshal(dto.PublishEmbedMessage{MessageId: m.Id})
		if err != nil {
			continue
		}
		if err := cs.publisherService.Publish(ctx, payload); err != nil {
			cs.logger.Error("ConsumerService", "Failed to re-enqueue orphan", map[string]interface{}{
				"message_id": id,
				"error":      err.Error(),
			})
			continue
		}
		cs.logger.Info("ConsumerService", "Re-enqueued orphaned message", map[string]interface{}{
			"message_id": id,
			"attempt":    attempts,
		})
	}

	return nil
}

// RunOrphanSweeper runs one immediate sweep and then repeats on the interval
// until the context is canceled.
func (cs *consumerService) RunOrphanSweeper(ctx context.Context, interval time.Duration) {
	if err := cs.SweepOrphans(ctx); err != nil {
		cs.logger.Error("ConsumerService", "Orphan sweep failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := cs.SweepOrphans(ctx); err != nil {
				cs.logger.Error("ConsumerService", "Orphan sweep failed", map[string]interface{}{
					"error": err.Error(),
				})
			}
		}
	}
}
