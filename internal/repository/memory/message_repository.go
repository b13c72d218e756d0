// Package memory provides in-process implementations of the repository
// contracts. They back unit tests and local runs without Postgres; semantics
// (filtering, ordering, thresholds) match the gorm implementations.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/repository/contract"

	"github.com/google/uuid"
)

type MessageRepository struct {
	mu       sync.RWMutex
	messages map[uuid.UUID]*entity.Message

	// embeddings is shared with the embedding repository so orphan
	// detection can see both sides.
	embeddings *MessageEmbeddingRepository
}

func NewMessageRepository(embeddings *MessageEmbeddingRepository) contract.MessageRepository {
	return &MessageRepository{
		messages:   make(map[uuid.UUID]*entity.Message),
		embeddings: embeddings,
	}
}

func (r *MessageRepository) Create(ctx context.Context, message *entity.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if message.Id == uuid.Nil {
		message.Id = uuid.New()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}
	stored := *message
	r.messages[message.Id] = &stored
	return nil
}

func (r *MessageRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.messages, id)
	return nil
}

func (r *MessageRepository) FindById(ctx context.Context, id uuid.UUID) (*entity.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.messages[id]
	if !ok {
		return nil, nil
	}
	found := *m
	return &found, nil
}

func (r *MessageRepository) FindRecentByUser(ctx context.Context, userId int64, limit int) ([]*entity.Message, error) {
	return r.filter(limit, func(m *entity.Message) bool {
		return m.UserId == userId
	}), nil
}

func (r *MessageRepository) FindRecentByChat(ctx context.Context, chatId int64, limit int) ([]*entity.Message, error) {
	return r.filter(limit, func(m *entity.Message) bool {
		return m.ChatId == chatId
	}), nil
}

func (r *MessageRepository) FindWithFile(ctx context.Context, userId int64, fileType *string, limit int) ([]*entity.Message, error) {
	return r.filter(limit, func(m *entity.Message) bool {
		if m.UserId != userId || !m.HasFile() {
			return false
		}
		if fileType != nil && (m.FileType == nil || *m.FileType != *fileType) {
			return false
		}
		return true
	}), nil
}

func (r *MessageRepository) FindOrphaned(ctx context.Context, olderThan time.Time) ([]*entity.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var orphaned []*entity.Message
	for _, m := range r.messages {
		if !m.CreatedAt.Before(olderThan) {
			continue
		}
		if r.embeddings != nil && r.embeddings.countForMessage(m.Id) > 0 {
			continue
		}
		copied := *m
		orphaned = append(orphaned, &copied)
	}
	sort.Slice(orphaned, func(i, j int) bool {
		return orphaned[i].CreatedAt.Before(orphaned[j].CreatedAt)
	})
	return orphaned, nil
}

// filter returns matching messages, newest first, capped at limit.
func (r *MessageRepository) filter(limit int, keep func(*entity.Message) bool) []*entity.Message {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*entity.Message
	for _, m := range r.messages {
		if keep(m) {
			copied := *m
			matched = append(matched, &copied)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched
}

func (r *MessageRepository) get(id uuid.UUID) *entity.Message {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if m, ok := r.messages[id]; ok {
		copied := *m
		return &copied
	}
	return nil
}
