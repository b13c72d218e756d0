package assembler

import (
	"context"
	"fmt"
	"time"

	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/pkg/logger"
	"ai-assistant-be/internal/repository/contract"
	"ai-assistant-be/pkg/store"
	"ai-assistant-be/pkg/vector"

	"github.com/patrickmn/go-cache"
)

// QueryEmbedder produces the query vector. Satisfied by *embedding.Service.
type QueryEmbedder interface {
	EmbedOne(ctx context.Context, text string) ([]float32, error)
}

// MemoryReader is the retrieval surface the assembler needs. Satisfied by
// service.MemoryService.
type MemoryReader interface {
	SearchSimilar(ctx context.Context, queryVector []float32, limit int, threshold float64, userId *int64, since *time.Time) ([]*contract.ScoredChunk, error)
	GetUserContext(ctx context.Context, userId int64, limit int) ([]*entity.Message, error)
	GetChatContext(ctx context.Context, chatId int64, limit int) ([]*entity.Message, error)
	GetFileContext(ctx context.Context, userId int64, fileType *string, limit int) ([]*entity.Message, error)
}

// Config encapsulates per-sub-list caps and retrieval parameters.
type Config struct {
	SimilarityThreshold float64
	SimilarLimit        int
	RecentUserLimit     int
	RecentChatLimit     int
	FileLimit           int
	FileExcerptRunes    int
	TimeWindowDays      int
	QueryCacheTTL       time.Duration
}

func DefaultConfig() Config {
	return Config{
		SimilarityThreshold: 0.35,
		SimilarLimit:        5,
		RecentUserLimit:     5,
		RecentChatLimit:     5,
		FileLimit:           3,
		FileExcerptRunes:    500,
		TimeWindowDays:      30,
		QueryCacheTTL:       10 * time.Minute,
	}
}

// Request carries one assembly invocation.
type Request struct {
	Query  string
	UserId int64
	ChatId int64

	// TimeWindowDays restricts similarity search recency; 0 uses the
	// configured default, negative disables the window.
	TimeWindowDays int

	// Limit overrides the similar-chunk cap when > 0.
	Limit int
}

// Assembler gathers recency and similarity context into one bundle. Each
// sub-list is capped independently; the same message may show up through both
// the recency and similarity views.
type Assembler struct {
	embedder   QueryEmbedder
	normalizer vector.Normalizer
	memory     MemoryReader
	queryCache *cache.Cache
	logger     logger.ILogger
	config     Config
}

func NewAssembler(
	embedder QueryEmbedder,
	normalizer vector.Normalizer,
	memory MemoryReader,
	log logger.ILogger,
	config Config,
) *Assembler {
	return &Assembler{
		embedder:   embedder,
		normalizer: normalizer,
		memory:     memory,
		queryCache: cache.New(config.QueryCacheTTL, 2*config.QueryCacheTTL),
		logger:     log,
		config:     config,
	}
}

func (a *Assembler) Assemble(ctx context.Context, req Request) (*store.ContextBundle, error) {
	queryVector, err := a.embedQuery(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	var since *time.Time
	windowDays := req.TimeWindowDays
	if windowDays == 0 {
		windowDays = a.config.TimeWindowDays
	}
	if windowDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -windowDays)
		since = &cutoff
	}

	similarLimit := a.config.SimilarLimit
	if req.Limit > 0 {
		similarLimit = req.Limit
	}

	userId := req.UserId
	scored, err := a.memory.SearchSimilar(ctx, queryVector, similarLimit, a.config.SimilarityThreshold, &userId, since)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}

	recentUser, err := a.memory.GetUserContext(ctx, req.UserId, a.config.RecentUserLimit)
	if err != nil {
		return nil, fmt.Errorf("user context: %w", err)
	}

	recentChat, err := a.memory.GetChatContext(ctx, req.ChatId, a.config.RecentChatLimit)
	if err != nil {
		return nil, fmt.Errorf("chat context: %w", err)
	}

	fileMessages, err := a.memory.GetFileContext(ctx, req.UserId, nil, a.config.FileLimit)
	if err != nil {
		return nil, fmt.Errorf("file context: %w", err)
	}

	bundle := &store.ContextBundle{
		RecentUserMessages: toMemoryMessages(recentUser),
		RecentChatMessages: toMemoryMessages(recentChat),
		FileExcerpts:       a.toFileExcerpts(fileMessages),
		SimilarChunks:      toScoredExcerpts(scored),
	}

	a.logger.Debug("Assembler", "Context bundle assembled", map[string]interface{}{
		"user_id":        req.UserId,
		"chat_id":        req.ChatId,
		"similar_chunks": len(bundle.SimilarChunks),
		"recent_user":    len(bundle.RecentUserMessages),
		"recent_chat":    len(bundle.RecentChatMessages),
		"file_excerpts":  len(bundle.FileExcerpts),
	})

	return bundle, nil
}

// embedQuery embeds the query once per cache window. Repeated queries within
// the TTL reuse the cached vector instead of calling the provider again.
func (a *Assembler) embedQuery(ctx context.Context, query string) ([]float32, error) {
	if cached, ok := a.queryCache.Get(query); ok {
		return cached.([]float32), nil
	}

	raw, err := a.embedder.EmbedOne(ctx, query)
	if err != nil {
		return nil, err
	}

	normalized, err := a.normalizer.Normalize([][]float32{raw})
	if err != nil {
		return nil, err
	}
	if len(normalized) == 0 {
		return nil, fmt.Errorf("normalizer returned no vector")
	}

	a.queryCache.Set(query, normalized[0], cache.DefaultExpiration)
	return normalized[0], nil
}

func toMemoryMessages(messages []*entity.Message) []store.MemoryMessage {
	result := make([]store.MemoryMessage, 0, len(messages))
	for _, m := range messages {
		mm := store.MemoryMessage{
			ID:          m.Id.String(),
			UserID:      m.UserId,
			ChatID:      m.ChatId,
			MessageText: m.MessageText,
			CreatedAt:   m.CreatedAt,
		}
		if m.FileName != nil {
			mm.FileName = *m.FileName
		}
		if m.FileType != nil {
			mm.FileType = *m.FileType
		}
		result = append(result, mm)
	}
	return result
}

func (a *Assembler) toFileExcerpts(messages []*entity.Message) []store.FileExcerpt {
	result := make([]store.FileExcerpt, 0, len(messages))
	for _, m := range messages {
		if m.FileContent == nil {
			continue
		}
		excerpt := *m.FileContent
		if runes := []rune(excerpt); len(runes) > a.config.FileExcerptRunes {
			excerpt = string(runes[:a.config.FileExcerptRunes])
		}
		fe := store.FileExcerpt{
			MessageID: m.Id.String(),
			Excerpt:   excerpt,
			CreatedAt: m.CreatedAt,
		}
		if m.FileName != nil {
			fe.FileName = *m.FileName
		}
		if m.FileType != nil {
			fe.FileType = *m.FileType
		}
		result = append(result, fe)
	}
	return result
}

func toScoredExcerpts(scored []*contract.ScoredChunk) []store.ScoredExcerpt {
	result := make([]store.ScoredExcerpt, 0, len(scored))
	for _, s := range scored {
		se := store.ScoredExcerpt{
			MessageID:  s.Embedding.MessageId.String(),
			ChunkIndex: s.Embedding.ChunkIndex,
			Text:       s.Embedding.ChunkText,
			Similarity: s.Similarity,
		}
		if s.Message != nil {
			se.CreatedAt = s.Message.CreatedAt
			if s.Message.FileName != nil {
				se.FileName = *s.Message.FileName
			}
		}
		result = append(result, se)
	}
	return result
}
