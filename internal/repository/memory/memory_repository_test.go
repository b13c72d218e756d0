package memory

import (
	"context"
	"testing"
	"time"

	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/repository/contract"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepos() (contract.MessageRepository, *MessageEmbeddingRepository) {
	embeddings := NewMessageEmbeddingRepository()
	messages := NewMessageRepository(embeddings)
	embeddings.AttachMessages(messages.(*MessageRepository))
	return messages, embeddings
}

func saveMessage(t *testing.T, repo contract.MessageRepository, userId, chatId int64, text string, createdAt time.Time) *entity.Message {
	t.Helper()
	m := &entity.Message{
		UserId:      userId,
		ChatId:      chatId,
		MessageText: text,
		CreatedAt:   createdAt,
	}
	require.NoError(t, repo.Create(context.Background(), m))
	return m
}

func TestMessageRepository_CreateAssignsIdentity(t *testing.T) {
	messages, _ := newRepos()

	m := &entity.Message{UserId: 1, ChatId: 1, MessageText: "hello"}
	require.NoError(t, messages.Create(context.Background(), m))

	assert.NotEqual(t, uuid.Nil, m.Id)
	assert.False(t, m.CreatedAt.IsZero())

	found, err := messages.FindById(context.Background(), m.Id)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "hello", found.MessageText)
}

func TestMessageRepository_FindRecentByUserNewestFirst(t *testing.T) {
	messages, _ := newRepos()
	base := time.Now()

	saveMessage(t, messages, 1, 10, "oldest", base.Add(-3*time.Hour))
	saveMessage(t, messages, 1, 10, "middle", base.Add(-2*time.Hour))
	saveMessage(t, messages, 1, 10, "newest", base.Add(-1*time.Hour))
	saveMessage(t, messages, 2, 10, "other user", base)

	found, err := messages.FindRecentByUser(context.Background(), 1, 2)
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "newest", found[0].MessageText)
	assert.Equal(t, "middle", found[1].MessageText)
}

func TestMessageRepository_FindWithFileFiltersByType(t *testing.T) {
	messages, _ := newRepos()
	base := time.Now()

	pdf := "pdf"
	txt := "txt"
	content := "raw"
	name := "report.pdf"

	withPdf := &entity.Message{
		UserId:      1,
		ChatId:      10,
		MessageText: "see attached",
		FileContent: &content,
		FileName:    &name,
		FileType:    &pdf,
		CreatedAt:   base,
	}
	require.NoError(t, messages.Create(context.Background(), withPdf))

	withTxt := &entity.Message{
		UserId:      1,
		ChatId:      10,
		MessageText: "notes",
		FileContent: &content,
		FileType:    &txt,
		CreatedAt:   base.Add(-time.Minute),
	}
	require.NoError(t, messages.Create(context.Background(), withTxt))
	saveMessage(t, messages, 1, 10, "plain text", base.Add(-2*time.Minute))

	all, err := messages.FindWithFile(context.Background(), 1, nil, 10)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	onlyPdf, err := messages.FindWithFile(context.Background(), 1, &pdf, 10)
	require.NoError(t, err)
	require.Len(t, onlyPdf, 1)
	assert.Equal(t, withPdf.Id, onlyPdf[0].Id)
}

func TestMessageRepository_FindOrphaned(t *testing.T) {
	messages, embeddings := newRepos()
	cutoff := time.Now().Add(-time.Hour)

	orphan := saveMessage(t, messages, 1, 10, "stuck ingestion", cutoff.Add(-time.Hour))
	embedded := saveMessage(t, messages, 1, 10, "processed", cutoff.Add(-time.Hour))
	saveMessage(t, messages, 1, 10, "still in flight", cutoff.Add(time.Minute))

	require.NoError(t, embeddings.Create(context.Background(), &entity.MessageEmbedding{
		MessageId: embedded.Id,
		ChunkText: "processed",
		Embedding: []float32{1, 0},
	}))

	found, err := messages.FindOrphaned(context.Background(), cutoff)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, orphan.Id, found[0].Id)
}

func TestMessageEmbeddingRepository_FindByMessageIdOrdersChunks(t *testing.T) {
	messages, embeddings := newRepos()
	m := saveMessage(t, messages, 1, 10, "doc", time.Now())

	require.NoError(t, embeddings.CreateBulk(context.Background(), []*entity.MessageEmbedding{
		{MessageId: m.Id, ChunkIndex: 2, ChunkText: "third", Embedding: []float32{0, 1}},
		{MessageId: m.Id, ChunkIndex: 0, ChunkText: "first", Embedding: []float32{1, 0}},
		{MessageId: m.Id, ChunkIndex: 1, ChunkText: "second", Embedding: []float32{1, 1}},
	}))

	found, err := embeddings.FindByMessageId(context.Background(), m.Id)
	require.NoError(t, err)
	require.Len(t, found, 3)
	assert.Equal(t, "first", found[0].ChunkText)
	assert.Equal(t, "second", found[1].ChunkText)
	assert.Equal(t, "third", found[2].ChunkText)

	count, err := embeddings.CountByMessageId(context.Background(), m.Id)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestSearchSimilarWithScore_RanksByCosineSimilarity(t *testing.T) {
	messages, embeddings := newRepos()
	m := saveMessage(t, messages, 1, 10, "doc", time.Now())

	require.NoError(t, embeddings.CreateBulk(context.Background(), []*entity.MessageEmbedding{
		{MessageId: m.Id, ChunkIndex: 0, ChunkText: "aligned", Embedding: []float32{1, 0, 0}},
		{MessageId: m.Id, ChunkIndex: 1, ChunkText: "orthogonal", Embedding: []float32{0, 1, 0}},
		{MessageId: m.Id, ChunkIndex: 2, ChunkText: "diagonal", Embedding: []float32{1, 1, 0}},
	}))

	scored, err := embeddings.SearchSimilarWithScore(context.Background(), []float32{1, 0, 0}, 10, 0.0, contract.SearchFilter{})
	require.NoError(t, err)
	require.Len(t, scored, 3)
	assert.Equal(t, "aligned", scored[0].Embedding.ChunkText)
	assert.InDelta(t, 1.0, scored[0].Similarity, 1e-6)
	assert.Equal(t, "diagonal", scored[1].Embedding.ChunkText)
	assert.Equal(t, "orthogonal", scored[2].Embedding.ChunkText)
	assert.InDelta(t, 0.0, scored[2].Similarity, 1e-6)
}

func TestSearchSimilarWithScore_ThresholdExcludesWeakMatches(t *testing.T) {
	messages, embeddings := newRepos()
	m := saveMessage(t, messages, 1, 10, "doc", time.Now())

	require.NoError(t, embeddings.CreateBulk(context.Background(), []*entity.MessageEmbedding{
		{MessageId: m.Id, ChunkIndex: 0, ChunkText: "strong", Embedding: []float32{1, 0}},
		{MessageId: m.Id, ChunkIndex: 1, ChunkText: "weak", Embedding: []float32{0, 1}},
	}))

	scored, err := embeddings.SearchSimilarWithScore(context.Background(), []float32{1, 0}, 10, 0.5, contract.SearchFilter{})
	require.NoError(t, err)
	require.Len(t, scored, 1)
	assert.Equal(t, "strong", scored[0].Embedding.ChunkText)
}

func TestSearchSimilarWithScore_TieBreaksOnRecency(t *testing.T) {
	messages, embeddings := newRepos()
	base := time.Now()

	older := saveMessage(t, messages, 1, 10, "older", base.Add(-time.Hour))
	newer := saveMessage(t, messages, 1, 10, "newer", base)

	require.NoError(t, embeddings.Create(context.Background(), &entity.MessageEmbedding{
		MessageId: older.Id, ChunkText: "older chunk", Embedding: []float32{1, 0},
	}))
	require.NoError(t, embeddings.Create(context.Background(), &entity.MessageEmbedding{
		MessageId: newer.Id, ChunkText: "newer chunk", Embedding: []float32{1, 0},
	}))

	scored, err := embeddings.SearchSimilarWithScore(context.Background(), []float32{1, 0}, 10, 0.0, contract.SearchFilter{})
	require.NoError(t, err)
	require.Len(t, scored, 2)
	assert.Equal(t, "newer chunk", scored[0].Embedding.ChunkText)
	assert.Equal(t, "older chunk", scored[1].Embedding.ChunkText)
}

func TestSearchSimilarWithScore_AppliesOwnerFilters(t *testing.T) {
	messages, embeddings := newRepos()
	base := time.Now()

	mine := saveMessage(t, messages, 1, 10, "mine", base)
	theirs := saveMessage(t, messages, 2, 10, "theirs", base)
	stale := saveMessage(t, messages, 1, 10, "stale", base.Add(-48*time.Hour))

	for _, m := range []*entity.Message{mine, theirs, stale} {
		require.NoError(t, embeddings.Create(context.Background(), &entity.MessageEmbedding{
			MessageId: m.Id, ChunkText: m.MessageText, Embedding: []float32{1, 0},
		}))
	}

	userId := int64(1)
	since := base.Add(-24 * time.Hour)
	scored, err := embeddings.SearchSimilarWithScore(context.Background(), []float32{1, 0}, 10, 0.0, contract.SearchFilter{
		UserId: &userId,
		Since:  &since,
	})
	require.NoError(t, err)
	require.Len(t, scored, 1)
	assert.Equal(t, "mine", scored[0].Embedding.ChunkText)
}

func TestSearchSimilarWithScore_HonorsLimit(t *testing.T) {
	messages, embeddings := newRepos()
	m := saveMessage(t, messages, 1, 10, "doc", time.Now())

	for i := 0; i < 8; i++ {
		require.NoError(t, embeddings.Create(context.Background(), &entity.MessageEmbedding{
			MessageId: m.Id, ChunkIndex: i, ChunkText: "chunk", Embedding: []float32{1, 0},
		}))
	}

	scored, err := embeddings.SearchSimilarWithScore(context.Background(), []float32{1, 0}, 3, 0.0, contract.SearchFilter{})
	require.NoError(t, err)
	assert.Len(t, scored, 3)
}

func TestMessageRepository_DeleteRemovesMessage(t *testing.T) {
	messages, _ := newRepos()
	m := saveMessage(t, messages, 1, 10, "doomed", time.Now())

	require.NoError(t, messages.Delete(context.Background(), m.Id))

	found, err := messages.FindById(context.Background(), m.Id)
	require.NoError(t, err)
	assert.Nil(t, found)
}
