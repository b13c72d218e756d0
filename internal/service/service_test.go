package service

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"ai-assistant-be/internal/dto"
	"ai-assistant-be/internal/repository/contract"
	"ai-assistant-be/internal/repository/memory"
	"ai-assistant-be/internal/repository/unitofwork"
	"ai-assistant-be/pkg/chunker"
	"ai-assistant-be/pkg/embedding"
	"ai-assistant-be/pkg/events"
	"ai-assistant-be/pkg/llm"
	"ai-assistant-be/pkg/rag/assembler"
	"ai-assistant-be/pkg/vector"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Debug(module, message string, details map[string]interface{}) {}
func (nopLogger) Info(module, message string, details map[string]interface{})  {}
func (nopLogger) Warn(module, message string, details map[string]interface{})  {}
func (nopLogger) Error(module, message string, details map[string]interface{}) {}
func (nopLogger) Sync() error                                                  { return nil }

// fakeUnitOfWork runs the in-memory repositories without real transactions.
type fakeUnitOfWork struct {
	messages   contract.MessageRepository
	embeddings contract.MessageEmbeddingRepository
}

func (f *fakeUnitOfWork) Begin(ctx context.Context) error { return nil }
func (f *fakeUnitOfWork) Commit() error                   { return nil }
func (f *fakeUnitOfWork) Rollback() error                 { return nil }
func (f *fakeUnitOfWork) MessageRepository() contract.MessageRepository {
	return f.messages
}
func (f *fakeUnitOfWork) MessageEmbeddingRepository() contract.MessageEmbeddingRepository {
	return f.embeddings
}

type fakeFactory struct {
	uow *fakeUnitOfWork
}

func (f *fakeFactory) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork {
	return f.uow
}

func newMemoryBackend() (*fakeFactory, *memory.MessageEmbeddingRepository) {
	embeddings := memory.NewMessageEmbeddingRepository()
	messages := memory.NewMessageRepository(embeddings)
	embeddings.AttachMessages(messages.(*memory.MessageRepository))
	return &fakeFactory{uow: &fakeUnitOfWork{messages: messages, embeddings: embeddings}}, embeddings
}

type stubEmbedProvider struct {
	fail     bool
	failKind embedding.ErrorKind
}

func (p *stubEmbedProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if p.fail {
		kind := p.failKind
		if kind == "" {
			kind = embedding.KindInvalidInput
		}
		return nil, &embedding.ProviderError{Kind: kind, Err: fmt.Errorf("rejected")}
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = []float32{float32(len(text)), 1, 0, 0}
	}
	return vectors, nil
}

type stubPublisher struct {
	published [][]byte
	fail      bool
}

func (p *stubPublisher) Publish(ctx context.Context, payload []byte) error {
	if p.fail {
		return fmt.Errorf("bus unavailable")
	}
	p.published = append(p.published, payload)
	return nil
}

func newIngestService(t *testing.T, factory *fakeFactory, provider embedding.EmbeddingProvider, publisher IPublisherService) (IIngestService, IMemoryService) {
	t.Helper()
	memoryService := NewMemoryService(factory, nopLogger{})
	chunkerInst, err := chunker.NewChunker(200, 40)
	require.NoError(t, err)
	normalizer, err := vector.New("pooling", 4)
	require.NoError(t, err)
	embedService := embedding.NewService(provider, embedding.Config{BatchSize: 16, MaxRetries: 1, Backoff: time.Millisecond})
	ingest := NewIngestService(memoryService, chunkerInst, embedService, normalizer, publisher, nil, nopLogger{})
	return ingest, memoryService
}

func TestProcessMessage_PersistsMessageAndEmbeddings(t *testing.T) {
	factory, _ := newMemoryBackend()
	ingest, memoryService := newIngestService(t, factory, &stubEmbedProvider{}, &stubPublisher{})

	result, err := ingest.ProcessMessage(context.Background(), 1, 10, "Remember the meeting is on Friday. It starts at nine.")
	require.NoError(t, err)
	assert.Greater(t, result.ChunkCount, 0)

	saved, err := memoryService.GetMessage(context.Background(), result.MessageId)
	require.NoError(t, err)
	require.NotNil(t, saved)

	uow := factory.NewUnitOfWork(context.Background())
	count, err := uow.MessageEmbeddingRepository().CountByMessageId(context.Background(), result.MessageId)
	require.NoError(t, err)
	assert.Equal(t, int64(result.ChunkCount), count)

	// Every stored vector has the configured target dimension.
	chunks, err := uow.MessageEmbeddingRepository().FindByMessageId(context.Background(), result.MessageId)
	require.NoError(t, err)
	for _, c := range chunks {
		assert.Len(t, c.Embedding, 4)
	}
}

func TestProcessMessage_EmbedFailurePersistsNothing(t *testing.T) {
	factory, _ := newMemoryBackend()
	ingest, memoryService := newIngestService(t, factory, &stubEmbedProvider{fail: true}, &stubPublisher{})

	_, err := ingest.ProcessMessage(context.Background(), 1, 10, "This one will not embed.")
	require.Error(t, err)

	var provErr *embedding.ProviderError
	assert.ErrorAs(t, err, &provErr)

	saved, err := memoryService.GetUserContext(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Empty(t, saved, "failed ingestion must not leave a message behind")
}

func TestProcessDocument_QueuesEmbeddingWork(t *testing.T) {
	factory, _ := newMemoryBackend()
	publisher := &stubPublisher{}
	ingest, memoryService := newIngestService(t, factory, &stubEmbedProvider{}, publisher)

	content := []byte("Quarterly revenue grew. Costs held steady. Margins improved.")
	result, err := ingest.ProcessDocument(context.Background(), 1, 10, "the report", content, "q3.txt", "txt")
	require.NoError(t, err)
	assert.Greater(t, result.ChunkCount, 0)
	assert.Len(t, publisher.published, 1)

	saved, err := memoryService.GetMessage(context.Background(), result.MessageId)
	require.NoError(t, err)
	require.NotNil(t, saved)
	require.NotNil(t, saved.FileContent)
	assert.Equal(t, "q3.txt", *saved.FileName)

	// Embeddings are written by the worker, not inline.
	uow := factory.NewUnitOfWork(context.Background())
	count, err := uow.MessageEmbeddingRepository().CountByMessageId(context.Background(), result.MessageId)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestProcessDocument_RejectsUnsupportedType(t *testing.T) {
	factory, _ := newMemoryBackend()
	ingest, memoryService := newIngestService(t, factory, &stubEmbedProvider{}, &stubPublisher{})

	_, err := ingest.ProcessDocument(context.Background(), 1, 10, "", []byte("x"), "pic.png", "png")
	require.Error(t, err)

	var extractErr *chunker.ExtractionError
	assert.ErrorAs(t, err, &extractErr)

	saved, err := memoryService.GetUserContext(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Empty(t, saved)
}

func TestProcessDocumentInline_EmbedsStoredDocument(t *testing.T) {
	factory, _ := newMemoryBackend()
	ingest, _ := newIngestService(t, factory, &stubEmbedProvider{}, &stubPublisher{})

	content := []byte("First point here. Second point there. Third point everywhere.")
	result, err := ingest.ProcessDocument(context.Background(), 1, 10, "", content, "notes.txt", "txt")
	require.NoError(t, err)

	chunkCount, err := ingest.ProcessDocumentInline(context.Background(), result.MessageId)
	require.NoError(t, err)
	assert.Greater(t, chunkCount, 0)

	uow := factory.NewUnitOfWork(context.Background())
	count, err := uow.MessageEmbeddingRepository().CountByMessageId(context.Background(), result.MessageId)
	require.NoError(t, err)
	assert.Equal(t, int64(chunkCount), count)
}

type stubLLM struct {
	reply string
	err   error
}

func (s *stubLLM) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	return s.reply, s.err
}

func (s *stubLLM) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	return s.reply, s.err
}

func newAssistantService(t *testing.T, provider llm.LLMProvider) IAssistantService {
	t.Helper()
	factory, _ := newMemoryBackend()
	memoryService := NewMemoryService(factory, nopLogger{})
	ingest, _ := newIngestService(t, factory, &stubEmbedProvider{}, &stubPublisher{})

	normalizer, err := vector.New("pooling", 4)
	require.NoError(t, err)
	embedService := embedding.NewService(&stubEmbedProvider{}, embedding.DefaultConfig())
	contextAssembler := assembler.NewAssembler(embedService, normalizer, memoryService, nopLogger{}, assembler.DefaultConfig())

	return NewAssistantService(ingest, contextAssembler, provider, nopLogger{})
}

func TestHandleChat_ReturnsPipelineReply(t *testing.T) {
	svc := newAssistantService(t, &stubLLM{reply: "Here is your answer."})

	resp, err := svc.HandleChat(context.Background(), &dto.SendChatRequest{
		UserId: 1, ChatId: 10, Message: "What did I schedule for Friday?",
	})
	require.NoError(t, err)
	assert.Equal(t, "Here is your answer.", resp.Reply)
}

func TestHandleChat_PipelineFailureYieldsGenericApology(t *testing.T) {
	svc := newAssistantService(t, &stubLLM{err: fmt.Errorf("model is down")})

	resp, err := svc.HandleChat(context.Background(), &dto.SendChatRequest{
		UserId: 1, ChatId: 10, Message: "Anything?",
	})
	require.NoError(t, err)
	assert.Equal(t, apologyReply, resp.Reply)
	assert.NotContains(t, resp.Reply, "model is down")
}

func newEmbedEvent(t *testing.T, messageId uuid.UUID) *message.Message {
	t.Helper()
	payload, err := json.Marshal(dto.PublishEmbedMessage{MessageId: messageId})
	require.NoError(t, err)
	return message.NewMessage(watermill.NewUUID(), payload)
}

func requireAcked(t *testing.T, msg *message.Message) {
	t.Helper()
	select {
	case <-msg.Acked():
	case <-msg.Nacked():
		t.Fatal("event was nacked, want ack")
	default:
		t.Fatal("event neither acked nor nacked")
	}
}

func requireNacked(t *testing.T, msg *message.Message) {
	t.Helper()
	select {
	case <-msg.Nacked():
	case <-msg.Acked():
		t.Fatal("event was acked, want nack")
	default:
		t.Fatal("event neither acked nor nacked")
	}
}

func newConsumer(t *testing.T, provider embedding.EmbeddingProvider) (*consumerService, IIngestService) {
	t.Helper()
	factory, _ := newMemoryBackend()
	publisher := &stubPublisher{}
	memoryService := NewMemoryService(factory, nopLogger{})
	ingest, _ := newIngestService(t, factory, provider, publisher)
	cs := NewConsumerService(nil, "embed", ingest, memoryService, publisher, nopLogger{}).(*consumerService)
	return cs, ingest
}

func TestProcessEmbedEvent_MissingMessageIsAcked(t *testing.T) {
	cs, _ := newConsumer(t, &stubEmbedProvider{})

	// The row may already be gone, e.g. removed by the sweep's compensating
	// delete. Redelivery cannot bring it back.
	msg := newEmbedEvent(t, uuid.New())
	cs.processMessage(context.Background(), msg)
	requireAcked(t, msg)
}

func TestProcessEmbedEvent_TextOnlyMessageIsAcked(t *testing.T) {
	cs, ingest := newConsumer(t, &stubEmbedProvider{})

	result, err := ingest.ProcessMessage(context.Background(), 1, 10, "Just a chat line.")
	require.NoError(t, err)

	msg := newEmbedEvent(t, result.MessageId)
	cs.processMessage(context.Background(), msg)
	requireAcked(t, msg)
}

func TestProcessEmbedEvent_RejectedInputIsAcked(t *testing.T) {
	cs, ingest := newConsumer(t, &stubEmbedProvider{fail: true})

	content := []byte("Body the provider will refuse.")
	result, err := ingest.ProcessDocument(context.Background(), 1, 10, "", content, "bad.txt", "txt")
	require.NoError(t, err)

	msg := newEmbedEvent(t, result.MessageId)
	cs.processMessage(context.Background(), msg)
	requireAcked(t, msg)
}

func TestProcessEmbedEvent_TransportFailureIsNacked(t *testing.T) {
	cs, ingest := newConsumer(t, &stubEmbedProvider{fail: true, failKind: embedding.KindTransport})

	content := []byte("Body behind a flaky provider.")
	result, err := ingest.ProcessDocument(context.Background(), 1, 10, "", content, "flaky.txt", "txt")
	require.NoError(t, err)

	msg := newEmbedEvent(t, result.MessageId)
	cs.processMessage(context.Background(), msg)
	requireNacked(t, msg)
}

func TestProcessEmbedEvent_SuccessIsAcked(t *testing.T) {
	cs, ingest := newConsumer(t, &stubEmbedProvider{})

	content := []byte("Body that embeds cleanly.")
	result, err := ingest.ProcessDocument(context.Background(), 1, 10, "", content, "ok.txt", "txt")
	require.NoError(t, err)

	msg := newEmbedEvent(t, result.MessageId)
	cs.processMessage(context.Background(), msg)
	requireAcked(t, msg)
}

func TestProcessEmbedEvent_MalformedPayloadIsAcked(t *testing.T) {
	cs, _ := newConsumer(t, &stubEmbedProvider{})

	msg := message.NewMessage(watermill.NewUUID(), []byte("not json"))
	cs.processMessage(context.Background(), msg)
	requireAcked(t, msg)
}

func TestActivityService_CountsObservedEvents(t *testing.T) {
	svc := NewActivityService(nil, nopLogger{}).(*activityService)

	// Subjects arrive with the stream prefix attached.
	require.NoError(t, svc.handleEvent(context.Background(), events.BaseEvent{
		Type: "memory." + events.EventMessageSaved,
	}))
	require.NoError(t, svc.handleEvent(context.Background(), events.BaseEvent{
		Type: "memory." + events.EventMessageSaved,
	}))
	require.NoError(t, svc.handleEvent(context.Background(), events.BaseEvent{
		Type: "memory." + events.EventDocumentProcessed,
	}))

	counts := svc.Counts()
	assert.Equal(t, int64(2), counts[events.EventMessageSaved])
	assert.Equal(t, int64(1), counts[events.EventDocumentProcessed])
}

func TestActivityService_StartWithoutBusIsNoop(t *testing.T) {
	svc := NewActivityService(nil, nopLogger{})
	svc.Start()
	assert.Empty(t, svc.Counts())
}

func TestSweepOrphans_ReenqueuesAndEventuallyDeletes(t *testing.T) {
	factory, _ := newMemoryBackend()
	publisher := &stubPublisher{}
	memoryService := NewMemoryService(factory, nopLogger{})
	ingest, _ := newIngestService(t, factory, &stubEmbedProvider{}, publisher)

	content := []byte("Stuck document body.")
	result, err := ingest.ProcessDocument(context.Background(), 1, 10, "", content, "stuck.txt", "txt")
	require.NoError(t, err)
	published := len(publisher.published)

	cs := NewConsumerService(nil, "embed", ingest, memoryService, publisher, nopLogger{}).(*consumerService)
	cs.orphanGrace = -time.Second
	cs.maxSweepAttempts = 2

	// Two sweeps re-enqueue, the third deletes.
	for i := 0; i < 2; i++ {
		require.NoError(t, cs.SweepOrphans(context.Background()))
	}
	assert.Len(t, publisher.published, published+2)

	require.NoError(t, cs.SweepOrphans(context.Background()))
	saved, err := memoryService.GetMessage(context.Background(), result.MessageId)
	require.NoError(t, err)
	assert.Nil(t, saved, "message past the attempt bound is removed")
}
