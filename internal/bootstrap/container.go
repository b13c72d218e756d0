package bootstrap

import (
	"log"
	"time"

	"ai-assistant-be/internal/config"
	"ai-assistant-be/internal/controller"
	"ai-assistant-be/internal/pkg/logger"
	"ai-assistant-be/internal/repository/unitofwork"
	"ai-assistant-be/internal/service"
	"ai-assistant-be/pkg/chunker"
	"ai-assistant-be/pkg/embedding"
	"ai-assistant-be/pkg/llm/factory"
	"ai-assistant-be/pkg/rag/assembler"
	"ai-assistant-be/pkg/vector"

	pkgNats "ai-assistant-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	ChatController controller.IChatController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService
	ActivityService service.IActivityService

	// Shared infrastructure exposed for shutdown
	Logger   logger.ILogger
	NatsPub  *pkgNats.Publisher
	NatsSub  *pkgNats.Subscriber
	SweepGap time.Duration
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. Memory pipeline components
	var embeddingProvider embedding.EmbeddingProvider
	if cfg.Ai.EmbeddingProvider == "azure" {
		embeddingProvider = embedding.NewAzureOpenAIProvider(
			cfg.Ai.AzureEndpoint,
			cfg.Ai.AzureAPIKey,
			cfg.Ai.AzureAPIVersion,
			cfg.Ai.AzureEmbedDeployment,
		)
		log.Printf("[INFO] Using Embedding Provider: AZURE (%s)", cfg.Ai.AzureEmbedDeployment)
	} else {
		embeddingProvider = embedding.NewOllamaProvider(
			cfg.Ai.OllamaBaseURL,
			cfg.Ai.OllamaEmbedModel,
		)
		log.Printf("[INFO] Using Embedding Provider: OLLAMA (%s)", cfg.Ai.OllamaEmbedModel)
	}

	embedConfig := embedding.DefaultConfig()
	embedConfig.BatchSize = cfg.Memory.EmbedBatchSize
	embedService := embedding.NewService(embeddingProvider, embedConfig)

	normalizer, err := vector.New(cfg.Memory.NormalizerMode, cfg.Memory.TargetDim)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize vector normalizer: %v", err)
	}

	chunkerInst, err := chunker.NewChunker(cfg.Memory.MaxChunkSize, cfg.Memory.ChunkOverlap)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize chunker: %v", err)
	}

	llmProvider, err := factory.NewLLMProvider(factory.Config{
		Provider:        cfg.Ai.LLMProvider,
		ModelName:       cfg.Ai.LLMModel,
		BaseURL:         cfg.Ai.OllamaBaseURL,
		AzureEndpoint:   cfg.Ai.AzureEndpoint,
		AzureAPIKey:     cfg.Ai.AzureAPIKey,
		AzureAPIVersion: cfg.Ai.AzureAPIVersion,
	})
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	// NATS
	natsPub, err := pkgNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		natsPub = nil
	}
	natsSub, err := pkgNats.NewSubscriber(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
		natsSub = nil
	}

	// 4. Services
	memoryService := service.NewMemoryService(uowFactory, sysLogger)

	assemblerConfig := assembler.DefaultConfig()
	assemblerConfig.SimilarityThreshold = cfg.Memory.SimilarityThreshold
	assemblerConfig.SimilarLimit = cfg.Memory.SimilarLimit
	assemblerConfig.RecentUserLimit = cfg.Memory.RecentLimit
	assemblerConfig.RecentChatLimit = cfg.Memory.RecentLimit
	assemblerConfig.FileLimit = cfg.Memory.FileLimit
	assemblerConfig.TimeWindowDays = cfg.Memory.TimeWindowDays
	contextAssembler := assembler.NewAssembler(embedService, normalizer, memoryService, sysLogger, assemblerConfig)

	publisherService := service.NewPublisherService(cfg.App.EmbedTopic, pubSub)
	ingestService := service.NewIngestService(
		memoryService,
		chunkerInst,
		embedService,
		normalizer,
		publisherService,
		natsPub,
		sysLogger,
	)
	assistantService := service.NewAssistantService(ingestService, contextAssembler, llmProvider, sysLogger)
	consumerService := service.NewConsumerService(
		pubSub,
		cfg.App.EmbedTopic,
		ingestService,
		memoryService,
		publisherService,
		sysLogger,
	)

	activityService := service.NewActivityService(natsSub, sysLogger)

	return &Container{
		ChatController:  controller.NewChatController(assistantService),
		ConsumerService: consumerService,
		ActivityService: activityService,
		Logger:          sysLogger,
		NatsPub:         natsPub,
		NatsSub:         natsSub,
		SweepGap:        time.Duration(cfg.Memory.OrphanSweepMinutes) * time.Minute,
	}
}
