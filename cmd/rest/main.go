package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"ai-assistant-be/internal/bootstrap"
	"ai-assistant-be/internal/config"
	"ai-assistant-be/internal/model"
	"ai-assistant-be/internal/server"
	"ai-assistant-be/pkg/database"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()

	// 2. Initialize Database
	gormDB, err := database.NewGormDBFromDSN(cfg.Database.Connection)
	if err != nil {
		log.Panicf("Unable to connect to GORM DB: %v", err)
	}
	if err := database.Migrate(gormDB, &model.Message{}, &model.MessageEmbedding{}); err != nil {
		log.Panicf("Unable to migrate schema: %v", err)
	}
	if err := database.EnsureVectorColumn(gormDB, model.MessageEmbedding{}.TableName(), "embedding", cfg.Memory.TargetDim); err != nil {
		log.Panicf("Unable to size embedding column: %v", err)
	}

	// 3. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(gormDB, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 4. Start Background Services
	go func() {
		log.Println("Background: Starting Consumer Service...")
		if err := container.ConsumerService.Consume(ctx); err != nil {
			log.Printf("Background Consumer Error: %v", err)
		}
	}()
	go container.ConsumerService.RunOrphanSweeper(ctx, container.SweepGap)
	container.ActivityService.Start()

	// 5. Initialize Server
	srv := server.New(cfg, container)

	// 6. Run Server with graceful shutdown
	go func() {
		if err := srv.Run(); err != nil {
			log.Printf("Server stopped: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	cancel()
	if err := srv.Shutdown(); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	if container.NatsPub != nil {
		container.NatsPub.Close()
	}
	if container.NatsSub != nil {
		container.NatsSub.Close()
	}
	_ = container.Logger.Sync()
}
