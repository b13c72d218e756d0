package service

import (
	"context"
	"strings"
	"sync"

	"ai-assistant-be/internal/pkg/logger"
	"ai-assistant-be/pkg/events"
	pkgNats "ai-assistant-be/pkg/nats"
)

// IActivityService listens to the memory event bus and keeps running counts
// per event type. The counts feed the health endpoint.
type IActivityService interface {
	Start()
	Counts() map[string]int64
}

type activityService struct {
	subscriber *pkgNats.Subscriber
	logger     logger.ILogger

	mu     sync.Mutex
	counts map[string]int64
}

func NewActivityService(sub *pkgNats.Subscriber, log logger.ILogger) IActivityService {
	return &activityService{
		subscriber: sub,
		logger:     log,
		counts:     make(map[string]int64),
	}
}

// Start begins listening to the memory event bus. A nil subscriber (NATS
// unavailable at boot) leaves the counters empty.
func (s *activityService) Start() {
	if s.subscriber == nil {
		s.logger.Warn("ActivityService", "No event bus connection, activity tracking disabled", nil)
		return
	}

	if err := s.subscriber.Subscribe("memory.>", "memory-activity-worker", s.handleEvent); err != nil {
		s.logger.Error("ActivityService", "Failed to start activity subscriber", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	s.logger.Info("ActivityService", "Listening to memory.>", nil)
}

func (s *activityService) handleEvent(ctx context.Context, event events.Event) error {
	// Subjects on the bus carry the stream prefix.
	code := strings.TrimPrefix(event.EventType(), "memory.")

	s.mu.Lock()
	s.counts[code]++
	s.mu.Unlock()

	s.logger.Info("ActivityService", "Memory event observed", map[string]interface{}{
		"event":   code,
		"payload": event.Payload(),
	})
	return nil
}

func (s *activityService) Counts() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]int64, len(s.counts))
	for code, count := range s.counts {
		out[code] = count
	}
	return out
}
