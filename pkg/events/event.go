package events

import "time"

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "message_saved").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Memory domain event codes. Subjects on the bus are "memory.<code>".
const (
	EventMessageSaved      = "message_saved"
	EventDocumentProcessed = "document_processed"
)

// BaseEvent helps embed common logic if needed,
// strictly creating valid implementations is preferred though.
type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// NewMessageSaved builds the event published after a chat message and its
// embeddings are committed.
func NewMessageSaved(messageId string, userId, chatId int64, chunkCount int) BaseEvent {
	return BaseEvent{
		Type: EventMessageSaved,
		Data: map[string]interface{}{
			"message_id":  messageId,
			"user_id":     userId,
			"chat_id":     chatId,
			"chunk_count": chunkCount,
		},
		OccurredAt: time.Now(),
	}
}

// NewDocumentProcessed builds the event published after a document's chunks
// are embedded by the worker.
func NewDocumentProcessed(messageId, fileName string, chunkCount int) BaseEvent {
	return BaseEvent{
		Type: EventDocumentProcessed,
		Data: map[string]interface{}{
			"message_id":  messageId,
			"file_name":   fileName,
			"chunk_count": chunkCount,
		},
		OccurredAt: time.Now(),
	}
}
