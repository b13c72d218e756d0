package dto

import (
	"time"

	"github.com/google/uuid"
)

type SendChatRequest struct {
	UserId         int64  `json:"user_id" validate:"required"`
	ChatId         int64  `json:"chat_id" validate:"required"`
	Message        string `json:"message" validate:"required,max=8192"`
	TimeWindowDays int    `json:"time_window_days,omitempty"`
}

type SendChatResponse struct {
	MessageId uuid.UUID `json:"message_id"`
	Reply     string    `json:"reply"`
	CreatedAt time.Time `json:"created_at"`
}

type UploadDocumentResponse struct {
	MessageId  uuid.UUID `json:"message_id"`
	FileName   string    `json:"file_name"`
	FileType   string    `json:"file_type"`
	ChunkCount int       `json:"chunk_count"`
	Reply      string    `json:"reply"`
	CreatedAt  time.Time `json:"created_at"`
}

// PublishEmbedMessage is the worker queue payload: the message whose chunks
// still need embedding.
type PublishEmbedMessage struct {
	MessageId uuid.UUID `json:"message_id"`
}
