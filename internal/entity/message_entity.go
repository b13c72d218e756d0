package entity

import (
	"time"

	"github.com/google/uuid"
)

// Message is one inbound chat event, immutable once stored. File fields are
// set only for document uploads.
type Message struct {
	Id          uuid.UUID
	UserId      int64
	ChatId      int64
	MessageText string
	FileContent *string
	FileName    *string
	FileType    *string
	CreatedAt   time.Time
}

// HasFile reports whether the message carries extracted document text.
func (m *Message) HasFile() bool {
	return m.FileContent != nil
}
