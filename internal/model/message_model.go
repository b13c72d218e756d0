package model

import (
	"time"

	"github.com/google/uuid"
)

type Message struct {
	Id          uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserId      int64     `gorm:"not null;index"`
	ChatId      int64     `gorm:"not null;index"`
	MessageText string    `gorm:"type:text"`
	FileContent *string   `gorm:"type:text"`
	FileName    *string
	FileType    *string   `gorm:"index"`
	CreatedAt   time.Time `gorm:"autoCreateTime;index"`
}

func (Message) TableName() string {
	return "messages"
}
