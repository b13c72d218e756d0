package specification

import (
	"gorm.io/gorm"
)

// ByUserId filters messages by their owning user
type ByUserId struct {
	UserId int64
}

func (s ByUserId) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("user_id = ?", s.UserId)
}

// ByChatId filters messages by chat
type ByChatId struct {
	ChatId int64
}

func (s ByChatId) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("chat_id = ?", s.ChatId)
}

// HasFile keeps messages that carry extracted document text
type HasFile struct{}

func (s HasFile) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("file_content IS NOT NULL")
}

// ByFileType filters file messages by document type (pdf, docx, txt)
type ByFileType struct {
	FileType string
}

func (s ByFileType) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("file_type = ?", s.FileType)
}
