package mapper

import (
	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/model"
)

type MessageMapper struct{}

func NewMessageMapper() *MessageMapper {
	return &MessageMapper{}
}

func (m *MessageMapper) ToEntity(e *model.Message) *entity.Message {
	if e == nil {
		return nil
	}
	return &entity.Message{
		Id:          e.Id,
		UserId:      e.UserId,
		ChatId:      e.ChatId,
		MessageText: e.MessageText,
		FileContent: e.FileContent,
		FileName:    e.FileName,
		FileType:    e.FileType,
		CreatedAt:   e.CreatedAt,
	}
}

func (m *MessageMapper) ToModel(e *entity.Message) *model.Message {
	if e == nil {
		return nil
	}
	return &model.Message{
		Id:          e.Id,
		UserId:      e.UserId,
		ChatId:      e.ChatId,
		MessageText: e.MessageText,
		FileContent: e.FileContent,
		FileName:    e.FileName,
		FileType:    e.FileType,
		CreatedAt:   e.CreatedAt,
	}
}

func (m *MessageMapper) ToEntities(messages []*model.Message) []*entity.Message {
	entities := make([]*entity.Message, len(messages))
	for i, msg := range messages {
		entities[i] = m.ToEntity(msg)
	}
	return entities
}
