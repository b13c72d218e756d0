package implementation

import (
	"context"
	"errors"
	"time"

	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/mapper"
	"ai-assistant-be/internal/model"
	"ai-assistant-be/internal/repository/contract"
	"ai-assistant-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MessageRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.MessageMapper
}

func NewMessageRepository(db *gorm.DB) contract.MessageRepository {
	return &MessageRepositoryImpl{
		db:     db,
		mapper: mapper.NewMessageMapper(),
	}
}

func (r *MessageRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *MessageRepositoryImpl) Create(ctx context.Context, message *entity.Message) error {
	m := r.mapper.ToModel(message)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*message = *r.mapper.ToEntity(m)
	return nil
}

func (r *MessageRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.Message{}, id).Error
}

func (r *MessageRepositoryImpl) FindById(ctx context.Context, id uuid.UUID) (*entity.Message, error) {
	var m model.Message
	err := r.applySpecifications(r.db.WithContext(ctx), specification.ByID{ID: id}).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *MessageRepositoryImpl) FindRecentByUser(ctx context.Context, userId int64, limit int) ([]*entity.Message, error) {
	return r.findAll(ctx,
		specification.ByUserId{UserId: userId},
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.Limit{N: limit},
	)
}

func (r *MessageRepositoryImpl) FindRecentByChat(ctx context.Context, chatId int64, limit int) ([]*entity.Message, error) {
	return r.findAll(ctx,
		specification.ByChatId{ChatId: chatId},
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.Limit{N: limit},
	)
}

func (r *MessageRepositoryImpl) FindWithFile(ctx context.Context, userId int64, fileType *string, limit int) ([]*entity.Message, error) {
	specs := []specification.Specification{
		specification.ByUserId{UserId: userId},
		specification.HasFile{},
	}
	if fileType != nil {
		specs = append(specs, specification.ByFileType{FileType: *fileType})
	}
	specs = append(specs,
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.Limit{N: limit},
	)
	return r.findAll(ctx, specs...)
}

func (r *MessageRepositoryImpl) FindOrphaned(ctx context.Context, olderThan time.Time) ([]*entity.Message, error) {
	var models []*model.Message
	err := r.db.WithContext(ctx).
		Where("created_at < ?", olderThan).
		Where("NOT EXISTS (SELECT 1 FROM message_embeddings WHERE message_embeddings.message_id = messages.id)").
		Order("created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *MessageRepositoryImpl) findAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Message, error) {
	var models []*model.Message
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}
