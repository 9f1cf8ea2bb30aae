package storage

import (
	"context"

	"gorm.io/gorm"

	"socialchat/internal/models"
)

// MessageRepository defines data operations for messages.
type MessageRepository interface {
	Create(ctx context.Context, message *models.Message) error
	GetByID(ctx context.Context, id uint) (*models.Message, error)
	// GetByConversationID returns one page of a conversation's messages,
	// newest first; clients re-sort ascending for display.
	GetByConversationID(ctx context.Context, conversationID uint, limit, offset int) ([]*models.Message, error)
	CountByConversationID(ctx context.Context, conversationID uint) (int64, error)
	// Delete removes the message row permanently.
	Delete(ctx context.Context, id uint) error
}

// gormMessageRepository implements MessageRepository with GORM.
type gormMessageRepository struct {
	db *gorm.DB
}

// NewGormMessageRepository creates a new GORM-backed MessageRepository.
func NewGormMessageRepository(db *gorm.DB) MessageRepository {
	return &gormMessageRepository{db: db}
}

func (r *gormMessageRepository) Create(ctx context.Context, message *models.Message) error {
	return r.db.WithContext(ctx).Create(message).Error
}

func (r *gormMessageRepository) GetByID(ctx context.Context, id uint) (*models.Message, error) {
	var message models.Message
	err := r.db.WithContext(ctx).Preload("Sender").First(&message, id).Error
	if err != nil {
		return nil, err
	}
	return &message, nil
}

func (r *gormMessageRepository) GetByConversationID(ctx context.Context, conversationID uint, limit, offset int) ([]*models.Message, error) {
	var messages []*models.Message
	query := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC")

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	err := query.Preload("Sender").Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *gormMessageRepository) CountByConversationID(ctx context.Context, conversationID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("conversation_id = ?", conversationID).
		Count(&count).Error
	return count, err
}

func (r *gormMessageRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Unscoped().Delete(&models.Message{}, id).Error
}
