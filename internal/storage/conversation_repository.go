package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"socialchat/internal/models"
)

// ConversationRepository defines data operations for conversations and their
// participants.
type ConversationRepository interface {
	CreateConversation(ctx context.Context, conversation *models.Conversation) error
	GetConversationByID(ctx context.Context, id uint) (*models.Conversation, error)
	// GetUserConversations lists conversations the user participates in,
	// most recently updated first.
	GetUserConversations(ctx context.Context, userID uint, limit, offset int) ([]*models.Conversation, error)
	CountUserConversations(ctx context.Context, userID uint) (int64, error)
	UpdateConversation(ctx context.Context, conversation *models.Conversation) error
	// FindPrivateConversationByUsers locates the 1:1 conversation shared by
	// exactly the two given users, or gorm.ErrRecordNotFound.
	FindPrivateConversationByUsers(ctx context.Context, userID1, userID2 uint) (*models.Conversation, error)
	// GetOrCreatePrivateConversation finds or transactionally creates the 1:1
	// conversation between two users, reporting whether it was created.
	GetOrCreatePrivateConversation(ctx context.Context, userID1, userID2 uint) (*models.Conversation, bool, error)

	AddParticipant(ctx context.Context, participant *models.ConversationParticipant) error
	GetParticipant(ctx context.Context, conversationID, userID uint) (*models.ConversationParticipant, error)
	GetConversationParticipants(ctx context.Context, conversationID uint) ([]*models.ConversationParticipant, error)
}

// gormConversationRepository implements ConversationRepository with GORM.
type gormConversationRepository struct {
	db *gorm.DB
}

// NewGormConversationRepository creates a new GORM-backed ConversationRepository.
func NewGormConversationRepository(db *gorm.DB) ConversationRepository {
	return &gormConversationRepository{db: db}
}

func (r *gormConversationRepository) CreateConversation(ctx context.Context, conversation *models.Conversation) error {
	return r.db.WithContext(ctx).Create(conversation).Error
}

func (r *gormConversationRepository) GetConversationByID(ctx context.Context, id uint) (*models.Conversation, error) {
	var conversation models.Conversation
	if err := r.db.WithContext(ctx).First(&conversation, id).Error; err != nil {
		return nil, err
	}
	return &conversation, nil
}

func (r *gormConversationRepository) GetUserConversations(ctx context.Context, userID uint, limit, offset int) ([]*models.Conversation, error) {
	var conversations []*models.Conversation
	query := r.db.WithContext(ctx).
		Joins("JOIN conversation_participants cp ON cp.conversation_id = conversations.id").
		Where("cp.user_id = ? AND cp.deleted_at IS NULL", userID).
		Order("conversations.updated_at DESC")

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	err := query.Find(&conversations).Error
	return conversations, err
}

func (r *gormConversationRepository) CountUserConversations(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Conversation{}).
		Joins("JOIN conversation_participants cp ON cp.conversation_id = conversations.id").
		Where("cp.user_id = ? AND cp.deleted_at IS NULL", userID).
		Count(&count).Error
	return count, err
}

func (r *gormConversationRepository) UpdateConversation(ctx context.Context, conversation *models.Conversation) error {
	return r.db.WithContext(ctx).Save(conversation).Error
}

// FindPrivateConversationByUsers needs a conversation that has participant
// rows for both users. Order of the arguments does not matter.
func (r *gormConversationRepository) FindPrivateConversationByUsers(ctx context.Context, userID1, userID2 uint) (*models.Conversation, error) {
	var conversation models.Conversation
	err := r.db.WithContext(ctx).
		Joins("JOIN conversation_participants cp1 ON cp1.conversation_id = conversations.id AND cp1.user_id = ?", userID1).
		Joins("JOIN conversation_participants cp2 ON cp2.conversation_id = conversations.id AND cp2.user_id = ?", userID2).
		Where("conversations.type = ?", models.PrivateConversation).
		First(&conversation).Error
	if err != nil {
		return nil, err
	}
	return &conversation, nil
}

func (r *gormConversationRepository) GetOrCreatePrivateConversation(ctx context.Context, userID1, userID2 uint) (*models.Conversation, bool, error) {
	if userID1 == userID2 {
		return nil, false, fmt.Errorf("cannot open a private conversation with yourself")
	}

	existing, err := r.FindPrivateConversationByUsers(ctx, userID1, userID2)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("looking up private conversation: %w", err)
	}

	conversation := &models.Conversation{Type: models.PrivateConversation}
	now := time.Now()
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(conversation).Error; err != nil {
			return err
		}
		participants := []models.ConversationParticipant{
			{ConversationID: conversation.ID, UserID: userID1, JoinedAt: now},
			{ConversationID: conversation.ID, UserID: userID2, JoinedAt: now},
		}
		return tx.Create(&participants).Error
	})
	if err != nil {
		return nil, false, fmt.Errorf("creating private conversation: %w", err)
	}
	return conversation, true, nil
}

func (r *gormConversationRepository) AddParticipant(ctx context.Context, participant *models.ConversationParticipant) error {
	var exists int64
	err := r.db.WithContext(ctx).Model(&models.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ?", participant.ConversationID, participant.UserID).
		Count(&exists).Error
	if err != nil {
		return fmt.Errorf("checking existing participant: %w", err)
	}
	if exists > 0 {
		// Already a member; treat as success.
		return nil
	}
	return r.db.WithContext(ctx).Create(participant).Error
}

func (r *gormConversationRepository) GetParticipant(ctx context.Context, conversationID, userID uint) (*models.ConversationParticipant, error) {
	var participant models.ConversationParticipant
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		First(&participant).Error
	if err != nil {
		return nil, err
	}
	return &participant, nil
}

func (r *gormConversationRepository) GetConversationParticipants(ctx context.Context, conversationID uint) ([]*models.ConversationParticipant, error) {
	var participants []*models.ConversationParticipant
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("conversation_id = ?", conversationID).
		Find(&participants).Error
	return participants, err
}
