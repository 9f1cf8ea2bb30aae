package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"socialchat/internal/chatwire"
	"socialchat/internal/models"
	"socialchat/internal/storage"
)

// ErrNotParticipant is returned when a user touches a conversation they are
// not a member of.
var ErrNotParticipant = errors.New("not a participant of this conversation")

// ConversationService defines conversation-level operations.
type ConversationService interface {
	// GetOrCreatePrivateConversation returns the 1:1 conversation between the
	// two users, creating it if needed, plus whether it was created.
	GetOrCreatePrivateConversation(ctx context.Context, userID1, userID2 uint) (*models.Conversation, bool, error)
	// ListUserConversations returns one page of the user's conversations as
	// denormalized summaries, most recently updated first.
	ListUserConversations(ctx context.Context, userID uint, page, size int) (chatwire.Page[chatwire.ConversationSummary], error)
	// EnsureParticipant verifies conversation membership.
	EnsureParticipant(ctx context.Context, conversationID, userID uint) error
}

// conversationService implements ConversationService.
type conversationService struct {
	convoRepo storage.ConversationRepository
	msgRepo   storage.MessageRepository
	userRepo  storage.UserRepository
}

// NewConversationService creates a new ConversationService.
func NewConversationService(convoRepo storage.ConversationRepository, msgRepo storage.MessageRepository, userRepo storage.UserRepository) ConversationService {
	return &conversationService{convoRepo: convoRepo, msgRepo: msgRepo, userRepo: userRepo}
}

func (s *conversationService) GetOrCreatePrivateConversation(ctx context.Context, userID1, userID2 uint) (*models.Conversation, bool, error) {
	return s.convoRepo.GetOrCreatePrivateConversation(ctx, userID1, userID2)
}

// ListUserConversations flattens each conversation into a summary: the
// counterpart's identity is denormalized into otherUser* fields and the last
// message is attached for preview. A conversation whose counterpart cannot
// be resolved still appears, with the otherUser fields left zero.
func (s *conversationService) ListUserConversations(ctx context.Context, userID uint, page, size int) (chatwire.Page[chatwire.ConversationSummary], error) {
	var empty chatwire.Page[chatwire.ConversationSummary]

	total, err := s.convoRepo.CountUserConversations(ctx, userID)
	if err != nil {
		return empty, fmt.Errorf("counting conversations for user %d: %w", userID, err)
	}

	conversations, err := s.convoRepo.GetUserConversations(ctx, userID, size, page*size)
	if err != nil {
		return empty, fmt.Errorf("listing conversations for user %d: %w", userID, err)
	}

	summaries := make([]chatwire.ConversationSummary, 0, len(conversations))
	for _, convo := range conversations {
		summary := chatwire.ConversationSummary{
			ID:        convo.ID,
			UpdatedAt: convo.UpdatedAt,
		}

		participants, err := s.convoRepo.GetConversationParticipants(ctx, convo.ID)
		if err == nil {
			for _, p := range participants {
				if p.UserID != userID {
					summary.OtherUserID = p.UserID
					summary.OtherUsername = p.User.Username
					summary.OtherUserAvatarURL = p.User.AvatarURL
					break
				}
			}
		}

		if convo.LastMessageID != nil && *convo.LastMessageID > 0 {
			if lastMsg, err := s.msgRepo.GetByID(ctx, *convo.LastMessageID); err == nil {
				summary.LastMessage = toWireMessage(lastMsg)
			}
		}

		summaries = append(summaries, summary)
	}

	return chatwire.NewPage(summaries, page, size, int(total)), nil
}

func (s *conversationService) EnsureParticipant(ctx context.Context, conversationID, userID uint) error {
	_, err := s.convoRepo.GetParticipant(ctx, conversationID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotParticipant
		}
		return fmt.Errorf("checking participant: %w", err)
	}
	return nil
}
