package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"socialchat/internal/models"
)

// MockUserRepository is a mock implementation of storage.UserRepository.
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByUsernameOrEmail(ctx context.Context, usernameOrEmail string) (*models.User, error) {
	args := m.Called(ctx, usernameOrEmail)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) Update(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func TestListUserConversationsDenormalizesCounterpart(t *testing.T) {
	convoRepo := new(MockConversationRepository)
	msgRepo := new(MockMessageRepository)
	svc := NewConversationService(convoRepo, msgRepo, new(MockUserRepository))

	lastID := uint(100)
	convo := &models.Conversation{Type: models.PrivateConversation, LastMessageID: &lastID}
	convo.ID = 10
	convo.UpdatedAt = time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC)

	bob := models.User{Username: "bob", AvatarURL: "http://x/b.png"}
	bob.ID = 2

	convoRepo.On("CountUserConversations", mock.Anything, uint(1)).Return(int64(1), nil)
	convoRepo.On("GetUserConversations", mock.Anything, uint(1), 20, 0).Return([]*models.Conversation{convo}, nil)
	convoRepo.On("GetConversationParticipants", mock.Anything, uint(10)).Return([]*models.ConversationParticipant{
		{ConversationID: 10, UserID: 1},
		{ConversationID: 10, UserID: 2, User: bob},
	}, nil)

	lastMsg := &models.Message{ConversationID: 10, SenderID: 2, Type: models.TextMessageType, Content: "see you"}
	lastMsg.ID = 100
	msgRepo.On("GetByID", mock.Anything, uint(100)).Return(lastMsg, nil)

	page, err := svc.ListUserConversations(context.Background(), 1, 0, 20)
	require.NoError(t, err)
	require.Len(t, page.Content, 1)

	summary := page.Content[0]
	assert.Equal(t, uint(10), summary.ID)
	assert.Equal(t, uint(2), summary.OtherUserID)
	assert.Equal(t, "bob", summary.OtherUsername)
	assert.Equal(t, "http://x/b.png", summary.OtherUserAvatarURL)
	require.NotNil(t, summary.LastMessage)
	assert.Equal(t, "see you", summary.LastMessage.Content)
	assert.Equal(t, 1, page.TotalElements)
}

func TestEnsureParticipantRejectsOutsiders(t *testing.T) {
	convoRepo := new(MockConversationRepository)
	svc := NewConversationService(convoRepo, new(MockMessageRepository), new(MockUserRepository))

	convoRepo.On("GetParticipant", mock.Anything, uint(10), uint(9)).Return(nil, gorm.ErrRecordNotFound)

	err := svc.EnsureParticipant(context.Background(), 10, 9)
	assert.ErrorIs(t, err, ErrNotParticipant)
}
