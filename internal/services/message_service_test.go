package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	confluentKafka "github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"socialchat/internal/chatwire"
	"socialchat/internal/config"
	"socialchat/internal/models"
)

// MockMessageRepository is a mock implementation of storage.MessageRepository.
type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) Create(ctx context.Context, message *models.Message) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

func (m *MockMessageRepository) GetByID(ctx context.Context, id uint) (*models.Message, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *MockMessageRepository) GetByConversationID(ctx context.Context, conversationID uint, limit, offset int) ([]*models.Message, error) {
	args := m.Called(ctx, conversationID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Message), args.Error(1)
}

func (m *MockMessageRepository) CountByConversationID(ctx context.Context, conversationID uint) (int64, error) {
	args := m.Called(ctx, conversationID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockMessageRepository) Delete(ctx context.Context, id uint) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockConversationRepository is a mock implementation of
// storage.ConversationRepository.
type MockConversationRepository struct {
	mock.Mock
}

func (m *MockConversationRepository) CreateConversation(ctx context.Context, c *models.Conversation) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockConversationRepository) GetConversationByID(ctx context.Context, id uint) (*models.Conversation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Conversation), args.Error(1)
}

func (m *MockConversationRepository) GetUserConversations(ctx context.Context, userID uint, limit, offset int) ([]*models.Conversation, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Conversation), args.Error(1)
}

func (m *MockConversationRepository) CountUserConversations(ctx context.Context, userID uint) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockConversationRepository) UpdateConversation(ctx context.Context, c *models.Conversation) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockConversationRepository) FindPrivateConversationByUsers(ctx context.Context, userID1, userID2 uint) (*models.Conversation, error) {
	args := m.Called(ctx, userID1, userID2)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Conversation), args.Error(1)
}

func (m *MockConversationRepository) GetOrCreatePrivateConversation(ctx context.Context, userID1, userID2 uint) (*models.Conversation, bool, error) {
	args := m.Called(ctx, userID1, userID2)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.Conversation), args.Bool(1), args.Error(2)
}

func (m *MockConversationRepository) AddParticipant(ctx context.Context, p *models.ConversationParticipant) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockConversationRepository) GetParticipant(ctx context.Context, conversationID, userID uint) (*models.ConversationParticipant, error) {
	args := m.Called(ctx, conversationID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ConversationParticipant), args.Error(1)
}

func (m *MockConversationRepository) GetConversationParticipants(ctx context.Context, conversationID uint) ([]*models.ConversationParticipant, error) {
	args := m.Called(ctx, conversationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ConversationParticipant), args.Error(1)
}

// MockProducer records everything produced, per topic.
type MockProducer struct {
	mock.Mock
}

func (m *MockProducer) SendMessage(ctx context.Context, topic string, key, payload []byte) error {
	args := m.Called(ctx, topic, key, payload)
	return args.Error(0)
}

func (m *MockProducer) Close() {
	m.Called()
}

func pipelineConfig() config.Config {
	return config.Config{Kafka: config.KafkaConfig{
		InboundTopic:  "chat-inbound",
		OutboundTopic: "chat-outbound",
	}}
}

func TestIngestProducesToInboundTopic(t *testing.T) {
	producer := new(MockProducer)
	svc := NewMessageService(new(MockMessageRepository), new(MockConversationRepository), producer, pipelineConfig())

	producer.On("SendMessage", mock.Anything, "chat-inbound", []byte("1"), mock.Anything).Return(nil)

	err := svc.Ingest(context.Background(), chatwire.RawMessageInput{
		SenderID:    1,
		RecipientID: 2,
		Content:     "hello",
		Timestamp:   time.Now(),
	})

	require.NoError(t, err)
	producer.AssertExpectations(t)
}

func TestIngestRejectsIncompleteFrames(t *testing.T) {
	producer := new(MockProducer)
	svc := NewMessageService(new(MockMessageRepository), new(MockConversationRepository), producer, pipelineConfig())

	err := svc.Ingest(context.Background(), chatwire.RawMessageInput{SenderID: 1})
	assert.Error(t, err)
	producer.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessKafkaMessageEchoesToSenderAndRecipient(t *testing.T) {
	msgRepo := new(MockMessageRepository)
	convoRepo := new(MockConversationRepository)
	producer := new(MockProducer)
	svc := NewMessageService(msgRepo, convoRepo, producer, pipelineConfig())

	conversation := &models.Conversation{Type: models.PrivateConversation}
	conversation.ID = 10
	convoRepo.On("GetOrCreatePrivateConversation", mock.Anything, uint(1), uint(2)).Return(conversation, false, nil)
	convoRepo.On("UpdateConversation", mock.Anything, conversation).Return(nil)

	msgRepo.On("Create", mock.Anything, mock.AnythingOfType("*models.Message")).
		Run(func(args mock.Arguments) {
			args.Get(1).(*models.Message).ID = 100
		}).
		Return(nil)
	stored := &models.Message{
		ConversationID: 10,
		SenderID:       1,
		Type:           models.TextMessageType,
		Content:        "hello",
		Sender:         models.User{Username: "alice"},
	}
	stored.ID = 100
	stored.Sender.ID = 1
	msgRepo.On("GetByID", mock.Anything, uint(100)).Return(stored, nil)

	var deliveries []chatwire.Delivery
	producer.On("SendMessage", mock.Anything, "chat-outbound", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			var d chatwire.Delivery
			require.NoError(t, json.Unmarshal(args.Get(3).([]byte), &d))
			deliveries = append(deliveries, d)
		}).
		Return(nil)

	input, err := json.Marshal(chatwire.RawMessageInput{
		SenderID:       1,
		SenderUsername: "alice",
		RecipientID:    2,
		Content:        "hello",
		Timestamp:      time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	err = svc.ProcessKafkaMessage(context.Background(), &confluentKafka.Message{Value: input})
	require.NoError(t, err)

	// Both sides get a copy; the sender's echo is what forces clients to
	// deduplicate by message id.
	require.Len(t, deliveries, 2)
	targets := []uint{deliveries[0].TargetUserID, deliveries[1].TargetUserID}
	assert.ElementsMatch(t, []uint{2, 1}, targets)
	for _, d := range deliveries {
		assert.Equal(t, chatwire.EventMessage, d.Frame.Event)
		require.NotNil(t, d.Frame.Message)
		assert.Equal(t, uint(100), d.Frame.Message.ID)
		assert.Equal(t, "hello", d.Frame.Message.Content)
	}

	// The conversation advanced to the new last message.
	require.NotNil(t, conversation.LastMessageID)
	assert.Equal(t, uint(100), *conversation.LastMessageID)
}

func TestDeleteMessageOnlyBySender(t *testing.T) {
	msgRepo := new(MockMessageRepository)
	svc := NewMessageService(msgRepo, new(MockConversationRepository), new(MockProducer), pipelineConfig())

	stored := &models.Message{SenderID: 1}
	stored.ID = 100
	msgRepo.On("GetByID", mock.Anything, uint(100)).Return(stored, nil)

	err := svc.DeleteMessage(context.Background(), 2, 100)
	assert.ErrorIs(t, err, ErrNotMessageSender)
	msgRepo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}
