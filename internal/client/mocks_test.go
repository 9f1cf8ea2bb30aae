package client

import (
	"context"

	"github.com/stretchr/testify/mock"

	"socialchat/internal/chatwire"
)

// MockAPI is a mock implementation of the API interface.
type MockAPI struct {
	mock.Mock
}

func (m *MockAPI) GetCurrentUser(ctx context.Context) (*chatwire.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*chatwire.User), args.Error(1)
}

func (m *MockAPI) GetConversations(ctx context.Context, page, size int) (*chatwire.Page[chatwire.ConversationSummary], error) {
	args := m.Called(ctx, page, size)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*chatwire.Page[chatwire.ConversationSummary]), args.Error(1)
}

func (m *MockAPI) GetConversationMessages(ctx context.Context, conversationID uint, page, size int) (*chatwire.Page[chatwire.Message], error) {
	args := m.Called(ctx, conversationID, page, size)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*chatwire.Page[chatwire.Message]), args.Error(1)
}

func (m *MockAPI) SendMessage(ctx context.Context, req chatwire.SendMessageRequest) (*chatwire.Message, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*chatwire.Message), args.Error(1)
}

func (m *MockAPI) DeleteMessage(ctx context.Context, messageID uint) error {
	args := m.Called(ctx, messageID)
	return args.Error(0)
}

func (m *MockAPI) CreateConversation(ctx context.Context, req chatwire.CreateConversationRequest) (*chatwire.Conversation, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*chatwire.Conversation), args.Error(1)
}

// MockTransport is a mock implementation of the Transport interface. The
// registered callbacks are captured so tests can fire socket events.
type MockTransport struct {
	mock.Mock

	connectFn    func()
	disconnectFn func()
	errorFn      func(string)
	messageFn    func(chatwire.Message)
	typingFn     func(chatwire.TypingIndicator)
}

func (m *MockTransport) Connect(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockTransport) Close() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockTransport) Send(recipientID uint, content, messageType string) error {
	args := m.Called(recipientID, content, messageType)
	return args.Error(0)
}

func (m *MockTransport) SendTyping(recipientID uint, isTyping bool) error {
	args := m.Called(recipientID, isTyping)
	return args.Error(0)
}

func (m *MockTransport) OnConnect(fn func()) { m.connectFn = fn }

func (m *MockTransport) OnDisconnect(fn func()) { m.disconnectFn = fn }

func (m *MockTransport) OnError(fn func(string)) { m.errorFn = fn }

func (m *MockTransport) OnMessage(fn func(chatwire.Message)) { m.messageFn = fn }

func (m *MockTransport) OnTyping(fn func(chatwire.TypingIndicator)) { m.typingFn = fn }
