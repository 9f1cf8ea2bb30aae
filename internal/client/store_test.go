package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"socialchat/internal/chatwire"
)

func newTestStore() (*Store, *MockAPI, *MockTransport) {
	api := new(MockAPI)
	transport := new(MockTransport)
	store := NewStore(api, transport, 20)
	return store, api, transport
}

func day(d int) time.Time {
	return time.Date(2024, 1, d, 12, 0, 0, 0, time.UTC)
}

// seed installs state directly, bypassing the loaders.
func seed(s *Store, me chatwire.User, conversations []chatwire.Conversation, activeID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := me
	s.currentUser = &user
	s.conversations = conversations
	s.activeConversationID = activeID
}

func privateConversation(id, meID, otherID uint, updatedAt time.Time) chatwire.Conversation {
	return chatwire.Conversation{
		ID: id,
		Participants: []chatwire.Participant{
			{UserID: meID, User: chatwire.User{ID: meID, Username: "me"}},
			{UserID: otherID, User: chatwire.User{ID: otherID, Username: "other"}},
		},
		UpdatedAt: updatedAt,
	}
}

func TestLoadCurrentUserRunsOnce(t *testing.T) {
	store, api, _ := newTestStore()
	api.On("GetCurrentUser", mock.Anything).Return(&chatwire.User{ID: 1, Username: "alice"}, nil).Once()

	require.NoError(t, store.LoadCurrentUser(context.Background()))
	require.NoError(t, store.LoadCurrentUser(context.Background()))

	snap := store.Snapshot()
	require.NotNil(t, snap.CurrentUser)
	assert.Equal(t, uint(1), snap.CurrentUser.ID)
	api.AssertExpectations(t)
}

func TestLoadCurrentUserFailureKeepsDependentsInert(t *testing.T) {
	store, api, _ := newTestStore()
	api.On("GetCurrentUser", mock.Anything).Return(nil, errors.New("401 unauthorized"))

	require.Error(t, store.LoadCurrentUser(context.Background()))

	err := store.LoadConversations(context.Background())
	assert.ErrorIs(t, err, ErrNoCurrentUser)
	api.AssertNotCalled(t, "GetConversations", mock.Anything, mock.Anything, mock.Anything)

	snap := store.Snapshot()
	assert.Nil(t, snap.CurrentUser)
	assert.NotEmpty(t, snap.Error)
}

func TestLoadConversationsTransformsAndSorts(t *testing.T) {
	store, api, _ := newTestStore()
	seed(store, chatwire.User{ID: 1, Username: "alice", FullName: "Alice"}, nil, 0)

	page := &chatwire.Page[chatwire.ConversationSummary]{
		Content: []chatwire.ConversationSummary{
			{ID: 10, OtherUserID: 2, OtherUsername: "bob", UpdatedAt: day(1)},
			{ID: 11, OtherUserID: 3, OtherUsername: "carol", OtherUserAvatarURL: "http://x/c.png", UpdatedAt: day(2)},
			{ID: 12, UpdatedAt: day(3)}, // no counterpart: self-only, accepted
		},
	}
	api.On("GetConversations", mock.Anything, 0, 20).Return(page, nil)

	require.NoError(t, store.LoadConversations(context.Background()))
	first := store.Snapshot().Conversations

	require.Len(t, first, 3)
	assert.Equal(t, []uint{12, 11, 10}, []uint{first[0].ID, first[1].ID, first[2].ID})

	// Self-only record keeps just the current-user participant.
	require.Len(t, first[0].Participants, 1)
	assert.Equal(t, uint(1), first[0].Participants[0].UserID)

	// Counterpart is reconstructed from the denormalized fields.
	require.Len(t, first[1].Participants, 2)
	other := first[1].Participants[1]
	assert.Equal(t, uint(3), other.UserID)
	assert.Equal(t, "carol", other.User.Username)
	assert.Equal(t, "carol", other.User.FullName)
	assert.Equal(t, "http://x/c.png", other.User.AvatarURL)

	// Re-running with identical server data yields an identical list.
	require.NoError(t, store.LoadConversations(context.Background()))
	assert.Equal(t, first, store.Snapshot().Conversations)
}

func TestLoadConversationsSelectionFallback(t *testing.T) {
	store, api, _ := newTestStore()
	seed(store, chatwire.User{ID: 1}, nil, 99) // active conversation that will vanish

	page := &chatwire.Page[chatwire.ConversationSummary]{
		Content: []chatwire.ConversationSummary{
			{ID: 10, OtherUserID: 2, OtherUsername: "bob", UpdatedAt: day(2)},
			{ID: 11, OtherUserID: 3, OtherUsername: "carol", UpdatedAt: day(1)},
		},
	}
	api.On("GetConversations", mock.Anything, 0, 20).Return(page, nil).Once()

	require.NoError(t, store.LoadConversations(context.Background()))
	assert.Equal(t, uint(10), store.Snapshot().ActiveConversationID)

	// An empty list clears the selection.
	empty := &chatwire.Page[chatwire.ConversationSummary]{}
	api.On("GetConversations", mock.Anything, 0, 20).Return(empty, nil).Once()
	require.NoError(t, store.LoadConversations(context.Background()))
	assert.Equal(t, uint(0), store.Snapshot().ActiveConversationID)
}

func TestInboundMessageDeduplicatesByID(t *testing.T) {
	store, _, transport := newTestStore()
	seed(store, chatwire.User{ID: 1}, []chatwire.Conversation{privateConversation(10, 1, 2, day(1))}, 10)

	msg := chatwire.Message{ID: 100, ConversationID: 10, SenderID: 2, Content: "hi", CreatedAt: day(2)}
	transport.messageFn(msg)
	transport.messageFn(msg) // at-least-once redelivery
	transport.messageFn(msg)

	assert.Len(t, store.ConversationMessages(10), 1)
}

func TestInboundMessageSortsOutOfOrderDelivery(t *testing.T) {
	store, _, transport := newTestStore()
	seed(store, chatwire.User{ID: 1}, []chatwire.Conversation{privateConversation(10, 1, 2, day(1))}, 10)

	transport.messageFn(chatwire.Message{ID: 101, ConversationID: 10, CreatedAt: day(3)})
	transport.messageFn(chatwire.Message{ID: 100, ConversationID: 10, CreatedAt: day(2)})

	list := store.ConversationMessages(10)
	require.Len(t, list, 2)
	assert.Equal(t, uint(100), list[0].ID)
	assert.Equal(t, uint(101), list[1].ID)
}

func TestInboundMessageWithoutConversationIsDropped(t *testing.T) {
	store, _, transport := newTestStore()
	seed(store, chatwire.User{ID: 1}, []chatwire.Conversation{privateConversation(10, 1, 2, day(1))}, 10)

	transport.messageFn(chatwire.Message{ID: 100, Content: "orphan", CreatedAt: day(2)})

	assert.Empty(t, store.ConversationMessages(0))
	assert.Empty(t, store.ConversationMessages(10))
}

func TestInboundMessageResortsConversations(t *testing.T) {
	store, _, transport := newTestStore()
	seed(store, chatwire.User{ID: 1}, []chatwire.Conversation{
		privateConversation(10, 1, 2, day(2)),
		privateConversation(11, 1, 3, day(1)),
	}, 10)

	// A message lands in the older conversation.
	msg := chatwire.Message{ID: 100, ConversationID: 11, SenderID: 3, Content: "ping", CreatedAt: day(3)}
	transport.messageFn(msg)

	conversations := store.Snapshot().Conversations
	require.Len(t, conversations, 2)
	assert.Equal(t, uint(11), conversations[0].ID)
	assert.Equal(t, day(3), conversations[0].UpdatedAt)
	require.NotNil(t, conversations[0].LastMessage)
	assert.Equal(t, uint(100), conversations[0].LastMessage.ID)
}

func TestStaleHistoryFetchIsDiscarded(t *testing.T) {
	store, api, _ := newTestStore()
	seed(store, chatwire.User{ID: 1}, []chatwire.Conversation{
		privateConversation(10, 1, 2, day(2)),
		privateConversation(11, 1, 3, day(1)),
	}, 0)

	entered := make(chan struct{})
	release := make(chan struct{})

	slowPage := &chatwire.Page[chatwire.Message]{Content: []chatwire.Message{
		{ID: 100, ConversationID: 10, Content: "old view", CreatedAt: day(1)},
	}}
	fastPage := &chatwire.Page[chatwire.Message]{Content: []chatwire.Message{
		{ID: 200, ConversationID: 11, Content: "new view", CreatedAt: day(2)},
	}}

	api.On("GetConversationMessages", mock.Anything, uint(10), 0, 20).
		Run(func(mock.Arguments) {
			close(entered)
			<-release
		}).
		Return(slowPage, nil)
	api.On("GetConversationMessages", mock.Anything, uint(11), 0, 20).Return(fastPage, nil)

	done := make(chan error)
	go func() {
		done <- store.SetActiveConversation(context.Background(), 10)
	}()
	<-entered

	// Switch to conversation 11 while 10's fetch is still in flight.
	require.NoError(t, store.SetActiveConversation(context.Background(), 11))
	close(release)
	require.NoError(t, <-done)

	snap := store.Snapshot()
	assert.Equal(t, uint(11), snap.ActiveConversationID)
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, uint(200), snap.Messages[0].ID)

	// The superseded response must not have landed anywhere.
	assert.Empty(t, store.ConversationMessages(10))
}

func TestHistoryFetchReplacesNotMerges(t *testing.T) {
	store, api, transport := newTestStore()
	seed(store, chatwire.User{ID: 1}, []chatwire.Conversation{privateConversation(10, 1, 2, day(1))}, 0)

	transport.messageFn(chatwire.Message{ID: 999, ConversationID: 10, Content: "stale local", CreatedAt: day(1)})

	page := &chatwire.Page[chatwire.Message]{Content: []chatwire.Message{
		{ID: 101, ConversationID: 10, CreatedAt: day(3)},
		{ID: 100, ConversationID: 10, CreatedAt: day(2)},
	}}
	api.On("GetConversationMessages", mock.Anything, uint(10), 0, 20).Return(page, nil)

	require.NoError(t, store.SetActiveConversation(context.Background(), 10))

	list := store.ConversationMessages(10)
	require.Len(t, list, 2)
	assert.Equal(t, uint(100), list[0].ID)
	assert.Equal(t, uint(101), list[1].ID)
}

func TestHistoryFetchFailureKeepsSelection(t *testing.T) {
	store, api, _ := newTestStore()
	seed(store, chatwire.User{ID: 1}, []chatwire.Conversation{privateConversation(10, 1, 2, day(1))}, 0)

	api.On("GetConversationMessages", mock.Anything, uint(10), 0, 20).Return(nil, errors.New("boom"))

	require.Error(t, store.SetActiveConversation(context.Background(), 10))

	snap := store.Snapshot()
	assert.Equal(t, uint(10), snap.ActiveConversationID)
	assert.NotEmpty(t, snap.Error)
}

func TestTypingIndicatorLastWriterWinsPerUser(t *testing.T) {
	store, _, transport := newTestStore()
	seed(store, chatwire.User{ID: 1}, nil, 0)

	transport.typingFn(chatwire.TypingIndicator{ConversationID: 10, UserID: 2, Username: "bob", IsTyping: true})
	transport.typingFn(chatwire.TypingIndicator{ConversationID: 10, UserID: 2, Username: "bob", IsTyping: true})

	snap := store.Snapshot()
	require.Len(t, snap.TypingIndicators, 1)
	assert.True(t, snap.TypingIndicators[0].IsTyping)

	// The newest signal replaces the old one even from another conversation.
	transport.typingFn(chatwire.TypingIndicator{ConversationID: 11, UserID: 2, Username: "bob", IsTyping: false})

	snap = store.Snapshot()
	require.Len(t, snap.TypingIndicators, 1)
	assert.Equal(t, uint(11), snap.TypingIndicators[0].ConversationID)
	assert.False(t, snap.TypingIndicators[0].IsTyping)

	// Indicators for distinct users coexist.
	transport.typingFn(chatwire.TypingIndicator{ConversationID: 10, UserID: 3, Username: "carol", IsTyping: true})
	assert.Len(t, store.Snapshot().TypingIndicators, 2)
}

func TestSendMessageWithoutSelectionFailsFast(t *testing.T) {
	store, _, transport := newTestStore()
	seed(store, chatwire.User{ID: 1}, nil, 0)

	err := store.SendMessage("hello")
	assert.ErrorIs(t, err, ErrNoActiveSelection)
	assert.NotEmpty(t, store.Snapshot().Error)
	transport.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}

func TestSendMessageWithoutCounterpartFailsFast(t *testing.T) {
	store, _, transport := newTestStore()
	selfOnly := chatwire.Conversation{
		ID:           10,
		Participants: []chatwire.Participant{{UserID: 1, User: chatwire.User{ID: 1}}},
		UpdatedAt:    day(1),
	}
	seed(store, chatwire.User{ID: 1}, []chatwire.Conversation{selfOnly}, 10)

	err := store.SendMessage("hello")
	assert.ErrorIs(t, err, ErrNoRecipient)
	transport.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}

func TestSendMessageResolvesCounterpartAndDoesNotInsertLocally(t *testing.T) {
	store, _, transport := newTestStore()
	seed(store, chatwire.User{ID: 1}, []chatwire.Conversation{privateConversation(10, 1, 2, day(1))}, 10)

	transport.On("Send", uint(2), "hello", "text").Return(nil)

	require.NoError(t, store.SendMessage("hello"))
	transport.AssertExpectations(t)

	// The echo arrives via the socket later; nothing is inserted here.
	assert.Empty(t, store.ConversationMessages(10))
}

func TestSendTypingIndicatorSilentOnResolutionFailure(t *testing.T) {
	store, _, transport := newTestStore()
	seed(store, chatwire.User{ID: 1}, nil, 0)

	store.SendTypingIndicator(true)

	assert.Empty(t, store.Snapshot().Error)
	transport.AssertNotCalled(t, "SendTyping", mock.Anything, mock.Anything)
}

func TestDeleteMessageRemovesLocallyAfterSuccess(t *testing.T) {
	store, api, transport := newTestStore()
	seed(store, chatwire.User{ID: 1}, []chatwire.Conversation{privateConversation(10, 1, 2, day(1))}, 10)

	for _, id := range []uint{41, 42, 43} {
		transport.messageFn(chatwire.Message{ID: id, ConversationID: 10, CreatedAt: day(int(id - 40))})
	}

	api.On("DeleteMessage", mock.Anything, uint(42)).Return(nil)

	require.NoError(t, store.DeleteMessage(context.Background(), 42))

	list := store.ConversationMessages(10)
	require.Len(t, list, 2)
	assert.Equal(t, uint(41), list[0].ID)
	assert.Equal(t, uint(43), list[1].ID)
}

func TestDeleteMessageFailureLeavesStateUntouched(t *testing.T) {
	store, api, transport := newTestStore()
	seed(store, chatwire.User{ID: 1}, []chatwire.Conversation{privateConversation(10, 1, 2, day(1))}, 10)

	transport.messageFn(chatwire.Message{ID: 41, ConversationID: 10, CreatedAt: day(1)})

	api.On("DeleteMessage", mock.Anything, uint(41)).Return(errors.New("403 forbidden"))

	require.Error(t, store.DeleteMessage(context.Background(), 41))
	assert.Len(t, store.ConversationMessages(10), 1)
	assert.NotEmpty(t, store.Snapshot().Error)
}

func TestDeleteMessageRequiresSelection(t *testing.T) {
	store, api, _ := newTestStore()
	seed(store, chatwire.User{ID: 1}, nil, 0)

	err := store.DeleteMessage(context.Background(), 41)
	assert.ErrorIs(t, err, ErrNoActiveSelection)
	api.AssertNotCalled(t, "DeleteMessage", mock.Anything, mock.Anything)
}

func TestConnectionStatusMirrorsTransport(t *testing.T) {
	store, _, transport := newTestStore()

	transport.connectFn()
	assert.True(t, store.Snapshot().Connected)

	transport.disconnectFn()
	assert.False(t, store.Snapshot().Connected)

	transport.errorFn("chat connection lost, gave up after 10 attempts")
	snap := store.Snapshot()
	assert.Equal(t, "chat connection lost, gave up after 10 attempts", snap.Error)

	store.ClearError()
	assert.Empty(t, store.Snapshot().Error)
}
