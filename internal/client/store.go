package client

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"socialchat/internal/chatwire"
)

// Store state errors surfaced before any network call is made.
var (
	ErrNoCurrentUser     = errors.New("current user not loaded")
	ErrNoActiveSelection = errors.New("no conversation selected")
	ErrConversationGone  = errors.New("active conversation not found")
	ErrNoRecipient       = errors.New("no recipient in active conversation")
)

// Store owns the authoritative in-memory view of conversations, per-
// conversation message lists, typing indicators and connection status. It
// reconciles REST snapshots with streamed socket events and exposes action
// methods to the caller.
//
// All state lives behind one mutex. Every public method and every transport
// callback is a run-to-completion critical section, so read-modify-write
// races over the message lists cannot occur. Network calls happen outside
// the lock; their results are validated against a fetch sequence number
// before being applied, so a stale history response for a since-deselected
// conversation is discarded instead of overwriting the newer selection.
type Store struct {
	api       API
	transport Transport
	pageSize  int

	mu                   sync.Mutex
	currentUser          *chatwire.User
	conversations        []chatwire.Conversation
	messages             map[uint][]chatwire.Message
	activeConversationID uint
	typingIndicators     []chatwire.TypingIndicator
	connected            bool
	loading              bool
	lastError            string
	fetchSeq             uint64
}

// Snapshot is a point-in-time copy of the store's observable state.
type Snapshot struct {
	CurrentUser          *chatwire.User
	Conversations        []chatwire.Conversation
	ActiveConversationID uint
	Messages             []chatwire.Message
	TypingIndicators     []chatwire.TypingIndicator
	Connected            bool
	Loading              bool
	Error                string
}

// NewStore creates a sync store over the given REST API and socket
// transport and registers the transport callbacks.
func NewStore(api API, transport Transport, pageSize int) *Store {
	s := &Store{
		api:       api,
		transport: transport,
		pageSize:  pageSize,
		messages:  make(map[uint][]chatwire.Message),
	}
	transport.OnConnect(s.handleConnect)
	transport.OnDisconnect(s.handleDisconnect)
	transport.OnError(s.handleTransportError)
	transport.OnMessage(s.handleInboundMessage)
	transport.OnTyping(s.handleInboundTyping)
	return s
}

// LoadCurrentUser fetches the authenticated identity. It runs at most once;
// after a success further calls are no-ops. On failure currentUser stays nil
// and every dependent operation stays inert until the caller retries.
func (s *Store) LoadCurrentUser(ctx context.Context) error {
	s.mu.Lock()
	if s.currentUser != nil {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	user, err := s.api.GetCurrentUser(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.lastError = fmt.Sprintf("loading current user: %v", err)
		return err
	}
	s.currentUser = user
	return nil
}

// Connect opens the socket transport. Connection status changes arrive
// through the transport callbacks.
func (s *Store) Connect(ctx context.Context) error {
	return s.transport.Connect(ctx)
}

// Close shuts the transport down.
func (s *Store) Close() error {
	return s.transport.Close()
}

// LoadConversations fetches the first page of the caller's conversations and
// installs it ordered by recency. The denormalized otherUser* fields of each
// record are expanded into canonical participants. Re-running with identical
// server data yields an identical list. If the previously active conversation
// is absent from the new list, selection falls back to the first conversation
// or to none.
func (s *Store) LoadConversations(ctx context.Context) error {
	s.mu.Lock()
	if s.currentUser == nil {
		s.lastError = ErrNoCurrentUser.Error()
		s.mu.Unlock()
		return ErrNoCurrentUser
	}
	me := *s.currentUser
	s.loading = true
	s.mu.Unlock()

	page, err := s.api.GetConversations(ctx, 0, s.pageSize)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		s.lastError = fmt.Sprintf("loading conversations: %v", err)
		return err
	}

	conversations := make([]chatwire.Conversation, 0, len(page.Content))
	for _, summary := range page.Content {
		conversations = append(conversations, expandSummary(summary, me))
	}
	sortConversations(conversations)
	s.conversations = conversations

	if s.activeConversationID != 0 && s.findConversation(s.activeConversationID) == nil {
		if len(s.conversations) > 0 {
			s.activeConversationID = s.conversations[0].ID
		} else {
			s.activeConversationID = 0
		}
	}
	return nil
}

// expandSummary turns one denormalized conversation record into the
// canonical shape: the current user plus, when the record names one, exactly
// one counterpart participant. A record without a counterpart id yields a
// self-only conversation, which is accepted.
func expandSummary(summary chatwire.ConversationSummary, me chatwire.User) chatwire.Conversation {
	participants := []chatwire.Participant{{UserID: me.ID, User: me}}
	if summary.OtherUserID != 0 && summary.OtherUserID != me.ID {
		fullName := summary.OtherUsername
		if fullName == "" {
			fullName = "User"
		}
		participants = append(participants, chatwire.Participant{
			UserID: summary.OtherUserID,
			User: chatwire.User{
				ID:        summary.OtherUserID,
				Username:  summary.OtherUsername,
				FullName:  fullName,
				AvatarURL: summary.OtherUserAvatarURL,
			},
		})
	}
	return chatwire.Conversation{
		ID:           summary.ID,
		Participants: participants,
		LastMessage:  summary.LastMessage,
		UnreadCount:  summary.UnreadCount,
		CreatedAt:    summary.UpdatedAt,
		UpdatedAt:    summary.UpdatedAt,
	}
}

// SetActiveConversation selects a conversation and fetches one page of its
// history, replacing (not merging) the stored list sorted ascending by
// createdAt. The selection is applied optimistically before the fetch and is
// not reverted on failure. Each selection advances a sequence number; a
// response arriving after a newer selection is discarded.
func (s *Store) SetActiveConversation(ctx context.Context, conversationID uint) error {
	s.mu.Lock()
	s.activeConversationID = conversationID
	s.loading = true
	s.fetchSeq++
	seq := s.fetchSeq
	s.mu.Unlock()

	page, err := s.api.GetConversationMessages(ctx, conversationID, 0, s.pageSize)

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.fetchSeq {
		// A newer selection superseded this fetch.
		return nil
	}
	s.loading = false
	if err != nil {
		s.lastError = fmt.Sprintf("loading messages: %v", err)
		return err
	}

	history := make([]chatwire.Message, len(page.Content))
	copy(history, page.Content)
	sortMessages(history)
	s.messages[conversationID] = history
	return nil
}

// SendMessage resolves the counterpart of the active conversation and hands
// the content to the transport. It never inserts the message locally; the
// canonical record arrives back through live ingestion.
func (s *Store) SendMessage(content string) error {
	s.mu.Lock()
	recipientID, err := s.resolveRecipientLocked()
	if err != nil {
		s.lastError = err.Error()
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	if err := s.transport.Send(recipientID, content, "text"); err != nil {
		s.mu.Lock()
		s.lastError = fmt.Sprintf("sending message: %v", err)
		s.mu.Unlock()
		return err
	}
	return nil
}

// SendTypingIndicator forwards a start/stop typing signal to the counterpart
// of the active conversation. Resolution or transport failures are silent;
// typing signals are best-effort.
func (s *Store) SendTypingIndicator(isTyping bool) {
	s.mu.Lock()
	recipientID, err := s.resolveRecipientLocked()
	s.mu.Unlock()
	if err != nil {
		return
	}
	if err := s.transport.SendTyping(recipientID, isTyping); err != nil {
		log.Printf("sending typing indicator: %v", err)
	}
}

// resolveRecipientLocked returns the id of the active conversation's
// participant other than the current user. Caller holds the mutex.
func (s *Store) resolveRecipientLocked() (uint, error) {
	if s.activeConversationID == 0 {
		return 0, ErrNoActiveSelection
	}
	if s.currentUser == nil {
		return 0, ErrNoCurrentUser
	}
	conversation := s.findConversation(s.activeConversationID)
	if conversation == nil {
		return 0, ErrConversationGone
	}
	for _, p := range conversation.Participants {
		if p.UserID != s.currentUser.ID {
			return p.UserID, nil
		}
	}
	return 0, ErrNoRecipient
}

// DeleteMessage deletes a message over REST and, on success, removes it from
// the active conversation's local list. lastMessage is not recomputed. A
// failed delete leaves state untouched.
func (s *Store) DeleteMessage(ctx context.Context, messageID uint) error {
	s.mu.Lock()
	conversationID := s.activeConversationID
	s.mu.Unlock()
	if conversationID == 0 {
		s.mu.Lock()
		s.lastError = ErrNoActiveSelection.Error()
		s.mu.Unlock()
		return ErrNoActiveSelection
	}

	if err := s.api.DeleteMessage(ctx, messageID); err != nil {
		s.mu.Lock()
		s.lastError = fmt.Sprintf("deleting message: %v", err)
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.messages[conversationID]
	kept := list[:0]
	for _, m := range list {
		if m.ID != messageID {
			kept = append(kept, m)
		}
	}
	s.messages[conversationID] = kept
	return nil
}

// handleInboundMessage is the reconciliation path for socket-delivered
// messages: drop events without a conversation id, drop duplicates by id,
// otherwise append and re-sort the full list, then advance the owning
// conversation's lastMessage and updatedAt and re-sort the conversation
// list by recency.
func (s *Store) handleInboundMessage(msg chatwire.Message) {
	if msg.ConversationID == 0 {
		log.Printf("dropping message %d without conversation id", msg.ID)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.messages[msg.ConversationID]
	for _, existing := range list {
		if existing.ID == msg.ID {
			return
		}
	}
	list = append(list, msg)
	sortMessages(list)
	s.messages[msg.ConversationID] = list

	if conversation := s.findConversation(msg.ConversationID); conversation != nil {
		stored := msg
		conversation.LastMessage = &stored
		conversation.UpdatedAt = msg.CreatedAt
		sortConversations(s.conversations)
	}
}

// handleInboundTyping applies last-writer-wins per user: the newest
// indicator for a user replaces any prior one regardless of conversation.
func (s *Store) handleInboundTyping(ind chatwire.TypingIndicator) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.typingIndicators[:0]
	for _, existing := range s.typingIndicators {
		if existing.UserID != ind.UserID {
			kept = append(kept, existing)
		}
	}
	s.typingIndicators = append(kept, ind)
}

func (s *Store) handleConnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = true
}

func (s *Store) handleDisconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
}

func (s *Store) handleTransportError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = msg
}

// ClearError dismisses the most recent error.
func (s *Store) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = ""
}

// Snapshot returns a copy of the observable state. Messages holds the active
// conversation's list.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ActiveConversationID: s.activeConversationID,
		Connected:            s.connected,
		Loading:              s.loading,
		Error:                s.lastError,
	}
	if s.currentUser != nil {
		user := *s.currentUser
		snap.CurrentUser = &user
	}
	snap.Conversations = append([]chatwire.Conversation(nil), s.conversations...)
	snap.TypingIndicators = append([]chatwire.TypingIndicator(nil), s.typingIndicators...)
	if s.activeConversationID != 0 {
		snap.Messages = append([]chatwire.Message(nil), s.messages[s.activeConversationID]...)
	}
	return snap
}

// ConversationMessages returns a copy of one conversation's message list.
func (s *Store) ConversationMessages(conversationID uint) []chatwire.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]chatwire.Message(nil), s.messages[conversationID]...)
}

// findConversation returns a pointer into s.conversations or nil. Caller
// holds the mutex.
func (s *Store) findConversation(id uint) *chatwire.Conversation {
	for i := range s.conversations {
		if s.conversations[i].ID == id {
			return &s.conversations[i]
		}
	}
	return nil
}

func sortMessages(list []chatwire.Message) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
}

func sortConversations(list []chatwire.Conversation) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].UpdatedAt.After(list[j].UpdatedAt)
	})
}
