package chatwire

import "time"

// User is the public identity a client works with. Immutable once fetched;
// the identity key is ID.
type User struct {
	ID        uint   `json:"id"`
	Username  string `json:"username"`
	FullName  string `json:"fullName"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// Participant binds a user to a conversation. UserID is kept redundantly so
// membership checks never dereference User.
type Participant struct {
	UserID uint `json:"userId"`
	User   User `json:"user"`
}

// Message is a chat message as delivered to clients, over REST or the socket.
type Message struct {
	ID             uint      `json:"id"`
	ConversationID uint      `json:"conversationId"`
	SenderID       uint      `json:"senderId"`
	Sender         *User     `json:"sender,omitempty"`
	Content        string    `json:"content"`
	MessageType    string    `json:"messageType"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Conversation is the canonical client-side conversation shape. Participants
// always include the current user plus, in the 1:1 case, exactly one
// counterpart.
type Conversation struct {
	ID           uint          `json:"id"`
	Participants []Participant `json:"participants"`
	LastMessage  *Message      `json:"lastMessage"`
	UnreadCount  int           `json:"unreadCount,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

// ConversationSummary is the denormalized record the conversations list
// endpoint returns: the counterpart is flattened into otherUser* fields and
// reconstructed into Participants by the client.
type ConversationSummary struct {
	ID                 uint      `json:"id"`
	OtherUserID        uint      `json:"otherUserId,omitempty"`
	OtherUsername      string    `json:"otherUsername,omitempty"`
	OtherUserAvatarURL string    `json:"otherUserAvatarUrl,omitempty"`
	LastMessage        *Message  `json:"lastMessage"`
	UnreadCount        int       `json:"unreadCount,omitempty"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// TypingIndicator reports that a user started or stopped typing. Ephemeral;
// keyed by UserID with last-writer-wins semantics on the client.
type TypingIndicator struct {
	ConversationID uint   `json:"conversationId"`
	UserID         uint   `json:"userId"`
	Username       string `json:"username"`
	IsTyping       bool   `json:"isTyping"`
}

// SendMessageRequest is the REST fallback body for sending a message.
type SendMessageRequest struct {
	ConversationID uint   `json:"conversationId"`
	Content        string `json:"content"`
	MessageType    string `json:"messageType,omitempty"`
}

// CreateConversationRequest opens a conversation with the given participants.
type CreateConversationRequest struct {
	ParticipantIDs []uint `json:"participantIds"`
	InitialMessage string `json:"initialMessage,omitempty"`
}
