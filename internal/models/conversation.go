package models

import "time"

// ConversationType defines the kind of a conversation.
type ConversationType string

const (
	PrivateConversation ConversationType = "private" // 1:1 chat
	GroupConversation   ConversationType = "group"   // unimplemented extension point
)

// Conversation represents a chat between participants. Only private (1:1)
// conversations are exercised today; the participant table already admits
// more than two members.
type Conversation struct {
	BaseModel
	Type ConversationType `gorm:"type:varchar(20);not null;index" json:"type"`

	// LastMessageID lets list endpoints fetch the preview message cheaply.
	// Nullable because a fresh conversation has no messages yet.
	LastMessageID *uint `gorm:"index" json:"lastMessageId,omitempty"`

	Users        []*User                   `gorm:"many2many:conversation_participants;" json:"users,omitempty"`
	Messages     []Message                 `gorm:"foreignKey:ConversationID" json:"messages,omitempty"`
	Participants []ConversationParticipant `gorm:"foreignKey:ConversationID" json:"participants,omitempty"`
}

// TableName specifies the table name for the Conversation model.
func (Conversation) TableName() string {
	return "conversations"
}

// ConversationParticipant links a user to a conversation. The redundant
// UserID column allows membership filtering without dereferencing User.
type ConversationParticipant struct {
	BaseModel
	ConversationID uint       `gorm:"primaryKey;autoIncrement:false" json:"conversationId"`
	UserID         uint       `gorm:"primaryKey;autoIncrement:false" json:"userId"`
	JoinedAt       time.Time  `json:"joinedAt"`
	LastReadAt     *time.Time `json:"lastReadAt,omitempty"`

	User         User         `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Conversation Conversation `gorm:"foreignKey:ConversationID" json:"conversation,omitempty"`
}

// TableName specifies the table name for the ConversationParticipant model.
func (ConversationParticipant) TableName() string {
	return "conversation_participants"
}
