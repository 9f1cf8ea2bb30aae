package models

// MessageType defines the content kind of a stored message.
type MessageType string

const (
	TextMessageType  MessageType = "text"
	ImageMessageType MessageType = "image"
	VideoMessageType MessageType = "video"
	FileMessageType  MessageType = "file"
)

// Message represents a chat message stored in the database. The identity key
// is the server-assigned numeric ID; BaseModel.CreatedAt drives client-side
// ordering.
type Message struct {
	BaseModel
	ConversationID uint        `gorm:"index;not null" json:"conversationId"`
	SenderID       uint        `gorm:"index;not null" json:"senderId"`
	Type           MessageType `gorm:"type:varchar(20);not null;default:'text'" json:"messageType"`
	Content        string      `gorm:"type:text" json:"content"`

	Sender       User         `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	Conversation Conversation `gorm:"foreignKey:ConversationID" json:"conversation,omitempty"`
}

// TableName specifies the table name for the Message model.
func (Message) TableName() string {
	return "messages"
}
