package chatwire

import "time"

// Socket frame event discriminators.
const (
	EventMessage = "message"
	EventTyping  = "typing"
	EventError   = "error"
)

// ClientFrame is what a connected client sends over the socket: either a
// chat message or a typing signal, both addressed by recipient user ID.
type ClientFrame struct {
	Event       string `json:"event"`
	RecipientID uint   `json:"recipientId"`
	Content     string `json:"content,omitempty"`
	MessageType string `json:"messageType,omitempty"`
	IsTyping    bool   `json:"isTyping,omitempty"`
}

// ServerFrame is what the server pushes to a connected client.
type ServerFrame struct {
	Event   string           `json:"event"`
	Message *Message         `json:"message,omitempty"`
	Typing  *TypingIndicator `json:"typing,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// RawMessageInput is the normalized form of an inbound chat frame, produced
// by the socket handler and carried through Kafka to the message pipeline.
// The server fills SenderID and SenderUsername from the authenticated
// connection; clients never choose their own sender.
type RawMessageInput struct {
	SenderID       uint      `json:"senderId"`
	SenderUsername string    `json:"senderUsername"`
	RecipientID    uint      `json:"recipientId"`
	Content        string    `json:"content"`
	MessageType    string    `json:"messageType"`
	Timestamp      time.Time `json:"timestamp"`
}

// Delivery wraps a ServerFrame with its target user, for transport between
// the message pipeline and whichever hub instance holds the connection.
type Delivery struct {
	TargetUserID uint        `json:"targetUserId"`
	Frame        ServerFrame `json:"frame"`
}
