package services

import (
	"socialchat/internal/chatwire"
	"socialchat/internal/models"
)

// toWireUser converts a stored user to its public wire shape.
func toWireUser(u *models.User) *chatwire.User {
	if u == nil {
		return nil
	}
	return &chatwire.User{
		ID:        u.ID,
		Username:  u.Username,
		FullName:  u.FullName,
		AvatarURL: u.AvatarURL,
	}
}

// toWireMessage converts a stored message to its wire shape. The sender is
// included only when it was preloaded.
func toWireMessage(m *models.Message) *chatwire.Message {
	if m == nil {
		return nil
	}
	msg := &chatwire.Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Content:        m.Content,
		MessageType:    string(m.Type),
		CreatedAt:      m.CreatedAt,
	}
	if m.Sender.ID != 0 {
		msg.Sender = toWireUser(&m.Sender)
	}
	return msg
}
