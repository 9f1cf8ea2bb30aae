package chatserver

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"socialchat/internal/auth"
	"socialchat/internal/chatwire"
	"socialchat/internal/config"
	"socialchat/internal/services"
	ws "socialchat/internal/websocket"
)

// WebSocketHandler authenticates and serves incoming WebSocket requests.
type WebSocketHandler struct {
	hub            *ws.Hub
	messageService services.MessageService
	convoService   services.ConversationService
	blacklist      auth.TokenBlacklist
	cfg            config.Config
}

// NewWebSocketHandler creates a new WebSocketHandler.
func NewWebSocketHandler(hub *ws.Hub, msgService services.MessageService, convoService services.ConversationService, blacklist auth.TokenBlacklist, cfg config.Config) *WebSocketHandler {
	return &WebSocketHandler{
		hub:            hub,
		messageService: msgService,
		convoService:   convoService,
		blacklist:      blacklist,
		cfg:            cfg,
	}
}

// ServeWS upgrades an authenticated HTTP request to a WebSocket connection.
// The bearer token is carried in the "token" query parameter since browser
// WebSocket clients cannot set headers. Anonymous connections are rejected.
func (h *WebSocketHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing authentication token", http.StatusUnauthorized)
		return
	}

	claims, err := auth.ValidateToken(r.Context(), token, h.cfg.Auth.JWTSecretKey, h.blacklist)
	if err != nil {
		log.Printf("websocket connection rejected: %v", err)
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	ws.ServeWsPerConnection(h.hub, h.handleFrame, claims.UserID, claims.Username, w, r, h.cfg.WebSocket)
}

// handleFrame routes one inbound frame. Chat messages go through the Kafka
// pipeline so they are persisted before any delivery; typing signals are
// ephemeral and go straight to the recipient's connection.
func (h *WebSocketHandler) handleFrame(ctx context.Context, senderID uint, senderUsername string, frame chatwire.ClientFrame) error {
	switch frame.Event {
	case chatwire.EventMessage:
		if frame.RecipientID == 0 {
			return fmt.Errorf("message frame missing recipientId")
		}
		return h.messageService.Ingest(ctx, chatwire.RawMessageInput{
			SenderID:       senderID,
			SenderUsername: senderUsername,
			RecipientID:    frame.RecipientID,
			Content:        frame.Content,
			MessageType:    frame.MessageType,
			Timestamp:      time.Now(),
		})

	case chatwire.EventTyping:
		if frame.RecipientID == 0 {
			return fmt.Errorf("typing frame missing recipientId")
		}
		conversation, _, err := h.convoService.GetOrCreatePrivateConversation(ctx, senderID, frame.RecipientID)
		if err != nil {
			return fmt.Errorf("resolving conversation for typing signal: %w", err)
		}
		h.hub.Deliver(&chatwire.Delivery{
			TargetUserID: frame.RecipientID,
			Frame: chatwire.ServerFrame{
				Event: chatwire.EventTyping,
				Typing: &chatwire.TypingIndicator{
					ConversationID: conversation.ID,
					UserID:         senderID,
					Username:       senderUsername,
					IsTyping:       frame.IsTyping,
				},
			},
		})
		return nil

	default:
		return fmt.Errorf("unknown frame event %q", frame.Event)
	}
}
