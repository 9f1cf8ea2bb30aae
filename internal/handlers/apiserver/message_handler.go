package apiserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"socialchat/internal/chatwire"
	"socialchat/internal/middleware"
	"socialchat/internal/services"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// MessageHandler bundles conversation and message HTTP handlers.
type MessageHandler struct {
	convoService   services.ConversationService
	messageService services.MessageService
}

// NewMessageHandler creates a new MessageHandler.
func NewMessageHandler(convoService services.ConversationService, messageService services.MessageService) *MessageHandler {
	return &MessageHandler{convoService: convoService, messageService: messageService}
}

// pageParams reads ?page=&size= with defaults and a size cap.
func pageParams(r *http.Request) (int, int) {
	page, size := 0, defaultPageSize
	if v := r.URL.Query().Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			page = n
		}
	}
	if v := r.URL.Query().Get("size"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			size = n
		}
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return page, size
}

// ListConversations returns one page of the caller's conversations,
// denormalized and ordered by recency.
// GET /api/messages/conversations
func (h *MessageHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	page, size := pageParams(r)
	result, err := h.convoService.ListUserConversations(r.Context(), userID, page, size)
	if err != nil {
		writeJSONError(w, "failed to list conversations", http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, http.StatusOK, result)
}

// CreateConversation opens (or returns) a conversation with the given
// participants and optionally sends an initial message.
// POST /api/messages/conversations
func (h *MessageHandler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	var req chatwire.CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if len(req.ParticipantIDs) != 1 {
		writeJSONError(w, "exactly one participant is required", http.StatusBadRequest)
		return
	}

	conversation, _, err := h.convoService.GetOrCreatePrivateConversation(r.Context(), userID, req.ParticipantIDs[0])
	if err != nil {
		writeJSONError(w, "failed to create conversation", http.StatusInternalServerError)
		return
	}

	if req.InitialMessage != "" {
		_, err := h.messageService.SendMessageREST(r.Context(), userID, chatwire.SendMessageRequest{
			ConversationID: conversation.ID,
			Content:        req.InitialMessage,
		})
		if err != nil {
			writeJSONError(w, "conversation created but initial message failed", http.StatusInternalServerError)
			return
		}
	}

	writeJSONResponse(w, http.StatusCreated, conversation)
}

// GetConversationMessages returns one page of a conversation's history.
// GET /api/messages/conversations/{id}?page=&size=
func (h *MessageHandler) GetConversationMessages(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	conversationID, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 32)
	if err != nil {
		writeJSONError(w, "invalid conversation id", http.StatusBadRequest)
		return
	}

	if err := h.convoService.EnsureParticipant(r.Context(), uint(conversationID), userID); err != nil {
		if errors.Is(err, services.ErrNotParticipant) {
			writeJSONError(w, err.Error(), http.StatusForbidden)
		} else {
			writeJSONError(w, "failed to verify membership", http.StatusInternalServerError)
		}
		return
	}

	page, size := pageParams(r)
	result, err := h.messageService.GetMessagesPage(r.Context(), uint(conversationID), page, size)
	if err != nil {
		writeJSONError(w, "failed to load messages", http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, http.StatusOK, result)
}

// SendMessage is the REST fallback for sending a message.
// POST /api/messages
func (h *MessageHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	var req chatwire.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if req.ConversationID == 0 || req.Content == "" {
		writeJSONError(w, "conversationId and content are required", http.StatusBadRequest)
		return
	}

	message, err := h.messageService.SendMessageREST(r.Context(), userID, req)
	if err != nil {
		if errors.Is(err, services.ErrNotParticipant) {
			writeJSONError(w, err.Error(), http.StatusForbidden)
		} else {
			writeJSONError(w, "failed to send message", http.StatusInternalServerError)
		}
		return
	}
	writeJSONResponse(w, http.StatusCreated, message)
}

// DeleteMessage removes one of the caller's messages.
// DELETE /api/messages/{id}
func (h *MessageHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	messageID, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 32)
	if err != nil {
		writeJSONError(w, "invalid message id", http.StatusBadRequest)
		return
	}

	if err := h.messageService.DeleteMessage(r.Context(), userID, uint(messageID)); err != nil {
		switch {
		case errors.Is(err, services.ErrMessageNotFound):
			writeJSONError(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, services.ErrNotMessageSender):
			writeJSONError(w, err.Error(), http.StatusForbidden)
		default:
			writeJSONError(w, "failed to delete message", http.StatusInternalServerError)
		}
		return
	}
	writeJSONResponse(w, http.StatusOK, nil)
}
