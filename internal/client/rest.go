package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"socialchat/internal/chatwire"
)

// API is the REST surface the sync store consumes. It is an interface so
// tests can substitute a fake without a running server.
type API interface {
	GetCurrentUser(ctx context.Context) (*chatwire.User, error)
	GetConversations(ctx context.Context, page, size int) (*chatwire.Page[chatwire.ConversationSummary], error)
	GetConversationMessages(ctx context.Context, conversationID uint, page, size int) (*chatwire.Page[chatwire.Message], error)
	SendMessage(ctx context.Context, req chatwire.SendMessageRequest) (*chatwire.Message, error)
	DeleteMessage(ctx context.Context, messageID uint) error
	CreateConversation(ctx context.Context, req chatwire.CreateConversationRequest) (*chatwire.Conversation, error)
}

// RESTClient talks to the API server. Every call carries the bearer token
// and expects the uniform {success, data, error} envelope; responses that do
// not match the envelope are surfaced as schema errors rather than silently
// tolerated.
type RESTClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewRESTClient creates a REST client for the given base URL and token.
func NewRESTClient(baseURL, token string) *RESTClient {
	return &RESTClient{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// doRequest performs one HTTP round trip and decodes the envelope. The
// returned payload is the envelope's raw data field.
func (c *RESTClient) doRequest(ctx context.Context, method, path string, body interface{}) (json.RawMessage, error) {
	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	env, err := chatwire.DecodeEnvelope(raw)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if !env.Success {
		return nil, fmt.Errorf("%s %s: %s", method, path, env.Error)
	}
	return env.Data, nil
}

// GetCurrentUser fetches the authenticated identity.
func (c *RESTClient) GetCurrentUser(ctx context.Context) (*chatwire.User, error) {
	data, err := c.doRequest(ctx, http.MethodGet, "/api/users/me", nil)
	if err != nil {
		return nil, err
	}
	var user chatwire.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("decoding user: %w", err)
	}
	return &user, nil
}

// GetConversations fetches one page of the caller's conversations.
func (c *RESTClient) GetConversations(ctx context.Context, page, size int) (*chatwire.Page[chatwire.ConversationSummary], error) {
	path := fmt.Sprintf("/api/messages/conversations?page=%d&size=%d", page, size)
	data, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	var result chatwire.Page[chatwire.ConversationSummary]
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decoding conversations page: %w", err)
	}
	return &result, nil
}

// GetConversationMessages fetches one page of a conversation's history.
func (c *RESTClient) GetConversationMessages(ctx context.Context, conversationID uint, page, size int) (*chatwire.Page[chatwire.Message], error) {
	path := fmt.Sprintf("/api/messages/conversations/%d?page=%d&size=%d", conversationID, page, size)
	data, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	var result chatwire.Page[chatwire.Message]
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decoding messages page: %w", err)
	}
	return &result, nil
}

// SendMessage sends a message over REST, the fallback path when the socket
// is unavailable.
func (c *RESTClient) SendMessage(ctx context.Context, req chatwire.SendMessageRequest) (*chatwire.Message, error) {
	data, err := c.doRequest(ctx, http.MethodPost, "/api/messages", req)
	if err != nil {
		return nil, err
	}
	var message chatwire.Message
	if err := json.Unmarshal(data, &message); err != nil {
		return nil, fmt.Errorf("decoding message: %w", err)
	}
	return &message, nil
}

// DeleteMessage deletes one of the caller's messages.
func (c *RESTClient) DeleteMessage(ctx context.Context, messageID uint) error {
	_, err := c.doRequest(ctx, http.MethodDelete, fmt.Sprintf("/api/messages/%d", messageID), nil)
	return err
}

// CreateConversation opens a conversation with the given participants.
func (c *RESTClient) CreateConversation(ctx context.Context, req chatwire.CreateConversationRequest) (*chatwire.Conversation, error) {
	data, err := c.doRequest(ctx, http.MethodPost, "/api/messages/conversations", req)
	if err != nil {
		return nil, err
	}
	var conversation chatwire.Conversation
	if err := json.Unmarshal(data, &conversation); err != nil {
		return nil, fmt.Errorf("decoding conversation: %w", err)
	}
	return &conversation, nil
}
