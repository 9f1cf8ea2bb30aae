package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRESTClientSendsBearerToken(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"success":true,"data":{"id":1,"username":"alice","fullName":"Alice"}}`))
	}))
	defer server.Close()

	c := NewRESTClient(server.URL, "tok-123")
	user, err := c.GetCurrentUser(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-123", gotAuth)
	assert.Equal(t, "alice", user.Username)
}

func TestRESTClientDecodesPagedConversations(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/messages/conversations", r.URL.Path)
		assert.Equal(t, "0", r.URL.Query().Get("page"))
		assert.Equal(t, "20", r.URL.Query().Get("size"))
		w.Write([]byte(`{"success":true,"data":{
			"content":[{"id":10,"otherUserId":2,"otherUsername":"bob","updatedAt":"2024-01-02T12:00:00Z"}],
			"totalElements":1,"totalPages":1,"number":0,"size":20}}`))
	}))
	defer server.Close()

	c := NewRESTClient(server.URL, "tok")
	page, err := c.GetConversations(context.Background(), 0, 20)

	require.NoError(t, err)
	require.Len(t, page.Content, 1)
	assert.Equal(t, uint(10), page.Content[0].ID)
	assert.Equal(t, "bob", page.Content[0].OtherUsername)
	assert.Equal(t, 1, page.TotalElements)
}

func TestRESTClientRejectsNonEnvelopeResponses(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"raw array", `[{"id":1}]`},
		{"missing success", `{"data":{"id":1}}`},
		{"non-boolean success", `{"success":"yes","data":{}}`},
		{"failure without error", `{"success":false}`},
		{"not json", `<html>502 Bad Gateway</html>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c := NewRESTClient(server.URL, "tok")
			_, err := c.GetCurrentUser(context.Background())
			assert.Error(t, err)
		})
	}
}

func TestRESTClientSurfacesEnvelopeError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"success":false,"error":"not a participant of this conversation"}`))
	}))
	defer server.Close()

	c := NewRESTClient(server.URL, "tok")
	_, err := c.GetConversationMessages(context.Background(), 10, 0, 20)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a participant")
}

func TestRESTClientDeleteMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/messages/42", r.URL.Path)
		w.Write([]byte(`{"success":true,"data":{"message":"deleted"}}`))
	}))
	defer server.Close()

	c := NewRESTClient(server.URL, "tok")
	assert.NoError(t, c.DeleteMessage(context.Background(), 42))
}
