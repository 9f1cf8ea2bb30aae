package client

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"socialchat/internal/chatwire"
)

// Transport is the live-event channel the sync store consumes. Callbacks are
// registered before Connect and are invoked from the transport's read loop.
type Transport interface {
	Connect(ctx context.Context) error
	Close() error
	Send(recipientID uint, content, messageType string) error
	SendTyping(recipientID uint, isTyping bool) error
	OnConnect(fn func())
	OnDisconnect(fn func())
	OnError(fn func(msg string))
	OnMessage(fn func(msg chatwire.Message))
	OnTyping(fn func(ind chatwire.TypingIndicator))
}

// ReconnectPolicy controls how the transport retries a dropped connection:
// exponential backoff from Base doubling per attempt, capped at Max, with
// jitter in [delay/2, delay), giving up after MaxTries attempts.
type ReconnectPolicy struct {
	Base     time.Duration
	Max      time.Duration
	MaxTries int

	// Rand supplies jitter. Nil means the global source.
	Rand *rand.Rand
}

// Delay returns the wait before reconnect attempt n (0-based).
func (p ReconnectPolicy) Delay(attempt int) time.Duration {
	delay := p.Base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= p.Max {
			delay = p.Max
			break
		}
	}
	if delay <= 0 {
		return 0
	}
	half := delay / 2
	var jitter time.Duration
	if p.Rand != nil {
		jitter = time.Duration(p.Rand.Int63n(int64(half) + 1))
	} else {
		jitter = time.Duration(rand.Int63n(int64(half) + 1))
	}
	return half + jitter
}

// WebSocketTransport connects to the chat server over gorilla/websocket,
// authenticating with the token as a query parameter. A dropped connection is
// retried per the ReconnectPolicy; exhausting the retries reports a terminal
// error through OnError.
type WebSocketTransport struct {
	wsURL  string
	token  string
	policy ReconnectPolicy

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool

	onConnect    func()
	onDisconnect func()
	onError      func(string)
	onMessage    func(chatwire.Message)
	onTyping     func(chatwire.TypingIndicator)
}

// NewWebSocketTransport creates a transport for the given ws:// URL and token.
func NewWebSocketTransport(wsURL, token string, policy ReconnectPolicy) *WebSocketTransport {
	return &WebSocketTransport{wsURL: wsURL, token: token, policy: policy}
}

func (t *WebSocketTransport) OnConnect(fn func()) { t.onConnect = fn }

func (t *WebSocketTransport) OnDisconnect(fn func()) { t.onDisconnect = fn }

func (t *WebSocketTransport) OnError(fn func(string)) { t.onError = fn }

func (t *WebSocketTransport) OnMessage(fn func(chatwire.Message)) { t.onMessage = fn }

func (t *WebSocketTransport) OnTyping(fn func(chatwire.TypingIndicator)) { t.onTyping = fn }

// Connect dials the chat server and starts the read loop. It returns once the
// initial dial succeeds or fails; reconnects after that happen in the
// background.
func (t *WebSocketTransport) Connect(ctx context.Context) error {
	conn, err := t.dial(ctx)
	if err != nil {
		t.reportError(fmt.Sprintf("connecting to chat server: %v", err))
		return err
	}

	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()

	if t.onConnect != nil {
		t.onConnect()
	}
	go t.readLoop(ctx, conn)
	return nil
}

func (t *WebSocketTransport) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(t.wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid chat server url: %w", err)
	}
	q := u.Query()
	q.Set("token", t.token)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	return conn, err
}

// readLoop pumps frames from one connection until it drops, then hands off to
// the reconnect loop.
func (t *WebSocketTransport) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var frame chatwire.ServerFrame
		if err := conn.ReadJSON(&frame); err != nil {
			t.mu.Lock()
			closed := t.closed
			t.conn = nil
			t.mu.Unlock()

			if t.onDisconnect != nil {
				t.onDisconnect()
			}
			if closed || ctx.Err() != nil {
				return
			}
			t.reconnect(ctx)
			return
		}
		t.dispatch(frame)
	}
}

func (t *WebSocketTransport) dispatch(frame chatwire.ServerFrame) {
	switch frame.Event {
	case chatwire.EventMessage:
		if frame.Message != nil && t.onMessage != nil {
			t.onMessage(*frame.Message)
		}
	case chatwire.EventTyping:
		if frame.Typing != nil && t.onTyping != nil {
			t.onTyping(*frame.Typing)
		}
	case chatwire.EventError:
		t.reportError(frame.Error)
	default:
		log.Printf("ignoring unknown frame event %q", frame.Event)
	}
}

// reconnect retries the dial per the policy until it succeeds or the retry
// budget is spent.
func (t *WebSocketTransport) reconnect(ctx context.Context) {
	for attempt := 0; attempt < t.policy.MaxTries; attempt++ {
		select {
		case <-ctx.Done():
			return
		case <-time.After(t.policy.Delay(attempt)):
		}

		t.mu.Lock()
		if t.closed {
			t.mu.Unlock()
			return
		}
		t.mu.Unlock()

		conn, err := t.dial(ctx)
		if err != nil {
			log.Printf("reconnect attempt %d failed: %v", attempt+1, err)
			continue
		}

		t.mu.Lock()
		t.conn = conn
		t.mu.Unlock()

		if t.onConnect != nil {
			t.onConnect()
		}
		go t.readLoop(ctx, conn)
		return
	}
	t.reportError(fmt.Sprintf("chat connection lost, gave up after %d attempts", t.policy.MaxTries))
}

// Send transmits a chat message frame.
func (t *WebSocketTransport) Send(recipientID uint, content, messageType string) error {
	return t.writeFrame(chatwire.ClientFrame{
		Event:       chatwire.EventMessage,
		RecipientID: recipientID,
		Content:     content,
		MessageType: messageType,
	})
}

// SendTyping transmits a typing indicator frame.
func (t *WebSocketTransport) SendTyping(recipientID uint, isTyping bool) error {
	return t.writeFrame(chatwire.ClientFrame{
		Event:       chatwire.EventTyping,
		RecipientID: recipientID,
		IsTyping:    isTyping,
	})
}

func (t *WebSocketTransport) writeFrame(frame chatwire.ClientFrame) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return fmt.Errorf("not connected to chat server")
	}
	return t.conn.WriteJSON(frame)
}

// Close shuts the transport down permanently; no reconnect follows.
func (t *WebSocketTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	if t.conn != nil {
		err := t.conn.Close()
		t.conn = nil
		return err
	}
	return nil
}

func (t *WebSocketTransport) reportError(msg string) {
	if t.onError != nil {
		t.onError(msg)
	}
}
