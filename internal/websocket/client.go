package websocket

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"socialchat/internal/chatwire"
	"socialchat/internal/config"
)

// FrameHandler processes one parsed frame from an authenticated client.
type FrameHandler func(ctx context.Context, senderID uint, senderUsername string, frame chatwire.ClientFrame) error

// Client is a middleman between one websocket connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound payloads.
	send chan []byte

	// Authenticated identity for this connection.
	UserID   uint
	Username string

	handleFrame FrameHandler
}

// readPump pumps frames from the websocket connection to the frame handler.
func (c *Client) readPump(wsCfg config.WebSocketConfig) {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(int64(wsCfg.MaxMessageSizeBytes))
	c.conn.SetReadDeadline(time.Now().Add(time.Duration(wsCfg.PongWaitSeconds) * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(time.Duration(wsCfg.PongWaitSeconds) * time.Second))
		return nil
	})

	for {
		messageType, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("websocket error (user %d): %v", c.UserID, err)
			}
			break
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var frame chatwire.ClientFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			log.Printf("undecodable frame from user %d: %v", c.UserID, err)
			continue
		}

		if c.handleFrame == nil {
			log.Printf("warning: no frame handler for user %d, frame dropped", c.UserID)
			continue
		}
		if err := c.handleFrame(context.Background(), c.UserID, c.Username, frame); err != nil {
			log.Printf("frame from user %d failed: %v", c.UserID, err)
			c.reportError(err.Error())
		}
	}
}

// reportError pushes an error frame back to this connection.
func (c *Client) reportError(message string) {
	payload, err := json.Marshal(chatwire.ServerFrame{Event: chatwire.EventError, Error: message})
	if err != nil {
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}

// writePump pumps payloads from the hub to the websocket connection.
func (c *Client) writePump(wsCfg config.WebSocketConfig) {
	ticker := time.NewTicker(time.Duration(wsCfg.PingPeriodSeconds) * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(time.Duration(wsCfg.WriteWaitSeconds) * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(time.Duration(wsCfg.WriteWaitSeconds) * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWsPerConnection upgrades the HTTP request and starts the client pumps
// for an already-authenticated user.
func ServeWsPerConnection(hub *Hub, handler FrameHandler, userID uint, username string, w http.ResponseWriter, r *http.Request, wsCfg config.WebSocketConfig) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}
	client := &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, 256),
		UserID:      userID,
		Username:    username,
		handleFrame: handler,
	}
	client.hub.register <- client

	go client.writePump(wsCfg)
	go client.readPump(wsCfg)
}
