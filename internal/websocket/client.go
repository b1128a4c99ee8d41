package websocket

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"github.com/embedfixer/embedfixer/internal/embed"
	apperrors "github.com/embedfixer/embedfixer/internal/errors"
	"github.com/embedfixer/embedfixer/internal/fixer"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Pasted links are short; anything bigger is not a link.
	maxMessageSize = 8 * 1024

	sendBuffer = 16
)

// Request is a link sent by the client
type Request struct {
	URL string `json:"url"`
}

// Message is sent to the client for every request
type Message struct {
	Type string `json:"type"` // "result" or "error"
	*embed.Result
	ReportToken string `json:"report_token,omitempty"`
	Code        string `json:"code,omitempty"`
	Message     string `json:"message,omitempty"`
}

// Client is one websocket session
type Client struct {
	id    string
	hub   *Hub
	conn  *websocket.Conn
	fixer *fixer.Fixer
	send  chan *Message
}

// NewClient creates a session on conn
func NewClient(id string, hub *Hub, conn *websocket.Conn, f *fixer.Fixer) *Client {
	return &Client{
		id:    id,
		hub:   hub,
		conn:  conn,
		fixer: f,
		send:  make(chan *Message, sendBuffer),
	}
}

// handle turns one raw frame into the reply for it
func (c *Client) handle(data []byte) *Message {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return &Message{Type: "error", Code: apperrors.CodeInvalidRequest, Message: "invalid JSON message"}
	}

	fixed, err := c.fixer.Fix(req.URL)
	if err != nil {
		appErr, ok := err.(*apperrors.AppError)
		if !ok {
			appErr = apperrors.InternalError("an unexpected error occurred")
		}
		return &Message{Type: "error", Code: appErr.Code, Message: appErr.Message}
	}

	return &Message{Type: "result", Result: fixed.Result, ReportToken: fixed.ReportToken}
}

// ReadPump reads requests from the connection and queues replies. It
// unregisters the client when the connection ends.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		if !c.hub.deliver(c, c.handle(data)) {
			return
		}
	}
}

// WritePump writes queued replies and keepalive pings
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
