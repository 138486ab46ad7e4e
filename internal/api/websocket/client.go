package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/kubilitics/kubilitics-topology/internal/service"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 16 * 1024
)

// Client is one renderer connection subscribed to a single view.
type Client struct {
	conn   *websocket.Conn
	send   chan []byte
	hub    *Hub
	views  service.ViewService
	viewID string
	id     string
	log    *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewClient creates a new WebSocket client
func NewClient(ctx context.Context, hub *Hub, views service.ViewService, conn *websocket.Conn, viewID, id string) *Client {
	clientCtx, cancel := context.WithCancel(ctx)
	return &Client{
		conn:   conn,
		send:   make(chan []byte, 256),
		hub:    hub,
		views:  views,
		viewID: viewID,
		id:     id,
		log:    hub.log.With(zap.String("client_id", id), zap.String("view_id", viewID)),
		ctx:    clientCtx,
		cancel: cancel,
	}
}

// ReadPump reads renderer events and applies them to the view.
func (c *Client) ReadPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.ctx.Done():
		}
		c.conn.Close()
		c.cancel()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn("websocket read error", zap.Error(err))
			}
			return
		}
		if err := c.handleMessage(message); err != nil {
			c.reply(Message{Type: TypeError, ViewID: c.viewID, Error: err.Error(), Timestamp: time.Now()})
		}
	}
}

// WritePump pumps messages from the hub to the websocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			return

		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// hub closed the channel
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close closes the client connection
func (c *Client) Close() {
	c.cancel()
}

// handleMessage applies a renderer event. The resulting view model reaches
// this client through the hub like any other subscriber.
func (c *Client) handleMessage(raw []byte) error {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("invalid message: %w", err)
	}
	var err error
	switch msg.Type {
	case TypeNodeClick:
		_, err = c.views.SelectNode(c.ctx, c.viewID, msg.NodeID)
	case TypePaneClick:
		_, err = c.views.ClearSelection(c.ctx, c.viewID)
	case TypeToggleFilter:
		if msg.Key == "" {
			return fmt.Errorf("toggleFilter requires key")
		}
		_, err = c.views.ToggleFilter(c.ctx, c.viewID, msg.Key)
	default:
		return fmt.Errorf("unknown message type %q", msg.Type)
	}
	return err
}

// reply sends msg to this client only. It never blocks the read loop.
func (c *Client) reply(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if !c.hub.clients[c] {
		return
	}
	select {
	case c.send <- data:
	default:
		c.log.Warn("dropping reply to slow websocket client")
	}
}
