// Package websocket streams view models to renderers subscribed to a view.
package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kubilitics/kubilitics-topology/internal/models"
	"github.com/kubilitics/kubilitics-topology/internal/pkg/metrics"
)

// Message types exchanged with renderers.
const (
	TypeViewUpdate   = "view_update"
	TypeViewDeleted  = "view_deleted"
	TypeError        = "error"
	TypeNodeClick    = "nodeClick"
	TypePaneClick    = "paneClick"
	TypeToggleFilter = "toggleFilter"
)

// Message is the wire envelope in both directions.
type Message struct {
	Type      string            `json:"type"`
	ViewID    string            `json:"viewId,omitempty"`
	View      *models.ViewModel `json:"view,omitempty"`
	NodeID    string            `json:"nodeId,omitempty"`
	Key       string            `json:"key,omitempty"`
	Error     string            `json:"error,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

type outbound struct {
	viewID string
	data   []byte
}

// Hub maintains active WebSocket connections and fans view updates out to
// the clients subscribed to each view.
type Hub struct {
	clients map[*Client]bool

	broadcast  chan outbound
	register   chan *Client
	unregister chan *Client

	mu  sync.RWMutex
	log *zap.Logger

	// revMu orders the revision check with the enqueue.
	revMu     sync.Mutex
	revisions map[string]uint64

	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub creates a new WebSocket hub
func NewHub(ctx context.Context, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	hubCtx, cancel := context.WithCancel(ctx)
	return &Hub{
		broadcast:  make(chan outbound, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		revisions:  make(map[string]uint64),
		log:        log,
		ctx:        hubCtx,
		cancel:     cancel,
	}
}

// Run starts the hub and blocks until it is stopped.
func (h *Hub) Run() {
	for {
		select {
		case <-h.ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			metrics.WebSocketConnectionsActive.Set(float64(len(h.clients)))
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			h.drop(client)
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if client.viewID != msg.viewID {
					continue
				}
				select {
				case client.send <- msg.data:
				default:
					// slow consumer
					h.log.Warn("dropping websocket client with full buffer",
						zap.String("client_id", client.id),
						zap.String("view_id", client.viewID),
					)
					h.drop(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Stop stops the hub and closes every client.
func (h *Hub) Stop() {
	h.cancel()
	h.closeAll()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		h.drop(client)
	}
}

// drop must be called with h.mu held.
func (h *Hub) drop(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)
	metrics.WebSocketConnectionsActive.Set(float64(len(h.clients)))
}

// PublishView queues vm for every client watching viewID. A model older than
// one already queued for the view is dropped, so subscribers only ever see
// increasing revisions. Updates are also dropped when the hub is saturated.
func (h *Hub) PublishView(viewID string, vm models.ViewModel) {
	data, err := json.Marshal(Message{Type: TypeViewUpdate, ViewID: viewID, View: &vm, Timestamp: time.Now()})
	if err != nil {
		h.log.Error("failed to encode view update", zap.String("view_id", viewID), zap.Error(err))
		return
	}

	h.revMu.Lock()
	defer h.revMu.Unlock()
	if last, ok := h.revisions[viewID]; ok && vm.Revision <= last {
		h.log.Debug("dropping stale view update",
			zap.String("view_id", viewID),
			zap.Uint64("revision", vm.Revision),
			zap.Uint64("latest", last),
		)
		return
	}
	h.revisions[viewID] = vm.Revision
	h.enqueue(viewID, data)
}

// PublishDeleted tells subscribers that viewID no longer exists.
func (h *Hub) PublishDeleted(viewID string) {
	data, err := json.Marshal(Message{Type: TypeViewDeleted, ViewID: viewID, Timestamp: time.Now()})
	if err != nil {
		return
	}
	h.revMu.Lock()
	delete(h.revisions, viewID)
	h.revMu.Unlock()
	h.enqueue(viewID, data)
}

// HasSubscribers reports whether any connected client watches viewID.
func (h *Hub) HasSubscribers(viewID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		if client.viewID == viewID {
			return true
		}
	}
	return false
}

func (h *Hub) enqueue(viewID string, data []byte) {
	select {
	case h.broadcast <- outbound{viewID: viewID, data: data}:
	case <-h.ctx.Done():
	default:
		h.log.Warn("websocket broadcast queue full, dropping update", zap.String("view_id", viewID))
	}
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
