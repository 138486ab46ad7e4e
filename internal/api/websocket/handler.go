package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/kubilitics/kubilitics-topology/internal/service"
)

// Handler upgrades renderer connections for a view.
type Handler struct {
	hub      *Hub
	views    service.ViewService
	upgrader websocket.Upgrader
	ctx      context.Context
}

// NewHandler creates a websocket handler. allowedOrigins follows the CORS
// setting; "*" or an empty list accepts any origin.
func NewHandler(ctx context.Context, hub *Hub, views service.ViewService, allowedOrigins []string) *Handler {
	return &Handler{
		hub:   hub,
		views: views,
		ctx:   ctx,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

// SetupRoutes registers GET /ws/views/{id}.
func SetupRoutes(router *mux.Router, h *Handler) {
	router.HandleFunc("/ws/views/{id}", h.ServeWS).Methods("GET")
}

// ServeWS subscribes the connection to the view and sends its current model.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	viewID := mux.Vars(r)["id"]
	vm, err := h.views.GetView(r.Context(), viewID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrViewNotFound) {
			status = http.StatusNotFound
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.hub.log.Warn("websocket upgrade failed", zap.String("view_id", viewID), zap.Error(err))
		return
	}

	client := NewClient(h.ctx, h.hub, h.views, conn, viewID, uuid.New().String())
	initial, err := json.Marshal(Message{Type: TypeViewUpdate, ViewID: viewID, View: &vm, Timestamp: time.Now()})
	if err == nil {
		client.send <- initial
	}
	select {
	case h.hub.register <- client:
	case <-h.hub.ctx.Done():
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()

	client.log.Info("websocket client connected")
}

func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[strings.ToLower(strings.TrimSuffix(o, "/"))] = true
	}
	if len(set) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return set[strings.ToLower(u.Scheme+"://"+u.Host)]
	}
}
