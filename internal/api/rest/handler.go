// Package rest exposes mounted topology views over HTTP.
package rest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kubilitics/kubilitics-topology/internal/models"
	"github.com/kubilitics/kubilitics-topology/internal/pkg/logger"
	"github.com/kubilitics/kubilitics-topology/internal/service"
)

const defaultSnapshotLimit = 20

// Handler handles view HTTP requests
type Handler struct {
	views service.ViewService
	log   *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(views service.ViewService, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{views: views, log: log}
}

// SetupRoutes configures API routes
func SetupRoutes(router *mux.Router, h *Handler) {
	router.HandleFunc("/layouts", h.ListLayouts).Methods("GET")

	router.HandleFunc("/views", h.CreateView).Methods("POST")
	router.HandleFunc("/views/{id}", h.GetView).Methods("GET")
	router.HandleFunc("/views/{id}", h.DeleteView).Methods("DELETE")
	router.HandleFunc("/views/{id}/scope", h.Remount).Methods("PUT")
	router.HandleFunc("/views/{id}/filters/toggle", h.ToggleFilter).Methods("POST")
	router.HandleFunc("/views/{id}/select", h.SelectNode).Methods("POST")
	router.HandleFunc("/views/{id}/deselect", h.ClearSelection).Methods("POST")
	router.HandleFunc("/views/{id}/detail", h.GetDetail).Methods("GET")
	router.HandleFunc("/views/{id}/snapshots", h.ListSnapshots).Methods("GET")
}

type createViewRequest struct {
	Layout string       `json:"layout"`
	Scope  models.Scope `json:"scope"`
}

type remountRequest struct {
	models.Scope
	Refresh bool `json:"refresh"`
}

type toggleFilterRequest struct {
	Key string `json:"key"`
}

type selectNodeRequest struct {
	NodeID string `json:"node_id"`
}

// ListLayouts handles GET /layouts
func (h *Handler) ListLayouts(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string][]string{"layouts": h.views.Layouts()})
}

// CreateView handles POST /views
func (h *Handler) CreateView(w http.ResponseWriter, r *http.Request) {
	var req createViewRequest
	if !decodeBody(w, r, &req) {
		return
	}
	vm, err := h.views.CreateView(r.Context(), req.Layout, req.Scope)
	if err != nil {
		h.logFailure(r, "create view", err)
		respondServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/views/"+vm.ViewID)
	respondView(w, http.StatusCreated, vm)
}

// GetView handles GET /views/{id}
func (h *Handler) GetView(w http.ResponseWriter, r *http.Request) {
	vm, err := h.views.GetView(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if match := r.Header.Get("If-None-Match"); match != "" && match == etag(vm) {
		w.Header().Set("ETag", match)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	respondView(w, http.StatusOK, vm)
}

// DeleteView handles DELETE /views/{id}
func (h *Handler) DeleteView(w http.ResponseWriter, r *http.Request) {
	if err := h.views.DeleteView(r.Context(), mux.Vars(r)["id"]); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Remount handles PUT /views/{id}/scope
func (h *Handler) Remount(w http.ResponseWriter, r *http.Request) {
	var req remountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	vm, err := h.views.Remount(r.Context(), mux.Vars(r)["id"], req.Scope, req.Refresh)
	if err != nil {
		h.logFailure(r, "remount view", err)
		respondServiceError(w, r, err)
		return
	}
	respondView(w, http.StatusOK, vm)
}

// ToggleFilter handles POST /views/{id}/filters/toggle
func (h *Handler) ToggleFilter(w http.ResponseWriter, r *http.Request) {
	var req toggleFilterRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Key == "" {
		respondStructuredError(w, r, http.StatusBadRequest, ErrCodeInvalidRequest, "key is required", nil)
		return
	}
	vm, err := h.views.ToggleFilter(r.Context(), mux.Vars(r)["id"], req.Key)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondView(w, http.StatusOK, vm)
}

// SelectNode handles POST /views/{id}/select. Unknown or hidden ids clear the
// selection rather than failing.
func (h *Handler) SelectNode(w http.ResponseWriter, r *http.Request) {
	var req selectNodeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	vm, err := h.views.SelectNode(r.Context(), mux.Vars(r)["id"], req.NodeID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondView(w, http.StatusOK, vm)
}

// ClearSelection handles POST /views/{id}/deselect
func (h *Handler) ClearSelection(w http.ResponseWriter, r *http.Request) {
	vm, err := h.views.ClearSelection(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondView(w, http.StatusOK, vm)
}

// GetDetail handles GET /views/{id}/detail
func (h *Handler) GetDetail(w http.ResponseWriter, r *http.Request) {
	node, err := h.views.Detail(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if node == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	respondJSON(w, http.StatusOK, node)
}

// ListSnapshots handles GET /views/{id}/snapshots?limit=N
func (h *Handler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	limit := defaultSnapshotLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondStructuredError(w, r, http.StatusBadRequest, ErrCodeInvalidRequest, "limit must be a positive integer", map[string]string{"limit": raw})
			return
		}
		limit = n
	}
	snaps, err := h.views.Snapshots(r.Context(), mux.Vars(r)["id"], limit)
	if err != nil {
		h.logFailure(r, "list snapshots", err)
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, snaps)
}

func (h *Handler) logFailure(r *http.Request, op string, err error) {
	logger.For(r.Context(), h.log).Warn(op+" failed",
		zap.String("view_id", mux.Vars(r)["id"]),
		zap.Error(err),
	)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondStructuredError(w, r, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body", map[string]string{"reason": err.Error()})
		return false
	}
	return true
}

func etag(vm models.ViewModel) string {
	return fmt.Sprintf(`W/"%s-%d"`, vm.Fingerprint, vm.Revision)
}

func respondView(w http.ResponseWriter, status int, vm models.ViewModel) {
	w.Header().Set("ETag", etag(vm))
	respondJSON(w, status, vm)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
