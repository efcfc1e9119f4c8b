/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package conversations

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"pgedge-nla/internal/logging"
)

// OwnerFunc names the caller of a request
type OwnerFunc func(r *http.Request) string

// Handler serves the conversation endpoints
type Handler struct {
	store *Store
	owner OwnerFunc
}

// NewHandler creates a new conversation handler
func NewHandler(store *Store, owner OwnerFunc) *Handler {
	return &Handler{store: store, owner: owner}
}

// Routes mounts the handlers on r: GET and DELETE (?all=true) on the
// collection, GET, PATCH and DELETE on /{id}
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.HandleList)
	r.Delete("/", h.HandleDeleteAll)
	r.Get("/{id}", h.HandleGet)
	r.Patch("/{id}", h.HandleRename)
	r.Delete("/{id}", h.HandleDelete)
}

// WriteJSON sends a JSON response
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logging.Warn("response_encode_failed", "error", err)
	}
}

// WriteError sends a JSON error response
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"error": message})
}

// HandleList handles GET /conversations
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, offset := 50, 0
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 {
		limit = l
	}
	if o, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && o >= 0 {
		offset = o
	}

	list, err := h.store.List(r.Context(), h.owner(r), limit, offset)
	if err != nil {
		logging.Error("conversation_list_failed", "error", err)
		WriteError(w, http.StatusInternalServerError, "Failed to list conversations")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{"conversations": list})
}

// HandleGet handles GET /conversations/{id}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	conv, err := h.store.Get(r.Context(), chi.URLParam(r, "id"), h.owner(r))
	if err != nil {
		h.storeError(w, err, "Failed to get conversation")
		return
	}
	WriteJSON(w, http.StatusOK, conv)
}

// RenameRequest represents a request to rename a conversation
type RenameRequest struct {
	Title string `json:"title"`
}

// HandleRename handles PATCH /conversations/{id}
func (h *Handler) HandleRename(w http.ResponseWriter, r *http.Request) {
	var req RenameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Title == "" {
		WriteError(w, http.StatusBadRequest, "Title required")
		return
	}

	if err := h.store.Rename(r.Context(), chi.URLParam(r, "id"), h.owner(r), req.Title); err != nil {
		h.storeError(w, err, "Failed to rename conversation")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// HandleDelete handles DELETE /conversations/{id}
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(r.Context(), chi.URLParam(r, "id"), h.owner(r)); err != nil {
		h.storeError(w, err, "Failed to delete conversation")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// HandleDeleteAll handles DELETE /conversations?all=true
func (h *Handler) HandleDeleteAll(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("all") != "true" {
		WriteError(w, http.StatusBadRequest, "Use ?all=true to delete all conversations")
		return
	}

	count, err := h.store.DeleteAll(r.Context(), h.owner(r))
	if err != nil {
		logging.Error("conversation_delete_all_failed", "error", err)
		WriteError(w, http.StatusInternalServerError, "Failed to delete conversations")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"success": true, "deleted": count})
}

func (h *Handler) storeError(w http.ResponseWriter, err error, message string) {
	if errors.Is(err, ErrNotFound) {
		WriteError(w, http.StatusNotFound, "Conversation not found")
		return
	}
	logging.Error("conversation_store_failed", "error", err)
	WriteError(w, http.StatusInternalServerError, message)
}
