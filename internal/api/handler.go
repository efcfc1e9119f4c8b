/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"pgedge-nla/internal/agent"
	"pgedge-nla/internal/auth"
	"pgedge-nla/internal/conversations"
	"pgedge-nla/internal/logging"
)

// ServiceName is reported by the health endpoint
const ServiceName = "pgedge-nla"

// maxBodyBytes bounds /ask request bodies
const maxBodyBytes = 1 << 20

// anonymousOwner owns conversations when authentication is disabled
const anonymousOwner = "anonymous"

// Answerer answers one question in the context of prior messages
type Answerer interface {
	Answer(ctx context.Context, question string, history []agent.Message) agent.Response
}

// AskRequest is the body of POST /ask
type AskRequest struct {
	Question       *string         `json:"question"`
	History        []agent.Message `json:"history,omitempty"`
	ConversationID string          `json:"conversation_id,omitempty"`
}

// AskResponse is the agent response plus the conversation it was stored in
type AskResponse struct {
	agent.Response
	ConversationID string `json:"conversation_id,omitempty"`
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// Handler serves the question endpoints
type Handler struct {
	agent         Answerer
	conversations *conversations.Store
}

// NewHandler creates a handler. store may be nil, which disables
// conversation persistence.
func NewHandler(a Answerer, store *conversations.Store) *Handler {
	return &Handler{agent: a, conversations: store}
}

// HandleHealth handles GET /health
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	conversations.WriteJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Service: ServiceName})
}

// HandleAsk handles POST /ask. Pipeline failures are reported with
// status 200 and success=false; only malformed requests get an error
// status.
func (h *Handler) HandleAsk(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		conversations.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Question == nil {
		conversations.WriteError(w, http.StatusBadRequest, "Missing required field: question")
		return
	}

	ctx := r.Context()
	owner := Owner(r)
	history := req.History

	var conv *conversations.Conversation
	if req.ConversationID != "" {
		if h.conversations == nil {
			conversations.WriteError(w, http.StatusBadRequest, "Conversation history is not enabled")
			return
		}
		var err error
		conv, err = h.conversations.Get(ctx, req.ConversationID, owner)
		if errors.Is(err, conversations.ErrNotFound) {
			conversations.WriteError(w, http.StatusNotFound, "Conversation not found")
			return
		}
		if err != nil {
			logging.Error("conversation_load_failed", "id", req.ConversationID, "error", err)
			conversations.WriteError(w, http.StatusInternalServerError, "Failed to load conversation")
			return
		}
		history = agentHistory(conv.Messages)
	}

	resp := AskResponse{Response: h.agent.Answer(ctx, *req.Question, history)}

	if h.conversations != nil && strings.TrimSpace(*req.Question) != "" {
		resp.ConversationID = h.record(ctx, owner, conv, *req.Question, resp.Response)
	}

	conversations.WriteJSON(w, http.StatusOK, resp)
}

// record appends the exchange to conv, or starts a new conversation when
// conv is nil. Storage failures are logged and do not fail the request.
func (h *Handler) record(ctx context.Context, owner string, conv *conversations.Conversation,
	question string, resp agent.Response) string {
	now := time.Now().UTC().Format(time.RFC3339)
	exchange := []conversations.Message{
		{Role: conversations.RoleUser, Content: question, Timestamp: now},
		{
			Role:      conversations.RoleAssistant,
			Content:   resp.Summary,
			Timestamp: now,
			SQL:       resp.SQL,
			IsError:   !resp.Success,
		},
	}

	if conv == nil {
		created, err := h.conversations.Create(ctx, owner, exchange)
		if err != nil {
			logging.Error("conversation_create_failed", "error", err)
			return ""
		}
		return created.ID
	}

	if _, err := h.conversations.Append(ctx, conv.ID, owner, exchange...); err != nil {
		logging.Error("conversation_append_failed", "id", conv.ID, "error", err)
	}
	return conv.ID
}

func agentHistory(messages []conversations.Message) []agent.Message {
	history := make([]agent.Message, 0, len(messages))
	for _, m := range messages {
		history = append(history, agent.Message{Role: m.Role, Content: m.Content})
	}
	return history
}

// Owner names the caller for conversation ownership: the authenticated
// token ID, or a shared anonymous owner when authentication is off
func Owner(r *http.Request) string {
	if id := auth.TokenIDFromContext(r.Context()); id != "" {
		return id
	}
	return anonymousOwner
}
