package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/roteiro-ai/roteiro/internal/gate"
	"github.com/roteiro-ai/roteiro/internal/log"
	"github.com/roteiro-ai/roteiro/internal/persona"
	"github.com/roteiro-ai/roteiro/internal/rag"
)

// maxChatBody bounds a chat request body.
const maxChatBody = 64 * 1024

// Responder answers a query in a persona's voice. Implemented by
// *gate.Gate; tests substitute a scripted responder.
type Responder interface {
	Respond(ctx context.Context, query, personaID string) (*gate.Answer, error)
}

// Retrieval exposes the administrative surface of the retrieval system.
type Retrieval interface {
	Status(ctx context.Context) rag.Status
	IndexAll(ctx context.Context, knowledgeDir string) (*rag.IndexReport, error)
}

type chatRequest struct {
	Query     string `json:"query"`
	PersonaID string `json:"persona_id"`
}

type chatResponse struct {
	*gate.Answer
	RequestID string `json:"request_id,omitempty"`
}

type chatHandler struct {
	responder Responder
	logger    log.Logger
}

// send handles POST /api/v1/chat.
func (h *chatHandler) send(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	answer, err := h.responder.Respond(r.Context(), req.Query, req.PersonaID)
	if err != nil {
		h.writeRespondError(w, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, chatResponse{
		Answer:    answer,
		RequestID: requestIDFromContext(r.Context()),
	})
}

func (h *chatHandler) writeRespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, gate.ErrUnknownPersona):
		writeError(w, h.logger, http.StatusBadRequest, "unknown_persona", err.Error())
	case errors.Is(err, rag.ErrQueryEmpty):
		writeError(w, h.logger, http.StatusBadRequest, "empty_query", "query is required")
	case errors.Is(err, rag.ErrRetrieverNotReady):
		writeError(w, h.logger, http.StatusServiceUnavailable, "not_ready", "knowledge base is not indexed yet")
	default:
		h.logger.Error("responding to chat request", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

type statusHandler struct {
	retrieval    Retrieval
	knowledgeDir string
	logger       log.Logger
}

// getStatus handles GET /api/v1/status.
func (h *statusHandler) getStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.logger, http.StatusOK, h.retrieval.Status(r.Context()))
}

// reindex handles POST /api/v1/admin/reindex. Idempotent: re-running
// replaces the lexical model and upserts vectors in place.
func (h *statusHandler) reindex(w http.ResponseWriter, r *http.Request) {
	report, err := h.retrieval.IndexAll(r.Context(), h.knowledgeDir)
	if err != nil {
		h.logger.Error("reindexing knowledge base", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "reindex_failed", err.Error())
		return
	}
	writeJSON(w, h.logger, http.StatusOK, report)
}

type personaInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type personasHandler struct {
	logger log.Logger
}

// list handles GET /api/v1/personas.
func (h *personasHandler) list(w http.ResponseWriter, _ *http.Request) {
	all := persona.All()
	infos := make([]personaInfo, 0, len(all))
	for _, p := range all {
		infos = append(infos, personaInfo{ID: p.ID, Name: p.Name, Description: p.Description})
	}
	writeJSON(w, h.logger, http.StatusOK, map[string][]personaInfo{"personas": infos})
}
