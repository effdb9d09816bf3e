package api

import (
	"encoding/json"
	"net/http"

	"github.com/stratoshq/governor/internal/engine"
	"github.com/stratoshq/governor/internal/store"
)

type HandoffsHandler struct {
	store  store.Store
	engine *engine.Engine
}

func NewHandoffsHandler(s store.Store, e *engine.Engine) *HandoffsHandler {
	return &HandoffsHandler{store: s, engine: e}
}

type SubmitHandoffRequest struct {
	FromPhase store.Phase           `json:"from_phase"`
	ToPhase   store.Phase           `json:"to_phase"`
	Sections  store.HandoffSections `json:"sections"`
}

// Submit handles POST /api/v1/items/{id}/handoffs. The handoff is validated
// synchronously; the response carries the verdict, score, and any section
// issues to remediate.
func (h *HandoffsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	var req SubmitHandoffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.FromPhase == "" || req.ToPhase == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "from_phase and to_phase required"})
		return
	}

	result, err := h.engine.SubmitHandoff(r.Context(), id, req.FromPhase, req.ToPhase, req.Sections)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// List handles GET /api/v1/items/{id}/handoffs
func (h *HandoffsHandler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	handoffs, err := h.store.ListHandoffs(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if handoffs == nil {
		handoffs = []*store.Handoff{}
	}
	writeJSON(w, http.StatusOK, handoffs)
}

type AdvanceRequest struct {
	FromPhase store.Phase `json:"from_phase"`
	ToPhase   store.Phase `json:"to_phase"`
}

// Advance handles POST /api/v1/items/{id}/advance
func (h *HandoffsHandler) Advance(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	var req AdvanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.FromPhase == "" || req.ToPhase == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "from_phase and to_phase required"})
		return
	}

	result, err := h.engine.AdvancePhase(r.Context(), id, req.FromPhase, req.ToPhase)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
