package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/stratoshq/governor/internal/engine"
	"github.com/stratoshq/governor/internal/store"
)

type GatesHandler struct {
	store  store.Store
	engine *engine.Engine
}

func NewGatesHandler(s store.Store, e *engine.Engine) *GatesHandler {
	return &GatesHandler{store: s, engine: e}
}

type RunGateRequest struct {
	ItemID string `json:"item_id"`
}

// Run handles POST /api/v1/gates/{gate_id}/run
func (h *GatesHandler) Run(w http.ResponseWriter, r *http.Request) {
	gateID := chi.URLParam(r, "gate_id")

	var req RunGateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	itemID, err := uuid.Parse(req.ItemID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item_id"})
		return
	}

	result, err := h.engine.RunGate(r.Context(), gateID, itemID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Results handles GET /api/v1/items/{id}/gate-results
func (h *GatesHandler) Results(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	results, err := h.store.ListGateResults(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if results == nil {
		results = []*store.GateResult{}
	}
	writeJSON(w, http.StatusOK, results)
}
