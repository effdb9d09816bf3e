package api

import (
	"encoding/json"
	"net/http"

	"github.com/stratoshq/governor/internal/engine"
)

type ActionsHandler struct {
	engine *engine.Engine
}

func NewActionsHandler(e *engine.Engine) *ActionsHandler {
	return &ActionsHandler{engine: e}
}

type CheckActionRequest struct {
	ActorRole      string `json:"actor_role"`
	ActionCategory string `json:"action_category"`
	Intent         string `json:"intent,omitempty"`
}

// Check handles POST /api/v1/actions/check. It is a synchronous pre-action
// check: the caller is expected to abandon the action on a denial and may
// surface warnings and routing hints to the operator.
func (h *ActionsHandler) Check(w http.ResponseWriter, r *http.Request) {
	var req CheckActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.ActorRole == "" || req.ActionCategory == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "actor_role and action_category required"})
		return
	}

	decision := h.engine.CheckAction(req.ActorRole, req.ActionCategory, req.Intent)
	writeJSON(w, http.StatusOK, decision)
}
