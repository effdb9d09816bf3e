package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/stratoshq/governor/internal/depchain"
	"github.com/stratoshq/governor/internal/engine"
	"github.com/stratoshq/governor/internal/gate"
	"github.com/stratoshq/governor/internal/store"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeEngineError maps domain errors onto HTTP statuses: missing items are
// 404, malformed transitions 400, lost phase races 409 (retry after
// re-reading), expired dependency waits 408, configuration defects 500.
func writeEngineError(w http.ResponseWriter, err error) {
	var unknownRule *gate.UnknownRuleError
	switch {
	case errors.Is(err, engine.ErrItemNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, engine.ErrInvalidTransition), errors.Is(err, engine.ErrNotTerminal):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, store.ErrStaleState):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, depchain.ErrWaitTimeout):
		writeJSON(w, http.StatusRequestTimeout, map[string]string{"error": err.Error()})
	case errors.Is(err, gate.ErrUnknownGate), errors.As(err, &unknownRule):
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}
