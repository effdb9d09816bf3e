package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/stratoshq/governor/internal/engine"
	"github.com/stratoshq/governor/internal/store"
)

type ItemsHandler struct {
	store  store.Store
	engine *engine.Engine
}

func NewItemsHandler(s store.Store, e *engine.Engine) *ItemsHandler {
	return &ItemsHandler{store: s, engine: e}
}

type CreateItemRequest struct {
	Title        string                                `json:"title"`
	Category     string                                `json:"category,omitempty"`
	Dependencies []store.DependencyRef                 `json:"dependencies,omitempty"`
	Checklists   map[store.Phase][]store.ChecklistItem `json:"checklists,omitempty"`
	Metadata     map[string]interface{}                `json:"metadata,omitempty"`
}

// Create handles POST /api/v1/items
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Title == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "title required"})
		return
	}

	item := &store.WorkItem{
		Title:        req.Title,
		Category:     req.Category,
		Dependencies: req.Dependencies,
		Checklists:   req.Checklists,
		Metadata:     req.Metadata,
	}
	if err := h.engine.CreateWorkItem(r.Context(), item); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// List handles GET /api/v1/items
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := store.WorkItemFilter{
		Category: r.URL.Query().Get("category"),
	}
	if s := r.URL.Query().Get("status"); s != "" {
		status := store.ItemStatus(s)
		filter.Status = &status
	}
	if p := r.URL.Query().Get("phase"); p != "" {
		ph := store.Phase(p)
		filter.Phase = &ph
	}

	items, err := h.store.ListWorkItems(r.Context(), filter)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if items == nil {
		items = []*store.WorkItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

// Get handles GET /api/v1/items/{id}
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	item, err := h.store.GetWorkItem(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if item == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "item not found"})
		return
	}
	writeJSON(w, http.StatusOK, item)
}

type UpdateItemRequest struct {
	Title      *string                               `json:"title,omitempty"`
	Category   *string                               `json:"category,omitempty"`
	Checklists map[store.Phase][]store.ChecklistItem `json:"checklists,omitempty"`
	Metadata   map[string]interface{}                `json:"metadata,omitempty"`
}

// Update handles PATCH /api/v1/items/{id}. Phase and progress are not
// patchable; they only move through the advance path.
func (h *ItemsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	item, err := h.store.GetWorkItem(r.Context(), id)
	if err != nil || item == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "item not found"})
		return
	}

	var req UpdateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Title != nil {
		item.Title = *req.Title
	}
	if req.Category != nil {
		item.Category = *req.Category
	}
	if req.Checklists != nil {
		item.Checklists = req.Checklists
	}
	if req.Metadata != nil {
		item.Metadata = req.Metadata
	}

	if err := h.store.UpdateWorkItem(r.Context(), item); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// Progress handles GET /api/v1/items/{id}/progress
func (h *ItemsHandler) Progress(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	report, err := h.engine.ComputeProgress(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// CheckDependencies handles GET /api/v1/items/{id}/dependencies/check
func (h *ItemsHandler) CheckDependencies(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	result, err := h.engine.CheckDependencies(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type AddDependencyRequest struct {
	ItemID      string      `json:"item_id"`
	MinPhase    store.Phase `json:"min_phase,omitempty"`
	MinProgress float64     `json:"min_progress,omitempty"`
}

// AddDependency handles POST /api/v1/items/{id}/dependencies
func (h *ItemsHandler) AddDependency(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	var req AddDependencyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	depID, err := uuid.Parse(req.ItemID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item_id"})
		return
	}
	if depID == id {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "item cannot depend on itself"})
		return
	}

	item, err := h.store.GetWorkItem(r.Context(), id)
	if err != nil || item == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "item not found"})
		return
	}

	item.Dependencies = append(item.Dependencies, store.DependencyRef{
		ItemID:      depID,
		MinPhase:    req.MinPhase,
		MinProgress: req.MinProgress,
	})
	if err := h.store.UpdateWorkItem(r.Context(), item); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// RemoveDependency handles DELETE /api/v1/items/{id}/dependencies/{dep_id}
func (h *ItemsHandler) RemoveDependency(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	depID, err := uuid.Parse(chi.URLParam(r, "dep_id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid dep_id"})
		return
	}

	item, err := h.store.GetWorkItem(r.Context(), id)
	if err != nil || item == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "item not found"})
		return
	}

	deps := item.Dependencies[:0]
	for _, ref := range item.Dependencies {
		if ref.ItemID != depID {
			deps = append(deps, ref)
		}
	}
	item.Dependencies = deps
	if err := h.store.UpdateWorkItem(r.Context(), item); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// WaitDependency handles POST /api/v1/items/{id}/dependencies/{dep_id}/wait.
// It blocks cooperatively until the declared dependency is met, the
// configured wait timeout elapses, or the client disconnects.
func (h *ItemsHandler) WaitDependency(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	depID, err := uuid.Parse(chi.URLParam(r, "dep_id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid dep_id"})
		return
	}

	item, err := h.store.GetWorkItem(r.Context(), id)
	if err != nil || item == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "item not found"})
		return
	}

	var ref *store.DependencyRef
	for i := range item.Dependencies {
		if item.Dependencies[i].ItemID == depID {
			ref = &item.Dependencies[i]
			break
		}
	}
	if ref == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "dependency not declared on item"})
		return
	}

	if err := h.engine.WaitForDependency(r.Context(), *ref); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "met"})
}

type CancelRequest struct {
	Reason string `json:"reason,omitempty"`
}

// Cancel handles POST /api/v1/items/{id}/cancel (admin only)
func (h *ItemsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	var req CancelRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	if err := h.engine.Cancel(r.Context(), id, req.Reason); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// Archive handles POST /api/v1/items/{id}/archive (admin only)
func (h *ItemsHandler) Archive(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	if err := h.engine.Archive(r.Context(), id); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "archived"})
}

func itemID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return uuid.Nil, false
	}
	return id, true
}
