package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store used by tests and local development.
// It applies the same latest-wins tie-break as PostgresStore: highest
// created_at, ties broken by insertion order.
type MemoryStore struct {
	mu sync.RWMutex

	items       map[uuid.UUID]*WorkItem
	handoffs    []*Handoff
	gateResults []*GateResult
	seq         int

	handoffSeq map[uuid.UUID]int
	resultSeq  map[uuid.UUID]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items:      make(map[uuid.UUID]*WorkItem),
		handoffSeq: make(map[uuid.UUID]int),
		resultSeq:  make(map[uuid.UUID]int),
	}
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) CreateWorkItem(ctx context.Context, item *WorkItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	now := time.Now()
	item.CreatedAt = now
	item.UpdatedAt = now
	s.items[item.ID] = copyItem(item)
	return nil
}

func (s *MemoryStore) GetWorkItem(ctx context.Context, id uuid.UUID) (*WorkItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok || item.ArchivedAt != nil {
		return nil, nil
	}
	return copyItem(item), nil
}

func (s *MemoryStore) ListWorkItems(ctx context.Context, filter WorkItemFilter) ([]*WorkItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var items []*WorkItem
	for _, item := range s.items {
		if item.ArchivedAt != nil {
			continue
		}
		if filter.Status != nil && item.Status != *filter.Status {
			continue
		}
		if filter.Phase != nil && item.Phase != *filter.Phase {
			continue
		}
		if filter.Category != "" && item.Category != filter.Category {
			continue
		}
		items = append(items, copyItem(item))
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(items) {
			return nil, nil
		}
		items = items[filter.Offset:]
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *MemoryStore) UpdateWorkItem(ctx context.Context, item *WorkItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.items[item.ID]
	if !ok {
		return nil
	}
	// Phase and progress only move through UpdateWorkItemPhase.
	existing.Title = item.Title
	existing.Category = item.Category
	existing.Status = item.Status
	existing.Dependencies = append([]DependencyRef(nil), item.Dependencies...)
	existing.Checklists = copyChecklists(item.Checklists)
	existing.Metadata = item.Metadata
	existing.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) UpdateWorkItemPhase(ctx context.Context, id uuid.UUID, from, to Phase, progress float64, status ItemStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok || item.ArchivedAt != nil || item.Phase != from {
		return ErrStaleState
	}
	item.Phase = to
	item.Progress = progress
	item.Status = status
	item.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) ArchiveWorkItem(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok || item.ArchivedAt != nil {
		return nil
	}
	now := time.Now()
	item.ArchivedAt = &now
	item.UpdatedAt = now
	return nil
}

func (s *MemoryStore) CreateHandoff(ctx context.Context, h *Handoff) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	h.CreatedAt = time.Now()
	s.seq++
	s.handoffSeq[h.ID] = s.seq
	s.handoffs = append(s.handoffs, copyHandoff(h))
	return nil
}

func (s *MemoryStore) GetHandoff(ctx context.Context, id uuid.UUID) (*Handoff, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, h := range s.handoffs {
		if h.ID == id {
			return copyHandoff(h), nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) ListHandoffs(ctx context.Context, itemID uuid.UUID) ([]*Handoff, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var handoffs []*Handoff
	for _, h := range s.handoffs {
		if h.ItemID == itemID {
			handoffs = append(handoffs, copyHandoff(h))
		}
	}
	s.sortLatestFirst(handoffs)
	return handoffs, nil
}

func (s *MemoryStore) LatestHandoff(ctx context.Context, itemID uuid.UUID, from, to Phase) (*Handoff, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []*Handoff
	for _, h := range s.handoffs {
		if h.ItemID == itemID && h.FromPhase == from && h.ToPhase == to {
			matches = append(matches, copyHandoff(h))
		}
	}
	if len(matches) == 0 {
		return nil, nil
	}
	s.sortLatestFirst(matches)
	return matches[0], nil
}

func (s *MemoryStore) sortLatestFirst(handoffs []*Handoff) {
	sort.SliceStable(handoffs, func(i, j int) bool {
		if !handoffs[i].CreatedAt.Equal(handoffs[j].CreatedAt) {
			return handoffs[i].CreatedAt.After(handoffs[j].CreatedAt)
		}
		return s.handoffSeq[handoffs[i].ID] > s.handoffSeq[handoffs[j].ID]
	})
}

func (s *MemoryStore) UpdateHandoffOutcome(ctx context.Context, id uuid.UUID, status HandoffStatus, score float64, issues []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, h := range s.handoffs {
		if h.ID == id {
			h.Status = status
			h.Score = score
			h.Issues = append([]string(nil), issues...)
			if status == HandoffAccepted {
				now := time.Now()
				h.AcceptedAt = &now
			}
			return nil
		}
	}
	return nil
}

func (s *MemoryStore) AppendGateResult(ctx context.Context, result *GateResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if result.ID == uuid.Nil {
		result.ID = uuid.New()
	}
	result.CreatedAt = time.Now()
	s.seq++
	s.resultSeq[result.ID] = s.seq
	s.gateResults = append(s.gateResults, copyGateResult(result))
	return nil
}

func (s *MemoryStore) ListGateResults(ctx context.Context, itemID uuid.UUID) ([]*GateResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []*GateResult
	for _, r := range s.gateResults {
		if r.ItemID == itemID {
			results = append(results, copyGateResult(r))
		}
	}
	s.sortResultsLatestFirst(results)
	return results, nil
}

func (s *MemoryStore) LatestGateResult(ctx context.Context, gateID string, itemID uuid.UUID) (*GateResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []*GateResult
	for _, r := range s.gateResults {
		if r.GateID == gateID && r.ItemID == itemID {
			matches = append(matches, copyGateResult(r))
		}
	}
	if len(matches) == 0 {
		return nil, nil
	}
	s.sortResultsLatestFirst(matches)
	return matches[0], nil
}

func (s *MemoryStore) sortResultsLatestFirst(results []*GateResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if !results[i].CreatedAt.Equal(results[j].CreatedAt) {
			return results[i].CreatedAt.After(results[j].CreatedAt)
		}
		return s.resultSeq[results[i].ID] > s.resultSeq[results[j].ID]
	})
}

func copyItem(item *WorkItem) *WorkItem {
	c := *item
	c.Dependencies = append([]DependencyRef(nil), item.Dependencies...)
	c.Checklists = copyChecklists(item.Checklists)
	return &c
}

func copyChecklists(checklists map[Phase][]ChecklistItem) map[Phase][]ChecklistItem {
	if checklists == nil {
		return nil
	}
	c := make(map[Phase][]ChecklistItem, len(checklists))
	for phase, items := range checklists {
		c[phase] = append([]ChecklistItem(nil), items...)
	}
	return c
}

func copyHandoff(h *Handoff) *Handoff {
	c := *h
	c.Issues = append([]string(nil), h.Issues...)
	return &c
}

func copyGateResult(r *GateResult) *GateResult {
	c := *r
	c.Rules = append([]RuleResult(nil), r.Rules...)
	return &c
}
