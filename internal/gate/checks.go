package gate

import (
	"context"
	"fmt"
	"sync"

	"github.com/stratoshq/governor/internal/store"
)

// Registry binds rule names to check functions. Bind is done at startup;
// lookups are concurrent-safe for gate runs across different items.
type Registry struct {
	mu     sync.RWMutex
	checks map[string]CheckFunc
}

func NewRegistry() *Registry {
	return &Registry{checks: make(map[string]CheckFunc)}
}

func (r *Registry) Register(name string, check CheckFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checks[name] = check
}

func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.checks[name]
	return ok
}

func (r *Registry) Lookup(name string) (CheckFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	check, ok := r.checks[name]
	return check, ok
}

// --- Built-in condition evaluators ---

// ChecklistComplete passes when every checklist entry of the given phase is
// done.
func ChecklistComplete(p store.Phase) CheckFunc {
	return func(ctx context.Context, item *store.WorkItem) (bool, string, error) {
		items := item.Checklists[p]
		if len(items) == 0 {
			return false, fmt.Sprintf("no checklist recorded for %s", p), nil
		}
		done := 0
		for _, entry := range items {
			if entry.Done {
				done++
			}
		}
		if done < len(items) {
			return false, fmt.Sprintf("%d/%d checklist items done", done, len(items)), nil
		}
		return true, fmt.Sprintf("%d/%d checklist items done", done, len(items)), nil
	}
}

// ProgressAtLeast passes when the item's derived progress meets the minimum.
func ProgressAtLeast(min float64) CheckFunc {
	return func(ctx context.Context, item *store.WorkItem) (bool, string, error) {
		evidence := fmt.Sprintf("progress %.1f%%, want >= %.1f%%", item.Progress, min)
		return item.Progress >= min, evidence, nil
	}
}

// MetadataTrue passes when an execution-state flag recorded by external
// tooling (e.g. "tests_executed") is true in the item's metadata.
func MetadataTrue(key string) CheckFunc {
	return func(ctx context.Context, item *store.WorkItem) (bool, string, error) {
		v, ok := item.Metadata[key]
		if !ok {
			return false, fmt.Sprintf("%s not recorded", key), nil
		}
		b, ok := v.(bool)
		if !ok {
			return false, fmt.Sprintf("%s has non-boolean value %v", key, v), nil
		}
		return b, fmt.Sprintf("%s=%t", key, b), nil
	}
}

// MetadataNumberAtLeast passes when a numeric execution-state value (e.g.
// coverage percentage) meets the threshold.
func MetadataNumberAtLeast(key string, min float64) CheckFunc {
	return func(ctx context.Context, item *store.WorkItem) (bool, string, error) {
		v, ok := item.Metadata[key]
		if !ok {
			return false, fmt.Sprintf("%s not recorded", key), nil
		}
		var n float64
		switch t := v.(type) {
		case float64:
			n = t
		case int:
			n = float64(t)
		case int64:
			n = float64(t)
		default:
			return false, fmt.Sprintf("%s has non-numeric value %v", key, v), nil
		}
		evidence := fmt.Sprintf("%s=%.1f, want >= %.1f", key, n, min)
		return n >= min, evidence, nil
	}
}
