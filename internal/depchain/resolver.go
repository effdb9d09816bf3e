// Package depchain resolves cross-item dependency chains.
//
// Resolution is read-only with respect to the referenced items: the resolver
// reports whether advancement may proceed but never mutates the blocker.
package depchain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/stratoshq/governor/internal/phase"
	"github.com/stratoshq/governor/internal/store"
)

// ErrWaitTimeout is returned by WaitFor when the dependency is still unmet
// after the allotted time.
var ErrWaitTimeout = errors.New("dependency wait timed out")

// Result is the transient output of one chain evaluation. It is computed on
// demand and never cached.
type Result struct {
	CanProceed bool                  `json:"can_proceed"`
	BlockedBy  []store.DependencyRef `json:"blocked_by,omitempty"`
	Reason     string                `json:"reason,omitempty"`
}

type Resolver struct {
	store  store.Store
	logger *slog.Logger
}

func NewResolver(s store.Store, logger *slog.Logger) *Resolver {
	return &Resolver{store: s, logger: logger}
}

// Validate evaluates every declared dependency of the item against the
// referenced items' current phase and progress. A missing referenced item is
// an unmet, permanently blocking dependency.
func (r *Resolver) Validate(ctx context.Context, item *store.WorkItem) (*Result, error) {
	if len(item.Dependencies) == 0 {
		return &Result{CanProceed: true}, nil
	}

	res := &Result{}
	var reasons []string
	for _, ref := range item.Dependencies {
		met, reason, err := r.check(ctx, ref)
		if err != nil {
			return nil, err
		}
		if !met {
			res.BlockedBy = append(res.BlockedBy, ref)
			reasons = append(reasons, reason)
		}
	}

	res.CanProceed = len(res.BlockedBy) == 0
	if !res.CanProceed {
		res.Reason = strings.Join(reasons, "; ")
	}
	return res, nil
}

// WaitFor polls a single dependency until it is met, the timeout elapses, or
// the context is cancelled. Callers in auto-proceed mode use this to pause
// and resume instead of failing hard.
func (r *Resolver) WaitFor(ctx context.Context, ref store.DependencyRef, pollInterval, timeout time.Duration) error {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}

	met, _, err := r.check(ctx, ref)
	if err != nil {
		return err
	}
	if met {
		return nil
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("%w: item %s after %s", ErrWaitTimeout, ref.ItemID, timeout)
		case <-ticker.C:
			met, reason, err := r.check(ctx, ref)
			if err != nil {
				return err
			}
			if met {
				return nil
			}
			r.logger.Debug("dependency still unmet", "item_id", ref.ItemID, "reason", reason)
		}
	}
}

func (r *Resolver) check(ctx context.Context, ref store.DependencyRef) (bool, string, error) {
	dep, err := r.store.GetWorkItem(ctx, ref.ItemID)
	if err != nil {
		return false, "", fmt.Errorf("fetch dependency %s: %w", ref.ItemID, err)
	}
	if dep == nil {
		return false, fmt.Sprintf("%s: referenced item not found", ref.ItemID), nil
	}
	if dep.Phase == store.PhaseCancelled {
		return false, fmt.Sprintf("%s: referenced item cancelled", ref.ItemID), nil
	}

	if ref.MinPhase != "" && !phaseReached(dep.Phase, ref.MinPhase) {
		return false, fmt.Sprintf("%s: phase %s, requires >= %s", ref.ItemID, dep.Phase, ref.MinPhase), nil
	}
	if ref.MinProgress > 0 && dep.Progress < ref.MinProgress {
		return false, fmt.Sprintf("%s: progress %.1f%%, requires >= %.1f%%", ref.ItemID, dep.Progress, ref.MinProgress), nil
	}
	return true, "", nil
}

// phaseReached reports whether an item at `current` has reached `min` in the
// lifecycle order. COMPLETED satisfies any minimum.
func phaseReached(current, min store.Phase) bool {
	if current == store.PhaseCompleted {
		return true
	}
	ci, mi := phase.Index(current), phase.Index(min)
	if ci < 0 || mi < 0 {
		return false
	}
	return ci >= mi
}
