package phase

import (
	"github.com/stratoshq/governor/internal/store"
)

// PhaseProgress is one phase's contribution to the overall percentage.
type PhaseProgress struct {
	Phase        store.Phase `json:"phase"`
	Weight       float64     `json:"weight"`
	Complete     bool        `json:"complete"`
	Fraction     float64     `json:"fraction"`
	Contribution float64     `json:"contribution"`
}

// Progress computes the derived progress percentage for an item from its
// phase pointer alone. Phases strictly before the current pointer contribute
// their full weight; the in-progress phase contributes partial credit in
// proportion to its completed checklist entries.
//
// The function is pure and idempotent: the same stored state always yields
// the same result, and an item whose every phase is complete (pointer at
// COMPLETED) yields exactly 100.
func Progress(item *store.WorkItem) (float64, []PhaseProgress) {
	if item.Phase == store.PhaseCompleted {
		byPhase := make([]PhaseProgress, 0, len(Order))
		for _, p := range Order {
			byPhase = append(byPhase, PhaseProgress{
				Phase: p, Weight: weights[p], Complete: true, Fraction: 1, Contribution: weights[p],
			})
		}
		return 100, byPhase
	}
	if item.Phase == store.PhaseCancelled {
		// Cancellation freezes progress where it was.
		return item.Progress, nil
	}

	current := Index(item.Phase)
	if current < 0 {
		return 0, nil
	}

	var total float64
	byPhase := make([]PhaseProgress, 0, len(Order))
	for i, p := range Order {
		pp := PhaseProgress{Phase: p, Weight: weights[p]}
		switch {
		case i < current:
			pp.Complete = true
			pp.Fraction = 1
			pp.Contribution = weights[p]
		case i == current:
			pp.Fraction = checklistFraction(item.Checklists[p])
			pp.Contribution = weights[p] * pp.Fraction
		}
		total += pp.Contribution
		byPhase = append(byPhase, pp)
	}
	return total, byPhase
}

func checklistFraction(items []store.ChecklistItem) float64 {
	if len(items) == 0 {
		return 0
	}
	done := 0
	for _, item := range items {
		if item.Done {
			done++
		}
	}
	return float64(done) / float64(len(items))
}
