// Package phase defines the governed phase lifecycle and the progress model
// derived from it.
package phase

import (
	"github.com/stratoshq/governor/internal/store"
)

// Order is the non-terminal phase sequence. COMPLETED and CANCELLED are
// terminal and carry no weight of their own.
var Order = []store.Phase{
	store.PhaseLead,
	store.PhasePlan,
	store.PhaseExec,
	store.PhasePlanVerification,
	store.PhaseLeadFinalApproval,
}

// weights must sum to exactly 100 so that a fully completed item reports
// exactly 100% progress.
var weights = map[store.Phase]float64{
	store.PhaseLead:              20,
	store.PhasePlan:              20,
	store.PhaseExec:              30,
	store.PhasePlanVerification:  15,
	store.PhaseLeadFinalApproval: 15,
}

// Weight returns the progress weight of a non-terminal phase, 0 otherwise.
func Weight(p store.Phase) float64 {
	return weights[p]
}

// Index returns the position of a phase in the lifecycle order, or -1 for
// terminal and unknown phases.
func Index(p store.Phase) int {
	for i, phase := range Order {
		if phase == p {
			return i
		}
	}
	return -1
}

// Next returns the phase that follows p. The last working phase advances to
// COMPLETED. Terminal phases have no successor.
func Next(p store.Phase) (store.Phase, bool) {
	i := Index(p)
	if i < 0 {
		return "", false
	}
	if i == len(Order)-1 {
		return store.PhaseCompleted, true
	}
	return Order[i+1], true
}

// ValidTransition reports whether from→to is a legal phase move: one step
// forward in the lifecycle, or cancellation from any non-terminal phase.
func ValidTransition(from, to store.Phase) bool {
	if to == store.PhaseCancelled {
		return Index(from) >= 0
	}
	next, ok := Next(from)
	return ok && next == to
}

// IsTerminal reports whether the phase ends the lifecycle.
func IsTerminal(p store.Phase) bool {
	return p == store.PhaseCompleted || p == store.PhaseCancelled
}
