// Package gate implements the weighted gate-scoring engine.
package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/stratoshq/governor/internal/store"
)

// PassThreshold is the minimum weighted score for a pass verdict.
const PassThreshold = 85.0

// ErrUnknownGate indicates a gate id with no configured rule set. This is a
// deployment defect, not a transient condition.
var ErrUnknownGate = errors.New("unknown gate")

// UnknownRuleError indicates a configured rule with no registered check.
type UnknownRuleError struct {
	Gate string
	Rule string
}

func (e *UnknownRuleError) Error() string {
	return fmt.Sprintf("gate %q: no check registered for rule %q", e.Gate, e.Rule)
}

// Rule is one weighted check within a gate. A required rule failing forces a
// fail verdict regardless of the aggregate score.
type Rule struct {
	Name     string
	Weight   float64
	Required bool
}

// CheckFunc evaluates one named condition against an item's live state.
// It returns pass/fail plus a short evidence string.
type CheckFunc func(ctx context.Context, item *store.WorkItem) (bool, string, error)

// Runner executes gates and persists their results.
type Runner struct {
	store        store.Store
	checks       *Registry
	gates        map[string][]Rule
	checkTimeout time.Duration
	logger       *slog.Logger
}

func NewRunner(s store.Store, checks *Registry, gates map[string][]Rule, checkTimeout time.Duration, logger *slog.Logger) *Runner {
	if checkTimeout <= 0 {
		checkTimeout = 30 * time.Second
	}
	return &Runner{
		store:        s,
		checks:       checks,
		gates:        gates,
		checkTimeout: checkTimeout,
		logger:       logger,
	}
}

// Rules returns the configured rule set for a gate.
func (r *Runner) Rules(gateID string) ([]Rule, bool) {
	rules, ok := r.gates[gateID]
	return rules, ok
}

// Run executes every rule of the gate against the item, aggregates the
// weighted score, applies the required-rule override, and appends the result
// to the audit trail.
//
// Rules run in configured order, but aggregation is commutative so order
// affects only the evidence log. A check that errors, panics, or times out is
// recorded as a failure with the cause as evidence; it never aborts the run.
func (r *Runner) Run(ctx context.Context, gateID string, item *store.WorkItem) (*store.GateResult, error) {
	rules, ok := r.gates[gateID]
	if !ok || len(rules) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGate, gateID)
	}

	// Configuration problems surface before any check executes.
	for _, rule := range rules {
		if !r.checks.Has(rule.Name) {
			return nil, &UnknownRuleError{Gate: gateID, Rule: rule.Name}
		}
	}

	result := &store.GateResult{
		GateID: gateID,
		ItemID: item.ID,
		Rules:  make([]store.RuleResult, 0, len(rules)),
	}

	var totalWeight, earned float64
	requiredFailed := false
	for _, rule := range rules {
		check, _ := r.checks.Lookup(rule.Name)
		passed, evidence := r.runCheck(ctx, check, item)

		result.Rules = append(result.Rules, store.RuleResult{
			Name:     rule.Name,
			Weight:   rule.Weight,
			Required: rule.Required,
			Passed:   passed,
			Evidence: evidence,
		})

		totalWeight += rule.Weight
		if passed {
			earned += rule.Weight
		} else if rule.Required {
			requiredFailed = true
		}
	}

	if totalWeight > 0 {
		result.Score = earned / totalWeight * 100
	}
	result.Verdict = store.VerdictPass
	if result.Score < PassThreshold || requiredFailed {
		result.Verdict = store.VerdictFail
	}

	if err := r.store.AppendGateResult(ctx, result); err != nil {
		return nil, fmt.Errorf("persist gate result: %w", err)
	}

	r.logger.Info("gate run",
		"gate_id", gateID,
		"item_id", item.ID,
		"score", result.Score,
		"verdict", result.Verdict,
	)
	return result, nil
}

type checkOutcome struct {
	passed   bool
	evidence string
	err      error
}

// runCheck enforces the per-check timeout and contains panics. Checks run in
// their own goroutine so a check that ignores its context cannot hang the
// gate.
func (r *Runner) runCheck(ctx context.Context, check CheckFunc, item *store.WorkItem) (bool, string) {
	checkCtx, cancel := context.WithTimeout(ctx, r.checkTimeout)
	defer cancel()

	done := make(chan checkOutcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- checkOutcome{err: fmt.Errorf("check panicked: %v", p)}
			}
		}()
		passed, evidence, err := check(checkCtx, item)
		done <- checkOutcome{passed: passed, evidence: evidence, err: err}
	}()

	select {
	case <-checkCtx.Done():
		return false, "timed out"
	case out := <-done:
		if out.err != nil {
			return false, out.err.Error()
		}
		return out.passed, out.evidence
	}
}
