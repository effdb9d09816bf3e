// Package engine is the phase governance engine: it owns every mutation of a
// work item's phase and progress, and coordinates handoff validation, gate
// verification, and dependency resolution around them.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/stratoshq/governor/internal/config"
	"github.com/stratoshq/governor/internal/depchain"
	"github.com/stratoshq/governor/internal/events"
	"github.com/stratoshq/governor/internal/gate"
	"github.com/stratoshq/governor/internal/handoff"
	"github.com/stratoshq/governor/internal/phase"
	"github.com/stratoshq/governor/internal/policy"
	"github.com/stratoshq/governor/internal/store"
)

var (
	ErrItemNotFound      = errors.New("work item not found")
	ErrInvalidTransition = errors.New("invalid phase transition")
	ErrNotTerminal       = errors.New("item is not in a terminal phase")
)

type AdvanceStatus string

const (
	AdvanceAdvanced AdvanceStatus = "advanced"
	AdvanceBlocked  AdvanceStatus = "blocked"
	AdvanceRejected AdvanceStatus = "rejected"
)

// AdvanceResult reports the outcome of one advancement attempt. Blocked and
// rejected outcomes are normal results, not errors; both carry enough detail
// for the caller to remediate.
type AdvanceResult struct {
	Status    AdvanceStatus         `json:"status"`
	Detail    string                `json:"detail,omitempty"`
	BlockedBy []store.DependencyRef `json:"blocked_by,omitempty"`
	Progress  float64               `json:"progress,omitempty"`
}

type SubmitResult struct {
	HandoffID uuid.UUID           `json:"handoff_id"`
	Status    store.HandoffStatus `json:"status"`
	Score     float64             `json:"score"`
	Issues    []handoff.Issue     `json:"issues,omitempty"`
}

type ProgressReport struct {
	ItemID  uuid.UUID             `json:"item_id"`
	Percent float64               `json:"percent"`
	ByPhase []phase.PhaseProgress `json:"by_phase"`
}

type Engine struct {
	store    store.Store
	events   events.Client
	gates    *gate.Runner
	resolver *depchain.Resolver
	advisor  *policy.Advisor
	cfg      *config.Config
	logger   *slog.Logger
}

func New(s store.Store, ev events.Client, gates *gate.Runner, resolver *depchain.Resolver, advisor *policy.Advisor, cfg *config.Config, logger *slog.Logger) *Engine {
	return &Engine{
		store:    s,
		events:   ev,
		gates:    gates,
		resolver: resolver,
		advisor:  advisor,
		cfg:      cfg,
		logger:   logger,
	}
}

// CreateWorkItem registers a new draft item entering the lifecycle at LEAD.
func (e *Engine) CreateWorkItem(ctx context.Context, item *store.WorkItem) error {
	item.Phase = store.PhaseLead
	item.Status = store.StatusDraft
	item.Progress = 0

	if err := e.store.CreateWorkItem(ctx, item); err != nil {
		return fmt.Errorf("create work item: %w", err)
	}
	e.publish(events.SubjectItemCreated(item.ID.String()), events.ItemCreatedEvent{
		ItemID:   item.ID.String(),
		Title:    item.Title,
		Category: item.Category,
	})
	return nil
}

// SubmitHandoff records a handoff attempt for the from→to boundary and
// validates it immediately. Acceptance or rejection is the validator's
// verdict; a re-submission after rejection appends a new row, keeping the
// audit trail intact.
func (e *Engine) SubmitHandoff(ctx context.Context, itemID uuid.UUID, from, to store.Phase, sections store.HandoffSections) (*SubmitResult, error) {
	item, err := e.store.GetWorkItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrItemNotFound
	}
	if !phase.ValidTransition(from, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	h := &store.Handoff{
		ItemID:    itemID,
		FromPhase: from,
		ToPhase:   to,
		Status:    store.HandoffPending,
		Sections:  sections,
	}
	if err := e.store.CreateHandoff(ctx, h); err != nil {
		return nil, fmt.Errorf("create handoff: %w", err)
	}

	res := handoff.Validate(sections, to)
	status := store.HandoffRejected
	if res.Accepted {
		status = store.HandoffAccepted
	}
	if err := e.store.UpdateHandoffOutcome(ctx, h.ID, status, res.Score, res.IssueStrings()); err != nil {
		return nil, fmt.Errorf("record handoff outcome: %w", err)
	}

	handoffsTotal.WithLabelValues(string(status)).Inc()
	outcome := events.HandoffOutcomeEvent{
		HandoffID: h.ID.String(),
		ItemID:    itemID.String(),
		FromPhase: string(from),
		ToPhase:   string(to),
		Score:     res.Score,
		Issues:    res.IssueStrings(),
	}
	if res.Accepted {
		e.publish(events.SubjectHandoffAccepted(itemID.String()), outcome)
	} else {
		e.publish(events.SubjectHandoffRejected(itemID.String()), outcome)
	}

	e.logger.Info("handoff validated",
		"item_id", itemID,
		"from", from,
		"to", to,
		"score", res.Score,
		"status", status,
	)
	return &SubmitResult{
		HandoffID: h.ID,
		Status:    status,
		Score:     res.Score,
		Issues:    res.Issues,
	}, nil
}

// AdvancePhase moves an item one step forward in the lifecycle. Every step
// before the final write is side-effect-free, so a caller can retry safely:
//
//  1. the item must currently sit in the source phase,
//  2. the dependency chain must allow proceeding,
//  3. the latest handoff for the boundary must be accepted,
//  4. for gated boundaries, the latest gate result must be a pass,
//  5. the phase pointer flips via compare-and-swap and progress is recomputed.
//
// A concurrent advance that wins the race surfaces here as
// store.ErrStaleState, which the caller may retry after re-reading.
func (e *Engine) AdvancePhase(ctx context.Context, itemID uuid.UUID, from, to store.Phase) (*AdvanceResult, error) {
	item, err := e.store.GetWorkItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrItemNotFound
	}

	next, ok := phase.Next(from)
	if !ok || next != to {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	if item.Phase != from {
		return nil, fmt.Errorf("%w: item is in %s, expected %s", store.ErrStaleState, item.Phase, from)
	}

	chain, err := e.resolver.Validate(ctx, item)
	if err != nil {
		return nil, err
	}
	if !chain.CanProceed {
		e.publish(events.SubjectItemBlocked(itemID.String()), events.ItemBlockedEvent{
			ItemID:    itemID.String(),
			FromPhase: string(from),
			ToPhase:   string(to),
			BlockedBy: refIDs(chain.BlockedBy),
			Reason:    chain.Reason,
		})
		advancesTotal.WithLabelValues(string(AdvanceBlocked)).Inc()
		return &AdvanceResult{
			Status:    AdvanceBlocked,
			Detail:    chain.Reason,
			BlockedBy: chain.BlockedBy,
		}, nil
	}

	latest, err := e.store.LatestHandoff(ctx, itemID, from, to)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		advancesTotal.WithLabelValues(string(AdvanceRejected)).Inc()
		return &AdvanceResult{
			Status: AdvanceRejected,
			Detail: fmt.Sprintf("no handoff submitted for %s -> %s", from, to),
		}, nil
	}
	if latest.Status != store.HandoffAccepted {
		advancesTotal.WithLabelValues(string(AdvanceRejected)).Inc()
		detail := fmt.Sprintf("latest handoff %s is %s (score %.1f)", latest.ID, latest.Status, latest.Score)
		return &AdvanceResult{Status: AdvanceRejected, Detail: detail}, nil
	}

	if gateID, gated := e.cfg.Governance.GatedTransitions[transitionKey(from, to)]; gated {
		latestGate, err := e.store.LatestGateResult(ctx, gateID, itemID)
		if err != nil {
			return nil, err
		}
		if latestGate == nil || latestGate.Verdict != store.VerdictPass {
			advancesTotal.WithLabelValues(string(AdvanceRejected)).Inc()
			detail := fmt.Sprintf("gate %q has not passed for this item", gateID)
			if latestGate != nil {
				detail = fmt.Sprintf("gate %q latest run failed (score %.1f)", gateID, latestGate.Score)
			}
			return &AdvanceResult{Status: AdvanceRejected, Detail: detail}, nil
		}
	}

	moved := *item
	moved.Phase = to
	percent, _ := phase.Progress(&moved)

	status := store.StatusActive
	if to == store.PhaseCompleted {
		status = store.StatusCompleted
	}
	if err := e.store.UpdateWorkItemPhase(ctx, itemID, from, to, percent, status); err != nil {
		return nil, err
	}

	advancesTotal.WithLabelValues(string(AdvanceAdvanced)).Inc()
	e.publish(events.SubjectItemAdvanced(itemID.String()), events.PhaseAdvancedEvent{
		ItemID:    itemID.String(),
		Title:     item.Title,
		FromPhase: string(from),
		ToPhase:   string(to),
		Progress:  percent,
	})
	if to == store.PhaseCompleted {
		e.publish(events.SubjectItemCompleted(itemID.String()), events.ItemCompletedEvent{
			ItemID:          itemID.String(),
			Title:           item.Title,
			TotalDurationMs: time.Since(item.CreatedAt).Milliseconds(),
		})
	}

	e.logger.Info("phase advanced",
		"item_id", itemID,
		"from", from,
		"to", to,
		"progress", percent,
	)
	return &AdvanceResult{Status: AdvanceAdvanced, Progress: percent}, nil
}

// RunGate executes the named gate against an item and appends the result to
// the audit trail.
func (e *Engine) RunGate(ctx context.Context, gateID string, itemID uuid.UUID) (*store.GateResult, error) {
	item, err := e.store.GetWorkItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrItemNotFound
	}

	result, err := e.gates.Run(ctx, gateID, item)
	if err != nil {
		return nil, err
	}

	gateRunsTotal.WithLabelValues(string(result.Verdict)).Inc()
	event := events.GateRunEvent{
		GateID:  gateID,
		ItemID:  itemID.String(),
		Score:   result.Score,
		Verdict: string(result.Verdict),
	}
	if result.Verdict == store.VerdictPass {
		e.publish(events.SubjectGatePassed(itemID.String()), event)
	} else {
		e.publish(events.SubjectGateFailed(itemID.String()), event)
	}
	return result, nil
}

// CheckDependencies evaluates the item's dependency chain without mutating
// either side.
func (e *Engine) CheckDependencies(ctx context.Context, itemID uuid.UUID) (*depchain.Result, error) {
	item, err := e.store.GetWorkItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrItemNotFound
	}
	return e.resolver.Validate(ctx, item)
}

// WaitForDependency blocks cooperatively until a single dependency is met,
// using the configured poll interval and wait timeout. Cancel the context to
// abort a stuck wait.
func (e *Engine) WaitForDependency(ctx context.Context, ref store.DependencyRef) error {
	return e.resolver.WaitFor(ctx, ref, e.cfg.PollInterval(), e.cfg.WaitTimeout())
}

// ComputeProgress derives the current progress percentage and per-phase
// breakdown. It is read-only; the persisted progress field moves only when a
// phase advances.
func (e *Engine) ComputeProgress(ctx context.Context, itemID uuid.UUID) (*ProgressReport, error) {
	item, err := e.store.GetWorkItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrItemNotFound
	}
	percent, byPhase := phase.Progress(item)
	return &ProgressReport{ItemID: itemID, Percent: percent, ByPhase: byPhase}, nil
}

// CheckAction runs the pre-action policy and routing checks.
func (e *Engine) CheckAction(actorRole, actionCategory, intent string) policy.Decision {
	return e.advisor.CheckAction(actorRole, actionCategory, intent)
}

// Cancel moves an item to the terminal CANCELLED phase, freezing its
// progress where it stands.
func (e *Engine) Cancel(ctx context.Context, itemID uuid.UUID, reason string) error {
	item, err := e.store.GetWorkItem(ctx, itemID)
	if err != nil {
		return err
	}
	if item == nil {
		return ErrItemNotFound
	}
	if phase.IsTerminal(item.Phase) {
		return fmt.Errorf("%w: %s -> CANCELLED", ErrInvalidTransition, item.Phase)
	}

	if err := e.store.UpdateWorkItemPhase(ctx, itemID, item.Phase, store.PhaseCancelled, item.Progress, store.StatusCancelled); err != nil {
		return err
	}
	e.publish(events.SubjectItemCancelled(itemID.String()), events.ItemCancelledEvent{
		ItemID: itemID.String(),
		Reason: reason,
	})
	e.logger.Info("item cancelled", "item_id", itemID, "reason", reason)
	return nil
}

// Archive soft-deletes a terminal item. Items are never hard-deleted.
func (e *Engine) Archive(ctx context.Context, itemID uuid.UUID) error {
	item, err := e.store.GetWorkItem(ctx, itemID)
	if err != nil {
		return err
	}
	if item == nil {
		return ErrItemNotFound
	}
	if !phase.IsTerminal(item.Phase) {
		return fmt.Errorf("%w: phase %s", ErrNotTerminal, item.Phase)
	}
	if err := e.store.ArchiveWorkItem(ctx, itemID); err != nil {
		return err
	}
	e.publish(events.SubjectItemArchived(itemID.String()), map[string]string{"item_id": itemID.String()})
	return nil
}

func (e *Engine) publish(subject string, data interface{}) {
	if e.events == nil {
		return
	}
	if err := e.events.Publish(subject, data); err != nil {
		e.logger.Warn("publish event", "subject", subject, "error", err)
	}
}

func transitionKey(from, to store.Phase) string {
	return string(from) + "->" + string(to)
}

func refIDs(refs []store.DependencyRef) []string {
	ids := make([]string, len(refs))
	for i, ref := range refs {
		ids[i] = ref.ItemID.String()
	}
	return ids
}
