package depchain

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/stratoshq/governor/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedItem(t *testing.T, ms *store.MemoryStore, phase store.Phase, progress float64) *store.WorkItem {
	t.Helper()
	item := &store.WorkItem{
		Title:    "dep",
		Phase:    phase,
		Status:   store.StatusActive,
		Progress: progress,
	}
	if err := ms.CreateWorkItem(context.Background(), item); err != nil {
		t.Fatalf("CreateWorkItem: %v", err)
	}
	return item
}

func TestValidateNoDependencies(t *testing.T) {
	r := NewResolver(store.NewMemoryStore(), testLogger())

	res, err := r.Validate(context.Background(), &store.WorkItem{})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !res.CanProceed {
		t.Error("no dependencies must proceed immediately")
	}
	if len(res.BlockedBy) != 0 || res.Reason != "" {
		t.Errorf("unexpected blockers: %+v", res)
	}
}

func TestValidateMinProgress(t *testing.T) {
	ms := store.NewMemoryStore()
	r := NewResolver(ms, testLogger())

	dep := seedItem(t, ms, store.PhasePlan, 30)
	item := &store.WorkItem{
		Dependencies: []store.DependencyRef{{ItemID: dep.ID, MinProgress: 50}},
	}

	res, err := r.Validate(context.Background(), item)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if res.CanProceed {
		t.Fatal("30% progress must not satisfy a 50% minimum")
	}
	if len(res.BlockedBy) != 1 || res.BlockedBy[0].ItemID != dep.ID {
		t.Errorf("expected dep in BlockedBy, got %+v", res.BlockedBy)
	}
	if !strings.Contains(res.Reason, "progress") {
		t.Errorf("reason should name the progress shortfall, got %q", res.Reason)
	}

	// The dependency advances to 50; the exact boundary is met.
	if err := ms.UpdateWorkItemPhase(context.Background(), dep.ID, store.PhasePlan, store.PhaseExec, 50, store.StatusActive); err != nil {
		t.Fatalf("UpdateWorkItemPhase: %v", err)
	}
	res, err = r.Validate(context.Background(), item)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !res.CanProceed {
		t.Errorf("progress at the exact boundary must satisfy the minimum: %+v", res)
	}
}

func TestValidateMinPhase(t *testing.T) {
	ms := store.NewMemoryStore()
	r := NewResolver(ms, testLogger())

	dep := seedItem(t, ms, store.PhasePlan, 20)
	item := &store.WorkItem{
		Dependencies: []store.DependencyRef{{ItemID: dep.ID, MinPhase: store.PhaseExec}},
	}

	res, err := r.Validate(context.Background(), item)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if res.CanProceed {
		t.Error("PLAN must not satisfy a minimum of EXEC")
	}

	if err := ms.UpdateWorkItemPhase(context.Background(), dep.ID, store.PhasePlan, store.PhaseExec, 40, store.StatusActive); err != nil {
		t.Fatalf("UpdateWorkItemPhase: %v", err)
	}
	res, err = r.Validate(context.Background(), item)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !res.CanProceed {
		t.Errorf("EXEC must satisfy a minimum of EXEC: %+v", res)
	}
}

func TestValidateCompletedSatisfiesAnyMinimum(t *testing.T) {
	ms := store.NewMemoryStore()
	r := NewResolver(ms, testLogger())

	dep := seedItem(t, ms, store.PhaseCompleted, 100)
	item := &store.WorkItem{
		Dependencies: []store.DependencyRef{{ItemID: dep.ID, MinPhase: store.PhaseLeadFinalApproval, MinProgress: 90}},
	}

	res, err := r.Validate(context.Background(), item)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !res.CanProceed {
		t.Errorf("completed dependency must satisfy any minimum: %+v", res)
	}
}

func TestValidateMissingReference(t *testing.T) {
	r := NewResolver(store.NewMemoryStore(), testLogger())

	item := &store.WorkItem{
		Dependencies: []store.DependencyRef{{ItemID: uuid.New()}},
	}
	res, err := r.Validate(context.Background(), item)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if res.CanProceed {
		t.Fatal("missing referenced item is a permanent block")
	}
	if !strings.Contains(res.Reason, "not found") {
		t.Errorf("reason should name the missing reference, got %q", res.Reason)
	}
}

func TestValidateCancelledDependencyBlocks(t *testing.T) {
	ms := store.NewMemoryStore()
	r := NewResolver(ms, testLogger())

	dep := seedItem(t, ms, store.PhaseCancelled, 40)
	item := &store.WorkItem{
		Dependencies: []store.DependencyRef{{ItemID: dep.ID}},
	}

	res, err := r.Validate(context.Background(), item)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if res.CanProceed {
		t.Error("cancelled dependency must block")
	}
}

func TestValidateCollectsAllBlockers(t *testing.T) {
	ms := store.NewMemoryStore()
	r := NewResolver(ms, testLogger())

	a := seedItem(t, ms, store.PhaseLead, 0)
	b := seedItem(t, ms, store.PhasePlan, 20)
	item := &store.WorkItem{
		Dependencies: []store.DependencyRef{
			{ItemID: a.ID, MinPhase: store.PhaseExec},
			{ItemID: b.ID, MinProgress: 70},
		},
	}

	res, err := r.Validate(context.Background(), item)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(res.BlockedBy) != 2 {
		t.Errorf("expected both dependencies reported, got %+v", res.BlockedBy)
	}
	if !strings.Contains(res.Reason, "; ") {
		t.Errorf("reason should join all causes, got %q", res.Reason)
	}
}

func TestWaitForAlreadyMet(t *testing.T) {
	ms := store.NewMemoryStore()
	r := NewResolver(ms, testLogger())

	dep := seedItem(t, ms, store.PhaseExec, 40)
	err := r.WaitFor(context.Background(), store.DependencyRef{ItemID: dep.ID, MinPhase: store.PhaseExec}, time.Millisecond, time.Second)
	if err != nil {
		t.Errorf("WaitFor on a met dependency should return immediately: %v", err)
	}
}

func TestWaitForResolvesWhenDependencyAdvances(t *testing.T) {
	ms := store.NewMemoryStore()
	r := NewResolver(ms, testLogger())

	dep := seedItem(t, ms, store.PhasePlan, 20)
	go func() {
		time.Sleep(30 * time.Millisecond)
		ms.UpdateWorkItemPhase(context.Background(), dep.ID, store.PhasePlan, store.PhaseExec, 40, store.StatusActive)
	}()

	err := r.WaitFor(context.Background(), store.DependencyRef{ItemID: dep.ID, MinPhase: store.PhaseExec}, 10*time.Millisecond, 2*time.Second)
	if err != nil {
		t.Errorf("WaitFor should resolve once the dependency advances: %v", err)
	}
}

func TestWaitForTimeout(t *testing.T) {
	ms := store.NewMemoryStore()
	r := NewResolver(ms, testLogger())

	dep := seedItem(t, ms, store.PhaseLead, 0)
	err := r.WaitFor(context.Background(), store.DependencyRef{ItemID: dep.ID, MinPhase: store.PhaseExec}, 10*time.Millisecond, 50*time.Millisecond)
	if !errors.Is(err, ErrWaitTimeout) {
		t.Errorf("expected ErrWaitTimeout, got %v", err)
	}
}

func TestWaitForContextCancel(t *testing.T) {
	ms := store.NewMemoryStore()
	r := NewResolver(ms, testLogger())

	dep := seedItem(t, ms, store.PhaseLead, 0)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := r.WaitFor(ctx, store.DependencyRef{ItemID: dep.ID, MinPhase: store.PhaseExec}, 10*time.Millisecond, 5*time.Second)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
