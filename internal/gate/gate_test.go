package gate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/stratoshq/governor/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func passCheck(evidence string) CheckFunc {
	return func(ctx context.Context, item *store.WorkItem) (bool, string, error) {
		return true, evidence, nil
	}
}

func failCheck(evidence string) CheckFunc {
	return func(ctx context.Context, item *store.WorkItem) (bool, string, error) {
		return false, evidence, nil
	}
}

func newTestRunner(t *testing.T, gates map[string][]Rule, register func(*Registry)) (*Runner, *store.MemoryStore) {
	t.Helper()
	reg := NewRegistry()
	if register != nil {
		register(reg)
	}
	ms := store.NewMemoryStore()
	return NewRunner(ms, reg, gates, time.Second, testLogger()), ms
}

func testItem() *store.WorkItem {
	return &store.WorkItem{ID: uuid.New(), Phase: store.PhaseExec}
}

func TestRunAllRulesPass(t *testing.T) {
	gates := map[string][]Rule{
		"unit-test": {
			{Name: "a", Weight: 50, Required: true},
			{Name: "b", Weight: 30},
			{Name: "c", Weight: 20},
		},
	}
	runner, _ := newTestRunner(t, gates, func(reg *Registry) {
		reg.Register("a", passCheck("ok"))
		reg.Register("b", passCheck("ok"))
		reg.Register("c", passCheck("ok"))
	})

	result, err := runner.Run(context.Background(), "unit-test", testItem())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Score != 100 {
		t.Errorf("expected score 100, got %.1f", result.Score)
	}
	if result.Verdict != store.VerdictPass {
		t.Errorf("expected pass, got %s", result.Verdict)
	}
	if len(result.Rules) != 3 {
		t.Errorf("expected 3 rule results, got %d", len(result.Rules))
	}
}

func TestRunRequiredRuleFailureForcesFail(t *testing.T) {
	// Weights 50/30/20; the required 50-weight rule fails. Score drops to 50
	// and the required override would force a fail even above the threshold.
	gates := map[string][]Rule{
		"unit-test": {
			{Name: "tests", Weight: 50, Required: true},
			{Name: "coverage", Weight: 30},
			{Name: "checklist", Weight: 20},
		},
	}
	runner, _ := newTestRunner(t, gates, func(reg *Registry) {
		reg.Register("tests", failCheck("not executed"))
		reg.Register("coverage", passCheck("ok"))
		reg.Register("checklist", passCheck("ok"))
	})

	result, err := runner.Run(context.Background(), "unit-test", testItem())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Score != 50 {
		t.Errorf("expected score 50, got %.1f", result.Score)
	}
	if result.Verdict != store.VerdictFail {
		t.Errorf("expected fail, got %s", result.Verdict)
	}
}

func TestRunRequiredOverrideBeatsHighScore(t *testing.T) {
	// A light required rule fails while heavy optional rules pass; the 90
	// score clears the threshold but the override still fails the gate.
	gates := map[string][]Rule{
		"g": {
			{Name: "heavy", Weight: 90},
			{Name: "light", Weight: 10, Required: true},
		},
	}
	runner, _ := newTestRunner(t, gates, func(reg *Registry) {
		reg.Register("heavy", passCheck("ok"))
		reg.Register("light", failCheck("nope"))
	})

	result, err := runner.Run(context.Background(), "g", testItem())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Score != 90 {
		t.Errorf("expected score 90, got %.1f", result.Score)
	}
	if result.Verdict != store.VerdictFail {
		t.Errorf("required failure must force fail, got %s", result.Verdict)
	}
}

func TestRunBelowThresholdFails(t *testing.T) {
	gates := map[string][]Rule{
		"g": {
			{Name: "a", Weight: 80},
			{Name: "b", Weight: 20},
		},
	}
	runner, _ := newTestRunner(t, gates, func(reg *Registry) {
		reg.Register("a", passCheck("ok"))
		reg.Register("b", failCheck("nope"))
	})

	result, err := runner.Run(context.Background(), "g", testItem())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Score != 80 {
		t.Errorf("expected score 80, got %.1f", result.Score)
	}
	if result.Verdict != store.VerdictFail {
		t.Errorf("80 is below the pass threshold, got %s", result.Verdict)
	}
}

func TestRunUnknownGate(t *testing.T) {
	runner, _ := newTestRunner(t, map[string][]Rule{}, nil)

	_, err := runner.Run(context.Background(), "no-such-gate", testItem())
	if !errors.Is(err, ErrUnknownGate) {
		t.Errorf("expected ErrUnknownGate, got %v", err)
	}
}

func TestRunUnknownRuleSurfacesBeforeChecks(t *testing.T) {
	ran := false
	gates := map[string][]Rule{
		"g": {
			{Name: "known", Weight: 50},
			{Name: "unknown", Weight: 50},
		},
	}
	runner, ms := newTestRunner(t, gates, func(reg *Registry) {
		reg.Register("known", func(ctx context.Context, item *store.WorkItem) (bool, string, error) {
			ran = true
			return true, "ok", nil
		})
	})

	item := testItem()
	_, err := runner.Run(context.Background(), "g", item)
	var ruleErr *UnknownRuleError
	if !errors.As(err, &ruleErr) {
		t.Fatalf("expected UnknownRuleError, got %v", err)
	}
	if ruleErr.Rule != "unknown" {
		t.Errorf("expected rule \"unknown\", got %q", ruleErr.Rule)
	}
	if ran {
		t.Error("no check should run when the rule set is misconfigured")
	}
	results, _ := ms.ListGateResults(context.Background(), item.ID)
	if len(results) != 0 {
		t.Error("no result should be persisted for a misconfigured gate")
	}
}

func TestRunCheckErrorRecordedAsFailure(t *testing.T) {
	gates := map[string][]Rule{
		"g": {{Name: "errs", Weight: 100}},
	}
	runner, _ := newTestRunner(t, gates, func(reg *Registry) {
		reg.Register("errs", func(ctx context.Context, item *store.WorkItem) (bool, string, error) {
			return false, "", errors.New("backend unavailable")
		})
	})

	result, err := runner.Run(context.Background(), "g", testItem())
	if err != nil {
		t.Fatalf("a failing check must not abort the run: %v", err)
	}
	if result.Verdict != store.VerdictFail {
		t.Errorf("expected fail, got %s", result.Verdict)
	}
	if result.Rules[0].Evidence != "backend unavailable" {
		t.Errorf("expected error as evidence, got %q", result.Rules[0].Evidence)
	}
}

func TestRunCheckPanicContained(t *testing.T) {
	gates := map[string][]Rule{
		"g": {
			{Name: "panics", Weight: 50},
			{Name: "ok", Weight: 50},
		},
	}
	runner, _ := newTestRunner(t, gates, func(reg *Registry) {
		reg.Register("panics", func(ctx context.Context, item *store.WorkItem) (bool, string, error) {
			panic("boom")
		})
		reg.Register("ok", passCheck("fine"))
	})

	result, err := runner.Run(context.Background(), "g", testItem())
	if err != nil {
		t.Fatalf("a panicking check must not abort the run: %v", err)
	}
	if result.Rules[0].Passed {
		t.Error("panicking check must be recorded as failed")
	}
	if !result.Rules[1].Passed {
		t.Error("remaining checks must still run")
	}
	if result.Score != 50 {
		t.Errorf("expected score 50, got %.1f", result.Score)
	}
}

func TestRunCheckTimeout(t *testing.T) {
	gates := map[string][]Rule{
		"g": {{Name: "slow", Weight: 100}},
	}
	reg := NewRegistry()
	reg.Register("slow", func(ctx context.Context, item *store.WorkItem) (bool, string, error) {
		<-ctx.Done()
		return true, "too late", nil
	})
	runner := NewRunner(store.NewMemoryStore(), reg, gates, 20*time.Millisecond, testLogger())

	result, err := runner.Run(context.Background(), "g", testItem())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Rules[0].Passed {
		t.Error("timed-out check must be recorded as failed")
	}
	if result.Rules[0].Evidence != "timed out" {
		t.Errorf("expected evidence \"timed out\", got %q", result.Rules[0].Evidence)
	}
	if result.Verdict != store.VerdictFail {
		t.Errorf("expected fail, got %s", result.Verdict)
	}
}

func TestRunPersistsResult(t *testing.T) {
	gates := map[string][]Rule{
		"g": {{Name: "a", Weight: 100}},
	}
	runner, ms := newTestRunner(t, gates, func(reg *Registry) {
		reg.Register("a", passCheck("ok"))
	})

	item := testItem()
	first, err := runner.Run(context.Background(), "g", item)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := runner.Run(context.Background(), "g", item); err != nil {
		t.Fatalf("Run: %v", err)
	}

	results, err := ms.ListGateResults(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("ListGateResults: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 persisted results, got %d", len(results))
	}

	latest, err := ms.LatestGateResult(context.Background(), "g", item.ID)
	if err != nil {
		t.Fatalf("LatestGateResult: %v", err)
	}
	if latest.ID == first.ID {
		t.Error("latest result should be the second run")
	}
}

func TestChecklistCompleteCheck(t *testing.T) {
	check := ChecklistComplete(store.PhaseExec)
	item := testItem()

	passed, _, _ := check(context.Background(), item)
	if passed {
		t.Error("missing checklist must fail")
	}

	item.Checklists = map[store.Phase][]store.ChecklistItem{
		store.PhaseExec: {
			{Text: "one", Done: true},
			{Text: "two", Done: false},
		},
	}
	passed, evidence, _ := check(context.Background(), item)
	if passed {
		t.Errorf("incomplete checklist must fail: %s", evidence)
	}

	item.Checklists[store.PhaseExec][1].Done = true
	passed, _, _ = check(context.Background(), item)
	if !passed {
		t.Error("complete checklist must pass")
	}
}

func TestProgressAtLeastCheck(t *testing.T) {
	check := ProgressAtLeast(85)
	item := testItem()

	item.Progress = 70
	if passed, _, _ := check(context.Background(), item); passed {
		t.Error("70 must not satisfy a minimum of 85")
	}
	item.Progress = 85
	if passed, _, _ := check(context.Background(), item); !passed {
		t.Error("85 must satisfy a minimum of 85")
	}
}

func TestMetadataChecks(t *testing.T) {
	item := testItem()
	item.Metadata = map[string]any{
		"tests_executed": true,
		"coverage":       float64(92),
		"notes":          "text",
	}

	if passed, _, _ := MetadataTrue("tests_executed")(context.Background(), item); !passed {
		t.Error("true flag must pass")
	}
	if passed, _, _ := MetadataTrue("missing")(context.Background(), item); passed {
		t.Error("missing key must fail")
	}
	if passed, _, _ := MetadataTrue("notes")(context.Background(), item); passed {
		t.Error("non-boolean value must fail")
	}

	if passed, _, _ := MetadataNumberAtLeast("coverage", 80)(context.Background(), item); !passed {
		t.Error("92 must satisfy a minimum of 80")
	}
	if passed, _, _ := MetadataNumberAtLeast("coverage", 95)(context.Background(), item); passed {
		t.Error("92 must not satisfy a minimum of 95")
	}
	if passed, _, _ := MetadataNumberAtLeast("notes", 1)(context.Background(), item); passed {
		t.Error("non-numeric value must fail")
	}
}
