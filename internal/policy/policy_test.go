package policy

import (
	"io"
	"log/slog"
	"strings"
	"testing"
)

func testAdvisor() *Advisor {
	return NewAdvisor(
		[]string{"background-execution"},
		map[string][]string{
			"EXEC": {"code-edit", "test-run"},
		},
		[]RoutingRule{
			{Keywords: []string{"schema", "migration"}, Specialist: "DATABASE"},
			{Keywords: []string{"auth", "security"}, Specialist: "SECURITY"},
			{Keywords: []string{"migration"}, Specialist: "PLATFORM"},
		},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
}

func TestCheckActionDeniedCategory(t *testing.T) {
	a := testAdvisor()

	d := a.CheckAction("EXEC", "background-execution", "run the migration in the background")
	if d.Allowed {
		t.Fatal("denied category must not be allowed")
	}
	if d.Reason == "" {
		t.Error("denial must carry a reason")
	}
	// Denial short-circuits: no warnings, no routing hint, even though the
	// intent would otherwise match a routing rule.
	if len(d.Warnings) != 0 {
		t.Errorf("unexpected warnings on denial: %v", d.Warnings)
	}
	if d.RoutingHint != "" {
		t.Errorf("unexpected routing hint on denial: %q", d.RoutingHint)
	}
}

func TestCheckActionDenyIsCaseInsensitive(t *testing.T) {
	a := testAdvisor()

	d := a.CheckAction("EXEC", "Background-Execution", "")
	if d.Allowed {
		t.Error("category match must ignore case")
	}
}

func TestCheckActionProfileMismatchWarnsWithoutBlocking(t *testing.T) {
	a := testAdvisor()

	d := a.CheckAction("EXEC", "deployment", "ship it")
	if !d.Allowed {
		t.Fatal("profile mismatch is advisory, not blocking")
	}
	if len(d.Warnings) != 1 {
		t.Fatalf("expected one warning, got %v", d.Warnings)
	}
	if !strings.Contains(d.Warnings[0], "deployment") {
		t.Errorf("warning should name the category, got %q", d.Warnings[0])
	}
}

func TestCheckActionProfileMatchNoWarning(t *testing.T) {
	a := testAdvisor()

	d := a.CheckAction("EXEC", "code-edit", "")
	if !d.Allowed || len(d.Warnings) != 0 {
		t.Errorf("allow-listed category should be clean, got %+v", d)
	}
}

func TestCheckActionUnrestrictedRole(t *testing.T) {
	a := testAdvisor()

	d := a.CheckAction("LEAD", "deployment", "")
	if !d.Allowed || len(d.Warnings) != 0 {
		t.Errorf("role without a profile is unrestricted, got %+v", d)
	}
}

func TestRoutingHintFirstMatchWins(t *testing.T) {
	a := testAdvisor()

	// "migration" matches both the DATABASE and PLATFORM rules; the first
	// configured rule wins.
	d := a.CheckAction("EXEC", "code-edit", "apply the migration script")
	if !strings.Contains(d.RoutingHint, "DATABASE") {
		t.Errorf("expected DATABASE hint, got %q", d.RoutingHint)
	}
}

func TestRoutingHintSelfMatchSuppressed(t *testing.T) {
	a := testAdvisor()

	d := a.CheckAction("DATABASE", "code-edit", "update the schema")
	if d.RoutingHint != "" {
		t.Errorf("no hint when the actor already is the specialist, got %q", d.RoutingHint)
	}
}

func TestRoutingHintNoMatch(t *testing.T) {
	a := testAdvisor()

	d := a.CheckAction("EXEC", "code-edit", "tweak the readme wording")
	if d.RoutingHint != "" {
		t.Errorf("unexpected hint, got %q", d.RoutingHint)
	}
}

func TestRoutingHintEmptyIntent(t *testing.T) {
	a := testAdvisor()

	d := a.CheckAction("EXEC", "code-edit", "")
	if d.RoutingHint != "" {
		t.Errorf("empty intent must not produce a hint, got %q", d.RoutingHint)
	}
}

func TestRoutingHintCaseInsensitiveKeyword(t *testing.T) {
	a := testAdvisor()

	d := a.CheckAction("EXEC", "code-edit", "review the AUTH flow")
	if !strings.Contains(d.RoutingHint, "SECURITY") {
		t.Errorf("keyword match must ignore case, got %q", d.RoutingHint)
	}
}
