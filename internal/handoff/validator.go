// Package handoff validates phase-to-phase handoff documents.
//
// A handoff carries seven mandatory sections. Validation scores each section
// for presence and minimum substance, aggregates a 0–100 completeness score,
// and accepts the handoff when the score clears the threshold and no blocking
// issue is present. Acceptance is a side effect of passing validation, never
// a manual flag flip.
package handoff

import (
	"fmt"
	"strings"

	"github.com/stratoshq/governor/internal/phase"
	"github.com/stratoshq/governor/internal/store"
)

// AcceptanceThreshold is the minimum completeness score for acceptance.
const AcceptanceThreshold = 80.0

// minSectionChars is the substance floor for free-text sections. Shorter
// content earns half credit and a "weak" issue.
const minSectionChars = 20

const (
	SeverityMissing  = "missing"
	SeverityWeak     = "weak"
	SeverityBlocking = "blocking"
)

// Issue describes one failed or weak section for caller remediation.
type Issue struct {
	Section  string `json:"section"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s (%s)", i.Section, i.Message, i.Severity)
}

// Result is the outcome of validating one handoff payload.
type Result struct {
	Score    float64 `json:"score"`
	Accepted bool    `json:"accepted"`
	Issues   []Issue `json:"issues,omitempty"`
}

// IssueStrings flattens the issue list for storage alongside the handoff row.
func (r Result) IssueStrings() []string {
	if len(r.Issues) == 0 {
		return nil
	}
	out := make([]string, len(r.Issues))
	for i, issue := range r.Issues {
		out[i] = issue.String()
	}
	return out
}

// sectionCount is the number of equally weighted mandatory sections.
const sectionCount = 7

// Validate scores the seven mandatory sections of a handoff payload bound
// for toPhase. It is a pure function: re-validating the same payload yields
// the same score and outcome.
func Validate(sections store.HandoffSections, toPhase store.Phase) Result {
	var res Result
	var earned float64

	earned += scoreText(&res, "executive_summary", sections.ExecutiveSummary)
	earned += scoreText(&res, "completeness_report", sections.CompletenessReport)
	earned += scoreList(&res, "deliverables_manifest", len(sections.DeliverablesManifest))
	earned += scoreList(&res, "key_decisions", len(sections.KeyDecisions))
	earned += scoreKnownIssues(&res, sections.KnownIssues)
	earned += scoreText(&res, "resource_utilization", sections.ResourceUtilization)
	earned += scoreActionItems(&res, sections.ActionItems, toPhase)

	res.Score = earned / sectionCount * 100

	blocked := false
	for _, issue := range res.Issues {
		if issue.Severity == SeverityBlocking {
			blocked = true
			break
		}
	}
	res.Accepted = res.Score >= AcceptanceThreshold && !blocked
	return res
}

func scoreText(res *Result, name, content string) float64 {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		res.Issues = append(res.Issues, Issue{
			Section: name, Severity: SeverityMissing, Message: "section is empty",
		})
		return 0
	}
	if len(trimmed) < minSectionChars {
		res.Issues = append(res.Issues, Issue{
			Section: name, Severity: SeverityWeak,
			Message: fmt.Sprintf("content too short (%d chars, want at least %d)", len(trimmed), minSectionChars),
		})
		return 0.5
	}
	return 1
}

func scoreList(res *Result, name string, n int) float64 {
	if n == 0 {
		res.Issues = append(res.Issues, Issue{
			Section: name, Severity: SeverityMissing, Message: "no entries",
		})
		return 0
	}
	return 1
}

// scoreKnownIssues gives full credit for a present (possibly empty) issue
// list but raises a blocking issue for any unresolved CRITICAL entry.
func scoreKnownIssues(res *Result, issues []store.KnownIssue) float64 {
	for _, issue := range issues {
		if strings.EqualFold(issue.Severity, "CRITICAL") && !issue.Resolved {
			res.Issues = append(res.Issues, Issue{
				Section:  "known_issues",
				Severity: SeverityBlocking,
				Message:  "unresolved CRITICAL issue: " + issue.Description,
			})
		}
	}
	return 1
}

// scoreActionItems requires entries when the target phase still has work
// ahead of it; a terminal target may legitimately have none.
func scoreActionItems(res *Result, items []string, toPhase store.Phase) float64 {
	if len(items) == 0 {
		if phase.IsTerminal(toPhase) {
			return 1
		}
		res.Issues = append(res.Issues, Issue{
			Section: "action_items", Severity: SeverityMissing,
			Message: "action items required for non-terminal target phase",
		})
		return 0
	}
	return 1
}
