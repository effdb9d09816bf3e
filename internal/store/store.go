package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrStaleState is returned by UpdateWorkItemPhase when the item's phase no
// longer matches the expected source phase at write time.
var ErrStaleState = errors.New("stale phase state")

type Phase string

const (
	PhaseLead              Phase = "LEAD"
	PhasePlan              Phase = "PLAN"
	PhaseExec              Phase = "EXEC"
	PhasePlanVerification  Phase = "PLAN_VERIFICATION"
	PhaseLeadFinalApproval Phase = "LEAD_FINAL_APPROVAL"
	PhaseCompleted         Phase = "COMPLETED"
	PhaseCancelled         Phase = "CANCELLED"
)

type ItemStatus string

const (
	StatusDraft     ItemStatus = "draft"
	StatusActive    ItemStatus = "active"
	StatusBlocked   ItemStatus = "blocked"
	StatusCompleted ItemStatus = "completed"
	StatusCancelled ItemStatus = "cancelled"
)

// DependencyRef declares a prerequisite work item and the minimum state it
// must reach before the owning item may advance.
type DependencyRef struct {
	ItemID      uuid.UUID `json:"item_id"`
	MinPhase    Phase     `json:"min_phase,omitempty"`
	MinProgress float64   `json:"min_progress,omitempty"`
}

type ChecklistItem struct {
	Text string `json:"text"`
	Done bool   `json:"done"`
}

type WorkItem struct {
	ID       uuid.UUID  `json:"id"`
	Title    string     `json:"title"`
	Category string     `json:"category,omitempty"`
	Phase    Phase      `json:"phase"`
	Status   ItemStatus `json:"status"`

	// Progress is derived from completed phases. Only the phase advancement
	// path writes it; no other code path may set it.
	Progress float64 `json:"progress"`

	Dependencies []DependencyRef           `json:"dependencies,omitempty"`
	Checklists   map[Phase][]ChecklistItem `json:"checklists,omitempty"`
	Metadata     map[string]interface{}    `json:"metadata,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	ArchivedAt *time.Time `json:"archived_at,omitempty"`
}

type WorkItemFilter struct {
	Status   *ItemStatus
	Phase    *Phase
	Category string
	Limit    int
	Offset   int
}

type HandoffStatus string

const (
	HandoffPending  HandoffStatus = "pending"
	HandoffAccepted HandoffStatus = "accepted"
	HandoffRejected HandoffStatus = "rejected"
)

type KnownIssue struct {
	Severity    string `json:"severity"`
	Description string `json:"description"`
	Resolved    bool   `json:"resolved"`
}

// HandoffSections holds the seven mandatory sections of a handoff document.
type HandoffSections struct {
	ExecutiveSummary     string       `json:"executive_summary"`
	CompletenessReport   string       `json:"completeness_report"`
	DeliverablesManifest []string     `json:"deliverables_manifest"`
	KeyDecisions         []string     `json:"key_decisions"`
	KnownIssues          []KnownIssue `json:"known_issues"`
	ResourceUtilization  string       `json:"resource_utilization"`
	ActionItems          []string     `json:"action_items"`
}

type Handoff struct {
	ID         uuid.UUID       `json:"id"`
	ItemID     uuid.UUID       `json:"item_id"`
	FromPhase  Phase           `json:"from_phase"`
	ToPhase    Phase           `json:"to_phase"`
	Status     HandoffStatus   `json:"status"`
	Sections   HandoffSections `json:"sections"`
	Score      float64         `json:"score"`
	Issues     []string        `json:"issues,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	AcceptedAt *time.Time      `json:"accepted_at,omitempty"`
}

type RuleResult struct {
	Name     string  `json:"name"`
	Weight   float64 `json:"weight"`
	Required bool    `json:"required"`
	Passed   bool    `json:"passed"`
	Evidence string  `json:"evidence,omitempty"`
}

type Verdict string

const (
	VerdictPass Verdict = "pass"
	VerdictFail Verdict = "fail"
)

type GateResult struct {
	ID        uuid.UUID    `json:"id"`
	GateID    string       `json:"gate_id"`
	ItemID    uuid.UUID    `json:"item_id"`
	Score     float64      `json:"score"`
	Verdict   Verdict      `json:"verdict"`
	Rules     []RuleResult `json:"rules"`
	CreatedAt time.Time    `json:"created_at"`
}

// Store is the persistence contract for the governance engine.
//
// Handoffs and gate results are append-only. Wherever "latest" is read, the
// tie-break is: highest created_at wins, ties broken by insertion order.
type Store interface {
	CreateWorkItem(ctx context.Context, item *WorkItem) error
	GetWorkItem(ctx context.Context, id uuid.UUID) (*WorkItem, error)
	ListWorkItems(ctx context.Context, filter WorkItemFilter) ([]*WorkItem, error)
	UpdateWorkItem(ctx context.Context, item *WorkItem) error

	// UpdateWorkItemPhase atomically moves the item from one phase to another,
	// writing the recomputed progress in the same statement. Returns
	// ErrStaleState when the item is no longer in the expected source phase.
	UpdateWorkItemPhase(ctx context.Context, id uuid.UUID, from, to Phase, progress float64, status ItemStatus) error
	ArchiveWorkItem(ctx context.Context, id uuid.UUID) error

	CreateHandoff(ctx context.Context, h *Handoff) error
	GetHandoff(ctx context.Context, id uuid.UUID) (*Handoff, error)
	ListHandoffs(ctx context.Context, itemID uuid.UUID) ([]*Handoff, error)
	LatestHandoff(ctx context.Context, itemID uuid.UUID, from, to Phase) (*Handoff, error)
	UpdateHandoffOutcome(ctx context.Context, id uuid.UUID, status HandoffStatus, score float64, issues []string) error

	AppendGateResult(ctx context.Context, result *GateResult) error
	ListGateResults(ctx context.Context, itemID uuid.UUID) ([]*GateResult, error)
	LatestGateResult(ctx context.Context, gateID string, itemID uuid.UUID) (*GateResult, error)

	Close() error
}
