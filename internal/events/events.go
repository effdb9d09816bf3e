package events

type ItemCreatedEvent struct {
	ItemID   string `json:"item_id"`
	Title    string `json:"title"`
	Category string `json:"category,omitempty"`
}

type PhaseAdvancedEvent struct {
	ItemID    string  `json:"item_id"`
	Title     string  `json:"title"`
	FromPhase string  `json:"from_phase"`
	ToPhase   string  `json:"to_phase"`
	Progress  float64 `json:"progress"`
}

type ItemBlockedEvent struct {
	ItemID    string   `json:"item_id"`
	FromPhase string   `json:"from_phase"`
	ToPhase   string   `json:"to_phase"`
	BlockedBy []string `json:"blocked_by"`
	Reason    string   `json:"reason,omitempty"`
}

type ItemCompletedEvent struct {
	ItemID          string `json:"item_id"`
	Title           string `json:"title"`
	TotalDurationMs int64  `json:"total_duration_ms"`
}

type ItemCancelledEvent struct {
	ItemID string `json:"item_id"`
	Reason string `json:"reason,omitempty"`
}

type HandoffOutcomeEvent struct {
	HandoffID string   `json:"handoff_id"`
	ItemID    string   `json:"item_id"`
	FromPhase string   `json:"from_phase"`
	ToPhase   string   `json:"to_phase"`
	Score     float64  `json:"score"`
	Issues    []string `json:"issues,omitempty"`
}

type GateRunEvent struct {
	GateID  string  `json:"gate_id"`
	ItemID  string  `json:"item_id"`
	Score   float64 `json:"score"`
	Verdict string  `json:"verdict"`
}
