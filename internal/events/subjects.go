package events

const (
	StreamName   = "GOVERNOR_EVENTS"
	StreamMaxAge = "720h" // 30 days
)

func SubjectItemCreated(itemID string) string   { return "gov.item." + itemID + ".created" }
func SubjectItemAdvanced(itemID string) string  { return "gov.item." + itemID + ".advanced" }
func SubjectItemBlocked(itemID string) string   { return "gov.item." + itemID + ".blocked" }
func SubjectItemCompleted(itemID string) string { return "gov.item." + itemID + ".completed" }
func SubjectItemCancelled(itemID string) string { return "gov.item." + itemID + ".cancelled" }
func SubjectItemArchived(itemID string) string  { return "gov.item." + itemID + ".archived" }

func SubjectHandoffAccepted(itemID string) string { return "gov.handoff." + itemID + ".accepted" }
func SubjectHandoffRejected(itemID string) string { return "gov.handoff." + itemID + ".rejected" }

func SubjectGatePassed(itemID string) string { return "gov.gate." + itemID + ".passed" }
func SubjectGateFailed(itemID string) string { return "gov.gate." + itemID + ".failed" }
