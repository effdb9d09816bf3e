// Package policy implements the synchronous pre-action advisory check:
// hard denial of unsafe action categories, advisory detection of
// policy-profile drift, and specialist routing hints.
//
// The three checks are independent and carry distinct severities. Only the
// hard-deny check can veto an action; the profile check warns without
// blocking because the allow-list is enforced structurally elsewhere, and the
// routing check emits at most one non-blocking hint.
package policy

import (
	"log/slog"
	"strings"
)

// RoutingRule maps a keyword set to a suggested specialist role.
type RoutingRule struct {
	Keywords   []string
	Specialist string
}

// Decision is the outcome of one pre-action check.
type Decision struct {
	Allowed     bool     `json:"allowed"`
	Reason      string   `json:"reason,omitempty"`
	Warnings    []string `json:"warnings,omitempty"`
	RoutingHint string   `json:"routing_hint,omitempty"`
}

type Advisor struct {
	denied   map[string]bool
	profiles map[string][]string
	routing  []RoutingRule
	logger   *slog.Logger
}

// NewAdvisor builds an advisor from static configuration. deniedCategories
// are rejected unconditionally. profiles maps a role to its allow-list of
// action categories; a role absent from the map (or mapped to nil) is
// unrestricted.
func NewAdvisor(deniedCategories []string, profiles map[string][]string, routing []RoutingRule, logger *slog.Logger) *Advisor {
	denied := make(map[string]bool, len(deniedCategories))
	for _, c := range deniedCategories {
		denied[strings.ToLower(c)] = true
	}
	return &Advisor{
		denied:   denied,
		profiles: profiles,
		routing:  routing,
		logger:   logger,
	}
}

// CheckAction runs the three checks for one proposed action. A hard-denied
// category short-circuits: the caller gets the denial reason and neither
// warnings nor a routing hint.
func (a *Advisor) CheckAction(actorRole, actionCategory, intent string) Decision {
	category := strings.ToLower(actionCategory)

	if a.denied[category] {
		a.logger.Warn("action denied", "role", actorRole, "category", actionCategory)
		return Decision{
			Allowed: false,
			Reason:  "action category " + actionCategory + " is not permitted",
		}
	}

	d := Decision{Allowed: true}

	if allowed, restricted := a.profiles[actorRole]; restricted && allowed != nil {
		if !containsFold(allowed, category) {
			// Log-only: the allow-list is enforced structurally elsewhere;
			// a mismatch here means configuration drift.
			warning := "category " + actionCategory + " outside allow-list for role " + actorRole
			a.logger.Warn("policy profile mismatch", "role", actorRole, "category", actionCategory)
			d.Warnings = append(d.Warnings, warning)
		}
	}

	d.RoutingHint = a.routingHint(actorRole, intent)
	return d
}

// routingHint matches the intent text against the routing rules. First match
// wins, and a matching rule only yields a hint when the suggested specialist
// differs from the current actor.
func (a *Advisor) routingHint(actorRole, intent string) string {
	if intent == "" {
		return ""
	}
	lowered := strings.ToLower(intent)
	for _, rule := range a.routing {
		for _, kw := range rule.Keywords {
			if strings.Contains(lowered, strings.ToLower(kw)) {
				if strings.EqualFold(rule.Specialist, actorRole) {
					return ""
				}
				return "consider delegating to " + rule.Specialist
			}
		}
	}
	return ""
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
