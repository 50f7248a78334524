// Package engine drives tax rule sequences over the itineraries of a request.
package engine

import (
	"time"

	"github.com/noah-isme/taxcore/internal/rules"
	"github.com/noah-isme/taxcore/internal/tax"
)

// Outcome is the result of applying one rule.
type Outcome string

const (
	OutcomePassed   Outcome = "passed"
	OutcomeFailed   Outcome = "failed"
	OutcomeExempted Outcome = "exempted"
)

// Observer receives evaluation events. Implementations must be safe for concurrent use.
type Observer interface {
	RuleApplied(id tax.RuleID, outcome Outcome)
	SequenceCompleted(name tax.TaxName, passed bool)
	ItinCompleted(elapsed time.Duration)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) RuleApplied(tax.RuleID, Outcome)     {}
func (NopObserver) SequenceCompleted(tax.TaxName, bool) {}
func (NopObserver) ItinCompleted(time.Duration)         {}

// RuleApplier applies a single rule of a sequence to a payment detail.
type RuleApplier struct {
	Observer Observer
}

// Apply skips exempted rules without touching the detail, otherwise binds the rule to the
// itinerary and evaluates it. A false result fails the whole detail, attributed to the rule.
func (a RuleApplier) Apply(rule rules.BusinessRule, itinIndex int, req *tax.Request, svc tax.Services, payments *tax.RawPayments, detail *tax.Detail) bool {
	observer := a.Observer
	if observer == nil {
		observer = NopObserver{}
	}
	if rule.ID().Exemptable() && req.IsExempted(rule.ID()) {
		observer.RuleApplied(rule.ID(), OutcomeExempted)
		return true
	}
	applicator := rule.NewApplicator(itinIndex, req, svc, payments)
	if !applicator.Apply(detail) {
		detail.FailAll(rule)
		observer.RuleApplied(rule.ID(), OutcomeFailed)
		return false
	}
	observer.RuleApplied(rule.ID(), OutcomePassed)
	return true
}

// ApplyRule applies a rule without observing it.
func ApplyRule(rule rules.BusinessRule, itinIndex int, req *tax.Request, svc tax.Services, payments *tax.RawPayments, detail *tax.Detail) bool {
	return RuleApplier{}.Apply(rule, itinIndex, req, svc, payments, detail)
}
