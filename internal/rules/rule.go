// Package rules holds the business rules of tax sequences and the applicators they bind to a
// single itinerary.
//
// A BusinessRule carries only the configuration read from a tax table and is shared read-only
// by every itinerary of a request. NewApplicator binds it to one itinerary; the returned
// Applicator evaluates a payment detail and may write computed values into it.
//
// Each rule type documents the restriction it checks on the type itself. Its ID, Description
// and NewApplicator methods follow the BusinessRule contract and are not documented again.
package rules

import (
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/taxcore/internal/tax"
)

// BusinessRule is an immutable, configuration-only rule of a tax sequence.
type BusinessRule interface {
	ID() tax.RuleID
	// Description renders the restriction for diagnostics. It never fails: missing table data
	// is rendered as DOES NOT EXIST.
	Description(svc tax.Services) string
	// NewApplicator binds the rule to one itinerary. Business data absence yields an applicator
	// that fails with a message; only broken request invariants panic.
	NewApplicator(itinIndex int, req *tax.Request, svc tax.Services, payments *tax.RawPayments) Applicator
}

// Applicator evaluates a bound rule against a payment detail.
type Applicator interface {
	Apply(detail *tax.Detail) bool
}

// Dependent is implemented by rules that read amounts of other tax codes from RawPayments.
type Dependent interface {
	DependsOn() []string
}

// ApplicatorFunc adapts a function to the Applicator interface.
type ApplicatorFunc func(detail *tax.Detail) bool

// Apply implements Applicator.
func (f ApplicatorFunc) Apply(detail *tax.Detail) bool { return f(detail) }

func failing(message string) Applicator {
	return ApplicatorFunc(func(detail *tax.Detail) bool {
		detail.ApplicatorFailMessage = message
		return false
	})
}

func failf(detail *tax.Detail, format string, args ...any) bool {
	detail.ApplicatorFailMessage = fmt.Sprintf(format, args...)
	return false
}

func notFound(vendor string, itemNo int) string {
	return fmt.Sprintf("VENDOR %s ITEM %d NOT FOUND IN SERVICES!", vendor, itemNo)
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "NONE"
	}
	return strings.ToUpper(t.Format("02Jan2006"))
}

// cityOf resolves the city of loc from the location tables. The city carried on the request is
// used for codes the tables do not know.
func cityOf(locs tax.LocService, loc tax.Loc) string {
	if locs.Nation(loc.Code) != "" {
		return locs.City(loc.Code)
	}
	return loc.City
}

func nationOf(locs tax.LocService, loc tax.Loc) string {
	if nation := locs.Nation(loc.Code); nation != "" {
		return nation
	}
	return loc.Nation
}

func travelOriginDate(req *tax.Request, itinIndex int) time.Time {
	itin := req.Itin(itinIndex)
	if !itin.TravelOriginDate.IsZero() {
		return itin.TravelOriginDate
	}
	if len(itin.FlightUsages) > 0 {
		return itin.FlightUsages[0].Departure
	}
	return time.Time{}
}
