package rules

import (
	"fmt"
	"time"

	"github.com/noah-isme/taxcore/internal/tax"
)

// SaleDateRule restricts the ticketing date to an effective window. A zero Discontinue leaves
// the window open.
type SaleDateRule struct {
	Effective   time.Time
	Discontinue time.Time
}

func (r *SaleDateRule) ID() tax.RuleID { return tax.RuleSaleDate }

func (r *SaleDateRule) Description(tax.Services) string {
	return fmt.Sprintf("SALE DATE BETWEEN %s AND %s", formatDate(r.Effective), formatDate(r.Discontinue))
}

func (r *SaleDateRule) NewApplicator(_ int, req *tax.Request, _ tax.Services, _ *tax.RawPayments) Applicator {
	saleDate := req.Ticketing.TicketingDate
	if saleDate.IsZero() {
		return failing("TICKETING DATE NOT PROVIDED")
	}
	inWindow := withinDates(saleDate, r.Effective, r.Discontinue)
	return ApplicatorFunc(func(detail *tax.Detail) bool {
		if inWindow {
			return true
		}
		return failf(detail, "SALE DATE %s OUTSIDE %s-%s", formatDate(saleDate), formatDate(r.Effective), formatDate(r.Discontinue))
	})
}

func withinDates(t, first, last time.Time) bool {
	day := dateOnly(t)
	if !first.IsZero() && day.Before(dateOnly(first)) {
		return false
	}
	if !last.IsZero() && day.After(dateOnly(last)) {
		return false
	}
	return true
}

// TravelDateTag selects which date TravelDatesRule checks.
type TravelDateTag string

const (
	// TravelDateJourney checks the journey origin date.
	TravelDateJourney TravelDateTag = "J"
	// TravelDateTaxPoint checks the date of the flight at the tax point.
	TravelDateTaxPoint TravelDateTag = "T"
)

// TravelDatesRule restricts the travel date to a window.
type TravelDatesRule struct {
	First time.Time
	Last  time.Time
	Tag   TravelDateTag
}

func (r *TravelDatesRule) ID() tax.RuleID { return tax.RuleTravelDates }

func (r *TravelDatesRule) Description(tax.Services) string {
	what := "JOURNEY ORIGIN"
	if r.Tag == TravelDateTaxPoint {
		what = "TAX POINT"
	}
	return fmt.Sprintf("%s TRAVEL DATE BETWEEN %s AND %s", what, formatDate(r.First), formatDate(r.Last))
}

func (r *TravelDatesRule) NewApplicator(itinIndex int, req *tax.Request, _ tax.Services, _ *tax.RawPayments) Applicator {
	if r.Tag != TravelDateTaxPoint {
		date := travelOriginDate(req, itinIndex)
		if date.IsZero() {
			return failing("TRAVEL ORIGIN DATE NOT PROVIDED")
		}
		inWindow := withinDates(date, r.First, r.Last)
		return ApplicatorFunc(func(detail *tax.Detail) bool {
			if inWindow {
				return true
			}
			return failf(detail, "TRAVEL DATE %s OUTSIDE WINDOW", formatDate(date))
		})
	}
	usages := req.Itin(itinIndex).FlightUsages
	return ApplicatorFunc(func(detail *tax.Detail) bool {
		var date time.Time
		if k := tax.FlightIndexDepartingFrom(detail.TaxPointBegin, usages); k >= 0 {
			date = usages[k].Departure
		} else if k := tax.FlightIndexArrivingAt(detail.TaxPointBegin, usages); k >= 0 {
			date = usages[k].Arrival
		}
		if date.IsZero() {
			return failf(detail, "NO FLIGHT DATE AT TAX POINT")
		}
		if withinDates(date, r.First, r.Last) {
			return true
		}
		return failf(detail, "TAX POINT DATE %s OUTSIDE WINDOW", formatDate(date))
	})
}
