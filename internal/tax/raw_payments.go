package tax

import (
	"slices"

	"github.com/shopspring/decimal"
)

// RawPayment is a completed detail recorded for later tax codes of the same itinerary.
type RawPayment struct {
	TaxName TaxName
	Detail  *Detail
}

// RawPayments is the ordered history of already computed details of one itinerary. The
// orchestrator appends to it; rules only read it.
type RawPayments struct {
	entries []RawPayment
}

// NewRawPayments returns an empty accumulator.
func NewRawPayments() *RawPayments {
	return &RawPayments{}
}

// Add records a snapshot of a completed detail.
func (r *RawPayments) Add(detail *Detail) {
	r.entries = append(r.entries, RawPayment{TaxName: detail.TaxName, Detail: detail.Clone()})
}

// Len returns the number of recorded details.
func (r *RawPayments) Len() int {
	if r == nil {
		return 0
	}
	return len(r.entries)
}

// Entries returns the recorded payments in insertion order.
func (r *RawPayments) Entries() []RawPayment {
	if r == nil {
		return nil
	}
	out := make([]RawPayment, len(r.entries))
	copy(out, r.entries)
	return out
}

// AmountFor sums the final amounts of every non-failed detail whose tax code is listed.
func (r *RawPayments) AmountFor(taxCodes ...string) decimal.Decimal {
	total := decimal.Zero
	if r == nil {
		return total
	}
	for _, entry := range r.entries {
		if !slices.Contains(taxCodes, entry.TaxName.TaxCode) {
			continue
		}
		total = total.Add(entry.Detail.TotalAmount())
	}
	return total
}

// YqYrAmount sums the final amounts of every non-failed YQ/YR surcharge.
func (r *RawPayments) YqYrAmount() decimal.Decimal {
	total := decimal.Zero
	if r == nil {
		return total
	}
	for _, entry := range r.entries {
		if entry.TaxName.IsYqYr() {
			total = total.Add(entry.Detail.TotalAmount())
		}
	}
	return total
}

// HasPassed reports whether a non-failed detail of the tax code has already been recorded.
func (r *RawPayments) HasPassed(taxCode string) bool {
	if r == nil {
		return false
	}
	for _, entry := range r.entries {
		if entry.TaxName.TaxCode == taxCode && !entry.Detail.IsFailed() {
			return true
		}
	}
	return false
}
