package engine

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/taxcore/internal/tax"
)

// Response is the outcome of one Calculate call.
type Response struct {
	ID    uuid.UUID    `json:"id"`
	Itins []ItinResult `json:"itins"`
}

// ItinResult lists the taxes that applied to one itinerary and the sequences that failed.
type ItinResult struct {
	ItinID   int         `json:"itinId"`
	Taxes    []TaxResult `json:"taxes"`
	Failures []Failure   `json:"failures,omitempty"`
}

// TaxResult is one applied tax at one tax point.
type TaxResult struct {
	Name             tax.TaxName      `json:"name"`
	SeqNo            int              `json:"seqNo"`
	TaxPointBegin    int              `json:"taxPointBegin"`
	TaxPointEnd      int              `json:"taxPointEnd"`
	Amount           decimal.Decimal  `json:"amount"`
	Currency         string           `json:"currency"`
	Exempt           bool             `json:"exempt,omitempty"`
	OptionalServices []OptionalResult `json:"optionalServices,omitempty"`
}

// OptionalResult is the tax levied on one optional service.
type OptionalResult struct {
	Code    string          `json:"code"`
	SubCode string          `json:"subCode,omitempty"`
	Amount  decimal.Decimal `json:"amount"`
}

// Failure records a sequence that did not apply at a tax point.
type Failure struct {
	Name          tax.TaxName `json:"name"`
	SeqNo         int         `json:"seqNo"`
	TaxPointBegin int         `json:"taxPointBegin"`
	Rule          tax.RuleID  `json:"rule"`
	Message       string      `json:"message,omitempty"`
}

// Total sums the amounts of every applied tax with the given code.
func (r ItinResult) Total(taxCode string) decimal.Decimal {
	total := decimal.Zero
	for _, t := range r.Taxes {
		if t.Name.TaxCode != taxCode || t.Exempt {
			continue
		}
		total = total.Add(t.Amount)
		for _, oc := range t.OptionalServices {
			total = total.Add(oc.Amount)
		}
	}
	return total
}

func newTaxResult(detail *tax.Detail) TaxResult {
	res := TaxResult{
		Name:          detail.TaxName,
		SeqNo:         detail.SeqNo,
		TaxPointBegin: detail.TaxPointBegin,
		TaxPointEnd:   detail.TaxPointEnd,
		Amount:        detail.TaxAmount,
		Currency:      detail.TaxCurrency,
		Exempt:        detail.Exempt,
	}
	if detail.Exempt {
		res.Amount = decimal.Zero
	}
	for _, oc := range detail.LiveOptionalServices() {
		amount := oc.TaxAmount
		if detail.Exempt {
			amount = decimal.Zero
		}
		res.OptionalServices = append(res.OptionalServices, OptionalResult{Code: oc.Code, SubCode: oc.SubCode, Amount: amount})
	}
	return res
}

func newFailure(detail *tax.Detail) Failure {
	f := Failure{
		Name:          detail.TaxName,
		SeqNo:         detail.SeqNo,
		TaxPointBegin: detail.TaxPointBegin,
		Message:       detail.ApplicatorFailMessage,
	}
	if rule := detail.FailedRule(); rule != nil {
		f.Rule = rule.ID()
	}
	return f
}
