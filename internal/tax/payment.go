package tax

import (
	"slices"

	"github.com/shopspring/decimal"
)

// Rule is the view of a business rule a payment detail needs for failure attribution.
type Rule interface {
	ID() RuleID
}

// TaxName identifies a tax or fee and how it is levied.
type TaxName struct {
	Nation      string      `json:"nation"`
	TaxCode     string      `json:"taxCode"`
	TaxType     string      `json:"taxType"`
	TaxPointTag TaxPointTag `json:"taxPointTag"`
	Carrier     string      `json:"carrier,omitempty"`
}

// IsYqYr reports whether the name denotes a carrier-imposed YQ/YR surcharge.
func (n TaxName) IsYqYr() bool {
	return n.TaxCode == "YQ" || n.TaxCode == "YR"
}

func (n TaxName) String() string {
	return n.Nation + "-" + n.TaxCode + "-" + n.TaxType
}

// TaxPointProperties holds itinerary-wide classifications of one geo written by rules.
type TaxPointProperties struct {
	IsTimeStopover *bool `json:"isTimeStopover,omitempty"`
}

// TimeStopover reports the stopover classification, false when unclassified.
func (p TaxPointProperties) TimeStopover() bool {
	return p.IsTimeStopover != nil && *p.IsTimeStopover
}

// TaxableAmounts are the bases a percentage tax can be computed on.
type TaxableAmounts struct {
	Fare         decimal.Decimal `json:"fare"`
	TaxOnTax     decimal.Decimal `json:"taxOnTax"`
	TicketingFee decimal.Decimal `json:"ticketingFee"`
	ChangeFee    decimal.Decimal `json:"changeFee"`
	YqYr         decimal.Decimal `json:"yqYr"`
}

// AmountRange bounds the computed tax amount. Zero values mean unbounded.
type AmountRange struct {
	Min decimal.Decimal `json:"min"`
	Max decimal.Decimal `json:"max"`
}

// OptionalService is a sub-item of a payment detail with its own pass/fail state.
type OptionalService struct {
	Code       string          `json:"code"`
	SubCode    string          `json:"subCode"`
	Type       OCType          `json:"type"`
	Amount     decimal.Decimal `json:"amount"`
	TaxAmount  decimal.Decimal `json:"taxAmount"`
	failedRule Rule
}

// IsFailed reports whether the sub-item has been excluded.
func (o *OptionalService) IsFailed() bool { return o.failedRule != nil }

// FailedRule returns the rule that excluded the sub-item, nil when it is still live.
func (o *OptionalService) FailedRule() Rule { return o.failedRule }

// Fail excludes the sub-item. The first failing rule is kept.
func (o *OptionalService) Fail(rule Rule) {
	if o.failedRule == nil {
		o.failedRule = rule
	}
}

// Detail is the mutable record accumulating one tax's applicability and amount for one
// itinerary and tax point. Rules of a sequence read and mutate it in order.
type Detail struct {
	TaxName       TaxName
	SeqNo         int
	TaxPointBegin int
	TaxPointEnd   int

	Taxable     TaxableAmounts
	TaxAmount   decimal.Decimal
	TaxCurrency string
	Range       AmountRange
	Exempt      bool
	Limit       LimitType

	ApplicatorFailMessage string

	OptionalServices    []OptionalService
	TaxPointsProperties []TaxPointProperties

	failedRule Rule
}

// NewDetail creates a fresh detail for a tax point of a journey with geoCount geos.
func NewDetail(name TaxName, seqNo, taxPointBegin, geoCount int) *Detail {
	return &Detail{
		TaxName:             name,
		SeqNo:               seqNo,
		TaxPointBegin:       taxPointBegin,
		TaxPointEnd:         -1,
		TaxPointsProperties: make([]TaxPointProperties, geoCount),
	}
}

// FailAll marks the whole detail failed. Once failed it stays failed and keeps the first
// attribution.
func (d *Detail) FailAll(rule Rule) {
	if d.failedRule == nil {
		d.failedRule = rule
	}
}

// IsFailed reports whether a rule failed the whole detail.
func (d *Detail) IsFailed() bool { return d.failedRule != nil }

// FailedRule returns the rule the failure is attributed to.
func (d *Detail) FailedRule() Rule { return d.failedRule }

// LiveOptionalServices returns pointers to the sub-items that have not been excluded.
func (d *Detail) LiveOptionalServices() []*OptionalService {
	live := make([]*OptionalService, 0, len(d.OptionalServices))
	for i := range d.OptionalServices {
		if !d.OptionalServices[i].IsFailed() {
			live = append(live, &d.OptionalServices[i])
		}
	}
	return live
}

// TotalAmount is the tax contributed by the detail: the main amount plus every live
// sub-item amount. Failed and exempt details contribute nothing.
func (d *Detail) TotalAmount() decimal.Decimal {
	if d.IsFailed() || d.Exempt {
		return decimal.Zero
	}
	total := d.TaxAmount
	for _, oc := range d.LiveOptionalServices() {
		total = total.Add(oc.TaxAmount)
	}
	return total
}

// Clone returns a deep copy of the detail.
func (d *Detail) Clone() *Detail {
	c := *d
	c.OptionalServices = slices.Clone(d.OptionalServices)
	c.TaxPointsProperties = make([]TaxPointProperties, len(d.TaxPointsProperties))
	for i, p := range d.TaxPointsProperties {
		if p.IsTimeStopover != nil {
			v := *p.IsTimeStopover
			p.IsTimeStopover = &v
		}
		c.TaxPointsProperties[i] = p
	}
	return &c
}
