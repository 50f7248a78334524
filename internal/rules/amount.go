package rules

import (
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/taxcore/internal/tax"
)

var hundred = decimal.NewFromInt(100)

// FlatTaxRule levies a fixed amount on the detail and on each live optional service.
type FlatTaxRule struct {
	Amount   decimal.Decimal
	Currency string
}

func (r *FlatTaxRule) ID() tax.RuleID { return tax.RuleFlatTax }

func (r *FlatTaxRule) Description(tax.Services) string {
	return fmt.Sprintf("FLAT TAX %s %s", r.Amount.StringFixed(2), r.Currency)
}

func (r *FlatTaxRule) NewApplicator(int, *tax.Request, tax.Services, *tax.RawPayments) Applicator {
	return ApplicatorFunc(func(detail *tax.Detail) bool {
		detail.TaxAmount = r.Amount
		detail.TaxCurrency = r.Currency
		for _, oc := range detail.LiveOptionalServices() {
			oc.TaxAmount = r.Amount
		}
		return true
	})
}

// PercentageTaxRule levies a percentage of the selected taxable bases. Without bases the fare
// is taxed. Live optional services are taxed on their own amount.
type PercentageTaxRule struct {
	Percent decimal.Decimal
	Bases   []tax.TaxableUnit
}

func (r *PercentageTaxRule) ID() tax.RuleID { return tax.RulePercentageTax }

func (r *PercentageTaxRule) Description(tax.Services) string {
	bases := make([]string, 0, len(r.bases()))
	for _, b := range r.bases() {
		bases = append(bases, string(b))
	}
	return fmt.Sprintf("PERCENTAGE TAX %s%% OF %s", r.Percent.String(), strings.Join(bases, "+"))
}

// DependsOn implements Dependent: a YQ/YR base needs the surcharges computed first.
func (r *PercentageTaxRule) DependsOn() []string {
	if slices.Contains(r.Bases, tax.UnitYqYr) {
		return []string{"YQ", "YR"}
	}
	return nil
}

func (r *PercentageTaxRule) bases() []tax.TaxableUnit {
	if len(r.Bases) == 0 {
		return []tax.TaxableUnit{tax.UnitItinerary}
	}
	return r.Bases
}

func (r *PercentageTaxRule) NewApplicator(_ int, req *tax.Request, _ tax.Services, payments *tax.RawPayments) Applicator {
	yqyr := payments.YqYrAmount()
	currency := req.Ticketing.PaymentCurrency
	return ApplicatorFunc(func(detail *tax.Detail) bool {
		base := decimal.Zero
		for _, unit := range r.bases() {
			switch unit {
			case tax.UnitItinerary:
				base = base.Add(detail.Taxable.Fare)
			case tax.UnitTaxOnTax:
				base = base.Add(detail.Taxable.TaxOnTax)
			case tax.UnitTicketingFee:
				base = base.Add(detail.Taxable.TicketingFee)
			case tax.UnitChangeFee:
				base = base.Add(detail.Taxable.ChangeFee)
			case tax.UnitYqYr:
				detail.Taxable.YqYr = yqyr
				base = base.Add(yqyr)
			}
		}
		detail.TaxAmount = percentOf(base, r.Percent)
		if detail.TaxCurrency == "" {
			detail.TaxCurrency = currency
		}
		for _, oc := range detail.LiveOptionalServices() {
			oc.TaxAmount = percentOf(oc.Amount, r.Percent)
		}
		return true
	})
}

func percentOf(base, percent decimal.Decimal) decimal.Decimal {
	return base.Mul(percent).Div(hundred)
}

// TaxOnTaxRule makes the amounts of previously computed taxes the tax-on-tax base.
type TaxOnTaxRule struct {
	TaxCodes []string
}

func (r *TaxOnTaxRule) ID() tax.RuleID { return tax.RuleTaxOnTax }

func (r *TaxOnTaxRule) Description(tax.Services) string {
	return "TAX ON TAXES " + strings.Join(r.TaxCodes, ",")
}

// DependsOn implements Dependent.
func (r *TaxOnTaxRule) DependsOn() []string { return r.TaxCodes }

func (r *TaxOnTaxRule) NewApplicator(_ int, _ *tax.Request, _ tax.Services, payments *tax.RawPayments) Applicator {
	base := payments.AmountFor(r.TaxCodes...)
	return ApplicatorFunc(func(detail *tax.Detail) bool {
		detail.Taxable.TaxOnTax = base
		return true
	})
}

// TaxOnTicketingFeeRule makes the ticketing fees the ticketing fee base. Without fee codes every
// fee counts. The tax does not apply when no fee is charged.
type TaxOnTicketingFeeRule struct {
	FeeCodes []string
}

func (r *TaxOnTicketingFeeRule) ID() tax.RuleID { return tax.RuleTaxOnTicketingFee }

func (r *TaxOnTicketingFeeRule) Description(tax.Services) string {
	if len(r.FeeCodes) == 0 {
		return "TAX ON ALL TICKETING FEES"
	}
	return "TAX ON TICKETING FEES " + strings.Join(r.FeeCodes, ",")
}

func (r *TaxOnTicketingFeeRule) NewApplicator(_ int, req *tax.Request, _ tax.Services, _ *tax.RawPayments) Applicator {
	base := decimal.Zero
	for _, fee := range req.Ticketing.TicketingFees {
		if len(r.FeeCodes) == 0 || slices.Contains(r.FeeCodes, fee.Code) {
			base = base.Add(fee.Amount)
		}
	}
	return ApplicatorFunc(func(detail *tax.Detail) bool {
		if base.IsZero() {
			return failf(detail, "NO TICKETING FEE")
		}
		detail.Taxable.TicketingFee = base
		return true
	})
}

// TaxOnChangeFeeRule makes the change fee the change fee base. The tax does not apply without
// a change fee.
type TaxOnChangeFeeRule struct{}

func (r *TaxOnChangeFeeRule) ID() tax.RuleID { return tax.RuleTaxOnChangeFee }

func (r *TaxOnChangeFeeRule) Description(tax.Services) string { return "TAX ON CHANGE FEE" }

func (r *TaxOnChangeFeeRule) NewApplicator(_ int, req *tax.Request, _ tax.Services, _ *tax.RawPayments) Applicator {
	fee := req.Ticketing.ChangeFee
	return ApplicatorFunc(func(detail *tax.Detail) bool {
		if !fee.IsPositive() {
			return failf(detail, "NO CHANGE FEE")
		}
		detail.Taxable.ChangeFee = fee
		return true
	})
}

// YqYrAmountRule prorates a surcharge amount over the taxed portion by flown mileage.
type YqYrAmountRule struct {
	Amount   decimal.Decimal
	Currency string
}

func (r *YqYrAmountRule) ID() tax.RuleID { return tax.RuleYqYrAmount }

func (r *YqYrAmountRule) Description(tax.Services) string {
	return fmt.Sprintf("YQYR AMOUNT %s %s PRORATED BY MILEAGE", r.Amount.StringFixed(2), r.Currency)
}

func (r *YqYrAmountRule) NewApplicator(itinIndex int, req *tax.Request, svc tax.Services, _ *tax.RawPayments) Applicator {
	path := req.GeoPath(itinIndex)
	getter, err := svc.Mileage.MileageGetter(*path, req.Itin(itinIndex).FlightUsages, travelOriginDate(req, itinIndex))
	if err != nil {
		return failing("MILEAGE NOT AVAILABLE: " + err.Error())
	}
	last := path.Len() - 1
	total := getter.FlownDistance(0, last)
	return ApplicatorFunc(func(detail *tax.Detail) bool {
		begin, end := detail.TaxPointBegin, detail.TaxPointEnd
		if end < 0 {
			end = last
		}
		if end < begin {
			begin, end = end, begin
		}
		amount := r.Amount
		if total > 0 {
			part := getter.FlownDistance(begin, end)
			amount = r.Amount.Mul(decimal.NewFromInt(int64(part))).DivRound(decimal.NewFromInt(int64(total)), 2)
		}
		detail.TaxAmount = amount
		detail.TaxCurrency = r.Currency
		return true
	})
}

// TaxMinMaxValueRule bounds the computed amount. A zero bound is not applied.
type TaxMinMaxValueRule struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

func (r *TaxMinMaxValueRule) ID() tax.RuleID { return tax.RuleTaxMinMaxValue }

func (r *TaxMinMaxValueRule) Description(tax.Services) string {
	return fmt.Sprintf("TAX AMOUNT BETWEEN %s AND %s", r.Min.StringFixed(2), r.Max.StringFixed(2))
}

func (r *TaxMinMaxValueRule) NewApplicator(int, *tax.Request, tax.Services, *tax.RawPayments) Applicator {
	return ApplicatorFunc(func(detail *tax.Detail) bool {
		detail.Range = tax.AmountRange{Min: r.Min, Max: r.Max}
		detail.TaxAmount = r.clamp(detail.TaxAmount)
		for _, oc := range detail.LiveOptionalServices() {
			oc.TaxAmount = r.clamp(oc.TaxAmount)
		}
		return true
	})
}

func (r *TaxMinMaxValueRule) clamp(amount decimal.Decimal) decimal.Decimal {
	if r.Min.IsPositive() && amount.LessThan(r.Min) {
		return r.Min
	}
	if r.Max.IsPositive() && amount.GreaterThan(r.Max) {
		return r.Max
	}
	return amount
}

// RoundingDirection selects how TaxRoundingRule rounds to its unit.
type RoundingDirection string

const (
	RoundUp      RoundingDirection = "U"
	RoundDown    RoundingDirection = "D"
	RoundNearest RoundingDirection = "N"
	RoundNone    RoundingDirection = "B"
)

// TaxRoundingRule rounds the computed amounts to a multiple of Unit.
type TaxRoundingRule struct {
	Unit      decimal.Decimal
	Direction RoundingDirection
}

func (r *TaxRoundingRule) ID() tax.RuleID { return tax.RuleTaxRounding }

func (r *TaxRoundingRule) Description(tax.Services) string {
	if r.Direction == RoundNone || !r.Unit.IsPositive() {
		return "NO ROUNDING"
	}
	return fmt.Sprintf("ROUND %s TO %s", r.Direction, r.Unit.String())
}

func (r *TaxRoundingRule) NewApplicator(int, *tax.Request, tax.Services, *tax.RawPayments) Applicator {
	return ApplicatorFunc(func(detail *tax.Detail) bool {
		detail.TaxAmount = r.round(detail.TaxAmount)
		for _, oc := range detail.LiveOptionalServices() {
			oc.TaxAmount = r.round(oc.TaxAmount)
		}
		return true
	})
}

func (r *TaxRoundingRule) round(amount decimal.Decimal) decimal.Decimal {
	if r.Direction == RoundNone || !r.Unit.IsPositive() {
		return amount
	}
	units := amount.Div(r.Unit)
	switch r.Direction {
	case RoundUp:
		units = units.Ceil()
	case RoundDown:
		units = units.Floor()
	default:
		units = units.Round(0)
	}
	return units.Mul(r.Unit)
}

// ExemptTagRule marks the tax as exempt: it is reported with no amount.
type ExemptTagRule struct{}

func (r *ExemptTagRule) ID() tax.RuleID { return tax.RuleExemptTag }

func (r *ExemptTagRule) Description(tax.Services) string { return "TAX EXEMPT" }

func (r *ExemptTagRule) NewApplicator(int, *tax.Request, tax.Services, *tax.RawPayments) Applicator {
	return ApplicatorFunc(func(detail *tax.Detail) bool {
		detail.Exempt = true
		return true
	})
}
