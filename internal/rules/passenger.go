package rules

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/noah-isme/taxcore/internal/tax"
)

// PassengerTypeCodeRule restricts the passenger with a passenger type code table. The first
// matching item decides.
type PassengerTypeCodeRule struct {
	Vendor string
	ItemNo int
}

func (r *PassengerTypeCodeRule) ID() tax.RuleID { return tax.RulePassengerTypeCode }

func (r *PassengerTypeCodeRule) Description(svc tax.Services) string {
	var b strings.Builder
	fmt.Fprintf(&b, "PASSENGER TYPE CODE TABLE VENDOR %s ITEM %d", r.Vendor, r.ItemNo)
	var (
		items []tax.PassengerTypeCodeItem
		found bool
	)
	if svc.PassengerTypes != nil {
		items, found = svc.PassengerTypes.PassengerTypeCodes(r.Vendor, "", r.ItemNo)
	}
	if !found {
		b.WriteString("\n  DOES NOT EXIST")
		return b.String()
	}
	for _, item := range items {
		fmt.Fprintf(&b, "\n  APPL %s PTC %s AGE %d-%d STATUS %s LOC %s",
			item.ApplTag, orAny(item.PassengerType), item.MinAge, item.MaxAge, orAny(string(item.Status)), item.Location)
	}
	return b.String()
}

func (r *PassengerTypeCodeRule) NewApplicator(itinIndex int, req *tax.Request, svc tax.Services, _ *tax.RawPayments) Applicator {
	itin := req.Itin(itinIndex)
	items, ok := svc.PassengerTypes.PassengerTypeCodes(r.Vendor, itin.ValidatingCarrier, r.ItemNo)
	if !ok {
		return failing(notFound(r.Vendor, r.ItemNo))
	}
	return &passengerTypeCodeApplicator{
		rule:              r,
		items:             items,
		passenger:         req.Passenger(itinIndex),
		validatingCarrier: itin.ValidatingCarrier,
		travelDate:        travelOriginDate(req, itinIndex),
		locs:              svc.Locations,
	}
}

type passengerTypeCodeApplicator struct {
	rule              *PassengerTypeCodeRule
	items             []tax.PassengerTypeCodeItem
	passenger         *tax.Passenger
	validatingCarrier string
	travelDate        time.Time
	locs              tax.LocService
}

func (a *passengerTypeCodeApplicator) Apply(detail *tax.Detail) bool {
	for _, item := range a.items {
		if !a.matches(item) {
			continue
		}
		if item.ApplTag == tax.ApplNotPermitted {
			return failf(detail, "PASSENGER %s NOT PERMITTED", a.passenger.Code)
		}
		return true
	}
	return failf(detail, "NO MATCHING PASSENGER TYPE ITEM FOR %s", a.passenger.Code)
}

func (a *passengerTypeCodeApplicator) matches(item tax.PassengerTypeCodeItem) bool {
	if item.PassengerType != "" && item.PassengerType != a.passenger.Code {
		return false
	}
	if item.MinAge > 0 || item.MaxAge > 0 {
		age, ok := ageAt(a.passenger.BirthDate, a.travelDate)
		if !ok || age < item.MinAge || (item.MaxAge > 0 && age > item.MaxAge) {
			return false
		}
	}
	vendor := a.rule.Vendor
	switch item.Status {
	case tax.StatusResident:
		return a.passenger.Residence != "" && a.locs.IsInLoc(a.passenger.Residence, item.Location, vendor)
	case tax.StatusNational:
		return a.locs.IsNationInLoc(a.passenger.Nationality, item.Location, vendor)
	case tax.StatusEmployee:
		if a.passenger.EmployeeOf == "" || a.passenger.EmployeeOf != a.validatingCarrier {
			return false
		}
		return item.Location.IsBlank() || a.locs.IsInLoc(a.passenger.Residence, item.Location, vendor)
	default:
		return true
	}
}

func ageAt(birth, at time.Time) (int, bool) {
	if birth.IsZero() || at.IsZero() || at.Before(birth) {
		return 0, false
	}
	age := at.Year() - birth.Year()
	if at.Month() < birth.Month() || (at.Month() == birth.Month() && at.Day() < birth.Day()) {
		age--
	}
	return age, true
}

// OptionalServiceTagsRule keeps only the optional services whose taxable unit the tax applies
// to. Non-matching sub-items are failed individually; the detail itself never fails.
type OptionalServiceTagsRule struct {
	Units []tax.TaxableUnit
}

func (r *OptionalServiceTagsRule) ID() tax.RuleID { return tax.RuleOptionalServiceTags }

func (r *OptionalServiceTagsRule) Description(tax.Services) string {
	names := make([]string, len(r.Units))
	for i, u := range r.Units {
		names[i] = string(u)
	}
	return "OPTIONAL SERVICES RESTRICTED TO " + strings.Join(names, ",")
}

func (r *OptionalServiceTagsRule) NewApplicator(int, *tax.Request, tax.Services, *tax.RawPayments) Applicator {
	return ApplicatorFunc(func(detail *tax.Detail) bool {
		for _, oc := range detail.LiveOptionalServices() {
			if !slices.Contains(r.Units, oc.Type.TaxableUnit()) {
				oc.Fail(r)
			}
		}
		return true
	})
}

// CurrencyOfSaleRule restricts the payment currency.
type CurrencyOfSaleRule struct {
	Currency string
}

func (r *CurrencyOfSaleRule) ID() tax.RuleID { return tax.RuleCurrencyOfSale }

func (r *CurrencyOfSaleRule) Description(tax.Services) string {
	return "CURRENCY OF SALE MUST BE " + r.Currency
}

func (r *CurrencyOfSaleRule) NewApplicator(_ int, req *tax.Request, _ tax.Services, _ *tax.RawPayments) Applicator {
	currency := req.Ticketing.PaymentCurrency
	return ApplicatorFunc(func(detail *tax.Detail) bool {
		if strings.EqualFold(currency, r.Currency) {
			return true
		}
		return failf(detail, "CURRENCY OF SALE %s IS NOT %s", currency, r.Currency)
	})
}

// OutputTypeIndicatorRule restricts the output type requested for the ticket, such as an
// electronic ticket or an EMD. A blank indicator matches every request.
type OutputTypeIndicatorRule struct {
	Indicator string
}

func (r *OutputTypeIndicatorRule) ID() tax.RuleID { return tax.RuleOutputTypeIndicator }

func (r *OutputTypeIndicatorRule) Description(tax.Services) string {
	if r.Indicator == "" {
		return "OUTPUT TYPE BLANK"
	}
	return "OUTPUT TYPE MUST BE " + r.Indicator
}

func (r *OutputTypeIndicatorRule) NewApplicator(_ int, req *tax.Request, _ tax.Services, _ *tax.RawPayments) Applicator {
	output := req.Ticketing.OutputType
	return ApplicatorFunc(func(detail *tax.Detail) bool {
		if r.Indicator == "" || strings.EqualFold(output, r.Indicator) {
			return true
		}
		if output == "" {
			output = "BLANK"
		}
		return failf(detail, "OUTPUT TYPE %s IS NOT %s", output, r.Indicator)
	})
}
