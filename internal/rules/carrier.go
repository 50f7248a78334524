package rules

import (
	"fmt"
	"slices"
	"strings"

	"github.com/noah-isme/taxcore/internal/tax"
)

// CarrierFlightRule restricts the flights arriving at and departing from the tax point to
// carrier flight tables. A zero item number leaves that side unrestricted.
type CarrierFlightRule struct {
	Vendor     string
	ItemBefore int
	ItemAfter  int
}

func (r *CarrierFlightRule) ID() tax.RuleID { return tax.RuleCarrierFlight }

func (r *CarrierFlightRule) Description(svc tax.Services) string {
	var b strings.Builder
	b.WriteString("CARRIER FLIGHT RESTRICTION")
	describeCarrierFlight(&b, "BEFORE", r.Vendor, r.ItemBefore, svc)
	describeCarrierFlight(&b, "AFTER", r.Vendor, r.ItemAfter, svc)
	return b.String()
}

func describeCarrierFlight(b *strings.Builder, side, vendor string, itemNo int, svc tax.Services) {
	if itemNo == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s TAX POINT: VENDOR %s ITEM %d", side, vendor, itemNo)
	var (
		table tax.CarrierFlight
		found bool
	)
	if svc.CarrierFlights != nil {
		table, found = svc.CarrierFlights.CarrierFlight(vendor, itemNo)
	}
	if !found {
		b.WriteString("\n  DOES NOT EXIST")
		return
	}
	for _, seg := range table.Segments {
		fmt.Fprintf(b, "\n  MARKETING %s OPERATING %s FLIGHTS %s", seg.MarketingCarrier, orAny(seg.OperatingCarrier), flightRange(seg))
	}
}

func orAny(s string) string {
	if s == "" {
		return "ANY"
	}
	return s
}

func flightRange(seg tax.CarrierFlightSegment) string {
	if seg.FlightFrom == 0 {
		return "ANY"
	}
	if seg.FlightTo <= seg.FlightFrom {
		return fmt.Sprintf("%d", seg.FlightFrom)
	}
	return fmt.Sprintf("%d-%d", seg.FlightFrom, seg.FlightTo)
}

func (r *CarrierFlightRule) NewApplicator(itinIndex int, req *tax.Request, svc tax.Services, _ *tax.RawPayments) Applicator {
	a := &carrierFlightApplicator{req: req, usages: req.Itin(itinIndex).FlightUsages}
	if r.ItemBefore != 0 {
		table, ok := svc.CarrierFlights.CarrierFlight(r.Vendor, r.ItemBefore)
		if !ok {
			return failing(notFound(r.Vendor, r.ItemBefore))
		}
		a.before = &table
	}
	if r.ItemAfter != 0 {
		table, ok := svc.CarrierFlights.CarrierFlight(r.Vendor, r.ItemAfter)
		if !ok {
			return failing(notFound(r.Vendor, r.ItemAfter))
		}
		a.after = &table
	}
	return a
}

type carrierFlightApplicator struct {
	req    *tax.Request
	usages []tax.FlightUsage
	before *tax.CarrierFlight
	after  *tax.CarrierFlight
}

func (a *carrierFlightApplicator) Apply(detail *tax.Detail) bool {
	prev, next := tax.FlightsAround(detail.TaxPointBegin, a.usages)
	if a.before != nil {
		if prev < 0 {
			return failf(detail, "NO FLIGHT BEFORE TAX POINT")
		}
		if !matchesCarrierFlight(*a.before, a.req.Flight(a.usages[prev])) {
			return failf(detail, "FLIGHT BEFORE TAX POINT NOT IN ITEM %d", a.before.ItemNo)
		}
	}
	if a.after != nil {
		if next < 0 {
			return failf(detail, "NO FLIGHT AFTER TAX POINT")
		}
		if !matchesCarrierFlight(*a.after, a.req.Flight(a.usages[next])) {
			return failf(detail, "FLIGHT AFTER TAX POINT NOT IN ITEM %d", a.after.ItemNo)
		}
	}
	return true
}

func operatingCarrier(flight *tax.Flight) string {
	if flight.OperatingCarrier == "" {
		return flight.MarketingCarrier
	}
	return flight.OperatingCarrier
}

func matchesCarrierFlight(table tax.CarrierFlight, flight *tax.Flight) bool {
	operating := operatingCarrier(flight)
	for _, seg := range table.Segments {
		if seg.MarketingCarrier != flight.MarketingCarrier {
			continue
		}
		if seg.OperatingCarrier != "" && seg.OperatingCarrier != operating {
			continue
		}
		if seg.FlightFrom != 0 {
			to := max(seg.FlightTo, seg.FlightFrom)
			if flight.FlightNumber < seg.FlightFrom || flight.FlightNumber > to {
				continue
			}
		}
		return true
	}
	return false
}

// ChangeOfGaugeEquipment is the equipment code marking a change of gauge on a single flight number.
const ChangeOfGaugeEquipment = "CHG"

// TransferType classifies the transfer between two adjacent flights.
type TransferType string

const (
	TransferBlank                     TransferType = ""
	TransferInterline                 TransferType = "A"
	TransferOnline                    TransferType = "B"
	TransferOnlineWithChangeOfGauge   TransferType = "C"
	TransferOnlineWithNoChangeOfGauge TransferType = "D"
)

func (t TransferType) String() string {
	switch t {
	case TransferInterline:
		return "INTERLINE"
	case TransferOnline:
		return "ONLINE"
	case TransferOnlineWithChangeOfGauge:
		return "ONLINE WITH CHANGE OF GAUGE"
	case TransferOnlineWithNoChangeOfGauge:
		return "ONLINE WITH NO CHANGE OF GAUGE"
	default:
		return "BLANK"
	}
}

// ClassifyTransfer compares marketing carrier, flight number and equipment of two adjacent flights.
func ClassifyTransfer(prev, next *tax.Flight) TransferType {
	if prev.MarketingCarrier != next.MarketingCarrier {
		return TransferInterline
	}
	if prev.FlightNumber != next.FlightNumber {
		return TransferOnline
	}
	if prev.Equipment == ChangeOfGaugeEquipment || next.Equipment == ChangeOfGaugeEquipment || prev.Equipment != next.Equipment {
		return TransferOnlineWithChangeOfGauge
	}
	return TransferOnlineWithNoChangeOfGauge
}

// Matches reports whether an actual transfer satisfies the tag. Online covers every transfer
// on the same marketing carrier.
func (t TransferType) Matches(actual TransferType) bool {
	switch t {
	case TransferBlank:
		return true
	case TransferOnline:
		return actual == TransferOnline || actual == TransferOnlineWithChangeOfGauge || actual == TransferOnlineWithNoChangeOfGauge
	default:
		return t == actual
	}
}

// TaxPointLoc1TransferTypeRule restricts the transfer at the tax point. It never applies at the
// journey origin or destination where there is no transfer.
type TaxPointLoc1TransferTypeRule struct {
	Tag TransferType
}

func (r *TaxPointLoc1TransferTypeRule) ID() tax.RuleID { return tax.RuleTaxPointLoc1TransferType }

func (r *TaxPointLoc1TransferTypeRule) Description(tax.Services) string {
	return "TRANSFER AT TAX POINT MUST BE " + r.Tag.String()
}

func (r *TaxPointLoc1TransferTypeRule) NewApplicator(itinIndex int, req *tax.Request, _ tax.Services, _ *tax.RawPayments) Applicator {
	usages := req.Itin(itinIndex).FlightUsages
	return ApplicatorFunc(func(detail *tax.Detail) bool {
		if r.Tag == TransferBlank {
			return true
		}
		prev, next := tax.FlightsAround(detail.TaxPointBegin, usages)
		if prev < 0 || next < 0 {
			return failf(detail, "NO TRANSFER AT JOURNEY ORIGIN OR DESTINATION")
		}
		actual := ClassifyTransfer(req.Flight(usages[prev]), req.Flight(usages[next]))
		if r.Tag.Matches(actual) {
			return true
		}
		return failf(detail, "TRANSFER IS %s", actual)
	})
}

// TaxMatchingApplTag selects which carriers the flights on both sides of a tax point must match.
type TaxMatchingApplTag string

const (
	TaxMatchingBlank TaxMatchingApplTag = ""
	// TaxMatchingValidating requires both flights to be marketed by the validating carrier.
	TaxMatchingValidating TaxMatchingApplTag = "V"
	// TaxMatchingOperating requires both flights to be operated by their marketing carrier.
	TaxMatchingOperating TaxMatchingApplTag = "O"
)

// TaxMatchingApplTagRule restricts the carriers of the flights arriving at and departing from
// the tax point. Like the transfer type it only applies at interior connection points.
type TaxMatchingApplTagRule struct {
	Tag TaxMatchingApplTag
}

func (r *TaxMatchingApplTagRule) ID() tax.RuleID { return tax.RuleTaxMatchingApplTag }

func (r *TaxMatchingApplTagRule) Description(tax.Services) string {
	switch r.Tag {
	case TaxMatchingValidating:
		return "FLIGHTS AROUND TAX POINT MARKETED BY VALIDATING CARRIER"
	case TaxMatchingOperating:
		return "FLIGHTS AROUND TAX POINT OPERATED BY MARKETING CARRIER"
	default:
		return "TAX MATCHING APPL TAG BLANK"
	}
}

func (r *TaxMatchingApplTagRule) NewApplicator(itinIndex int, req *tax.Request, _ tax.Services, _ *tax.RawPayments) Applicator {
	itin := req.Itin(itinIndex)
	usages := itin.FlightUsages
	return ApplicatorFunc(func(detail *tax.Detail) bool {
		if r.Tag == TaxMatchingBlank {
			return true
		}
		prev, next := tax.FlightsAround(detail.TaxPointBegin, usages)
		if prev < 0 || next < 0 {
			return failf(detail, "NO CONNECTION AT JOURNEY ORIGIN OR DESTINATION")
		}
		for _, flight := range []*tax.Flight{req.Flight(usages[prev]), req.Flight(usages[next])} {
			switch r.Tag {
			case TaxMatchingValidating:
				if flight.MarketingCarrier != itin.ValidatingCarrier {
					return failf(detail, "FLIGHT %s%d NOT MARKETED BY %s", flight.MarketingCarrier, flight.FlightNumber, itin.ValidatingCarrier)
				}
			case TaxMatchingOperating:
				if operating := operatingCarrier(flight); operating != flight.MarketingCarrier {
					return failf(detail, "FLIGHT %s%d OPERATED BY %s", flight.MarketingCarrier, flight.FlightNumber, operating)
				}
			}
		}
		return true
	})
}

// ValidatingCarrierRule restricts the validating carrier of the itinerary.
type ValidatingCarrierRule struct {
	Carriers []string
}

func (r *ValidatingCarrierRule) ID() tax.RuleID { return tax.RuleValidatingCarrier }

func (r *ValidatingCarrierRule) Description(tax.Services) string {
	return "VALIDATING CARRIER IN " + strings.Join(r.Carriers, ",")
}

func (r *ValidatingCarrierRule) NewApplicator(itinIndex int, req *tax.Request, _ tax.Services, _ *tax.RawPayments) Applicator {
	carrier := req.Itin(itinIndex).ValidatingCarrier
	ok := slices.Contains(r.Carriers, carrier)
	return ApplicatorFunc(func(detail *tax.Detail) bool {
		if ok {
			return true
		}
		return failf(detail, "VALIDATING CARRIER %s NOT ALLOWED", carrier)
	})
}
