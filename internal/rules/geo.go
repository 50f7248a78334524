package rules

import (
	"fmt"

	"github.com/noah-isme/taxcore/internal/tax"
)

// TaxPointLoc1Rule restricts the tax point to a zone.
type TaxPointLoc1Rule struct {
	Zone   tax.LocZone
	Vendor string
}

func (r *TaxPointLoc1Rule) ID() tax.RuleID { return tax.RuleTaxPointLoc1 }

func (r *TaxPointLoc1Rule) Description(tax.Services) string {
	return fmt.Sprintf("TAXPOINTLOC1 RESTRICTED TO %s (VENDOR %s)", r.Zone, r.Vendor)
}

func (r *TaxPointLoc1Rule) NewApplicator(itinIndex int, req *tax.Request, svc tax.Services, _ *tax.RawPayments) Applicator {
	return &taxPointLoc1Applicator{rule: r, path: req.GeoPath(itinIndex), locs: svc.Locations}
}

type taxPointLoc1Applicator struct {
	rule *TaxPointLoc1Rule
	path *tax.GeoPath
	locs tax.LocService
}

func (a *taxPointLoc1Applicator) Apply(detail *tax.Detail) bool {
	geo := a.path.Geos[detail.TaxPointBegin]
	if a.locs.IsInLoc(geo.Loc.Code, a.rule.Zone, a.rule.Vendor) {
		return true
	}
	return failf(detail, "TAX POINT %s NOT IN %s", geo.Loc.Code, a.rule.Zone)
}

// Loc2StopoverTag selects where the taxed portion starting at loc1 ends.
type Loc2StopoverTag string

const (
	// Loc2Stopover ends the portion at the next time stopover.
	Loc2Stopover Loc2StopoverTag = "S"
	// Loc2Destination ends the portion at the journey end.
	Loc2Destination Loc2StopoverTag = "D"
)

// TaxPointLoc2Rule determines the end of the taxed portion and restricts it to a zone. For a
// departure tax point it searches forward; for an arrival tax point it searches backward.
// Stopover classifications are read from the tax point properties written by
// FillTimeStopoversRule; unclassified points count as connections.
type TaxPointLoc2Rule struct {
	Zone     tax.LocZone
	Vendor   string
	Stopover Loc2StopoverTag
}

func (r *TaxPointLoc2Rule) ID() tax.RuleID { return tax.RuleTaxPointLoc2 }

func (r *TaxPointLoc2Rule) Description(tax.Services) string {
	end := "NEXT STOPOVER"
	if r.Stopover == Loc2Destination {
		end = "JOURNEY END"
	}
	return fmt.Sprintf("TAXPOINTLOC2 AT %s RESTRICTED TO %s (VENDOR %s)", end, r.Zone, r.Vendor)
}

func (r *TaxPointLoc2Rule) NewApplicator(itinIndex int, req *tax.Request, svc tax.Services, _ *tax.RawPayments) Applicator {
	return &taxPointLoc2Applicator{rule: r, path: req.GeoPath(itinIndex), locs: svc.Locations}
}

type taxPointLoc2Applicator struct {
	rule *TaxPointLoc2Rule
	path *tax.GeoPath
	locs tax.LocService
}

func (a *taxPointLoc2Applicator) Apply(detail *tax.Detail) bool {
	end := a.findLoc2(detail)
	detail.TaxPointEnd = end
	geo := a.path.Geos[end]
	if a.locs.IsInLoc(geo.Loc.Code, a.rule.Zone, a.rule.Vendor) {
		return true
	}
	return failf(detail, "TAX POINT LOC2 %s NOT IN %s", geo.Loc.Code, a.rule.Zone)
}

func (a *taxPointLoc2Applicator) findLoc2(detail *tax.Detail) int {
	begin := detail.TaxPointBegin
	last := a.path.Len() - 1
	props := detail.TaxPointsProperties
	isStopover := func(id int) bool {
		return id < len(props) && props[id].TimeStopover()
	}
	if a.path.Geos[begin].IsArrival() {
		if a.rule.Stopover == Loc2Destination {
			return 0
		}
		for id := begin - 1; id > 0; id -= 2 {
			if isStopover(id) {
				return id
			}
		}
		return 0
	}
	if a.rule.Stopover == Loc2Destination {
		return last
	}
	for id := begin + 1; id < last; id += 2 {
		if isStopover(id) {
			return id
		}
	}
	return last
}

// JourneyLoc1AsOriginRule restricts the journey origin to a zone.
type JourneyLoc1AsOriginRule struct {
	Zone   tax.LocZone
	Vendor string
}

func (r *JourneyLoc1AsOriginRule) ID() tax.RuleID { return tax.RuleJourneyLoc1AsOrigin }

func (r *JourneyLoc1AsOriginRule) Description(tax.Services) string {
	return fmt.Sprintf("JOURNEY ORIGIN RESTRICTED TO %s (VENDOR %s)", r.Zone, r.Vendor)
}

func (r *JourneyLoc1AsOriginRule) NewApplicator(itinIndex int, req *tax.Request, svc tax.Services, _ *tax.RawPayments) Applicator {
	origin := req.GeoPath(itinIndex).Origin()
	zone, vendor, locs := r.Zone, r.Vendor, svc.Locations
	return ApplicatorFunc(func(detail *tax.Detail) bool {
		if locs.IsInLoc(origin.Loc.Code, zone, vendor) {
			return true
		}
		return failf(detail, "JOURNEY ORIGIN %s NOT IN %s", origin.Loc.Code, zone)
	})
}

// JourneyLoc2DestinationTurnAroundRule restricts the journey destination to a zone. When the
// journey returns to its origin city the turnaround point, the geo furthest from the origin,
// is checked instead.
type JourneyLoc2DestinationTurnAroundRule struct {
	Zone   tax.LocZone
	Vendor string
}

func (r *JourneyLoc2DestinationTurnAroundRule) ID() tax.RuleID {
	return tax.RuleJourneyLoc2DestinationTurnAround
}

func (r *JourneyLoc2DestinationTurnAroundRule) Description(tax.Services) string {
	return fmt.Sprintf("JOURNEY DESTINATION OR TURNAROUND RESTRICTED TO %s (VENDOR %s)", r.Zone, r.Vendor)
}

func (r *JourneyLoc2DestinationTurnAroundRule) NewApplicator(itinIndex int, req *tax.Request, svc tax.Services, _ *tax.RawPayments) Applicator {
	path := req.GeoPath(itinIndex)
	point := path.Len() - 1
	if cityOf(svc.Locations, path.Origin().Loc) == cityOf(svc.Locations, path.Destination().Loc) {
		itin := req.Itin(itinIndex)
		getter, err := svc.Mileage.MileageGetter(*path, itin.FlightUsages, travelOriginDate(req, itinIndex))
		if err != nil {
			return failing("TURNAROUND NOT DETERMINED: " + err.Error())
		}
		turnaround, ok := furthestGeo(path, getter)
		if !ok {
			return failing("TURNAROUND NOT DETERMINED: MILEAGE NOT AVAILABLE")
		}
		point = turnaround
	}
	geo := path.Geos[point]
	zone, vendor, locs := r.Zone, r.Vendor, svc.Locations
	return ApplicatorFunc(func(detail *tax.Detail) bool {
		if locs.IsInLoc(geo.Loc.Code, zone, vendor) {
			return true
		}
		return failf(detail, "JOURNEY LOC2 %s NOT IN %s", geo.Loc.Code, zone)
	})
}

func furthestGeo(path *tax.GeoPath, getter tax.MileageGetter) (int, bool) {
	best, bestMiles := 0, -1
	for id := 1; id < path.Len(); id++ {
		miles, ok := getter.Distance(0, id)
		if !ok {
			return 0, false
		}
		if miles > bestMiles {
			best, bestMiles = id, miles
		}
	}
	return best, bestMiles >= 0
}

// ReturnToOriginTag states whether the journey must or must not end in its origin city.
type ReturnToOriginTag string

const (
	ReturnsToOrigin       ReturnToOriginTag = "Y"
	DoesNotReturnToOrigin ReturnToOriginTag = "N"
)

// ReturnToOriginRule compares the journey origin and destination cities.
type ReturnToOriginRule struct {
	Tag ReturnToOriginTag
}

func (r *ReturnToOriginRule) ID() tax.RuleID { return tax.RuleReturnToOrigin }

func (r *ReturnToOriginRule) Description(tax.Services) string {
	if r.Tag == ReturnsToOrigin {
		return "JOURNEY MUST RETURN TO ORIGIN"
	}
	return "JOURNEY MUST NOT RETURN TO ORIGIN"
}

func (r *ReturnToOriginRule) NewApplicator(itinIndex int, req *tax.Request, svc tax.Services, _ *tax.RawPayments) Applicator {
	path := req.GeoPath(itinIndex)
	returns := cityOf(svc.Locations, path.Origin().Loc) == cityOf(svc.Locations, path.Destination().Loc)
	want := r.Tag == ReturnsToOrigin
	return ApplicatorFunc(func(detail *tax.Detail) bool {
		if returns == want {
			return true
		}
		if want {
			return failf(detail, "JOURNEY DOES NOT RETURN TO ORIGIN")
		}
		return failf(detail, "JOURNEY RETURNS TO ORIGIN")
	})
}

// PointOfTicketingRule restricts the ticketing point to a zone.
type PointOfTicketingRule struct {
	Zone   tax.LocZone
	Vendor string
}

func (r *PointOfTicketingRule) ID() tax.RuleID { return tax.RulePointOfTicketing }

func (r *PointOfTicketingRule) Description(tax.Services) string {
	return fmt.Sprintf("POINT OF TICKETING RESTRICTED TO %s (VENDOR %s)", r.Zone, r.Vendor)
}

func (r *PointOfTicketingRule) NewApplicator(_ int, req *tax.Request, svc tax.Services, _ *tax.RawPayments) Applicator {
	point := req.Ticketing.TicketingPoint
	if point == "" {
		return failing("POINT OF TICKETING NOT PROVIDED")
	}
	zone, vendor, locs := r.Zone, r.Vendor, svc.Locations
	return ApplicatorFunc(func(detail *tax.Detail) bool {
		if locs.IsInLoc(point, zone, vendor) {
			return true
		}
		return failf(detail, "POINT OF TICKETING %s NOT IN %s", point, zone)
	})
}

// PointOfSaleRule restricts the itinerary point of sale to a zone.
type PointOfSaleRule struct {
	Zone   tax.LocZone
	Vendor string
}

func (r *PointOfSaleRule) ID() tax.RuleID { return tax.RulePointOfSale }

func (r *PointOfSaleRule) Description(tax.Services) string {
	return fmt.Sprintf("POINT OF SALE RESTRICTED TO %s (VENDOR %s)", r.Zone, r.Vendor)
}

func (r *PointOfSaleRule) NewApplicator(itinIndex int, req *tax.Request, svc tax.Services, _ *tax.RawPayments) Applicator {
	pos := req.PointOfSale(itinIndex)
	zone, vendor, locs := r.Zone, r.Vendor, svc.Locations
	return ApplicatorFunc(func(detail *tax.Detail) bool {
		if locs.IsInLoc(pos.Loc, zone, vendor) {
			return true
		}
		return failf(detail, "POINT OF SALE %s NOT IN %s", pos.Loc, zone)
	})
}
