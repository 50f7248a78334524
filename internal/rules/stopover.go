package rules

import (
	"errors"
	"fmt"
	"time"

	"github.com/noah-isme/taxcore/internal/tax"
)

// ErrUnsupportedStopoverTime is returned for a stopover unit and magnitude no checker supports.
var ErrUnsupportedStopoverTime = errors.New("unsupported stopover time")

// StopoverUnit is the time unit of a stopover definition.
type StopoverUnit string

const (
	StopoverUnitBlank   StopoverUnit = ""
	StopoverUnitMinutes StopoverUnit = "N"
	StopoverUnitHours   StopoverUnit = "H"
	StopoverUnitDays    StopoverUnit = "D"
	StopoverUnitMonths  StopoverUnit = "M"
	StopoverUnitSameDay StopoverUnit = "S"
)

const (
	domesticStopoverDefault      = 4 * time.Hour
	internationalStopoverDefault = 24 * time.Hour
	maxStopoverMagnitude         = 999
)

type stopoverKind int

const (
	stopoverDefault stopoverKind = iota
	stopoverMinutes
	stopoverHours
	stopoverDays
	stopoverMonths
	stopoverSameDay
)

// StopoverChecker classifies the gap between two consecutive flights. The set of algorithms is
// closed; a checker is chosen once from the unit and magnitude and shared read-only.
type StopoverChecker struct {
	kind      stopoverKind
	magnitude int
}

// NewStopoverChecker selects the checker for unit and magnitude.
func NewStopoverChecker(unit StopoverUnit, magnitude int) (StopoverChecker, error) {
	unsupported := fmt.Errorf("%w: unit %q magnitude %d", ErrUnsupportedStopoverTime, string(unit), magnitude)
	if magnitude < 0 || magnitude > maxStopoverMagnitude {
		return StopoverChecker{}, unsupported
	}
	switch unit {
	case StopoverUnitBlank:
		if magnitude != 0 {
			return StopoverChecker{}, unsupported
		}
		return StopoverChecker{kind: stopoverDefault}, nil
	case StopoverUnitSameDay:
		if magnitude != 0 {
			return StopoverChecker{}, unsupported
		}
		return StopoverChecker{kind: stopoverSameDay}, nil
	case StopoverUnitMinutes, StopoverUnitHours, StopoverUnitDays, StopoverUnitMonths:
		if magnitude == 0 {
			return StopoverChecker{}, unsupported
		}
	default:
		return StopoverChecker{}, unsupported
	}
	kinds := map[StopoverUnit]stopoverKind{
		StopoverUnitMinutes: stopoverMinutes,
		StopoverUnitHours:   stopoverHours,
		StopoverUnitDays:    stopoverDays,
		StopoverUnitMonths:  stopoverMonths,
	}
	return StopoverChecker{kind: kinds[unit], magnitude: magnitude}, nil
}

// IsStopover reports whether the gap between prev arriving and next departing is a stopover.
// domestic is only consulted by the default checker. A gap equal to the threshold is a stopover.
func (c StopoverChecker) IsStopover(prev, next tax.FlightUsage, domestic bool) bool {
	if next.OpenSegment {
		return true
	}
	gap := next.Departure.Sub(prev.Arrival)
	switch c.kind {
	case stopoverMinutes:
		return gap >= time.Duration(c.magnitude)*time.Minute
	case stopoverHours:
		return gap >= time.Duration(c.magnitude)*time.Hour
	case stopoverDays:
		return calendarDays(prev.Arrival, next.Departure) >= c.magnitude
	case stopoverMonths:
		return !next.Departure.Before(prev.Arrival.AddDate(0, c.magnitude, 0))
	case stopoverSameDay:
		return calendarDays(prev.Arrival, next.Departure) > 0
	default:
		if domestic {
			return gap >= domesticStopoverDefault
		}
		return gap >= internationalStopoverDefault
	}
}

func (c StopoverChecker) String() string {
	switch c.kind {
	case stopoverMinutes:
		return fmt.Sprintf("%d MINUTES", c.magnitude)
	case stopoverHours:
		return fmt.Sprintf("%d HOURS", c.magnitude)
	case stopoverDays:
		return fmt.Sprintf("%d DAYS", c.magnitude)
	case stopoverMonths:
		return fmt.Sprintf("%d MONTHS", c.magnitude)
	case stopoverSameDay:
		return "NEXT DAY"
	default:
		return "DEFAULT (4 HOURS DOMESTIC, 24 HOURS INTERNATIONAL)"
	}
}

// calendarDays counts date changes between two local times, each read in its own zone.
func calendarDays(from, to time.Time) int {
	return int(dateOnly(to).Sub(dateOnly(from)).Hours() / 24)
}

// FillTimeStopoversRule classifies every point of the journey as stopover or connection and
// records the result in the tax point properties of the detail.
type FillTimeStopoversRule struct {
	Unit      StopoverUnit
	Magnitude int
}

// NewFillTimeStopoversRule validates the stopover definition before building the rule.
func NewFillTimeStopoversRule(unit StopoverUnit, magnitude int) (*FillTimeStopoversRule, error) {
	if _, err := NewStopoverChecker(unit, magnitude); err != nil {
		return nil, err
	}
	return &FillTimeStopoversRule{Unit: unit, Magnitude: magnitude}, nil
}

func (r *FillTimeStopoversRule) ID() tax.RuleID { return tax.RuleFillTimeStopovers }

func (r *FillTimeStopoversRule) Description(tax.Services) string {
	checker, err := NewStopoverChecker(r.Unit, r.Magnitude)
	if err != nil {
		return "STOPOVER TIME " + err.Error()
	}
	return "STOPOVER IF CONNECTION TIME IS AT LEAST " + checker.String()
}

func (r *FillTimeStopoversRule) NewApplicator(itinIndex int, req *tax.Request, svc tax.Services, _ *tax.RawPayments) Applicator {
	checker, err := NewStopoverChecker(r.Unit, r.Magnitude)
	if err != nil {
		return failing("STOPOVER TIME " + err.Error())
	}
	return &fillTimeStopoversApplicator{
		checker: checker,
		path:    req.GeoPath(itinIndex),
		usages:  req.Itin(itinIndex).FlightUsages,
		locs:    svc.Locations,
	}
}

type fillTimeStopoversApplicator struct {
	checker StopoverChecker
	path    *tax.GeoPath
	usages  []tax.FlightUsage
	locs    tax.LocService
}

func (a *fillTimeStopoversApplicator) Apply(detail *tax.Detail) bool {
	if len(detail.TaxPointsProperties) < a.path.Len() {
		grown := make([]tax.TaxPointProperties, a.path.Len())
		copy(grown, detail.TaxPointsProperties)
		detail.TaxPointsProperties = grown
	}
	props := detail.TaxPointsProperties
	last := a.path.Len() - 1
	setStopover(&props[0], true)
	setStopover(&props[last], true)
	for k := 0; k+1 < len(a.usages); k++ {
		arrival, departure := 2*k+1, 2*k+2
		if departure > last {
			break
		}
		domestic := a.isDomestic(k)
		stop := a.checker.IsStopover(a.usages[k], a.usages[k+1], domestic)
		setStopover(&props[arrival], stop)
		setStopover(&props[departure], stop)
	}
	return true
}

// isDomestic reports whether the connection after flight k stays within one nation.
func (a *fillTimeStopoversApplicator) isDomestic(k int) bool {
	nation := nationOf(a.locs, a.path.Geos[2*k+1].Loc)
	if nationOf(a.locs, a.path.Geos[2*k].Loc) != nation {
		return false
	}
	next := 2*k + 3
	return next < a.path.Len() && nationOf(a.locs, a.path.Geos[next].Loc) == nation
}

func setStopover(p *tax.TaxPointProperties, value bool) {
	v := value
	p.IsTimeStopover = &v
}
