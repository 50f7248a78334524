package tax

import (
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// GeoType tells whether a geo is the departure or the arrival end of a flight.
type GeoType string

const (
	GeoDeparture GeoType = "D"
	GeoArrival   GeoType = "A"
)

// Loc is a resolved journey location.
type Loc struct {
	Code   string `json:"code" validate:"required"`
	City   string `json:"city" validate:"required"`
	Nation string `json:"nation" validate:"required"`
}

// Geo is one point of a geo path. Departure geos sit at even indices and arrival geos at odd
// indices, so flight k owns geos 2k and 2k+1.
type Geo struct {
	ID   int     `json:"id"`
	Loc  Loc     `json:"loc"`
	Type GeoType `json:"type" validate:"oneof=D A"`
}

// IsDeparture reports whether the geo is the departure end of a flight.
func (g Geo) IsDeparture() bool { return g.Type == GeoDeparture }

// IsArrival reports whether the geo is the arrival end of a flight.
func (g Geo) IsArrival() bool { return g.Type == GeoArrival }

// GeoPath is the ordered list of geos travelled by an itinerary.
type GeoPath struct {
	Geos []Geo `json:"geos" validate:"required,dive"`
}

// Len returns the number of geos.
func (p GeoPath) Len() int { return len(p.Geos) }

// Origin returns the first geo of the journey.
func (p GeoPath) Origin() Geo { return p.Geos[0] }

// Destination returns the last geo of the journey.
func (p GeoPath) Destination() Geo { return p.Geos[len(p.Geos)-1] }

// IsFirst reports whether id is the journey origin.
func (p GeoPath) IsFirst(id int) bool { return id == 0 }

// IsLast reports whether id is the journey destination.
func (p GeoPath) IsLast(id int) bool { return id == len(p.Geos)-1 }

// Flight is the carrier/equipment description of a flown segment.
type Flight struct {
	MarketingCarrier string `json:"marketingCarrier" validate:"required"`
	OperatingCarrier string `json:"operatingCarrier"`
	FlightNumber     int    `json:"flightNumber" validate:"gte=0"`
	Equipment        string `json:"equipment"`
}

// FlightUsage binds a flight to an itinerary with its actual departure and arrival times.
type FlightUsage struct {
	FlightRef   int       `json:"flightRef" validate:"gte=0"`
	Departure   time.Time `json:"departure"`
	Arrival     time.Time `json:"arrival"`
	OpenSegment bool      `json:"openSegment"`
}

// PointOfSale describes the selling agent.
type PointOfSale struct {
	Loc           string `json:"loc" validate:"required"`
	AgentCity     string `json:"agentCity"`
	AgentPCC      string `json:"agentPcc"`
	AgentDuty     string `json:"agentDuty"`
	AgentFunction string `json:"agentFunction"`
	AgentOffice   string `json:"agentOffice"`
	IATANumber    string `json:"iataNumber"`
	VendorCrsCode string `json:"vendorCrsCode"`
	CarrierCode   string `json:"carrierCode"`
}

// Passenger is the traveller the itinerary is priced for.
type Passenger struct {
	Code        string    `json:"code" validate:"required"`
	BirthDate   time.Time `json:"birthDate"`
	Nationality string    `json:"nationality"`
	Residence   string    `json:"residence"`
	EmployeeOf  string    `json:"employeeOf"`
}

// OptionalServiceInput is an optional service priced with the itinerary.
type OptionalServiceInput struct {
	Code     string          `json:"code" validate:"required"`
	SubCode  string          `json:"subCode"`
	Type     OCType          `json:"type" validate:"oneof=F T M R C"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// Itin is one candidate itinerary of a request.
type Itin struct {
	ID                int                    `json:"id"`
	GeoPathRef        int                    `json:"geoPathRef" validate:"gte=0"`
	FlightUsages      []FlightUsage          `json:"flightUsages" validate:"dive"`
	PointOfSaleRef    int                    `json:"pointOfSaleRef" validate:"gte=0"`
	PassengerRef      int                    `json:"passengerRef" validate:"gte=0"`
	ValidatingCarrier string                 `json:"validatingCarrier"`
	TravelOriginDate  time.Time              `json:"travelOriginDate"`
	FareAmount        decimal.Decimal        `json:"fareAmount"`
	OptionalServices  []OptionalServiceInput `json:"optionalServices" validate:"dive"`
}

// TicketingFee is a fee charged by the ticketing agent or carrier.
type TicketingFee struct {
	Code   string          `json:"code"`
	Amount decimal.Decimal `json:"amount"`
}

// TicketingOptions carries the ticketing context of the request.
type TicketingOptions struct {
	TicketingDate   time.Time       `json:"ticketingDate"`
	TicketingPoint  string          `json:"ticketingPoint"`
	PaymentCurrency string          `json:"paymentCurrency" validate:"required,len=3"`
	TicketingFees   []TicketingFee  `json:"ticketingFees"`
	ChangeFee       decimal.Decimal `json:"changeFee"`
	// OutputType is the requested ticket output, e.g. an electronic ticket or an EMD.
	OutputType string `json:"outputType"`
}

// Request is the immutable input of one tax computation call.
type Request struct {
	Itins         []Itin           `json:"itins" validate:"required,dive"`
	GeoPaths      []GeoPath        `json:"geoPaths" validate:"required,dive"`
	Flights       []Flight         `json:"flights" validate:"dive"`
	PointsOfSale  []PointOfSale    `json:"pointsOfSale" validate:"required,dive"`
	Passengers    []Passenger      `json:"passengers" validate:"required,dive"`
	Ticketing     TicketingOptions `json:"ticketing"`
	ExemptedRules []RuleID         `json:"exemptedRules"`
}

// Itin returns the itinerary at index. An out of range index is a caller bug.
func (r *Request) Itin(index int) *Itin {
	if index < 0 || index >= len(r.Itins) {
		panic(fmt.Sprintf("tax: itinerary index %d out of range [0,%d)", index, len(r.Itins)))
	}
	return &r.Itins[index]
}

// GeoPath returns the geo path of the itinerary. Every itinerary must carry one.
func (r *Request) GeoPath(itinIndex int) *GeoPath {
	itin := r.Itin(itinIndex)
	if itin.GeoPathRef < 0 || itin.GeoPathRef >= len(r.GeoPaths) {
		panic(fmt.Sprintf("tax: itinerary %d references missing geo path %d", itin.ID, itin.GeoPathRef))
	}
	return &r.GeoPaths[itin.GeoPathRef]
}

// Flight returns the flight referenced by a flight usage.
func (r *Request) Flight(usage FlightUsage) *Flight {
	if usage.FlightRef < 0 || usage.FlightRef >= len(r.Flights) {
		panic(fmt.Sprintf("tax: flight usage references missing flight %d", usage.FlightRef))
	}
	return &r.Flights[usage.FlightRef]
}

// PointOfSale returns the point of sale of the itinerary.
func (r *Request) PointOfSale(itinIndex int) *PointOfSale {
	itin := r.Itin(itinIndex)
	if itin.PointOfSaleRef < 0 || itin.PointOfSaleRef >= len(r.PointsOfSale) {
		panic(fmt.Sprintf("tax: itinerary %d references missing point of sale %d", itin.ID, itin.PointOfSaleRef))
	}
	return &r.PointsOfSale[itin.PointOfSaleRef]
}

// Passenger returns the passenger of the itinerary.
func (r *Request) Passenger(itinIndex int) *Passenger {
	itin := r.Itin(itinIndex)
	if itin.PassengerRef < 0 || itin.PassengerRef >= len(r.Passengers) {
		panic(fmt.Sprintf("tax: itinerary %d references missing passenger %d", itin.ID, itin.PassengerRef))
	}
	return &r.Passengers[itin.PassengerRef]
}

// IsExempted reports whether the caller asked to skip rules of the given kind.
func (r *Request) IsExempted(id RuleID) bool {
	return slices.Contains(r.ExemptedRules, id)
}

// FlightIndexDepartingFrom returns the index of the flight usage departing from geo id, or -1.
func FlightIndexDepartingFrom(geoID int, usages []FlightUsage) int {
	if geoID%2 != 0 {
		return -1
	}
	k := geoID / 2
	if k >= len(usages) {
		return -1
	}
	return k
}

// FlightIndexArrivingAt returns the index of the flight usage arriving at geo id, or -1.
func FlightIndexArrivingAt(geoID int, usages []FlightUsage) int {
	if geoID%2 != 1 {
		return -1
	}
	k := geoID / 2
	if k >= len(usages) {
		return -1
	}
	return k
}

// FlightsAround returns the flight usages before and after geo id: the one arriving at (or, for a
// departure geo, arriving at the previous geo) and the one departing from it. Missing sides are -1.
func FlightsAround(geoID int, usages []FlightUsage) (prev, next int) {
	if geoID%2 == 0 {
		next = FlightIndexDepartingFrom(geoID, usages)
		prev = -1
		if geoID > 0 {
			prev = FlightIndexArrivingAt(geoID-1, usages)
		}
		return prev, next
	}
	prev = FlightIndexArrivingAt(geoID, usages)
	next = FlightIndexDepartingFrom(geoID+1, usages)
	return prev, next
}
