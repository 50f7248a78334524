package rules_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/taxcore/internal/rules"
	"github.com/noah-isme/taxcore/internal/tables"
	"github.com/noah-isme/taxcore/internal/tax"
)

var testTables = tables.Data{
	Locations: []tables.Location{
		{Code: "JFK", City: "NYC", State: "NY", Nation: "US"},
		{Code: "LGA", City: "NYC", State: "NY", Nation: "US"},
		{Code: "ORD", City: "CHI", State: "IL", Nation: "US"},
		{Code: "LAX", City: "LAX", State: "CA", Nation: "US"},
		{Code: "LHR", City: "LON", Nation: "GB"},
		{Code: "LGW", City: "LON", Nation: "GB"},
		{Code: "CDG", City: "PAR", Nation: "FR"},
		{Code: "FRA", City: "FRA", Nation: "DE"},
	},
	Zones: []tables.UserZone{
		{
			Vendor: "ATP",
			Code:   "EU1",
			Include: []tax.LocZone{
				{Type: tax.LocNation, Code: "GB"},
				{Type: tax.LocNation, Code: "FR"},
				{Type: tax.LocNation, Code: "DE"},
			},
			Exclude: []tax.LocZone{{Type: tax.LocAirport, Code: "LGW"}},
		},
	},
	Mileages: []tables.Mileage{
		{From: "NYC", To: "CHI", Miles: 740},
		{From: "CHI", To: "LAX", Miles: 1745},
		{From: "NYC", To: "LAX", Miles: 2475},
		{From: "NYC", To: "LON", Miles: 3451},
		{From: "LON", To: "PAR", Miles: 214},
		{From: "NYC", To: "PAR", Miles: 3635},
	},
	CarrierFlights: []tax.CarrierFlight{
		{Vendor: "ATP", ItemNo: 10, Segments: []tax.CarrierFlightSegment{{MarketingCarrier: "AA", FlightFrom: 100, FlightTo: 199}}},
		{Vendor: "ATP", ItemNo: 11, Segments: []tax.CarrierFlightSegment{{MarketingCarrier: "BA"}}},
	},
	PassengerTypes: []tables.PassengerTypeTable{
		{
			Vendor: "ATP",
			ItemNo: 20,
			Items: []tax.PassengerTypeCodeItem{
				{ApplTag: tax.ApplNotPermitted, PassengerType: "INF"},
				{ApplTag: tax.ApplNotPermitted, MaxAge: 1},
				{ApplTag: tax.ApplPermitted},
			},
		},
		{
			Vendor: "ATP",
			ItemNo: 21,
			Items: []tax.PassengerTypeCodeItem{
				{ApplTag: tax.ApplNotPermitted, Status: tax.StatusNational, Location: tax.LocZone{Type: tax.LocNation, Code: "US"}},
				{ApplTag: tax.ApplPermitted},
			},
		},
	},
	Customers: []tax.Customer{
		{PseudoCity: "EXMP", ExemptYqYr: true, ExemptYqYrCarriers: []string{"AA"}},
	},
	ServiceFeeSecurity: []tables.ServiceFeeSecurityTable{
		{
			Vendor: "ATP",
			ItemNo: 30,
			Items: []tax.ServiceFeeSecurityItem{
				{CodeType: tax.CodeTypePseudoCity, Code: "VIEW", ViewBookTicket: tax.ViewOnly},
				{Location: tax.LocZone{Type: tax.LocCity, Code: "NYC"}, ViewBookTicket: tax.ViewBookTicketAllowed},
				{ViewBookTicket: tax.ViewOnly},
			},
		},
	},
}

func newServices(t *testing.T) tax.Services {
	t.Helper()
	store, err := tables.NewStore(testTables)
	require.NoError(t, err)
	return store.Services()
}

type leg struct {
	from, to  string
	carrier   string
	number    int
	equipment string
	dep, arr  time.Time
}

var travelDay = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return travelDay.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func loc(svc tax.Services, code string) tax.Loc {
	return tax.Loc{Code: code, City: svc.Locations.City(code), Nation: svc.Locations.Nation(code)}
}

// journey builds a single itinerary request flying the legs in order.
func journey(svc tax.Services, legs ...leg) *tax.Request {
	req := &tax.Request{
		PointsOfSale: []tax.PointOfSale{{Loc: "NYC", AgentCity: "NYC", AgentPCC: "AB12"}},
		Passengers:   []tax.Passenger{{Code: "ADT", BirthDate: time.Date(1980, 3, 14, 0, 0, 0, 0, time.UTC), Nationality: "GB"}},
		Ticketing: tax.TicketingOptions{
			TicketingDate:   time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
			TicketingPoint:  "NYC",
			PaymentCurrency: "USD",
		},
	}
	itin := tax.Itin{ID: 1, ValidatingCarrier: "AA", FareAmount: decimal.NewFromInt(500)}
	var path tax.GeoPath
	for k, l := range legs {
		path.Geos = append(path.Geos,
			tax.Geo{ID: 2 * k, Loc: loc(svc, l.from), Type: tax.GeoDeparture},
			tax.Geo{ID: 2*k + 1, Loc: loc(svc, l.to), Type: tax.GeoArrival},
		)
		req.Flights = append(req.Flights, tax.Flight{MarketingCarrier: l.carrier, FlightNumber: l.number, Equipment: l.equipment})
		itin.FlightUsages = append(itin.FlightUsages, tax.FlightUsage{FlightRef: k, Departure: l.dep, Arrival: l.arr})
	}
	req.GeoPaths = []tax.GeoPath{path}
	req.Itins = []tax.Itin{itin}
	return req
}

func detailAt(req *tax.Request, point int) *tax.Detail {
	name := tax.TaxName{Nation: "US", TaxCode: "US1", TaxType: "001", TaxPointTag: tax.TaxPointDeparture}
	d := tax.NewDetail(name, 100, point, req.GeoPaths[0].Len())
	d.Taxable.Fare = req.Itins[0].FareAmount
	for _, oc := range req.Itins[0].OptionalServices {
		d.OptionalServices = append(d.OptionalServices, tax.OptionalService{Code: oc.Code, Type: oc.Type, Amount: oc.Amount})
	}
	return d
}

func apply(rule rules.BusinessRule, req *tax.Request, svc tax.Services, payments *tax.RawPayments, detail *tax.Detail) bool {
	return rule.NewApplicator(0, req, svc, payments).Apply(detail)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// nycChiLax is a domestic two leg journey connecting at ORD.
func nycChiLax(svc tax.Services, connect time.Duration) *tax.Request {
	arr := at(10, 0)
	dep := arr.Add(connect)
	return journey(svc,
		leg{from: "JFK", to: "ORD", carrier: "AA", number: 100, equipment: "738", dep: at(8, 0), arr: arr},
		leg{from: "ORD", to: "LAX", carrier: "AA", number: 200, equipment: "738", dep: dep, arr: dep.Add(4 * time.Hour)},
	)
}
