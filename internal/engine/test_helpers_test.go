package engine_test

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/taxcore/internal/engine"
	"github.com/noah-isme/taxcore/internal/rules"
	"github.com/noah-isme/taxcore/internal/tables"
	"github.com/noah-isme/taxcore/internal/tax"
)

func newServices(t *testing.T) tax.Services {
	t.Helper()
	store, err := tables.NewStore(tables.Data{
		Locations: []tables.Location{
			{Code: "JFK", City: "NYC", Nation: "US"},
			{Code: "ORD", City: "CHI", Nation: "US"},
			{Code: "LAX", City: "LAX", Nation: "US"},
			{Code: "LHR", City: "LON", Nation: "GB"},
		},
		Mileages: []tables.Mileage{
			{From: "NYC", To: "CHI", Miles: 740},
			{From: "CHI", To: "LAX", Miles: 1745},
		},
	})
	require.NoError(t, err)
	return store.Services()
}

var departure = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

func geoLoc(code, city, nation string) tax.Loc {
	return tax.Loc{Code: code, City: city, Nation: nation}
}

// newRequest prices JFK-ORD-LAX on AA for every fare given, one itinerary per fare.
func newRequest(fares ...string) *tax.Request {
	req := &tax.Request{
		GeoPaths: []tax.GeoPath{{Geos: []tax.Geo{
			{ID: 0, Loc: geoLoc("JFK", "NYC", "US"), Type: tax.GeoDeparture},
			{ID: 1, Loc: geoLoc("ORD", "CHI", "US"), Type: tax.GeoArrival},
			{ID: 2, Loc: geoLoc("ORD", "CHI", "US"), Type: tax.GeoDeparture},
			{ID: 3, Loc: geoLoc("LAX", "LAX", "US"), Type: tax.GeoArrival},
		}}},
		Flights: []tax.Flight{
			{MarketingCarrier: "AA", FlightNumber: 100, Equipment: "738"},
			{MarketingCarrier: "AA", FlightNumber: 200, Equipment: "738"},
		},
		PointsOfSale: []tax.PointOfSale{{Loc: "NYC", AgentPCC: "AB12"}},
		Passengers:   []tax.Passenger{{Code: "ADT"}},
		Ticketing: tax.TicketingOptions{
			TicketingDate:   time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
			TicketingPoint:  "NYC",
			PaymentCurrency: "USD",
		},
	}
	for i, fare := range fares {
		req.Itins = append(req.Itins, tax.Itin{
			ID:                i + 1,
			ValidatingCarrier: "AA",
			FareAmount:        decimal.RequireFromString(fare),
			FlightUsages: []tax.FlightUsage{
				{FlightRef: 0, Departure: departure, Arrival: departure.Add(2 * time.Hour)},
				{FlightRef: 1, Departure: departure.Add(3 * time.Hour), Arrival: departure.Add(7 * time.Hour)},
			},
		})
	}
	return req
}

func taxName(code string, point tax.TaxPointTag) tax.TaxName {
	return tax.TaxName{Nation: "US", TaxCode: code, TaxType: "001", TaxPointTag: point}
}

func flat(amount string) *rules.FlatTaxRule {
	return &rules.FlatTaxRule{Amount: decimal.RequireFromString(amount), Currency: "USD"}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type recordingObserver struct {
	mu        sync.Mutex
	outcomes  map[tax.RuleID][]engine.Outcome
	sequences int
	itins     int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{outcomes: make(map[tax.RuleID][]engine.Outcome)}
}

func (o *recordingObserver) RuleApplied(id tax.RuleID, outcome engine.Outcome) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes[id] = append(o.outcomes[id], outcome)
}

func (o *recordingObserver) SequenceCompleted(tax.TaxName, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sequences++
}

func (o *recordingObserver) ItinCompleted(time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.itins++
}
