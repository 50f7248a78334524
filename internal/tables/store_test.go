package tables_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/taxcore/internal/tables"
	"github.com/noah-isme/taxcore/internal/tax"
)

const sampleTables = `
locations:
  - {code: JFK, city: NYC, state: NY, nation: US}
  - {code: EWR, city: NYC, state: NJ, nation: US}
  - {code: ORD, city: CHI, state: IL, nation: US}
  - {code: YYZ, city: YTO, state: ON, nation: CA}
zones:
  - vendor: ATP
    code: NAM
    include:
      - {type: N, code: US}
      - {type: N, code: CA}
    exclude:
      - {type: S, code: NJ}
  - vendor: ATP
    code: NAMX
    include:
      - {type: Z, code: NAM}
mileages:
  - {from: NYC, to: CHI, miles: 740}
  - {from: CHI, to: YTO, miles: 436}
carrierFlights:
  - vendor: ATP
    itemNo: 1
    segments:
      - {marketingCarrier: AC, flightFrom: 1, flightTo: 999}
passengerTypes:
  - vendor: ATP
    itemNo: 5
    items:
      - {applTag: Y, passengerType: ADT}
  - vendor: ATP
    validatingCarrier: AC
    itemNo: 5
    items:
      - {applTag: N, passengerType: ADT}
customers:
  - {pseudoCity: AB12, exemptYqYr: true}
serviceFeeSecurity:
  - vendor: ATP
    itemNo: 7
    items:
      - {viewBookTicket: "1"}
`

func newStore(t *testing.T) *tables.Store {
	t.Helper()
	data, err := tables.Parse([]byte(sampleTables))
	require.NoError(t, err)
	store, err := tables.NewStore(data)
	require.NoError(t, err)
	return store
}

func TestStoreLocationMatching(t *testing.T) {
	store := newStore(t)
	cases := []struct {
		code string
		zone tax.LocZone
		want bool
	}{
		{"JFK", tax.LocZone{Type: tax.LocAirport, Code: "JFK"}, true},
		{"JFK", tax.LocZone{Type: tax.LocCity, Code: "NYC"}, true},
		{"EWR", tax.LocZone{Type: tax.LocState, Code: "NJ"}, true},
		{"JFK", tax.LocZone{Type: tax.LocNation, Code: "CA"}, false},
		{"JFK", tax.LocZone{Type: tax.LocZoneRef, Code: "NAM"}, true},
		{"YYZ", tax.LocZone{Type: tax.LocZoneRef, Code: "NAM"}, true},
		{"EWR", tax.LocZone{Type: tax.LocZoneRef, Code: "NAM"}, false},
		{"ORD", tax.LocZone{Type: tax.LocZoneRef, Code: "NAMX"}, true},
		{"ORD", tax.LocZone{Type: tax.LocZoneRef, Code: "MISSING"}, false},
		{"ORD", tax.LocZone{}, true},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, store.IsInLoc(tc.code, tc.zone, "ATP"), "%s in %s", tc.code, tc.zone)
	}
	require.True(t, store.IsNationInLoc("CA", tax.LocZone{Type: tax.LocZoneRef, Code: "NAM"}, "ATP"))
	require.False(t, store.IsNationInLoc("", tax.LocZone{Type: tax.LocNation, Code: "US"}, "ATP"))
	require.Equal(t, "NYC", store.City("EWR"))
	require.Equal(t, "PAR", store.City("PAR"), "unknown codes are their own city")
	require.Equal(t, "", store.Nation("PAR"))
}

func TestStoreSelfReferencingZoneTerminates(t *testing.T) {
	store, err := tables.NewStore(tables.Data{
		Locations: []tables.Location{{Code: "JFK", City: "NYC", Nation: "US"}},
		Zones:     []tables.UserZone{{Vendor: "ATP", Code: "LOOP", Include: []tax.LocZone{{Type: tax.LocZoneRef, Code: "LOOP"}}}},
	})
	require.NoError(t, err)
	require.False(t, store.IsInLoc("JFK", tax.LocZone{Type: tax.LocZoneRef, Code: "LOOP"}, "ATP"))
}

func TestStoreRejectsDuplicateLocations(t *testing.T) {
	_, err := tables.NewStore(tables.Data{Locations: []tables.Location{
		{Code: "JFK", City: "NYC", Nation: "US"},
		{Code: "JFK", City: "NYC", Nation: "US"},
	}})
	require.ErrorContains(t, err, "duplicate location JFK")
}

func TestStoreMileage(t *testing.T) {
	store := newStore(t)
	path := tax.GeoPath{Geos: []tax.Geo{
		{ID: 0, Loc: tax.Loc{Code: "JFK", City: "NYC", Nation: "US"}, Type: tax.GeoDeparture},
		{ID: 1, Loc: tax.Loc{Code: "ORD", City: "CHI", Nation: "US"}, Type: tax.GeoArrival},
		{ID: 2, Loc: tax.Loc{Code: "ORD", City: "CHI", Nation: "US"}, Type: tax.GeoDeparture},
		{ID: 3, Loc: tax.Loc{Code: "YYZ", City: "YTO", Nation: "CA"}, Type: tax.GeoArrival},
	}}
	usages := []tax.FlightUsage{{FlightRef: 0}, {FlightRef: 1}}

	getter, err := store.MileageGetter(path, usages, time.Time{})
	require.NoError(t, err)
	require.Equal(t, 1176, getter.FlownDistance(0, 3))
	require.Equal(t, 436, getter.FlownDistance(1, 3))

	miles, ok := getter.Distance(0, 1)
	require.True(t, ok)
	require.Equal(t, 740, miles, "city pairs are unordered")
	_, ok = getter.Distance(0, 3)
	require.False(t, ok)

	path.Geos[3].Loc = tax.Loc{Code: "LHR", City: "LON", Nation: "GB"}
	_, err = store.MileageGetter(path, usages, time.Time{})
	require.True(t, errors.Is(err, tables.ErrMileageNotFound))
}

func TestStoreTableLookups(t *testing.T) {
	store := newStore(t)

	cf, ok := store.CarrierFlight("ATP", 1)
	require.True(t, ok)
	require.Equal(t, "AC", cf.Segments[0].MarketingCarrier)
	_, ok = store.CarrierFlight("ATP", 2)
	require.False(t, ok)

	items, ok := store.PassengerTypeCodes("ATP", "AC", 5)
	require.True(t, ok)
	require.Equal(t, tax.ApplNotPermitted, items[0].ApplTag, "carrier table wins")
	items, ok = store.PassengerTypeCodes("ATP", "AA", 5)
	require.True(t, ok)
	require.Equal(t, tax.ApplPermitted, items[0].ApplTag)

	customer, ok := store.Customer("AB12")
	require.True(t, ok)
	require.True(t, customer.ExemptYqYr)

	sec, ok := store.ServiceFeeSecurity("ATP", 7)
	require.True(t, ok)
	require.Equal(t, tax.ViewBookTicketAllowed, sec[0].ViewBookTicket)
}

func TestParseRejectsUnknownFieldsAndInvalidRows(t *testing.T) {
	_, err := tables.Parse([]byte("locations:\n  - {code: JFK, city: NYC, nation: US, airport: true}\n"))
	require.Error(t, err)

	_, err = tables.Parse([]byte("locations:\n  - {code: JFK, nation: US}\n"))
	require.ErrorContains(t, err, "tables: validate")
}
