package tables

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/taxcore/internal/tax"
)

// ErrMileageNotFound is returned when a flown city pair has no mileage.
var ErrMileageNotFound = errors.New("tables: mileage not found")

const maxZoneDepth = 8

// Location is a location code with its containing city, state and nation.
type Location struct {
	Code   string `json:"code" yaml:"code" validate:"required"`
	City   string `json:"city" yaml:"city" validate:"required"`
	State  string `json:"state" yaml:"state"`
	Nation string `json:"nation" yaml:"nation" validate:"required"`
}

// UserZone is a vendor-owned zone built from included and excluded locations.
type UserZone struct {
	Vendor  string        `json:"vendor" yaml:"vendor" validate:"required"`
	Code    string        `json:"code" yaml:"code" validate:"required"`
	Include []tax.LocZone `json:"include" yaml:"include"`
	Exclude []tax.LocZone `json:"exclude" yaml:"exclude"`
}

// Mileage is the distance between two cities.
type Mileage struct {
	From  string `json:"from" yaml:"from" validate:"required"`
	To    string `json:"to" yaml:"to" validate:"required"`
	Miles int    `json:"miles" yaml:"miles" validate:"gte=0"`
}

// PassengerTypeTable groups passenger type items under their table key.
type PassengerTypeTable struct {
	Vendor            string                      `json:"vendor" yaml:"vendor" validate:"required"`
	ValidatingCarrier string                      `json:"validatingCarrier" yaml:"validatingCarrier"`
	ItemNo            int                         `json:"itemNo" yaml:"itemNo" validate:"gt=0"`
	Items             []tax.PassengerTypeCodeItem `json:"items" yaml:"items"`
}

// ServiceFeeSecurityTable groups security items under their table key.
type ServiceFeeSecurityTable struct {
	Vendor string                       `json:"vendor" yaml:"vendor" validate:"required"`
	ItemNo int                          `json:"itemNo" yaml:"itemNo" validate:"gt=0"`
	Items  []tax.ServiceFeeSecurityItem `json:"items" yaml:"items"`
}

// Data is the serialisable content of every lookup table.
type Data struct {
	Locations          []Location                `json:"locations" yaml:"locations" validate:"dive"`
	Zones              []UserZone                `json:"zones" yaml:"zones" validate:"dive"`
	Mileages           []Mileage                 `json:"mileages" yaml:"mileages" validate:"dive"`
	CarrierFlights     []tax.CarrierFlight       `json:"carrierFlights" yaml:"carrierFlights"`
	PassengerTypes     []PassengerTypeTable      `json:"passengerTypes" yaml:"passengerTypes" validate:"dive"`
	Customers          []tax.Customer            `json:"customers" yaml:"customers"`
	ServiceFeeSecurity []ServiceFeeSecurityTable `json:"serviceFeeSecurity" yaml:"serviceFeeSecurity" validate:"dive"`
}

type itemKey struct {
	vendor string
	item   int
}

type ptcKey struct {
	vendor  string
	carrier string
	item    int
}

type zoneKey struct {
	vendor string
	code   string
}

type cityPair struct {
	a, b string
}

func newCityPair(a, b string) cityPair {
	if a > b {
		a, b = b, a
	}
	return cityPair{a: a, b: b}
}

// Store is an immutable in-memory implementation of every tax lookup service. It is safe for
// concurrent use once built.
type Store struct {
	locations      map[string]Location
	zones          map[zoneKey]UserZone
	mileages       map[cityPair]int
	carrierFlights map[itemKey]tax.CarrierFlight
	passengerTypes map[ptcKey][]tax.PassengerTypeCodeItem
	customers      map[string]tax.Customer
	security       map[itemKey][]tax.ServiceFeeSecurityItem
}

// NewStore indexes the table data.
func NewStore(data Data) (*Store, error) {
	s := &Store{
		locations:      make(map[string]Location, len(data.Locations)),
		zones:          make(map[zoneKey]UserZone, len(data.Zones)),
		mileages:       make(map[cityPair]int, len(data.Mileages)),
		carrierFlights: make(map[itemKey]tax.CarrierFlight, len(data.CarrierFlights)),
		passengerTypes: make(map[ptcKey][]tax.PassengerTypeCodeItem, len(data.PassengerTypes)),
		customers:      make(map[string]tax.Customer, len(data.Customers)),
		security:       make(map[itemKey][]tax.ServiceFeeSecurityItem, len(data.ServiceFeeSecurity)),
	}
	var errs error
	for _, loc := range data.Locations {
		if _, dup := s.locations[loc.Code]; dup {
			errs = errors.Join(errs, fmt.Errorf("tables: duplicate location %s", loc.Code))
			continue
		}
		s.locations[loc.Code] = loc
	}
	for _, zone := range data.Zones {
		s.zones[zoneKey{vendor: zone.Vendor, code: zone.Code}] = zone
	}
	for _, m := range data.Mileages {
		s.mileages[newCityPair(m.From, m.To)] = m.Miles
	}
	for _, cf := range data.CarrierFlights {
		s.carrierFlights[itemKey{vendor: cf.Vendor, item: cf.ItemNo}] = cf
	}
	for _, t := range data.PassengerTypes {
		s.passengerTypes[ptcKey{vendor: t.Vendor, carrier: t.ValidatingCarrier, item: t.ItemNo}] = t.Items
	}
	for _, c := range data.Customers {
		s.customers[c.PseudoCity] = c
	}
	for _, t := range data.ServiceFeeSecurity {
		s.security[itemKey{vendor: t.Vendor, item: t.ItemNo}] = t.Items
	}
	if errs != nil {
		return nil, errs
	}
	return s, nil
}

// Services exposes the store through every lookup interface.
func (s *Store) Services() tax.Services {
	return tax.Services{
		Locations:          s,
		Mileage:            s,
		CarrierFlights:     s,
		PassengerTypes:     s,
		Customers:          s,
		ServiceFeeSecurity: s,
	}
}

func (s *Store) location(code string) Location {
	if loc, ok := s.locations[code]; ok {
		return loc
	}
	return Location{Code: code, City: code}
}

// Nation implements tax.LocService.
func (s *Store) Nation(code string) string {
	return s.locations[code].Nation
}

// City implements tax.LocService.
func (s *Store) City(code string) string {
	return s.location(code).City
}

// IsInLoc implements tax.LocService.
func (s *Store) IsInLoc(code string, zone tax.LocZone, vendor string) bool {
	if zone.IsBlank() {
		return true
	}
	return s.inZone(s.location(code), zone, vendor, 0)
}

// IsNationInLoc implements tax.LocService.
func (s *Store) IsNationInLoc(nation string, zone tax.LocZone, vendor string) bool {
	if zone.IsBlank() {
		return true
	}
	if nation == "" {
		return false
	}
	return s.inZone(Location{Nation: nation}, zone, vendor, 0)
}

func (s *Store) inZone(loc Location, zone tax.LocZone, vendor string, depth int) bool {
	code := strings.TrimSpace(zone.Code)
	switch zone.Type {
	case tax.LocAirport:
		return loc.Code != "" && loc.Code == code
	case tax.LocCity:
		return loc.City != "" && (loc.City == code || loc.Code == code)
	case tax.LocNation:
		return loc.Nation != "" && loc.Nation == code
	case tax.LocState:
		return loc.State != "" && loc.State == code
	case tax.LocZoneRef:
		if depth >= maxZoneDepth {
			return false
		}
		uz, ok := s.zones[zoneKey{vendor: vendor, code: code}]
		if !ok {
			return false
		}
		for _, ex := range uz.Exclude {
			if s.inZone(loc, ex, vendor, depth+1) {
				return false
			}
		}
		for _, in := range uz.Include {
			if s.inZone(loc, in, vendor, depth+1) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// MileageGetter implements tax.MileageService.
func (s *Store) MileageGetter(path tax.GeoPath, usages []tax.FlightUsage, _ time.Time) (tax.MileageGetter, error) {
	g := &mileageGetter{store: s, path: path, flown: make([]int, path.Len())}
	for k := range usages {
		dep, arr := 2*k, 2*k+1
		if arr >= path.Len() {
			break
		}
		miles, ok := g.Distance(dep, arr)
		if !ok {
			return nil, fmt.Errorf("%w: %s-%s", ErrMileageNotFound, path.Geos[dep].Loc.City, path.Geos[arr].Loc.City)
		}
		g.flown[arr] = miles
	}
	return g, nil
}

type mileageGetter struct {
	store *Store
	path  tax.GeoPath
	// flown[i] is the mileage flown to reach geo i from the previous geo.
	flown []int
}

func (g *mileageGetter) Distance(fromGeo, toGeo int) (int, bool) {
	from := g.path.Geos[fromGeo].Loc.City
	to := g.path.Geos[toGeo].Loc.City
	if from == to {
		return 0, true
	}
	miles, ok := g.store.mileages[newCityPair(from, to)]
	return miles, ok
}

func (g *mileageGetter) FlownDistance(fromGeo, toGeo int) int {
	total := 0
	for i := fromGeo + 1; i <= toGeo && i < len(g.flown); i++ {
		total += g.flown[i]
	}
	return total
}

// CarrierFlight implements tax.CarrierFlightService.
func (s *Store) CarrierFlight(vendor string, itemNo int) (tax.CarrierFlight, bool) {
	cf, ok := s.carrierFlights[itemKey{vendor: vendor, item: itemNo}]
	return cf, ok
}

// PassengerTypeCodes implements tax.PassengerTypeService. Carrier specific tables take
// precedence over the vendor-wide one.
func (s *Store) PassengerTypeCodes(vendor, validatingCarrier string, itemNo int) ([]tax.PassengerTypeCodeItem, bool) {
	if items, ok := s.passengerTypes[ptcKey{vendor: vendor, carrier: validatingCarrier, item: itemNo}]; ok {
		return items, true
	}
	items, ok := s.passengerTypes[ptcKey{vendor: vendor, item: itemNo}]
	return items, ok
}

// Customer implements tax.CustomerService.
func (s *Store) Customer(pseudoCity string) (tax.Customer, bool) {
	c, ok := s.customers[pseudoCity]
	return c, ok
}

// ServiceFeeSecurity implements tax.ServiceFeeSecurityService.
func (s *Store) ServiceFeeSecurity(vendor string, itemNo int) ([]tax.ServiceFeeSecurityItem, bool) {
	items, ok := s.security[itemKey{vendor: vendor, item: itemNo}]
	return items, ok
}
