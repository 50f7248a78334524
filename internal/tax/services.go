package tax

import "time"

// LocService answers location containment questions.
type LocService interface {
	// IsInLoc reports whether the location code lies within zone. Zones of type Z are user
	// zones owned by vendor.
	IsInLoc(code string, zone LocZone, vendor string) bool
	// IsNationInLoc reports whether a nation code lies within zone.
	IsNationInLoc(nation string, zone LocZone, vendor string) bool
	// Nation returns the nation of a location code, empty when unknown.
	Nation(code string) string
	// City returns the city of a location code. Unknown codes are their own city.
	City(code string) string
}

// MileageGetter returns distances between geos of one geo path.
type MileageGetter interface {
	// Distance returns the mileage between the locations of two geos of the path. The second
	// result is false when the city pair is unknown.
	Distance(fromGeo, toGeo int) (int, bool)
	// FlownDistance returns the mileage flown from one geo to a later one along the path.
	FlownDistance(fromGeo, toGeo int) int
}

// MileageService builds mileage getters. It fails when a flown segment has no mileage.
type MileageService interface {
	MileageGetter(path GeoPath, usages []FlightUsage, travelDate time.Time) (MileageGetter, error)
}

// CarrierFlightSegment is one row of a carrier flight table. FlightFrom of zero matches any flight.
type CarrierFlightSegment struct {
	MarketingCarrier string `json:"marketingCarrier" yaml:"marketingCarrier"`
	OperatingCarrier string `json:"operatingCarrier" yaml:"operatingCarrier"`
	FlightFrom       int    `json:"flightFrom" yaml:"flightFrom"`
	FlightTo         int    `json:"flightTo" yaml:"flightTo"`
}

// CarrierFlight is a carrier flight table.
type CarrierFlight struct {
	Vendor   string                 `json:"vendor" yaml:"vendor"`
	ItemNo   int                    `json:"itemNo" yaml:"itemNo"`
	Segments []CarrierFlightSegment `json:"segments" yaml:"segments"`
}

// CarrierFlightService looks up carrier flight tables.
type CarrierFlightService interface {
	CarrierFlight(vendor string, itemNo int) (CarrierFlight, bool)
}

// PassengerStatus narrows a passenger type item to residents, nationals or employees.
type PassengerStatus string

const (
	StatusBlank    PassengerStatus = ""
	StatusResident PassengerStatus = "R"
	StatusNational PassengerStatus = "N"
	StatusEmployee PassengerStatus = "E"
)

// ApplTag tells whether a matching table item permits or forbids the tax.
type ApplTag string

const (
	ApplPermitted    ApplTag = "Y"
	ApplNotPermitted ApplTag = "N"
)

// PassengerTypeCodeItem is one row of a passenger type code table.
type PassengerTypeCodeItem struct {
	ApplTag       ApplTag         `json:"applTag" yaml:"applTag"`
	PassengerType string          `json:"passengerType" yaml:"passengerType"`
	MinAge        int             `json:"minAge" yaml:"minAge"`
	MaxAge        int             `json:"maxAge" yaml:"maxAge"`
	Status        PassengerStatus `json:"status" yaml:"status"`
	Location      LocZone         `json:"location" yaml:"location"`
}

// PassengerTypeService looks up passenger type code tables.
type PassengerTypeService interface {
	PassengerTypeCodes(vendor, validatingCarrier string, itemNo int) ([]PassengerTypeCodeItem, bool)
}

// Customer is the tax profile of an agency customer.
type Customer struct {
	PseudoCity         string   `json:"pseudoCity" yaml:"pseudoCity"`
	ExemptYqYr         bool     `json:"exemptYqYr" yaml:"exemptYqYr"`
	ExemptYqYrCarriers []string `json:"exemptYqYrCarriers" yaml:"exemptYqYrCarriers"`
}

// CustomerService looks up customer restrictions.
type CustomerService interface {
	Customer(pseudoCity string) (Customer, bool)
}

// ViewBookTicket is the verdict of a service fee security record.
type ViewBookTicket string

const (
	ViewBookTicketAllowed ViewBookTicket = "1"
	ViewOnly              ViewBookTicket = "2"
)

// SecurityCodeType selects the point of sale attribute compared against Code.
type SecurityCodeType string

const (
	CodeTypeBlank      SecurityCodeType = ""
	CodeTypePseudoCity SecurityCodeType = "T"
	CodeTypeIATANumber SecurityCodeType = "I"
	CodeTypeOffice     SecurityCodeType = "D"
)

// ServiceFeeSecurityItem is one row of a service fee security table.
type ServiceFeeSecurityItem struct {
	TravelAgencyIndicator string           `json:"travelAgencyIndicator" yaml:"travelAgencyIndicator"`
	CarrierGdsCode        string           `json:"carrierGdsCode" yaml:"carrierGdsCode"`
	DutyFunctionCode      string           `json:"dutyFunctionCode" yaml:"dutyFunctionCode"`
	Location              LocZone          `json:"location" yaml:"location"`
	CodeType              SecurityCodeType `json:"codeType" yaml:"codeType"`
	Code                  string           `json:"code" yaml:"code"`
	ViewBookTicket        ViewBookTicket   `json:"viewBookTicket" yaml:"viewBookTicket"`
}

// ServiceFeeSecurityService looks up service fee security tables.
type ServiceFeeSecurityService interface {
	ServiceFeeSecurity(vendor string, itemNo int) ([]ServiceFeeSecurityItem, bool)
}

// Services bundles the read-only lookups rules may consult. Implementations must be safe for
// concurrent reads.
type Services struct {
	Locations          LocService
	Mileage            MileageService
	CarrierFlights     CarrierFlightService
	PassengerTypes     PassengerTypeService
	Customers          CustomerService
	ServiceFeeSecurity ServiceFeeSecurityService
}
