package tax

import "strings"

// RuleID identifies a rule kind. It is used for exemption matching and failure attribution.
type RuleID string

const (
	RuleTaxPointLoc1                     RuleID = "TaxPointLoc1"
	RuleTaxPointLoc2                     RuleID = "TaxPointLoc2"
	RuleJourneyLoc1AsOrigin              RuleID = "JourneyLoc1AsOrigin"
	RuleJourneyLoc2DestinationTurnAround RuleID = "JourneyLoc2DestinationTurnAround"
	RuleReturnToOrigin                   RuleID = "ReturnToOrigin"
	RulePointOfTicketing                 RuleID = "PointOfTicketing"
	RulePointOfSale                      RuleID = "PointOfSale"
	RuleSaleDate                         RuleID = "SaleDate"
	RuleTravelDates                      RuleID = "TravelDates"
	RuleFillTimeStopovers                RuleID = "FillTimeStopovers"
	RuleCarrierFlight                    RuleID = "CarrierFlight"
	RuleTaxPointLoc1TransferType         RuleID = "TaxPointLoc1TransferType"
	RuleTaxMatchingApplTag               RuleID = "TaxMatchingApplTag"
	RuleValidatingCarrier                RuleID = "ValidatingCarrier"
	RulePassengerTypeCode                RuleID = "PassengerTypeCode"
	RuleOptionalServiceTags              RuleID = "OptionalServiceTags"
	RuleCurrencyOfSale                   RuleID = "CurrencyOfSale"
	RuleOutputTypeIndicator              RuleID = "OutputTypeIndicator"
	RuleServiceFeeSecurity               RuleID = "ServiceFeeSecurity"
	RuleCustomerRestriction              RuleID = "CustomerRestriction"
	RuleFlatTax                          RuleID = "FlatTax"
	RulePercentageTax                    RuleID = "PercentageTax"
	RuleTaxOnTax                         RuleID = "TaxOnTax"
	RuleTaxOnTicketingFee                RuleID = "TaxOnTicketingFee"
	RuleTaxOnChangeFee                   RuleID = "TaxOnChangeFee"
	RuleYqYrAmount                       RuleID = "YqYrAmount"
	RuleTaxMinMaxValue                   RuleID = "TaxMinMaxValue"
	RuleTaxRounding                      RuleID = "TaxRounding"
	RuleExemptTag                        RuleID = "ExemptTag"
	RuleBlankLimit                       RuleID = "BlankLimit"
	RuleOncePerItin                      RuleID = "OncePerItin"
	RuleDummy                            RuleID = "Dummy"
	RuleInvalidConfig                    RuleID = "InvalidConfig"
)

// Exemptable reports whether a request may exempt rules of this kind. Rules standing in for
// broken configuration always apply.
func (id RuleID) Exemptable() bool { return id != RuleInvalidConfig }

// LocType classifies the code held by a LocZone.
type LocType string

const (
	LocBlank   LocType = ""
	LocAirport LocType = "A"
	LocCity    LocType = "C"
	LocNation  LocType = "N"
	LocState   LocType = "S"
	LocZoneRef LocType = "Z"
)

// LocZone is a location restriction as it appears in tax tables. A blank zone matches everything.
type LocZone struct {
	Type LocType `json:"type" yaml:"type"`
	Code string  `json:"code" yaml:"code"`
}

// IsBlank reports whether the zone places no restriction.
func (z LocZone) IsBlank() bool {
	return z.Type == LocBlank || strings.TrimSpace(z.Code) == ""
}

func (z LocZone) String() string {
	if z.IsBlank() {
		return "BLANK"
	}
	return string(z.Type) + "-" + z.Code
}

// TaxPointTag selects which geos of a journey are candidate tax points.
type TaxPointTag string

const (
	TaxPointSale      TaxPointTag = "S"
	TaxPointDeparture TaxPointTag = "D"
	TaxPointArrival   TaxPointTag = "A"
)

// TaxableUnit is the classification of a charge a tax may be levied on.
type TaxableUnit string

const (
	UnitItinerary       TaxableUnit = "ITINERARY"
	UnitYqYr            TaxableUnit = "YQYR"
	UnitTicketingFee    TaxableUnit = "TICKETING_FEE"
	UnitChangeFee       TaxableUnit = "CHANGE_FEE"
	UnitTaxOnTax        TaxableUnit = "TAX_ON_TAX"
	UnitOCFlightRelated TaxableUnit = "OC_FLIGHT_RELATED"
	UnitOCTicketRelated TaxableUnit = "OC_TICKET_RELATED"
	UnitOCMerchandise   TaxableUnit = "OC_MERCHANDISE"
	UnitOCFareRelated   TaxableUnit = "OC_FARE_RELATED"
	UnitBaggageCharge   TaxableUnit = "BAGGAGE_CHARGE"
)

// OCType is the service-tag classification of an optional service.
type OCType string

const (
	OCFlightRelated OCType = "F"
	OCTicketRelated OCType = "T"
	OCMerchandise   OCType = "M"
	OCFareRelated   OCType = "R"
	OCBaggage       OCType = "C"
)

// TaxableUnit maps the optional service classification onto the taxable unit it represents.
func (t OCType) TaxableUnit() TaxableUnit {
	switch t {
	case OCFlightRelated:
		return UnitOCFlightRelated
	case OCTicketRelated:
		return UnitOCTicketRelated
	case OCMerchandise:
		return UnitOCMerchandise
	case OCFareRelated:
		return UnitOCFareRelated
	case OCBaggage:
		return UnitBaggageCharge
	default:
		return ""
	}
}

// LimitType records how repeated applications of a tax in one itinerary are accounted.
type LimitType string

const (
	LimitNone        LimitType = ""
	LimitBlank       LimitType = "BLANK"
	LimitOncePerItin LimitType = "ONCE_PER_ITIN"
)
