package ruleset

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/taxcore/internal/rules"
	"github.com/noah-isme/taxcore/internal/tax"
)

const dateLayout = "2006-01-02"

// ErrUnknownKind is returned by Build for a rule kind the engine does not implement.
var ErrUnknownKind = errors.New("unknown rule kind")

// Build creates the business rule described by spec. seq supplies defaults taken from the
// enclosing sequence.
func Build(spec RuleSpec, seq SequenceSpec) (rules.BusinessRule, error) {
	switch tax.RuleID(spec.Kind) {
	case tax.RuleTaxPointLoc1:
		return &rules.TaxPointLoc1Rule{Zone: spec.Loc, Vendor: spec.Vendor}, nil
	case tax.RuleTaxPointLoc2:
		tag := rules.Loc2StopoverTag(spec.Tag)
		switch tag {
		case rules.Loc2Stopover, rules.Loc2Destination:
		default:
			return nil, fmt.Errorf("loc2 tag %q", spec.Tag)
		}
		return &rules.TaxPointLoc2Rule{Zone: spec.Loc, Vendor: spec.Vendor, Stopover: tag}, nil
	case tax.RuleJourneyLoc1AsOrigin:
		return &rules.JourneyLoc1AsOriginRule{Zone: spec.Loc, Vendor: spec.Vendor}, nil
	case tax.RuleJourneyLoc2DestinationTurnAround:
		return &rules.JourneyLoc2DestinationTurnAroundRule{Zone: spec.Loc, Vendor: spec.Vendor}, nil
	case tax.RuleReturnToOrigin:
		tag := rules.ReturnToOriginTag(spec.Tag)
		if tag != rules.ReturnsToOrigin && tag != rules.DoesNotReturnToOrigin {
			return nil, fmt.Errorf("return to origin tag %q", spec.Tag)
		}
		return &rules.ReturnToOriginRule{Tag: tag}, nil
	case tax.RulePointOfTicketing:
		return &rules.PointOfTicketingRule{Zone: spec.Loc, Vendor: spec.Vendor}, nil
	case tax.RulePointOfSale:
		return &rules.PointOfSaleRule{Zone: spec.Loc, Vendor: spec.Vendor}, nil
	case tax.RuleSaleDate:
		effective, err := parseDate(spec.Effective)
		if err != nil {
			return nil, fmt.Errorf("effective: %w", err)
		}
		discontinue, err := parseDate(spec.Discontinue)
		if err != nil {
			return nil, fmt.Errorf("discontinue: %w", err)
		}
		return &rules.SaleDateRule{Effective: effective, Discontinue: discontinue}, nil
	case tax.RuleTravelDates:
		first, err := parseDate(spec.First)
		if err != nil {
			return nil, fmt.Errorf("first: %w", err)
		}
		last, err := parseDate(spec.Last)
		if err != nil {
			return nil, fmt.Errorf("last: %w", err)
		}
		tag := rules.TravelDateTag(spec.Tag)
		if tag == "" {
			tag = rules.TravelDateJourney
		}
		if tag != rules.TravelDateJourney && tag != rules.TravelDateTaxPoint {
			return nil, fmt.Errorf("travel date tag %q", spec.Tag)
		}
		return &rules.TravelDatesRule{First: first, Last: last, Tag: tag}, nil
	case tax.RuleFillTimeStopovers:
		rule, err := rules.NewFillTimeStopoversRule(rules.StopoverUnit(spec.Unit), spec.Magnitude)
		if err != nil {
			return nil, err
		}
		return rule, nil
	case tax.RuleCarrierFlight:
		if spec.ItemBefore == 0 && spec.ItemAfter == 0 {
			return nil, errors.New("carrier flight needs itemBefore or itemAfter")
		}
		return &rules.CarrierFlightRule{Vendor: spec.Vendor, ItemBefore: spec.ItemBefore, ItemAfter: spec.ItemAfter}, nil
	case tax.RuleTaxPointLoc1TransferType:
		tag := rules.TransferType(spec.Tag)
		switch tag {
		case rules.TransferBlank, rules.TransferInterline, rules.TransferOnline,
			rules.TransferOnlineWithChangeOfGauge, rules.TransferOnlineWithNoChangeOfGauge:
		default:
			return nil, fmt.Errorf("transfer type %q", spec.Tag)
		}
		return &rules.TaxPointLoc1TransferTypeRule{Tag: tag}, nil
	case tax.RuleTaxMatchingApplTag:
		tag := rules.TaxMatchingApplTag(spec.Tag)
		switch tag {
		case rules.TaxMatchingBlank, rules.TaxMatchingValidating, rules.TaxMatchingOperating:
		default:
			return nil, fmt.Errorf("tax matching appl tag %q", spec.Tag)
		}
		return &rules.TaxMatchingApplTagRule{Tag: tag}, nil
	case tax.RuleValidatingCarrier:
		carriers := spec.Carriers
		if len(carriers) == 0 && seq.Carrier != "" {
			carriers = []string{seq.Carrier}
		}
		if len(carriers) == 0 {
			return nil, errors.New("validating carrier needs carriers")
		}
		return &rules.ValidatingCarrierRule{Carriers: carriers}, nil
	case tax.RulePassengerTypeCode:
		if spec.ItemNo <= 0 {
			return nil, errors.New("passenger type code needs itemNo")
		}
		return &rules.PassengerTypeCodeRule{Vendor: spec.Vendor, ItemNo: spec.ItemNo}, nil
	case tax.RuleOptionalServiceTags:
		units := make([]tax.TaxableUnit, 0, len(spec.Units))
		for _, u := range spec.Units {
			units = append(units, tax.TaxableUnit(strings.ToUpper(strings.TrimSpace(u))))
		}
		return &rules.OptionalServiceTagsRule{Units: units}, nil
	case tax.RuleCurrencyOfSale:
		if len(spec.Currency) != 3 {
			return nil, fmt.Errorf("currency %q", spec.Currency)
		}
		return &rules.CurrencyOfSaleRule{Currency: spec.Currency}, nil
	case tax.RuleOutputTypeIndicator:
		return &rules.OutputTypeIndicatorRule{Indicator: strings.ToUpper(strings.TrimSpace(spec.Tag))}, nil
	case tax.RuleServiceFeeSecurity:
		if spec.ItemNo <= 0 {
			return nil, errors.New("service fee security needs itemNo")
		}
		return &rules.ServiceFeeSecurityRule{Vendor: spec.Vendor, ItemNo: spec.ItemNo}, nil
	case tax.RuleCustomerRestriction:
		carrier := spec.Carrier
		if carrier == "" {
			carrier = seq.Carrier
		}
		return &rules.CustomerRestrictionRule{Carrier: carrier}, nil
	case tax.RuleFlatTax:
		amount, err := parseDecimal(spec.Amount)
		if err != nil {
			return nil, fmt.Errorf("amount: %w", err)
		}
		return &rules.FlatTaxRule{Amount: amount, Currency: spec.Currency}, nil
	case tax.RulePercentageTax:
		percent, err := parseDecimal(spec.Percent)
		if err != nil {
			return nil, fmt.Errorf("percent: %w", err)
		}
		bases := make([]tax.TaxableUnit, 0, len(spec.Bases))
		for _, b := range spec.Bases {
			bases = append(bases, tax.TaxableUnit(strings.ToUpper(strings.TrimSpace(b))))
		}
		return &rules.PercentageTaxRule{Percent: percent, Bases: bases}, nil
	case tax.RuleTaxOnTax:
		if len(spec.TaxCodes) == 0 {
			return nil, errors.New("tax on tax needs taxCodes")
		}
		return &rules.TaxOnTaxRule{TaxCodes: spec.TaxCodes}, nil
	case tax.RuleTaxOnTicketingFee:
		return &rules.TaxOnTicketingFeeRule{FeeCodes: spec.FeeCodes}, nil
	case tax.RuleTaxOnChangeFee:
		return &rules.TaxOnChangeFeeRule{}, nil
	case tax.RuleYqYrAmount:
		amount, err := parseDecimal(spec.Amount)
		if err != nil {
			return nil, fmt.Errorf("amount: %w", err)
		}
		return &rules.YqYrAmountRule{Amount: amount, Currency: spec.Currency}, nil
	case tax.RuleTaxMinMaxValue:
		minimum, err := parseOptionalDecimal(spec.Min)
		if err != nil {
			return nil, fmt.Errorf("min: %w", err)
		}
		maximum, err := parseOptionalDecimal(spec.Max)
		if err != nil {
			return nil, fmt.Errorf("max: %w", err)
		}
		if maximum.IsPositive() && minimum.GreaterThan(maximum) {
			return nil, fmt.Errorf("min %s above max %s", minimum, maximum)
		}
		return &rules.TaxMinMaxValueRule{Min: minimum, Max: maximum}, nil
	case tax.RuleTaxRounding:
		unit, err := parseOptionalDecimal(spec.RoundTo)
		if err != nil {
			return nil, fmt.Errorf("roundTo: %w", err)
		}
		dir := rules.RoundingDirection(spec.Direction)
		switch dir {
		case rules.RoundUp, rules.RoundDown, rules.RoundNearest, rules.RoundNone:
		default:
			return nil, fmt.Errorf("rounding direction %q", spec.Direction)
		}
		return &rules.TaxRoundingRule{Unit: unit, Direction: dir}, nil
	case tax.RuleExemptTag:
		return &rules.ExemptTagRule{}, nil
	case tax.RuleBlankLimit:
		return &rules.BlankLimitRule{}, nil
	case tax.RuleOncePerItin:
		return &rules.OncePerItinRule{}, nil
	case tax.RuleDummy:
		result := true
		if spec.Result != nil {
			result = *spec.Result
		}
		return &rules.DummyRule{Result: result, Message: spec.Message}, nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownKind, spec.Kind)
	}
}

func parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(dateLayout, value)
}

func parseDecimal(value string) (decimal.Decimal, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.Zero, errors.New("value is required")
	}
	return decimal.NewFromString(value)
}

func parseOptionalDecimal(value string) (decimal.Decimal, error) {
	if strings.TrimSpace(value) == "" {
		return decimal.Zero, nil
	}
	return parseDecimal(value)
}
