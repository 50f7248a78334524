package rules

import (
	"fmt"
	"slices"
	"strings"

	"github.com/noah-isme/taxcore/internal/tax"
)

// ServiceFeeSecurityRule restricts the selling agent with a service fee security table. Records
// are scanned in order and the first record matching the agent decides.
type ServiceFeeSecurityRule struct {
	Vendor string
	ItemNo int
}

func (r *ServiceFeeSecurityRule) ID() tax.RuleID { return tax.RuleServiceFeeSecurity }

func (r *ServiceFeeSecurityRule) Description(svc tax.Services) string {
	var b strings.Builder
	fmt.Fprintf(&b, "SERVICE FEE SECURITY TABLE VENDOR %s ITEM %d", r.Vendor, r.ItemNo)
	var (
		items []tax.ServiceFeeSecurityItem
		found bool
	)
	if svc.ServiceFeeSecurity != nil {
		items, found = svc.ServiceFeeSecurity.ServiceFeeSecurity(r.Vendor, r.ItemNo)
	}
	if !found {
		b.WriteString("\n  DOES NOT EXIST")
		return b.String()
	}
	for _, item := range items {
		fmt.Fprintf(&b, "\n  AGENCY %s GDS %s DUTY %s LOC %s CODE %s-%s VIEWBOOKTKT %s",
			orAny(item.TravelAgencyIndicator), orAny(item.CarrierGdsCode), orAny(item.DutyFunctionCode),
			item.Location, orAny(string(item.CodeType)), orAny(item.Code), item.ViewBookTicket)
	}
	return b.String()
}

func (r *ServiceFeeSecurityRule) NewApplicator(itinIndex int, req *tax.Request, svc tax.Services, _ *tax.RawPayments) Applicator {
	items, ok := svc.ServiceFeeSecurity.ServiceFeeSecurity(r.Vendor, r.ItemNo)
	if !ok {
		return failing(notFound(r.Vendor, r.ItemNo))
	}
	return &serviceFeeSecurityApplicator{
		vendor: r.Vendor,
		items:  items,
		pos:    req.PointOfSale(itinIndex),
		locs:   svc.Locations,
	}
}

type serviceFeeSecurityApplicator struct {
	vendor string
	items  []tax.ServiceFeeSecurityItem
	pos    *tax.PointOfSale
	locs   tax.LocService
}

func (a *serviceFeeSecurityApplicator) Apply(detail *tax.Detail) bool {
	for _, item := range a.items {
		if !a.matches(item) {
			continue
		}
		if item.ViewBookTicket == tax.ViewOnly {
			return failf(detail, "AGENT %s HAS VIEW ONLY ACCESS", a.pos.AgentPCC)
		}
		return true
	}
	return failf(detail, "NO SECURITY RECORD MATCHES AGENT %s", a.pos.AgentPCC)
}

func (a *serviceFeeSecurityApplicator) matches(item tax.ServiceFeeSecurityItem) bool {
	switch item.TravelAgencyIndicator {
	case "A":
		if a.pos.CarrierCode == "" {
			return false
		}
	case "T":
		if a.pos.CarrierCode != "" {
			return false
		}
	}
	if item.CarrierGdsCode != "" && item.CarrierGdsCode != a.pos.VendorCrsCode && item.CarrierGdsCode != a.pos.CarrierCode {
		return false
	}
	if item.DutyFunctionCode != "" && !slices.Contains([]string{a.pos.AgentDuty, a.pos.AgentFunction}, item.DutyFunctionCode) {
		return false
	}
	if !item.Location.IsBlank() {
		city := a.pos.AgentCity
		if city == "" {
			city = a.pos.Loc
		}
		if !a.locs.IsInLoc(city, item.Location, a.vendor) {
			return false
		}
	}
	switch item.CodeType {
	case tax.CodeTypePseudoCity:
		return item.Code == a.pos.AgentPCC
	case tax.CodeTypeIATANumber:
		return item.Code == a.pos.IATANumber
	case tax.CodeTypeOffice:
		return item.Code == a.pos.AgentOffice
	default:
		return true
	}
}

// CustomerRestrictionRule fails the tax when the selling agency is exempt from the carrier's
// YQ/YR surcharges.
type CustomerRestrictionRule struct {
	Carrier string
}

func (r *CustomerRestrictionRule) ID() tax.RuleID { return tax.RuleCustomerRestriction }

func (r *CustomerRestrictionRule) Description(tax.Services) string {
	return "CUSTOMER NOT EXEMPT FROM YQYR OF CARRIER " + r.Carrier
}

func (r *CustomerRestrictionRule) NewApplicator(itinIndex int, req *tax.Request, svc tax.Services, _ *tax.RawPayments) Applicator {
	pcc := req.PointOfSale(itinIndex).AgentPCC
	customer, found := svc.Customers.Customer(pcc)
	exempt := found && customer.ExemptYqYr &&
		(len(customer.ExemptYqYrCarriers) == 0 || slices.Contains(customer.ExemptYqYrCarriers, r.Carrier))
	return ApplicatorFunc(func(detail *tax.Detail) bool {
		if !exempt {
			return true
		}
		return failf(detail, "CUSTOMER %s EXEMPT FROM YQYR OF %s", pcc, r.Carrier)
	})
}
