package rules

import "github.com/noah-isme/taxcore/internal/tax"

// BlankLimitRule marks the tax as having no application limit. It never restricts.
type BlankLimitRule struct{}

func (r *BlankLimitRule) ID() tax.RuleID { return tax.RuleBlankLimit }

func (r *BlankLimitRule) Description(tax.Services) string { return "NO APPLICATION LIMIT" }

func (r *BlankLimitRule) NewApplicator(int, *tax.Request, tax.Services, *tax.RawPayments) Applicator {
	return ApplicatorFunc(func(detail *tax.Detail) bool {
		detail.Limit = tax.LimitBlank
		return true
	})
}

// OncePerItinRule lets a tax apply at a single tax point of an itinerary.
type OncePerItinRule struct{}

func (r *OncePerItinRule) ID() tax.RuleID { return tax.RuleOncePerItin }

func (r *OncePerItinRule) Description(tax.Services) string { return "APPLIES ONCE PER ITINERARY" }

func (r *OncePerItinRule) NewApplicator(_ int, _ *tax.Request, _ tax.Services, payments *tax.RawPayments) Applicator {
	return ApplicatorFunc(func(detail *tax.Detail) bool {
		detail.Limit = tax.LimitOncePerItin
		if payments.HasPassed(detail.TaxName.TaxCode) {
			return failf(detail, "TAX %s ALREADY APPLIED ON ITINERARY", detail.TaxName.TaxCode)
		}
		return true
	})
}

// DummyRule has a fixed outcome.
type DummyRule struct {
	Result  bool
	Message string
}

func (r *DummyRule) ID() tax.RuleID { return tax.RuleDummy }

func (r *DummyRule) Description(tax.Services) string {
	if r.Message == "" {
		return "DUMMY RULE"
	}
	return "DUMMY RULE: " + r.Message
}

func (r *DummyRule) NewApplicator(int, *tax.Request, tax.Services, *tax.RawPayments) Applicator {
	if !r.Result {
		return failing(r.Message)
	}
	return ApplicatorFunc(func(*tax.Detail) bool { return true })
}

// InvalidConfigRule stands in for a rule whose configuration could not be built. It always
// fails with Message and cannot be exempted, so a broken sequence never applies.
type InvalidConfigRule struct {
	Message string
}

func (r *InvalidConfigRule) ID() tax.RuleID { return tax.RuleInvalidConfig }

func (r *InvalidConfigRule) Description(tax.Services) string {
	return "INVALID CONFIGURATION: " + r.Message
}

func (r *InvalidConfigRule) NewApplicator(int, *tax.Request, tax.Services, *tax.RawPayments) Applicator {
	return failing(r.Message)
}
