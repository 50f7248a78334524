package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/taxcore/internal/engine"
	"github.com/noah-isme/taxcore/internal/rules"
	"github.com/noah-isme/taxcore/internal/tax"
)

func usSequences() []engine.Sequence {
	us := tax.LocZone{Type: tax.LocNation, Code: "US"}
	return []engine.Sequence{
		{
			Name:  taxName("ZP", tax.TaxPointSale),
			SeqNo: 1,
			Rules: []rules.BusinessRule{
				&rules.TaxOnTaxRule{TaxCodes: []string{"US1"}},
				&rules.PercentageTaxRule{Percent: dec("10"), Bases: []tax.TaxableUnit{tax.UnitTaxOnTax}},
			},
		},
		{
			Name:  taxName("US1", tax.TaxPointDeparture),
			SeqNo: 100,
			Rules: []rules.BusinessRule{
				&rules.TaxPointLoc1Rule{Zone: us},
				&rules.SaleDateRule{Effective: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
				flat("17.50"),
			},
		},
		{
			Name:  taxName("XF", tax.TaxPointDeparture),
			SeqNo: 2,
			Rules: []rules.BusinessRule{&rules.DummyRule{Result: true}, flat("1")},
		},
		{
			Name:  taxName("XF", tax.TaxPointDeparture),
			SeqNo: 1,
			Rules: []rules.BusinessRule{
				&rules.TaxPointLoc1Rule{Zone: tax.LocZone{Type: tax.LocAirport, Code: "ORD"}},
				flat("4.50"),
			},
		},
	}
}

func newCalculator(t *testing.T, seqs []engine.Sequence, observer engine.Observer) *engine.Calculator {
	t.Helper()
	logger := zerolog.Nop()
	calc, err := engine.NewCalculator(engine.Config{
		Services:  newServices(t),
		Sequences: seqs,
		Workers:   2,
		Logger:    &logger,
		Observer:  observer,
	})
	require.NoError(t, err)
	return calc
}

func TestCalculateAppliesTaxesPerTaxPoint(t *testing.T) {
	calc := newCalculator(t, usSequences(), nil)

	resp, err := calc.Calculate(context.Background(), newRequest("500"))
	require.NoError(t, err)
	require.Len(t, resp.Itins, 1)
	itin := resp.Itins[0]

	var us1 []engine.TaxResult
	for _, tr := range itin.Taxes {
		if tr.Name.TaxCode == "US1" {
			us1 = append(us1, tr)
		}
	}
	require.Len(t, us1, 2, "one per departure")
	require.Equal(t, 0, us1[0].TaxPointBegin)
	require.Equal(t, 2, us1[1].TaxPointBegin)
	require.True(t, dec("35").Equal(itin.Total("US1")))
}

func TestCalculateOrdersTaxOnTaxAfterItsBase(t *testing.T) {
	calc := newCalculator(t, usSequences(), nil)
	order := calc.TaxOrder()
	require.Equal(t, []string{"US1", "ZP", "XF"}, codes(order))

	resp, err := calc.Calculate(context.Background(), newRequest("500"))
	require.NoError(t, err)
	require.True(t, dec("3.5").Equal(resp.Itins[0].Total("ZP")), resp.Itins[0].Total("ZP").String())
}

func TestCalculateFallsBackToLaterSequence(t *testing.T) {
	calc := newCalculator(t, usSequences(), nil)

	resp, err := calc.Calculate(context.Background(), newRequest("500"))
	require.NoError(t, err)
	itin := resp.Itins[0]

	var xf []engine.TaxResult
	for _, tr := range itin.Taxes {
		if tr.Name.TaxCode == "XF" {
			xf = append(xf, tr)
		}
	}
	require.Len(t, xf, 2)
	require.Equal(t, 2, xf[0].SeqNo, "JFK falls through to the catch-all sequence")
	require.True(t, dec("1").Equal(xf[0].Amount))
	require.Equal(t, 1, xf[1].SeqNo)
	require.True(t, dec("4.50").Equal(xf[1].Amount))

	require.Contains(t, itin.Failures, engine.Failure{
		Name:          taxName("XF", tax.TaxPointDeparture),
		SeqNo:         1,
		TaxPointBegin: 0,
		Rule:          tax.RuleTaxPointLoc1,
		Message:       "TAX POINT JFK NOT IN A-ORD",
	})
}

func TestCalculateHonoursExemptedRules(t *testing.T) {
	seqs := []engine.Sequence{{
		Name: taxName("US1", tax.TaxPointDeparture),
		Rules: []rules.BusinessRule{
			&rules.SaleDateRule{Discontinue: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)},
			flat("17.50"),
		},
	}}
	calc := newCalculator(t, seqs, nil)

	resp, err := calc.Calculate(context.Background(), newRequest("500"))
	require.NoError(t, err)
	require.Empty(t, resp.Itins[0].Taxes)
	require.Len(t, resp.Itins[0].Failures, 2)

	req := newRequest("500")
	req.ExemptedRules = []tax.RuleID{tax.RuleSaleDate}
	resp, err = calc.Calculate(context.Background(), req)
	require.NoError(t, err)
	require.True(t, dec("35").Equal(resp.Itins[0].Total("US1")))
}

func TestCalculateIsolatesItineraries(t *testing.T) {
	observer := newRecordingObserver()
	seqs := []engine.Sequence{
		{Name: taxName("US1", tax.TaxPointSale), Rules: []rules.BusinessRule{&rules.OncePerItinRule{}, &rules.PercentageTaxRule{Percent: dec("10")}}},
	}
	calc := newCalculator(t, seqs, observer)

	resp, err := calc.Calculate(context.Background(), newRequest("100", "200", "300", "400"))
	require.NoError(t, err)
	require.Len(t, resp.Itins, 4)
	for i, want := range []string{"10", "20", "30", "40"} {
		require.Equal(t, i+1, resp.Itins[i].ItinID)
		require.True(t, dec(want).Equal(resp.Itins[i].Total("US1")), "itin %d", i+1)
	}
	require.Equal(t, 4, observer.itins)
	require.Equal(t, 4, observer.sequences)
}

func TestCalculateRejectsInvalidRequest(t *testing.T) {
	calc := newCalculator(t, usSequences(), nil)

	req := newRequest("500")
	req.GeoPaths[0].Geos[1].Type = tax.GeoDeparture
	_, err := calc.Calculate(context.Background(), req)
	require.ErrorIs(t, err, engine.ErrInvalidRequest)

	req = newRequest("500")
	req.Itins[0].PassengerRef = 3
	_, err = calc.Calculate(context.Background(), req)
	require.ErrorIs(t, err, engine.ErrInvalidRequest)

	req = newRequest("500")
	req.Ticketing.PaymentCurrency = ""
	_, err = calc.Calculate(context.Background(), req)
	require.ErrorIs(t, err, engine.ErrInvalidRequest)
}

func TestCalculateStopsOnCancelledContext(t *testing.T) {
	calc := newCalculator(t, usSequences(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := calc.Calculate(ctx, newRequest("500"))
	require.ErrorIs(t, err, context.Canceled)
}

func TestNewCalculatorRejectsDependencyCycle(t *testing.T) {
	seqs := []engine.Sequence{
		{Name: taxName("AA", tax.TaxPointSale), Rules: []rules.BusinessRule{&rules.TaxOnTaxRule{TaxCodes: []string{"BB"}}}},
		{Name: taxName("BB", tax.TaxPointSale), Rules: []rules.BusinessRule{&rules.TaxOnTaxRule{TaxCodes: []string{"AA"}}}},
	}
	_, err := engine.NewCalculator(engine.Config{Services: newServices(t), Sequences: seqs})
	require.ErrorIs(t, err, engine.ErrDependencyCycle)
}

func TestNewCalculatorKeepsDeclarationOrderWithoutDependencies(t *testing.T) {
	seqs := []engine.Sequence{
		{Name: taxName("C1", tax.TaxPointSale), Rules: []rules.BusinessRule{flat("1")}},
		{Name: taxName("A1", tax.TaxPointSale), Rules: []rules.BusinessRule{&rules.TaxOnTaxRule{TaxCodes: []string{"ZZ"}}}},
		{Name: taxName("B1", tax.TaxPointSale), Rules: []rules.BusinessRule{flat("1")}},
	}
	calc := newCalculator(t, seqs, nil)
	require.Equal(t, []string{"C1", "A1", "B1"}, codes(calc.TaxOrder()))
}

func TestNewCalculatorRequiresLocations(t *testing.T) {
	_, err := engine.NewCalculator(engine.Config{})
	require.Error(t, err)
}

func TestCalculateKeepsOptionalServicesOutOfUnrestrictedSequences(t *testing.T) {
	seqs := []engine.Sequence{
		{
			Name: taxName("US1", tax.TaxPointSale),
			Rules: []rules.BusinessRule{
				&rules.TaxPointLoc1Rule{Zone: tax.LocZone{Type: tax.LocNation, Code: "US"}},
				&rules.SaleDateRule{Effective: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
				flat("10"),
			},
		},
		{
			Name: taxName("OC", tax.TaxPointSale),
			Rules: []rules.BusinessRule{
				&rules.OptionalServiceTagsRule{Units: []tax.TaxableUnit{tax.UnitBaggageCharge}},
				flat("2"),
			},
		},
	}
	calc := newCalculator(t, seqs, nil)
	req := newRequest("500")
	req.Itins[0].OptionalServices = []tax.OptionalServiceInput{
		{Code: "0CC", Type: tax.OCBaggage, Amount: dec("30")},
		{Code: "0B5", Type: tax.OCFlightRelated, Amount: dec("15")},
	}

	resp, err := calc.Calculate(context.Background(), req)
	require.NoError(t, err)
	itin := resp.Itins[0]
	require.Len(t, itin.Taxes, 2)

	require.Equal(t, "US1", itin.Taxes[0].Name.TaxCode)
	require.Empty(t, itin.Taxes[0].OptionalServices)
	require.True(t, dec("10").Equal(itin.Total("US1")), itin.Total("US1").String())

	require.Equal(t, []engine.OptionalResult{{Code: "0CC", Amount: dec("2")}}, itin.Taxes[1].OptionalServices)
	require.True(t, dec("4").Equal(itin.Total("OC")), itin.Total("OC").String())
}

func TestCalculateSharesStopoversAcrossSequences(t *testing.T) {
	fill, err := rules.NewFillTimeStopoversRule(rules.StopoverUnitMinutes, 30)
	require.NoError(t, err)
	us := tax.LocZone{Type: tax.LocNation, Code: "US"}
	seqs := []engine.Sequence{
		{
			Name:  taxName("ST", tax.TaxPointSale),
			Rules: []rules.BusinessRule{fill, &rules.DummyRule{Message: "CLASSIFY ONLY"}},
		},
		{
			Name:  taxName("US1", tax.TaxPointDeparture),
			Rules: []rules.BusinessRule{&rules.TaxPointLoc2Rule{Zone: us, Stopover: rules.Loc2Stopover}, flat("5")},
		},
	}
	calc := newCalculator(t, seqs, nil)

	resp, err := calc.Calculate(context.Background(), newRequest("500"))
	require.NoError(t, err)
	itin := resp.Itins[0]
	require.Len(t, itin.Taxes, 2)
	require.Equal(t, 0, itin.Taxes[0].TaxPointBegin)
	require.Equal(t, 1, itin.Taxes[0].TaxPointEnd, "the one hour connection at ORD is a stopover")
	require.Equal(t, 2, itin.Taxes[1].TaxPointBegin)
	require.Equal(t, 3, itin.Taxes[1].TaxPointEnd)

	alone := newCalculator(t, seqs[1:], nil)
	resp, err = alone.Calculate(context.Background(), newRequest("500"))
	require.NoError(t, err)
	require.Equal(t, 3, resp.Itins[0].Taxes[0].TaxPointEnd, "unclassified points are connections")
}

func TestCalculateNeverExemptsInvalidConfiguration(t *testing.T) {
	seqs := []engine.Sequence{{
		Name:  taxName("US1", tax.TaxPointSale),
		Rules: []rules.BusinessRule{&rules.InvalidConfigRule{Message: "INVALID FillTimeStopovers RULE"}, flat("5")},
	}}
	calc := newCalculator(t, seqs, nil)
	req := newRequest("500")
	req.ExemptedRules = []tax.RuleID{tax.RuleDummy, tax.RuleInvalidConfig}

	resp, err := calc.Calculate(context.Background(), req)
	require.NoError(t, err)
	require.Empty(t, resp.Itins[0].Taxes)
	require.Equal(t, tax.RuleInvalidConfig, resp.Itins[0].Failures[0].Rule)
	require.Equal(t, "INVALID FillTimeStopovers RULE", resp.Itins[0].Failures[0].Message)
}

func codes(names []tax.TaxName) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = n.TaxCode
	}
	return out
}
