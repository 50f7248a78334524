package tax_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/taxcore/internal/tax"
)

func TestRawPaymentsSumsOnlyPassedDetails(t *testing.T) {
	payments := tax.NewRawPayments()

	a := tax.NewDetail(tax.TaxName{TaxCode: "AA"}, 1, 0, 2)
	a.TaxAmount = decimal.RequireFromString("12.50")
	payments.Add(a)

	b := tax.NewDetail(tax.TaxName{TaxCode: "BB"}, 1, 0, 2)
	b.TaxAmount = decimal.RequireFromString("7.50")
	payments.Add(b)

	failed := tax.NewDetail(tax.TaxName{TaxCode: "BB"}, 2, 1, 2)
	failed.TaxAmount = decimal.NewFromInt(100)
	failed.FailAll(stubRule("x"))
	payments.Add(failed)

	require.Equal(t, 3, payments.Len())
	require.True(t, decimal.NewFromInt(20).Equal(payments.AmountFor("AA", "BB")))
	require.True(t, payments.HasPassed("AA"))
	require.False(t, payments.HasPassed("CC"))
}

func TestRawPaymentsKeepsSnapshots(t *testing.T) {
	payments := tax.NewRawPayments()
	detail := tax.NewDetail(tax.TaxName{TaxCode: "YQ"}, 1, 0, 2)
	detail.TaxAmount = decimal.NewFromInt(40)
	payments.Add(detail)

	detail.TaxAmount = decimal.NewFromInt(1)

	require.True(t, decimal.NewFromInt(40).Equal(payments.YqYrAmount()))
}

func TestNilRawPaymentsIsEmpty(t *testing.T) {
	var payments *tax.RawPayments
	require.Zero(t, payments.Len())
	require.True(t, payments.AmountFor("AA").IsZero())
	require.False(t, payments.HasPassed("AA"))
}
