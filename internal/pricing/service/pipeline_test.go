package service

import (
	"testing"

	"github.com/netbill/netbill/internal/money"
	pricingdomain "github.com/netbill/netbill/internal/pricing/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply_NoDiscountsNoTax(t *testing.T) {
	got, err := Apply(money.MustNew(10000, "USD"), nil, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), got.Amount)
}

func TestApply_DiscountsInDeclarationOrder(t *testing.T) {
	// $100.00 -> -10% = $90.00 -> -$5.00 = $85.00
	got, err := Apply(money.MustNew(10000, "USD"), []pricingdomain.Discount{
		{Kind: pricingdomain.DiscountKindPercentage, Value: 0.10},
		{Kind: pricingdomain.DiscountKindFixed, Value: 500},
	}, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(8500), got.Amount)

	// Reversed order: $100.00 -> -$5.00 = $95.00 -> -10% = $85.50
	got, err = Apply(money.MustNew(10000, "USD"), []pricingdomain.Discount{
		{Kind: pricingdomain.DiscountKindFixed, Value: 500},
		{Kind: pricingdomain.DiscountKindPercentage, Value: 0.10},
	}, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(8550), got.Amount)
}

func TestApply_ClampsAtZero(t *testing.T) {
	got, err := Apply(money.MustNew(1000, "USD"), []pricingdomain.Discount{
		{Kind: pricingdomain.DiscountKindFixed, Value: 5000},
		{Kind: pricingdomain.DiscountKindPercentage, Value: 0.50},
	}, 0.20)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.Amount)
}

func TestApply_TaxOnPostDiscountTotal(t *testing.T) {
	// $100.00 -> -50% = $50.00 -> +8% tax = $54.00
	got, err := Apply(money.MustNew(10000, "USD"), []pricingdomain.Discount{
		{Kind: pricingdomain.DiscountKindPercentage, Value: 0.50},
	}, 0.08)
	require.NoError(t, err)
	assert.Equal(t, int64(5400), got.Amount)
}

func TestApply_TaxRoundsHalfUpLast(t *testing.T) {
	// 999 * 1.075 = 1073.925 -> 1074
	got, err := Apply(money.MustNew(999, "USD"), nil, 0.075)
	require.NoError(t, err)
	assert.Equal(t, int64(1074), got.Amount)
}

func TestApply_RejectsInvalidInput(t *testing.T) {
	_, err := Apply(money.MustNew(1000, "USD"), []pricingdomain.Discount{
		{Kind: "bogus", Value: 1},
	}, 0)
	assert.ErrorIs(t, err, pricingdomain.ErrInvalidDiscount)

	_, err = Apply(money.MustNew(1000, "USD"), []pricingdomain.Discount{
		{Kind: pricingdomain.DiscountKindPercentage, Value: 1.5},
	}, 0)
	assert.ErrorIs(t, err, pricingdomain.ErrInvalidDiscount)

	_, err = Apply(money.MustNew(1000, "USD"), nil, -0.1)
	assert.ErrorIs(t, err, pricingdomain.ErrInvalidTaxRate)
}
