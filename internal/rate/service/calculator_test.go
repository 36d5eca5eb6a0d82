package service

import (
	"testing"
	"time"

	ratedomain "github.com/netbill/netbill/internal/rate/domain"
	usagedomain "github.com/netbill/netbill/internal/usage/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testUsage(totalBytes int64) usagedomain.UsageData {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return usagedomain.UsageData{
		SessionSeconds:   3600,
		UploadBytes:      totalBytes / 2,
		DownloadBytes:    totalBytes - totalBytes/2,
		SessionCount:     3,
		PeakBandwidthBps: 2000,
		Period:           usagedomain.Period{Start: start, End: start.Add(30 * 24 * time.Hour)},
	}
}

func floatPtr(v float64) *float64 { return &v }

func TestCalculate_Fixed_IgnoresUsage(t *testing.T) {
	rate := ratedomain.BillingRate{Kind: ratedomain.RateKindFixed, UnitAmountCents: 2999, Currency: "USD"}

	got, err := Calculate(rate, testUsage(0))
	require.NoError(t, err)
	assert.Equal(t, int64(2999), got.Amount)

	got, err = Calculate(rate, testUsage(1_000_000))
	require.NoError(t, err)
	assert.Equal(t, int64(2999), got.Amount)
}

func TestCalculate_Volume(t *testing.T) {
	rate := ratedomain.BillingRate{Kind: ratedomain.RateKindVolume, UnitAmountCents: 2, Currency: "USD"}

	got, err := Calculate(rate, testUsage(150))
	require.NoError(t, err)
	assert.Equal(t, int64(300), got.Amount)
	assert.Equal(t, "USD", got.Currency)
}

func TestCalculate_Bandwidth(t *testing.T) {
	rate := ratedomain.BillingRate{Kind: ratedomain.RateKindBandwidth, UnitAmountCents: 1, Currency: "USD"}

	got, err := Calculate(rate, testUsage(0))
	require.NoError(t, err)
	assert.Equal(t, int64(2000), got.Amount)
}

func TestCalculate_TimeBased(t *testing.T) {
	rate := ratedomain.BillingRate{Kind: ratedomain.RateKindTimeBased, UnitAmountCents: 1, Currency: "USD"}

	got, err := Calculate(rate, testUsage(0))
	require.NoError(t, err)
	assert.Equal(t, int64(3600), got.Amount)
}

// Boundary from the settlement contract: tiers [0,100)@$1, [100,inf)@$0.50
// applied to 150 units yields 100*1.00 + 50*0.50 = $125.00.
func TestCalculate_Tiered_Boundary(t *testing.T) {
	rate := ratedomain.BillingRate{
		Kind:     ratedomain.RateKindTiered,
		Currency: "USD",
		Tiers: []ratedomain.RateTier{
			{StartQuantity: 0, EndQuantity: floatPtr(100), UnitAmountCents: 100},
			{StartQuantity: 100, EndQuantity: nil, UnitAmountCents: 50},
		},
	}

	got, err := Calculate(rate, testUsage(150))
	require.NoError(t, err)
	assert.Equal(t, int64(12500), got.Amount)
}

func TestCalculate_Tiered_UsageWithinFirstTier(t *testing.T) {
	rate := ratedomain.BillingRate{
		Kind:     ratedomain.RateKindTiered,
		Currency: "USD",
		Tiers: []ratedomain.RateTier{
			{StartQuantity: 0, EndQuantity: floatPtr(100), UnitAmountCents: 100},
			{StartQuantity: 100, EndQuantity: nil, UnitAmountCents: 50},
		},
	}

	got, err := Calculate(rate, testUsage(40))
	require.NoError(t, err)
	assert.Equal(t, int64(4000), got.Amount)
}

func TestCalculate_Tiered_BoundedLastTierOverflow(t *testing.T) {
	rate := ratedomain.BillingRate{
		Kind:     ratedomain.RateKindTiered,
		Currency: "USD",
		Tiers: []ratedomain.RateTier{
			{StartQuantity: 0, EndQuantity: floatPtr(100), UnitAmountCents: 100},
		},
	}

	_, err := Calculate(rate, testUsage(150))
	assert.ErrorIs(t, err, ratedomain.ErrRateConfiguration)
}

func TestCalculate_Tiered_NonContiguousTiers(t *testing.T) {
	rate := ratedomain.BillingRate{
		Kind:     ratedomain.RateKindTiered,
		Currency: "USD",
		Tiers: []ratedomain.RateTier{
			{StartQuantity: 0, EndQuantity: floatPtr(100), UnitAmountCents: 100},
			{StartQuantity: 150, EndQuantity: nil, UnitAmountCents: 50},
		},
	}

	_, err := Calculate(rate, testUsage(10))
	assert.ErrorIs(t, err, ratedomain.ErrRateConfiguration)
}

func TestCalculate_Tiered_MonotonicInUsage(t *testing.T) {
	rate := ratedomain.BillingRate{
		Kind:     ratedomain.RateKindTiered,
		Currency: "USD",
		Tiers: []ratedomain.RateTier{
			{StartQuantity: 0, EndQuantity: floatPtr(100), UnitAmountCents: 100},
			{StartQuantity: 100, EndQuantity: floatPtr(500), UnitAmountCents: 50},
			{StartQuantity: 500, EndQuantity: nil, UnitAmountCents: 10},
		},
	}

	prev := int64(-1)
	for _, qty := range []int64{0, 1, 50, 99, 100, 101, 250, 499, 500, 501, 10_000} {
		got, err := Calculate(rate, testUsage(qty))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, got.Amount, prev, "quantity %d", qty)
		prev = got.Amount
	}
}

func TestCalculate_RejectsNegativeUsage(t *testing.T) {
	rate := ratedomain.BillingRate{Kind: ratedomain.RateKindVolume, UnitAmountCents: 1, Currency: "USD"}
	usage := testUsage(100)
	usage.DownloadBytes = -1

	_, err := Calculate(rate, usage)
	assert.ErrorIs(t, err, ratedomain.ErrInvalidUsage)
}

func TestCalculate_RejectsUnknownKind(t *testing.T) {
	rate := ratedomain.BillingRate{Kind: "per_seat", UnitAmountCents: 1, Currency: "USD"}

	_, err := Calculate(rate, testUsage(100))
	assert.ErrorIs(t, err, ratedomain.ErrInvalidKind)
}
