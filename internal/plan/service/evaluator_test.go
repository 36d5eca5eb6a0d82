package service

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	plandomain "github.com/netbill/netbill/internal/plan/domain"
	ratedomain "github.com/netbill/netbill/internal/rate/domain"
	usagedomain "github.com/netbill/netbill/internal/usage/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newEvaluator(t *testing.T) *Service {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return &Service{log: zap.NewNop(), genID: node}
}

func periodUsage(start, end time.Time) usagedomain.UsageData {
	return usagedomain.UsageData{
		SessionSeconds: 60,
		Period:         usagedomain.Period{Start: start, End: end},
	}
}

func timePtr(v time.Time) *time.Time { return &v }

func TestEvaluate_FullOverlap_NoProration(t *testing.T) {
	svc := newEvaluator(t)

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(30 * 24 * time.Hour)
	plan := plandomain.BillingPlan{
		ValidFrom: start.Add(-24 * time.Hour),
		Rates: []ratedomain.BillingRate{
			{Slot: "base", Kind: ratedomain.RateKindFixed, UnitAmountCents: 3000, Currency: "USD", ValidFrom: start.Add(-24 * time.Hour)},
		},
	}

	got, err := svc.Evaluate(plan, periodUsage(start, end))
	require.NoError(t, err)
	assert.Equal(t, int64(3000), got.Amount)
}

// A $30.00 plan active for exactly half the billing period yields $15.00.
func TestEvaluate_HalfOverlap_Prorates(t *testing.T) {
	svc := newEvaluator(t)

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(30 * 24 * time.Hour)
	mid := start.Add(15 * 24 * time.Hour)
	plan := plandomain.BillingPlan{
		ValidFrom: mid,
		ValidTo:   timePtr(end),
		Rates: []ratedomain.BillingRate{
			{Slot: "base", Kind: ratedomain.RateKindFixed, UnitAmountCents: 3000, Currency: "USD", ValidFrom: mid},
		},
	}

	got, err := svc.Evaluate(plan, periodUsage(start, end))
	require.NoError(t, err)
	assert.Equal(t, int64(1500), got.Amount)
}

func TestEvaluate_ZeroOverlap_Fails(t *testing.T) {
	svc := newEvaluator(t)

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(30 * 24 * time.Hour)
	plan := plandomain.BillingPlan{
		ValidFrom: end,
		Rates: []ratedomain.BillingRate{
			{Slot: "base", Kind: ratedomain.RateKindFixed, UnitAmountCents: 3000, Currency: "USD", ValidFrom: end},
		},
	}

	_, err := svc.Evaluate(plan, periodUsage(start, end))
	assert.ErrorIs(t, err, plandomain.ErrPlanNotApplicable)
}

func TestEvaluate_LatestRateVersionPerSlotWins(t *testing.T) {
	svc := newEvaluator(t)

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(30 * 24 * time.Hour)
	plan := plandomain.BillingPlan{
		ValidFrom: start,
		Rates: []ratedomain.BillingRate{
			{Slot: "base", Kind: ratedomain.RateKindFixed, UnitAmountCents: 3000, Currency: "USD", ValidFrom: start},
			{Slot: "base", Kind: ratedomain.RateKindFixed, UnitAmountCents: 2500, Currency: "USD", ValidFrom: start.Add(24 * time.Hour)},
			// Future repricing must not leak into this period.
			{Slot: "base", Kind: ratedomain.RateKindFixed, UnitAmountCents: 9900, Currency: "USD", ValidFrom: end.Add(24 * time.Hour)},
		},
	}

	got, err := svc.Evaluate(plan, periodUsage(start, end))
	require.NoError(t, err)
	assert.Equal(t, int64(2500), got.Amount)
}

func TestEvaluate_SumsMultipleSlots(t *testing.T) {
	svc := newEvaluator(t)

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(30 * 24 * time.Hour)
	usage := periodUsage(start, end)
	usage.UploadBytes = 100
	usage.DownloadBytes = 50

	plan := plandomain.BillingPlan{
		ValidFrom: start,
		Rates: []ratedomain.BillingRate{
			{Slot: "base", Kind: ratedomain.RateKindFixed, UnitAmountCents: 1000, Currency: "USD", ValidFrom: start},
			{Slot: "traffic", Kind: ratedomain.RateKindVolume, UnitAmountCents: 2, Currency: "USD", ValidFrom: start},
		},
	}

	got, err := svc.Evaluate(plan, usage)
	require.NoError(t, err)
	assert.Equal(t, int64(1000+300), got.Amount)
}

// Proration applies to the summed charge with one final rounding: two
// one-cent slots at half overlap bill one cent total, not two.
func TestEvaluate_ProratesSumNotEachCharge(t *testing.T) {
	svc := newEvaluator(t)

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(30 * 24 * time.Hour)
	mid := start.Add(15 * 24 * time.Hour)
	plan := plandomain.BillingPlan{
		ValidFrom: mid,
		ValidTo:   timePtr(end),
		Rates: []ratedomain.BillingRate{
			{Slot: "a", Kind: ratedomain.RateKindFixed, UnitAmountCents: 1, Currency: "USD", ValidFrom: mid},
			{Slot: "b", Kind: ratedomain.RateKindFixed, UnitAmountCents: 1, Currency: "USD", ValidFrom: mid},
		},
	}

	got, err := svc.Evaluate(plan, periodUsage(start, end))
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Amount)

	// The allocated per-charge amounts still add up to the total.
	charges, err := svc.Breakdown(plan, periodUsage(start, end))
	require.NoError(t, err)
	var sum int64
	for _, charge := range charges {
		sum += charge.Charge.Amount
	}
	assert.Equal(t, got.Amount, sum)
}
