package quote

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPolicy_Validate(t *testing.T) {
	t.Parallel()

	t.Run("default policy", func(t *testing.T) {
		t.Parallel()

		assert.NoError(t, DefaultPolicy().Validate())
	})

	testTable := []struct {
		modify      func(p *Policy)
		expectedErr error
		name        string
	}{
		{
			func(p *Policy) { p.Tiers = nil },
			errNoTiers,
			"no tiers",
		},
		{
			func(p *Policy) { p.Tiers[0].Min = 100 },
			errTierStart,
			"first tier above zero",
		},
		{
			func(p *Policy) { p.Tiers[2].Max = 5_000_000 },
			errTierUnbounded,
			"bounded last tier",
		},
		{
			func(p *Policy) { p.Tiers[1].Min = 600_000 },
			errTierGap,
			"gap between tiers",
		},
		{
			func(p *Policy) { p.Tiers[1].Max = 400_000 },
			errTierOrder,
			"descending bounds",
		},
		{
			func(p *Policy) { p.Tiers[2].Commission = 0.03 },
			errTierCommission,
			"increasing commission",
		},
		{
			func(p *Policy) { p.Tiers[0].Commission = 1 },
			errTierCommission,
			"commission out of range",
		},
		{
			func(p *Policy) { p.WithdrawalPercent = 1 },
			errInvalidFee,
			"withdrawal percent out of range",
		},
		{
			func(p *Policy) { p.USDTWithdrawalFixed = -1 },
			errInvalidFee,
			"negative USDT fee",
		},
		{
			func(p *Policy) { p.BonusPercent = -0.01 },
			errInvalidBonus,
			"negative bonus",
		},
		{
			func(p *Policy) { p.MarginAnchors = nil },
			errInvalidAnchors,
			"no anchors",
		},
		{
			func(p *Policy) {
				p.MarginAnchors[0], p.MarginAnchors[1] = p.MarginAnchors[1], p.MarginAnchors[0]
			},
			errInvalidAnchors,
			"unsorted anchors",
		},
		{
			func(p *Policy) { p.BrokerMargin = 100 },
			errInvalidBrokerRange,
			"broker margin out of range",
		},
	}

	for _, testCase := range testTable {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			p := DefaultPolicy()
			testCase.modify(p)

			assert.ErrorIs(t, p.Validate(), testCase.expectedErr)
		})
	}
}

func TestPolicy_TierFor(t *testing.T) {
	t.Parallel()

	p := DefaultPolicy()

	testTable := []struct {
		name string
		size float64
	}{
		{"up-to-500k", 0},
		{"up-to-500k", 499_999.99},
		{"500k-1m", 500_000},
		{"500k-1m", 999_999.99},
		{"from-1m", 1_000_000},
		{"from-1m", 1e12},
	}

	for _, testCase := range testTable {
		assert.Equal(t, testCase.name, p.TierFor(testCase.size).Name)
	}
}

func TestPolicy_OverrideCommission(t *testing.T) {
	t.Parallel()

	p := DefaultPolicy()

	testTable := []struct {
		margin     float64
		commission float64
	}{
		{5.0, 0.0272},
		{4.5, 0.0225},
		{4.0, 0.0170},
		{3.5, 0.0120},
		{3.0, 0.0067},
		{2.4, 0},
		{4.25, 0.01975},
		{2.7, 0.00335},
		{2.0, -0.003},
		{1.5, -0.007},
		{1.75, -0.005},
		{2.2, -0.0015},
		{1.0, -0.007},
		{7.5, 0.0272},
	}

	for _, testCase := range testTable {
		assert.InDelta(t, testCase.commission, p.OverrideCommission(testCase.margin), 1e-12)
	}
}
