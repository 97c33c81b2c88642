package valueobject

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/contracthub/backend/internal/models"
)

func TestNewFeeQuote_TierTable(t *testing.T) {
	cases := []struct {
		tier         string
		platformFee  string
		processorFee string
		totalCharge  string
	}{
		{models.SubscriptionTierFree, "100", "32.2", "1132.2"},
		{models.SubscriptionTierProfessional, "75", "31.475", "1106.475"},
		{models.SubscriptionTierBusiness, "50", "30.75", "1080.75"},
	}

	for _, tc := range cases {
		quote, err := NewFeeQuote(1000, tc.tier)
		assert.NoError(t, err, tc.tier)
		assert.True(t, quote.PlatformFee.Equal(decimal.RequireFromString(tc.platformFee)),
			"%s: platform fee %s", tc.tier, quote.PlatformFee)
		assert.True(t, quote.ProcessorFee.Equal(decimal.RequireFromString(tc.processorFee)),
			"%s: processor fee %s", tc.tier, quote.ProcessorFee)
		assert.True(t, quote.TotalCharge.Equal(decimal.RequireFromString(tc.totalCharge)),
			"%s: total %s", tc.tier, quote.TotalCharge)
	}
}

func TestNewFeeQuote_EndToEndScenario(t *testing.T) {
	// Контракт на 2500 (free): 2500 + 250 + (2750*0.029 + 0.30) = 2830.05
	quote, err := NewFeeQuote(2500, models.SubscriptionTierFree)
	assert.NoError(t, err)
	assert.True(t, quote.PlatformFee.Equal(decimal.RequireFromString("250")))
	assert.True(t, quote.ProcessorFee.Equal(decimal.RequireFromString("80.05")))
	assert.True(t, quote.TotalCharge.Equal(decimal.RequireFromString("2830.05")))
	assert.Equal(t, int64(283005), quote.TotalChargeMinor())
}

func TestNewFeeQuote_EmptyTierDefaultsToFree(t *testing.T) {
	quote, err := NewFeeQuote(1000, "")
	assert.NoError(t, err)
	assert.True(t, quote.PlatformFee.Equal(decimal.NewFromInt(100)))
}

func TestNewFeeQuote_UnknownTier(t *testing.T) {
	_, err := NewFeeQuote(1000, "platinum")
	assert.Error(t, err)
}

func TestNewFeeQuote_InvalidAmount(t *testing.T) {
	_, err := NewFeeQuote(0, models.SubscriptionTierFree)
	assert.Error(t, err)

	_, err = NewFeeQuote(-100, models.SubscriptionTierFree)
	assert.Error(t, err)
}

func TestMinorUnits_RoundHalfUp(t *testing.T) {
	cases := []struct {
		amount string
		minor  int64
	}{
		{"10", 1000},
		{"10.004", 1000},
		{"10.005", 1001},
		{"10.006", 1001},
		{"1106.475", 110648},
		{"0.3", 30},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.minor, MinorUnits(decimal.RequireFromString(tc.amount)), tc.amount)
	}
}

func TestMinorUnitsFloat(t *testing.T) {
	assert.Equal(t, int64(283005), MinorUnitsFloat(2830.05))
	assert.Equal(t, int64(75000), MinorUnitsFloat(750.0))
}
