package processor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateFees(t *testing.T) {
	stripe := NewStripeProcessor("sk_test_abc", "whsec_abc", "prod_abc")

	t.Run("donor covers fee", func(t *testing.T) {
		fees, err := stripe.CalculateFees(10000, "usd", true)
		require.NoError(t, err)
		assert.Equal(t, int64(320), fees.CalculatedFee) // 2.9% + 30¢
		assert.Equal(t, int64(10320), fees.TotalAmount)
		assert.Equal(t, 2.9, fees.Percentage)
		assert.Equal(t, int64(30), fees.FixedAmount)
	})

	t.Run("donor does not cover fee", func(t *testing.T) {
		fees, err := stripe.CalculateFees(10000, "usd", false)
		require.NoError(t, err)
		assert.Equal(t, int64(320), fees.CalculatedFee)
		assert.Equal(t, int64(10000), fees.TotalAmount)
	})

	t.Run("rounds half up", func(t *testing.T) {
		// 999 * 2.9% = 28.971 + 30 = 58.971 → 59
		fees, err := stripe.CalculateFees(999, "usd", true)
		require.NoError(t, err)
		assert.Equal(t, int64(59), fees.CalculatedFee)
		assert.Equal(t, int64(1058), fees.TotalAmount)
	})

	t.Run("zero decimal currency", func(t *testing.T) {
		fees, err := stripe.CalculateFees(1000, "jpy", true)
		require.NoError(t, err)
		// 1000 * 2.9% = 29 + 30 = 59 whole yen
		assert.Equal(t, int64(59), fees.CalculatedFee)
		assert.Equal(t, int64(1059), fees.TotalAmount)
	})

	t.Run("unsupported currency", func(t *testing.T) {
		_, err := stripe.CalculateFees(10000, "xyz", true)
		require.Error(t, err)
		assert.True(t, IsCode(err, ErrCodeUnsupportedCurrency))
	})

	t.Run("non-positive amount", func(t *testing.T) {
		_, err := stripe.CalculateFees(0, "usd", true)
		require.Error(t, err)
		assert.True(t, IsCode(err, ErrCodeValidation))

		_, err = stripe.CalculateFees(-500, "usd", true)
		require.Error(t, err)
		assert.True(t, IsCode(err, ErrCodeValidation))
	})

	t.Run("pure function", func(t *testing.T) {
		first, err := stripe.CalculateFees(25000, "eur", true)
		require.NoError(t, err)
		second, err := stripe.CalculateFees(25000, "eur", true)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})
}

func TestVendorFeeSchedulesDiffer(t *testing.T) {
	paypal := NewPayPalProcessor("client", "secret", "wh", "prod", true)
	square := NewSquareProcessor("token", "sig", "loc", "https://example.org/webhooks/square", true)

	ppFees, err := paypal.CalculateFees(10000, "usd", true)
	require.NoError(t, err)
	// 2.89% + 49¢ = 289 + 49 = 338
	assert.Equal(t, int64(338), ppFees.CalculatedFee)

	sqFees, err := square.CalculateFees(10000, "usd", true)
	require.NoError(t, err)
	// 2.6% + 10¢ = 260 + 10 = 270
	assert.Equal(t, int64(270), sqFees.CalculatedFee)
}

func TestFrequencyNextChargeDate(t *testing.T) {
	from := mustDate(t, "2026-01-31")

	assert.Equal(t, mustDate(t, "2026-03-03"), FrequencyMonthly.NextChargeDate(from))
	assert.Equal(t, mustDate(t, "2026-05-01"), FrequencyQuarterly.NextChargeDate(from))
	assert.Equal(t, mustDate(t, "2027-01-31"), FrequencyAnnually.NextChargeDate(from))
}
