package core

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRound2(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"10.005", "10.01"}, // half away from zero
		{"10.004", "10"},
		{"10.995", "11"},
		{"-10.005", "-10.01"},
		{"250", "250"},
		{"0.125", "0.13"},
	}
	for _, tt := range tests {
		got := Round2(dec2(tt.in))
		assert.True(t, got.Equal(dec2(tt.want)), "Round2(%s) = %s, want %s", tt.in, got, tt.want)
	}
}

func TestPercentOf(t *testing.T) {
	assert.True(t, PercentOf(dec2("1000"), dec2("10")).Equal(dec2("100")))
	assert.True(t, PercentOf(dec2("333.33"), dec2("15")).Equal(dec2("50")))
	assert.True(t, PercentOf(dec2("250"), dec2("0")).Equal(decimal.Zero))
}

func TestPeriodize(t *testing.T) {
	tests := []struct {
		annual string
		freq   BillingFrequency
		want   string
	}{
		{"1200", FrequencyMonthly, "100"},
		{"1200", FrequencyQuarterly, "300"},
		{"1200", FrequencySemiAnnual, "600"},
		{"1200", FrequencyAnnual, "1200"},
		{"1000", FrequencyMonthly, "83.33"},
	}
	for _, tt := range tests {
		got, err := Periodize(dec2(tt.annual), tt.freq)
		require.NoError(t, err)
		assert.True(t, got.Equal(dec2(tt.want)), "Periodize(%s, %s) = %s, want %s", tt.annual, tt.freq, got, tt.want)
	}
}

func TestPeriodizeUnknownFrequency(t *testing.T) {
	_, err := Periodize(dec2("1200"), BillingFrequency("weekly"))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestConvertFrequency(t *testing.T) {
	got, err := ConvertFrequency(dec2("100"), FrequencyMonthly, FrequencyAnnual)
	require.NoError(t, err)
	assert.True(t, got.Equal(dec2("1200")))

	got, err = ConvertFrequency(dec2("1200"), FrequencyAnnual, FrequencyQuarterly)
	require.NoError(t, err)
	assert.True(t, got.Equal(dec2("300")))

	// round trip monthly -> quarterly -> monthly
	q, err := ConvertFrequency(dec2("250"), FrequencyMonthly, FrequencyQuarterly)
	require.NoError(t, err)
	back, err := ConvertFrequency(q, FrequencyQuarterly, FrequencyMonthly)
	require.NoError(t, err)
	assert.True(t, back.Equal(dec2("250")))

	_, err = ConvertFrequency(dec2("100"), "fortnightly", FrequencyMonthly)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestPaymentsPerYear(t *testing.T) {
	assert.Equal(t, 12, FrequencyMonthly.PaymentsPerYear())
	assert.Equal(t, 4, FrequencyQuarterly.PaymentsPerYear())
	assert.Equal(t, 2, FrequencySemiAnnual.PaymentsPerYear())
	assert.Equal(t, 1, FrequencyAnnual.PaymentsPerYear())
	assert.Equal(t, 0, BillingFrequency("daily").PaymentsPerYear())
	assert.False(t, BillingFrequency("").Valid())
}
