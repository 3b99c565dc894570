package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateCurrency(t *testing.T) {
	cases := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid USD", "USD", false},
		{"valid lowercase rejected", "usd", true},
		{"too short", "US", true},
		{"too long", "USDT", true},
		{"empty", "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateCurrency(tc.input)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidatePositiveAmount(t *testing.T) {
	assert.NoError(t, ValidatePositiveAmount(1))
	assert.Error(t, ValidatePositiveAmount(0))
	assert.Error(t, ValidatePositiveAmount(-5))
}

func TestScaleOf(t *testing.T) {
	assert.Equal(t, 2, ScaleOf("USD"))
	assert.Equal(t, 2, ScaleOf("KRW"))
	assert.Equal(t, 0, ScaleOf("JPY"))
	assert.Equal(t, 2, ScaleOf("XYZ"))
}

func TestValidateAmountScale(t *testing.T) {
	cases := []struct {
		name    string
		amount  string
		scale   int
		wantErr bool
	}{
		{"whole number ok for scale 0", "100", 0, false},
		{"two decimals matches scale", "10.50", 2, false},
		{"fractional exceeds scale 0", "10.5", 0, true},
		{"three decimals exceeds scale 2", "10.005", 2, true},
		{"exact scale boundary", "10.99", 2, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateAmountScale(tc.amount, tc.scale)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateReferenceID(t *testing.T) {
	assert.NoError(t, ValidateReferenceID("dep-123"))
	assert.Error(t, ValidateReferenceID(""))

	long := make([]byte, 129)
	for i := range long {
		long[i] = 'a'
	}
	assert.Error(t, ValidateReferenceID(string(long)))
}
