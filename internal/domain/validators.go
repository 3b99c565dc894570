package domain

import (
	"fmt"
	"regexp"
)

var currencyRegex = regexp.MustCompile(`^[A-Z]{3}$`)

// CurrencyScale gives the number of minor-unit decimal places for currencies
// this system is configured to accept. Currencies not listed default to 2.
var CurrencyScale = map[string]int{
	"USD": 2,
	"EUR": 2,
	"GBP": 2,
	"CNY": 2,
	"KRW": 2,
	"JPY": 0,
}

// ScaleOf returns the minor-unit decimal scale for a currency code.
func ScaleOf(currency string) int {
	if scale, ok := CurrencyScale[currency]; ok {
		return scale
	}
	return 2
}

// ValidateCurrency checks a currency code is ISO 4217 shaped.
func ValidateCurrency(currency string) error {
	if !currencyRegex.MatchString(currency) {
		return fmt.Errorf("invalid currency code: %s", currency)
	}
	return nil
}

// ValidatePositiveAmount checks that a minor-unit amount is strictly positive.
func ValidatePositiveAmount(amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("amount must be positive, got %d", amount)
	}
	return nil
}

// ValidateAmountScale rejects amounts expressed with more precision than the
// currency's scale allows. decimalAmount is the raw decimal string as
// received over the wire (e.g. "10.005"); scale is ScaleOf(currency).
func ValidateAmountScale(decimalAmount string, scale int) error {
	dot := -1
	for i, r := range decimalAmount {
		if r == '.' {
			dot = i
			break
		}
	}
	if dot == -1 {
		return nil
	}
	fractional := len(decimalAmount) - dot - 1
	if fractional > scale {
		return fmt.Errorf("amount %s has more precision than currency scale %d allows", decimalAmount, scale)
	}
	return nil
}

// ValidateReferenceID checks the partner-supplied idempotency reference.
func ValidateReferenceID(referenceID string) error {
	if referenceID == "" {
		return fmt.Errorf("reference-id is required")
	}
	if len(referenceID) > 128 {
		return fmt.Errorf("reference-id exceeds 128 characters")
	}
	return nil
}
