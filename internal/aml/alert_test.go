package aml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/musig5344/ocasino/internal/domain"
)

func TestDecideAlert_Thresholds(t *testing.T) {
	twoFactors := []FactorResult{
		{Factor: FactorLargeValue, Detected: true},
		{Factor: FactorFrequency, Detected: true},
	}
	oneFactor := []FactorResult{{Factor: FactorFrequency, Detected: true}}

	t.Run("critical", func(t *testing.T) {
		alert := DecideAlert(85, oneFactor)
		require.NotNil(t, alert)
		assert.Equal(t, domain.AlertSeverityCritical, alert.Severity)
		assert.Equal(t, domain.AlertStatusOpen, alert.Status)
	})

	t.Run("high", func(t *testing.T) {
		alert := DecideAlert(65, oneFactor)
		require.NotNil(t, alert)
		assert.Equal(t, domain.AlertSeverityHigh, alert.Severity)
	})

	t.Run("medium", func(t *testing.T) {
		alert := DecideAlert(45, oneFactor)
		require.NotNil(t, alert)
		assert.Equal(t, domain.AlertSeverityMedium, alert.Severity)
	})

	t.Run("low requires two or more factors", func(t *testing.T) {
		assert.Nil(t, DecideAlert(25, oneFactor))

		alert := DecideAlert(25, twoFactors)
		require.NotNil(t, alert)
		assert.Equal(t, domain.AlertSeverityLow, alert.Severity)
	})

	t.Run("below lowest bucket does not alert", func(t *testing.T) {
		assert.Nil(t, DecideAlert(19, twoFactors))
	})
}

func TestDecideAlert_TypeReflectsLargeValueFactor(t *testing.T) {
	withLargeValue := []FactorResult{
		{Factor: FactorLargeValue, Detected: true},
		{Factor: FactorFrequency, Detected: true},
	}
	withoutLargeValue := []FactorResult{
		{Factor: FactorTimePattern, Detected: true},
		{Factor: FactorFrequency, Detected: true},
	}

	alert := DecideAlert(90, withLargeValue)
	require.NotNil(t, alert)
	assert.Equal(t, domain.AlertThreshold, alert.Type)

	alert = DecideAlert(90, withoutLargeValue)
	require.NotNil(t, alert)
	assert.Equal(t, domain.AlertPattern, alert.Type)
}

func TestDecideAlert_CarriesScoreAndFactorSnapshot(t *testing.T) {
	factors := []FactorResult{{Factor: FactorLargeValue, Score: 40, Detected: true}}
	alert := DecideAlert(80, factors)
	require.NotNil(t, alert)
	assert.Equal(t, float64(80), alert.ScoreAtAlert)
	assert.Contains(t, string(alert.FactorsAtAlert), "large_value")
}
