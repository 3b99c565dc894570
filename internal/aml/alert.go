package aml

import (
	"github.com/google/uuid"

	"github.com/musig5344/ocasino/internal/domain"
)

// severityBucket pairs a minimum score with the severity it maps to.
// Mirrors the teacher's domain.RollbackTypeMap lookup-table idiom: the
// score-to-severity rule is expressed as ordered data rather than an
// if/else chain.
type severityBucket struct {
	min      float64
	severity domain.AMLAlertSeverity
}

// severityBuckets is ordered highest-first so the first match wins.
var severityBuckets = []severityBucket{
	{80, domain.AlertSeverityCritical},
	{60, domain.AlertSeverityHigh},
	{40, domain.AlertSeverityMedium},
	{20, domain.AlertSeverityLow},
}

// DecideAlert applies the alert emission rule: a low-severity alert (score
// 20-39) only fires when at least two factors fired; every higher bucket
// fires unconditionally. Returns nil when the score doesn't clear the
// lowest bucket.
func DecideAlert(score float64, factors []FactorResult) *domain.AMLAlert {
	severity, ok := severityFor(score)
	if !ok {
		return nil
	}

	detectedCount := 0
	largeValueFired := false
	for _, f := range factors {
		if f.Detected {
			detectedCount++
			if f.Factor == FactorLargeValue {
				largeValueFired = true
			}
		}
	}
	if severity == domain.AlertSeverityLow && detectedCount < 2 {
		return nil
	}

	alertType := domain.AlertPattern
	if largeValueFired {
		alertType = domain.AlertThreshold
	}

	// spec: score >= 80 -> severity critical, status open, report-required;
	// the large-value factor independently carries its own report
	// obligation regardless of the severity bucket it lands in.
	reportRequired := severity == domain.AlertSeverityCritical || largeValueFired

	return &domain.AMLAlert{
		ID:             uuid.New(),
		Type:           alertType,
		Severity:       severity,
		Status:         domain.AlertStatusOpen,
		ScoreAtAlert:   score,
		FactorsAtAlert: marshalFactors(factors),
		ReportRequired: reportRequired,
	}
}

func severityFor(score float64) (domain.AMLAlertSeverity, bool) {
	for _, b := range severityBuckets {
		if score >= b.min {
			return b.severity, true
		}
	}
	return "", false
}
