package scoring

import "time"

// Trend classifies short-term boost momentum.
type Trend string

const (
	TrendRising    Trend = "rising"
	TrendSteady    Trend = "steady"
	TrendDeclining Trend = "declining"
)

// RisingType subdivides the rising classification, strongest first.
type RisingType string

const (
	RisingNone RisingType = ""
	RisingFast RisingType = "rising-fast"
	RisingHot  RisingType = "hot"
	RisingWarm RisingType = "trending"
)

const (
	shortWindow  = 5 * time.Minute
	mediumWindow = 15 * time.Minute
	longWindow   = time.Hour

	momentumThreshold = 0.5
	minTrendEvents    = 2

	ageFactorFloor     = 0.3
	ageFactorSpanHours = 24.0
	risingFastRate5Min = 2.0
	hotRate15Min       = 1.0
	hotRate5Min        = 0.8
	trendingRate15Min  = 0.5

	accelerationCap = 50.0
)

// VelocityReport carries boosts-per-minute over the three fixed windows plus
// the momentum-derived trend.
type VelocityReport struct {
	Rate5Min  float64
	Rate15Min float64
	Rate1Hour float64
	Momentum  float64
	Trend     Trend
}

// MeasureVelocity computes per-minute boost rates for the 5-minute,
// 15-minute and 1-hour windows ending at now, and classifies the trend from
// the change between the most recent 5-minute window and the one before it.
// Zero-value timestamps are skipped so a corrupt event never fails a ranking
// pass. Fewer than two usable events yields steady with zero momentum.
func MeasureVelocity(events []time.Time, now time.Time) VelocityReport {
	report := VelocityReport{Trend: TrendSteady}

	shortCutoff := now.Add(-shortWindow)
	previousCutoff := now.Add(-2 * shortWindow)
	mediumCutoff := now.Add(-mediumWindow)
	longCutoff := now.Add(-longWindow)

	usable := 0
	var recent5, previous5, within15, within60 int
	for _, occurredAt := range events {
		if occurredAt.IsZero() {
			continue
		}
		usable++
		if !occurredAt.Before(shortCutoff) {
			recent5++
		} else if !occurredAt.Before(previousCutoff) {
			previous5++
		}
		if !occurredAt.Before(mediumCutoff) {
			within15++
		}
		if !occurredAt.Before(longCutoff) {
			within60++
		}
	}

	report.Rate5Min = float64(recent5) / shortWindow.Minutes()
	report.Rate15Min = float64(within15) / mediumWindow.Minutes()
	report.Rate1Hour = float64(within60) / longWindow.Minutes()

	if usable < minTrendEvents {
		return report
	}

	report.Momentum = report.Rate5Min - float64(previous5)/shortWindow.Minutes()
	switch {
	case report.Momentum > momentumThreshold:
		report.Trend = TrendRising
	case report.Momentum < -momentumThreshold:
		report.Trend = TrendDeclining
	}
	return report
}

// AgeFactor scales rising thresholds by submission age: fresh submissions
// qualify at lower raw rates, the factor decays linearly over 24 hours and
// floors at 0.3 so old submissions are penalized but never shut out.
func AgeFactor(age time.Duration) float64 {
	factor := 1 - age.Hours()/ageFactorSpanHours
	if factor < ageFactorFloor {
		return ageFactorFloor
	}
	return factor
}

// RisingStatus is the threshold-based classification consumed by the
// trending selector. It is deliberately independent from VelocityReport's
// momentum trend; the two signals must not be conflated.
type RisingStatus struct {
	IsRising bool
	Type     RisingType
}

// ClassifyRising evaluates the rising cascade against age-scaled rate
// thresholds. Checks run strongest first; the first match wins.
func ClassifyRising(report VelocityReport, age time.Duration) RisingStatus {
	factor := AgeFactor(age)
	switch {
	case report.Rate5Min >= risingFastRate5Min*factor && report.Trend == TrendRising:
		return RisingStatus{IsRising: true, Type: RisingFast}
	case report.Rate15Min >= hotRate15Min*factor && report.Rate5Min >= hotRate5Min*factor:
		return RisingStatus{IsRising: true, Type: RisingHot}
	case report.Rate15Min >= trendingRate15Min*factor && report.Trend != TrendDeclining:
		return RisingStatus{IsRising: true, Type: RisingWarm}
	default:
		return RisingStatus{}
	}
}

// AccelerationScore blends the three window rates into a single bounded heat
// value: the short-term rate plus weighted short- and medium-term
// acceleration terms, capped at 50 to bound outliers.
func AccelerationScore(rate5Min, rate15Min, rate1Hour float64) float64 {
	score := rate5Min
	if rate5Min > rate15Min {
		score += 2 * (rate5Min - rate15Min)
	}
	if rate15Min > rate1Hour {
		score += rate15Min - rate1Hour
	}
	if score > accelerationCap {
		return accelerationCap
	}
	return score
}
