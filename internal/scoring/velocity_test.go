package scoring

import (
	"math"
	"testing"
	"time"
)

var velocityNow = time.Unix(1700000000, 0).UTC()

func minutesAgo(minutes float64) time.Time {
	return velocityNow.Add(-time.Duration(minutes * float64(time.Minute)))
}

func TestMeasureVelocityWindowRates(t *testing.T) {
	events := []time.Time{
		minutesAgo(1),
		minutesAgo(2),
		minutesAgo(4),
		minutesAgo(8),
		minutesAgo(12),
		minutesAgo(40),
	}

	report := MeasureVelocity(events, velocityNow)

	if math.Abs(report.Rate5Min-3.0/5.0) > 1e-9 {
		t.Fatalf("expected 5-minute rate 0.6, got %v", report.Rate5Min)
	}
	if math.Abs(report.Rate15Min-5.0/15.0) > 1e-9 {
		t.Fatalf("expected 15-minute rate 1/3, got %v", report.Rate15Min)
	}
	if math.Abs(report.Rate1Hour-6.0/60.0) > 1e-9 {
		t.Fatalf("expected hourly rate 0.1, got %v", report.Rate1Hour)
	}
}

func TestMeasureVelocityIgnoresEventsOutsideWindow(t *testing.T) {
	inside := []time.Time{minutesAgo(1), minutesAgo(3)}
	withStale := append(append([]time.Time{}, inside...), minutesAgo(90), minutesAgo(300))

	baseline := MeasureVelocity(inside, velocityNow)
	widened := MeasureVelocity(withStale, velocityNow)

	if baseline.Rate5Min != widened.Rate5Min || baseline.Rate15Min != widened.Rate15Min || baseline.Rate1Hour != widened.Rate1Hour {
		t.Fatalf("stale events must not affect window rates: %+v vs %+v", baseline, widened)
	}
}

func TestMeasureVelocityInsufficientHistoryIsSteady(t *testing.T) {
	tests := []struct {
		name   string
		events []time.Time
	}{
		{name: "no events", events: nil},
		{name: "single event", events: []time.Time{minutesAgo(1)}},
		{name: "single usable event", events: []time.Time{minutesAgo(1), {}}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			report := MeasureVelocity(test.events, velocityNow)
			if report.Trend != TrendSteady {
				t.Fatalf("expected steady trend, got %s", report.Trend)
			}
			if report.Momentum != 0 {
				t.Fatalf("expected zero momentum, got %v", report.Momentum)
			}
		})
	}
}

func TestMeasureVelocityMomentumClassification(t *testing.T) {
	tests := []struct {
		name     string
		events   []time.Time
		expected Trend
	}{
		{
			name:     "surge in latest window",
			events:   []time.Time{minutesAgo(1), minutesAgo(2), minutesAgo(3), minutesAgo(4)},
			expected: TrendRising,
		},
		{
			name:     "activity fell off",
			events:   []time.Time{minutesAgo(6), minutesAgo(7), minutesAgo(8), minutesAgo(9)},
			expected: TrendDeclining,
		},
		{
			name:     "balanced windows",
			events:   []time.Time{minutesAgo(1), minutesAgo(2), minutesAgo(6), minutesAgo(7)},
			expected: TrendSteady,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			report := MeasureVelocity(test.events, velocityNow)
			if report.Trend != test.expected {
				t.Fatalf("expected trend %s, got %s (momentum %v)", test.expected, report.Trend, report.Momentum)
			}
		})
	}
}

func TestMeasureVelocitySkipsZeroTimestamps(t *testing.T) {
	events := []time.Time{minutesAgo(1), minutesAgo(2), {}, {}}

	report := MeasureVelocity(events, velocityNow)

	if math.Abs(report.Rate5Min-2.0/5.0) > 1e-9 {
		t.Fatalf("zero timestamps must not be counted, got rate %v", report.Rate5Min)
	}
}

func TestAgeFactorDecaysAndFloors(t *testing.T) {
	tests := []struct {
		ageHours float64
		expected float64
	}{
		{ageHours: 0, expected: 1.0},
		{ageHours: 6, expected: 0.75},
		{ageHours: 12, expected: 0.5},
		{ageHours: 24, expected: 0.3},
		{ageHours: 96, expected: 0.3},
	}

	for _, test := range tests {
		age := time.Duration(test.ageHours * float64(time.Hour))
		if factor := AgeFactor(age); math.Abs(factor-test.expected) > 1e-9 {
			t.Fatalf("expected age factor %v at %vh, got %v", test.expected, test.ageHours, factor)
		}
	}
}

func TestAgeFactorStrictlyDecreasesWithinFirstDay(t *testing.T) {
	previous := AgeFactor(0)
	for hour := 1; hour <= 16; hour++ {
		current := AgeFactor(time.Duration(hour) * time.Hour)
		if current >= previous {
			t.Fatalf("expected strictly decreasing factor, got %v then %v at hour %d", previous, current, hour)
		}
		previous = current
	}
}

func TestClassifyRisingCascadePriority(t *testing.T) {
	tests := []struct {
		name     string
		report   VelocityReport
		age      time.Duration
		expected RisingStatus
	}{
		{
			name:     "rising fast needs rate and rising trend",
			report:   VelocityReport{Rate5Min: 2.5, Rate15Min: 2.0, Trend: TrendRising},
			expected: RisingStatus{IsRising: true, Type: RisingFast},
		},
		{
			name:     "fast rate without rising trend falls through to hot",
			report:   VelocityReport{Rate5Min: 2.5, Rate15Min: 1.2, Trend: TrendSteady},
			expected: RisingStatus{IsRising: true, Type: RisingHot},
		},
		{
			name:     "moderate sustained rate is trending",
			report:   VelocityReport{Rate5Min: 0.2, Rate15Min: 0.6, Trend: TrendSteady},
			expected: RisingStatus{IsRising: true, Type: RisingWarm},
		},
		{
			name:     "declining trend blocks the trending tier",
			report:   VelocityReport{Rate5Min: 0.2, Rate15Min: 0.6, Trend: TrendDeclining},
			expected: RisingStatus{},
		},
		{
			name:     "quiet submission is not rising",
			report:   VelocityReport{Rate5Min: 0.1, Rate15Min: 0.1, Trend: TrendSteady},
			expected: RisingStatus{},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			status := ClassifyRising(test.report, test.age)
			if status != test.expected {
				t.Fatalf("expected %+v, got %+v", test.expected, status)
			}
		})
	}
}

func TestClassifyRisingThresholdsScaleWithAgeFactor(t *testing.T) {
	report := VelocityReport{Rate5Min: 0.0, Rate15Min: 0.4, Trend: TrendSteady}

	fresh := ClassifyRising(report, 0)
	if fresh.IsRising {
		t.Fatalf("0.4 rate must miss the 0.5 threshold at age factor 1.0")
	}

	aged := ClassifyRising(report, 12*time.Hour)
	if !aged.IsRising || aged.Type != RisingWarm {
		t.Fatalf("0.4 rate should clear the halved threshold at 12h, got %+v", aged)
	}
}

func TestAccelerationScoreBlendsAndCaps(t *testing.T) {
	// 1.0 + 2*(1.0-0.4) + (0.4-0.1) = 2.5
	score := AccelerationScore(1.0, 0.4, 0.1)
	if math.Abs(score-2.5) > 1e-9 {
		t.Fatalf("expected blended score 2.5, got %v", score)
	}

	if capped := AccelerationScore(40, 5, 1); capped != 50 {
		t.Fatalf("expected score to cap at 50, got %v", capped)
	}

	if flat := AccelerationScore(0.2, 0.5, 0.8); flat != 0.2 {
		t.Fatalf("deceleration must not add terms, got %v", flat)
	}
}
