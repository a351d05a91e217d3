// Package trend computes smoothed weight trends and goal projections.
//
// Calculate is pure: the same ordered samples and arguments always yield the
// same result.
package trend

import (
	"math"

	"github.com/hyperengineering/healthsync/internal/types"
)

// Direction is the short-term movement of the smoothed weight.
type Direction string

const (
	DirectionDown Direction = "DOWN"
	DirectionUp   Direction = "UP"
	DirectionFlat Direction = "FLAT"
)

const (
	shortWindow  = 7
	longWindow   = 14
	recentWindow = 3

	// noiseFloor is the kg band around avg7d treated as FLAT.
	noiseFloor = 0.1
)

// Result is the trend view over a weight series.
type Result struct {
	Avg7d             float64     `json:"avg_7d"`
	Avg14d            *float64    `json:"avg_14d,omitempty"`
	Recent            float64     `json:"recent"`
	Direction         Direction   `json:"direction"`
	ProjectedGoalDate *types.Date `json:"projected_goal_date,omitempty"`
	DeviationFromPlan float64     `json:"deviation_from_plan"`
	ConfidenceLow     float64     `json:"confidence_low"`
	ConfidenceHigh    float64     `json:"confidence_high"`
	SampleCount       int         `json:"sample_count"`
}

// Calculate returns the trend for samples, which must be ordered oldest
// first. It returns nil when samples is empty. The goal date is projected
// only when target and a positive weeklyRate are both given.
func Calculate(samples []types.WeightSample, target, weeklyRate *float64, today types.Date) *Result {
	n := len(samples)
	if n == 0 {
		return nil
	}

	values := make([]float64, n)
	for i, s := range samples {
		values[i] = s.Value
	}

	r := &Result{SampleCount: n}
	r.Avg7d = ema(lastN(values, shortWindow))
	if n >= longWindow {
		v := ema(lastN(values, longWindow))
		r.Avg14d = &v
	}

	r.Recent = ema(lastN(values, recentWindow))
	switch {
	case r.Recent < r.Avg7d-noiseFloor:
		r.Direction = DirectionDown
	case r.Recent > r.Avg7d+noiseFloor:
		r.Direction = DirectionUp
	default:
		r.Direction = DirectionFlat
	}

	if target != nil {
		remaining := r.Avg7d - *target
		r.DeviationFromPlan = remaining
		if weeklyRate != nil && *weeklyRate > 0 {
			date := today
			if remaining > 0 {
				date = today.AddDays(int(math.Ceil(remaining / *weeklyRate * 7)))
			}
			r.ProjectedGoalDate = &date
		}
	}

	sd := stddev(lastN(values, shortWindow))
	r.ConfidenceLow = r.Avg7d - sd
	r.ConfidenceHigh = r.Avg7d + sd
	return r
}

// lastN returns the trailing min(n, len(values)) values.
func lastN(values []float64, n int) []float64 {
	if len(values) <= n {
		return values
	}
	return values[len(values)-n:]
}

// ema is the exponential moving average of values with α = 2/(len+1),
// seeded at the oldest value.
func ema(values []float64) float64 {
	alpha := 2.0 / float64(len(values)+1)
	avg := values[0]
	for _, v := range values[1:] {
		avg += alpha * (v - avg)
	}
	return avg
}

// stddev is the Bessel-corrected sample standard deviation, 0 below two values.
func stddev(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	var mean float64
	for _, v := range values {
		mean += v
	}
	mean /= float64(n)

	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	return math.Sqrt(sq / float64(n-1))
}
