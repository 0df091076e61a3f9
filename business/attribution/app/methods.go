package app

import (
	"math"

	"github.com/fd1az/mev-bundler/business/attribution/domain"
)

// DefaultMethodWeights weights statistical, pattern and correlation 40/30/30.
func DefaultMethodWeights() map[domain.Method]float64 {
	return map[domain.Method]float64{
		domain.MethodStatistical: 0.4,
		domain.MethodPattern:     0.3,
		domain.MethodCorrelation: 0.3,
	}
}

// streakSaturation is the trailing streak length at which Pattern reaches ±1.
const streakSaturation = 5

// Statistical maps the failure rate onto [-1,1]: all failures +1, all
// successes -1. Unavailable below minSamples.
func Statistical(outcomes []domain.Outcome, minSamples int) (float64, bool) {
	if len(outcomes) == 0 || len(outcomes) < minSamples {
		return 0, false
	}
	failures := 0
	for _, o := range outcomes {
		if !o.Success {
			failures++
		}
	}
	rate := float64(failures) / float64(len(outcomes))
	return (rate - 0.5) * 2, true
}

// Pattern scores the trailing streak: a run of failures pushes risk up, a
// run of successes down. A single trailing result scores 0.
func Pattern(outcomes []domain.Outcome) (float64, bool) {
	if len(outcomes) < 3 {
		return 0, false
	}
	last := outcomes[len(outcomes)-1].Success
	streak := 0
	for i := len(outcomes) - 1; i >= 0 && outcomes[i].Success == last; i-- {
		streak++
	}

	v := math.Min(float64(streak-1)/float64(streakSaturation-1), 1)
	if last {
		return -v, true
	}
	return v, true
}

// Correlation is the negated Pearson correlation of expected against realized
// profit: estimates that track reality lower risk. Unavailable when either
// series is constant.
func Correlation(outcomes []domain.Outcome, minSamples int) (float64, bool) {
	n := len(outcomes)
	if n < 2 || n < minSamples {
		return 0, false
	}

	xs := make([]float64, n)
	ys := make([]float64, n)
	var mx, my float64
	for i, o := range outcomes {
		xs[i], _ = o.ExpectedProfit.Float64()
		ys[i], _ = o.RealizedProfit.Float64()
		mx += xs[i]
		my += ys[i]
	}
	mx /= float64(n)
	my /= float64(n)

	var cov, vx, vy float64
	for i := range xs {
		dx, dy := xs[i]-mx, ys[i]-my
		cov += dx * dy
		vx += dx * dx
		vy += dy * dy
	}
	if vx == 0 || vy == 0 {
		return 0, false
	}
	r := cov / math.Sqrt(vx*vy)
	return -clampUnit(r), true
}

// Combine weights the available methods, renormalizing over them. A method
// that could not run contributes nothing. ok is false when none ran.
func Combine(values map[domain.Method]float64, weights map[domain.Method]float64) (float64, bool) {
	var sum, wsum float64
	for m, v := range values {
		w := weights[m]
		if w <= 0 {
			continue
		}
		sum += w * v
		wsum += w
	}
	if wsum == 0 {
		return 0, false
	}
	return clampUnit(sum / wsum), true
}

// Attribute runs every method over one key's outcomes.
func Attribute(outcomes []domain.Outcome, minSamples int, weights map[domain.Method]float64) (domain.Entry, bool) {
	values := map[domain.Method]float64{}
	if v, ok := Statistical(outcomes, minSamples); ok {
		values[domain.MethodStatistical] = v
	}
	if v, ok := Pattern(outcomes); ok {
		values[domain.MethodPattern] = v
	}
	if v, ok := Correlation(outcomes, minSamples); ok {
		values[domain.MethodCorrelation] = v
	}

	adj, ok := Combine(values, weights)
	if !ok {
		return domain.Entry{}, false
	}
	return domain.Entry{Adjustment: adj, Samples: len(outcomes), Methods: values}, true
}

func clampUnit(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(-1, math.Min(1, v))
}
