package modulation

import (
	"math"
	"math/rand/v2"
)

// #region temperature
// Temperature maps valence to a base temperature in [0, 2] and pulls it toward
// FocusTemperature as arousal rises above 50. The result is never below MinTemperature.
func Temperature(x, y float64) float64 {
	base := 1.0 + y/100.0
	final := base
	switch {
	case x >= 100:
		final = FocusTemperature
	case x > focusOnset:
		final = base - (base-FocusTemperature)*(x-focusOnset)/focusOnset
	}
	return ClampTemperature(final)
}

// ClampTemperature floors t at MinTemperature. NaN also maps to the floor.
// Every inference backend passes its temperature through here.
func ClampTemperature(t float64) float64 {
	if math.IsNaN(t) || t < MinTemperature {
		return MinTemperature
	}
	return t
}

// #endregion temperature

// #region attention
// AttentionScale sharpens scores for high arousal and blurs them with uniform
// noise for negative arousal. The input slice is never modified.
func AttentionScale(x float64, scores []float64, rng Rand) []float64 {
	out := make([]float64, len(scores))
	copy(out, scores)

	switch {
	case x > focusOnset:
		gain := AttentionGain(x)
		for i := range out {
			out[i] *= gain
		}
	case x < 0:
		if len(out) == 0 {
			return out
		}
		lo, hi := out[0], out[0]
		for _, s := range out[1:] {
			lo = math.Min(lo, s)
			hi = math.Max(hi, s)
		}
		strength := (hi - lo) * noiseShare * (math.Abs(x) / 100.0)
		if strength == 0 {
			return out
		}
		if rng == nil {
			rng = defaultRand{}
		}
		for i := range out {
			out[i] += strength * (2*rng.Float64() - 1)
		}
	}
	return out
}

// AttentionGain is the multiplicative sharpening factor, 1 at or below x=50 and 2 at x=100.
func AttentionGain(x float64) float64 {
	if x <= focusOnset {
		return 1.0
	}
	return 1.0 + (x-focusOnset)/focusOnset
}

type defaultRand struct{}

func (defaultRand) Float64() float64 { return rand.Float64() }

// #endregion attention

// #region skip-rate
// SkipRate ramps linearly from 0 at x=90 to MaxSkipRate at x=100.
func SkipRate(x float64) float64 {
	if x < skipOnset {
		return 0
	}
	rate := MaxSkipRate * (x - skipOnset) / 10.0
	return math.Min(MaxSkipRate, math.Max(0, rate))
}

// #endregion skip-rate

// #region derive
// Derive bundles the three modulation outputs for a mood.
func Derive(x, y float64) Params {
	return Params{
		Temperature:   Temperature(x, y),
		SkipRate:      SkipRate(x),
		AttentionGain: AttentionGain(x),
	}
}

// #endregion derive
