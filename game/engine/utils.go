package engine

import "math"

// randomDelta returns a uniform value in [-MaxDelta, MaxDelta]
func randomDelta(rng Rand) float64 {
	return rng.Float64()*2*MaxDelta - MaxDelta
}

// randRange returns a uniform value in [min, max)
func randRange(rng Rand, min, max float64) float64 {
	return min + rng.Float64()*(max-min)
}

// wrapDegrees folds an angle into [0, 360)
func wrapDegrees(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

// clampFloat limits v to [lo, hi]
func clampFloat(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
