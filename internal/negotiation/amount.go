package negotiation

import "math"

// Offers move in half-unit steps. The raw server bounds rarely land on a
// half unit, so the minimum snaps up and the maximum snaps down; without
// that, a bound like 2.80 would be unreachable from any stepped value.
const stepSize = 0.5

func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func snapUp(v float64) float64 {
	return math.Ceil(v/stepSize) * stepSize
}

func snapDown(v float64) float64 {
	return math.Floor(v/stepSize) * stepSize
}

// AmountStepper clamps stepped offer amounts to the snapped bounds.
type AmountStepper struct {
	Min float64
	Max float64
}

func NewAmountStepper(rawMin, rawMax float64) AmountStepper {
	min := snapUp(rawMin)
	max := snapDown(rawMax)
	if max < min {
		max = min
	}
	return AmountStepper{Min: Round2(min), Max: Round2(max)}
}

func (a AmountStepper) Clamp(v float64) float64 {
	if v < a.Min {
		return a.Min
	}
	if v > a.Max {
		return a.Max
	}
	return Round2(v)
}

func (a AmountStepper) Increase(current float64) float64 {
	return a.Clamp(snapDown(current) + stepSize)
}

func (a AmountStepper) Decrease(current float64) float64 {
	return a.Clamp(snapUp(current) - stepSize)
}
