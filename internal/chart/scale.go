// Package chart holds the axis and curve math used to draw solar and
// demand series.
package chart

import (
	"errors"
	"math"
)

const (
	epsilon   = 2.221e-16
	precision = 8

	maxStepIterations = 1000
)

var ErrScaleNotConverged = errors.New("exceeded maximum number of iterations while optimizing scale step")

// HighLow is the value extent of an axis.
type HighLow struct {
	High float64
	Low  float64
}

// FindHighLow scans values for their extent. When reference is non-nil the
// extent is widened to include it. A degenerate extent is opened up so the
// axis always has a positive range.
func FindHighLow(values []float64, reference *float64) HighLow {
	hl := HighLow{High: -math.MaxFloat64, Low: math.MaxFloat64}
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		if v > hl.High {
			hl.High = v
		}
		if v < hl.Low {
			hl.Low = v
		}
	}
	if reference != nil {
		hl.High = math.Max(*reference, hl.High)
		hl.Low = math.Min(*reference, hl.Low)
	}

	if hl.High <= hl.Low {
		switch {
		case hl.Low == 0:
			hl.High = 1
		case hl.Low < 0:
			hl.High = 0
		case hl.High > 0:
			hl.Low = 0
		default:
			hl.High, hl.Low = 1, 0
		}
	}
	return hl
}

// Bounds describes a scaled axis: the rounded extent, the step between
// ticks and the tick values themselves.
type Bounds struct {
	High          float64
	Low           float64
	ValueRange    float64
	Oom           float64
	Step          float64
	Min           float64
	Max           float64
	Range         float64
	NumberOfSteps int
	Values        []float64
}

// GetBounds picks a tick step for an axis of axisLength pixels so that
// adjacent ticks are at least scaleMinSpace pixels apart. With onlyInteger
// the step is kept integral where possible.
func GetBounds(axisLength float64, hl HighLow, scaleMinSpace float64, onlyInteger bool) (Bounds, error) {
	b := Bounds{High: hl.High, Low: hl.Low}
	b.ValueRange = b.High - b.Low
	b.Oom = orderOfMagnitude(b.ValueRange)
	b.Step = math.Pow(10, b.Oom)
	b.Min = math.Floor(b.Low/b.Step) * b.Step
	b.Max = math.Ceil(b.High/b.Step) * b.Step
	b.Range = b.Max - b.Min
	b.NumberOfSteps = int(math.Round(b.Range / b.Step))

	length := projectLength(axisLength, b.Step, b)
	scaleUp := length < scaleMinSpace

	var smallestFactor float64
	if onlyInteger {
		smallestFactor = float64(rho(int64(b.Range)))
	}

	switch {
	case onlyInteger && projectLength(axisLength, 1, b) >= scaleMinSpace:
		b.Step = 1
	case onlyInteger && smallestFactor < b.Step && projectLength(axisLength, smallestFactor, b) >= scaleMinSpace:
		b.Step = smallestFactor
	default:
		for i := 0; ; i++ {
			if scaleUp && projectLength(axisLength, b.Step, b) <= scaleMinSpace {
				b.Step *= 2
			} else if !scaleUp && projectLength(axisLength, b.Step/2, b) >= scaleMinSpace {
				b.Step /= 2
				if onlyInteger && math.Mod(b.Step, 1) != 0 {
					b.Step *= 2
					break
				}
			} else {
				break
			}
			if i > maxStepIterations {
				return Bounds{}, ErrScaleNotConverged
			}
		}
	}

	b.Step = math.Max(b.Step, epsilon)

	newMin, newMax := b.Min, b.Max
	for newMin+b.Step <= b.Low {
		newMin = safeIncrement(newMin, b.Step)
	}
	for newMax-b.Step >= b.High {
		newMax = safeIncrement(newMax, -b.Step)
	}
	b.Min, b.Max = newMin, newMax
	b.Range = b.Max - b.Min

	values := make([]float64, 0, b.NumberOfSteps+1)
	for v := b.Min; v <= b.Max; v = safeIncrement(v, b.Step) {
		rounded := roundWithPrecision(v)
		if len(values) == 0 || values[len(values)-1] != rounded {
			values = append(values, rounded)
		}
	}
	b.Values = values
	return b, nil
}

// Project maps value onto an axis of axisLength pixels.
func (b Bounds) Project(axisLength, value float64) float64 {
	if b.Range == 0 {
		return 0
	}
	return (value - b.Min) / b.Range * axisLength
}

// NiceMax rounds v away from zero to the next quarter of its leading
// significant digit: 1.1 -> 1.25, 3.7 -> 3.75, 420 -> 425.
func NiceMax(v float64) float64 {
	if v == 0 {
		return 0
	}
	abs := math.Abs(v)
	factor := math.Pow(10, math.Floor(math.Log10(abs)))
	normalized := abs / factor
	result := math.Ceil(normalized*4) / 4 * factor
	if v < 0 {
		return -result
	}
	return result
}

func orderOfMagnitude(v float64) float64 {
	return math.Floor(math.Log(math.Abs(v)) / math.Ln10)
}

func projectLength(axisLength, length float64, b Bounds) float64 {
	return length / b.Range * axisLength
}

func roundWithPrecision(v float64) float64 {
	p := math.Pow(10, precision)
	return math.Round(v*p) / p
}

// safeIncrement adds increment to v and nudges the result when the sum is
// lost to float precision, so tick loops always advance.
func safeIncrement(v, increment float64) float64 {
	next := v + increment
	if next == v {
		if increment > 0 {
			next *= 1 + epsilon
		} else {
			next *= 1 - epsilon
		}
	}
	return next
}

// rho returns a non-trivial factor of n using Pollard's rho.
func rho(n int64) int64 {
	if n <= 1 {
		return n
	}
	if n%2 == 0 {
		return 2
	}
	gcd := func(p, q int64) int64 {
		for q != 0 {
			p, q = q, p%q
		}
		return p
	}
	f := func(x int64) int64 { return (x*x + 1) % n }

	x1, x2 := int64(2), int64(2)
	divisor := int64(1)
	for divisor == 1 {
		x1 = f(x1)
		x2 = f(f(x2))
		d := x1 - x2
		if d < 0 {
			d = -d
		}
		divisor = gcd(d, n)
	}
	return divisor
}
