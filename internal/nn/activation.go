package nn

import "math"

// Activation is a scalar nonlinearity together with its derivative.
type Activation interface {
	Activate(x float64) float64
	Prime(x float64) float64
}

// Sigmoid is the logistic function. All layers of the evaluation network use it.
type Sigmoid struct{}

func (Sigmoid) Activate(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func (Sigmoid) Prime(x float64) float64 {
	e := math.Exp(-x)
	return e / ((1 + e) * (1 + e))
}

// Identity passes values through unchanged.
type Identity struct{}

func (Identity) Activate(x float64) float64 { return x }
func (Identity) Prime(float64) float64      { return 1 }

// ReLU is the rectified linear unit.
type ReLU struct{}

func (ReLU) Activate(x float64) float64 {
	return math.Max(0, x)
}

func (ReLU) Prime(x float64) float64 {
	if x < 0 {
		return 0
	}
	return 1
}

// GELU uses the tanh approximation.
type GELU struct{}

const geluC = 0.044715

var sqrt2OverPi = math.Sqrt(2 / math.Pi)

func (GELU) Activate(x float64) float64 {
	return 0.5 * x * (1 + math.Tanh(sqrt2OverPi*(x+geluC*x*x*x)))
}

func (GELU) Prime(x float64) float64 {
	inner := sqrt2OverPi * (x + geluC*x*x*x)
	t := math.Tanh(inner)
	sech2 := 1 - t*t
	return 0.5*(1+t) + 0.5*x*sech2*sqrt2OverPi*(1+3*geluC*x*x)
}
