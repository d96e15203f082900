package trainer

import (
	"math"
	"math/rand"
)

// AcceptPolicy decides which freshly labelled samples enter the dataset. It
// flattens the label distribution: samples whose evaluation has the same sign
// as the dataset's mean are accepted less often the larger their magnitude,
// while samples of the rare sign pass and are only thinned by a small,
// magnitude-scaled rejection. All percentages are in [0, 100].
type AcceptPolicy struct {
	// MismatchAcceptPct is the acceptance percentage of a common-direction
	// sample with evaluation 0. It decays as MismatchScale/(MismatchScale+|v|);
	// a zero scale makes it flat.
	MismatchAcceptPct float64
	MismatchScale     float64

	// FineRejectPct is the highest rejection percentage of a rare-direction
	// sample, reached at |v| >= FineScale. A zero scale makes it flat.
	FineRejectPct float64
	FineScale     float64
}

// DefaultPolicy returns the production acceptance constants.
func DefaultPolicy() AcceptPolicy {
	return AcceptPolicy{
		MismatchAcceptPct: 80,
		MismatchScale:     1600,
		FineRejectPct:     10,
		FineScale:         3200,
	}
}

// AcceptAll is a policy that keeps every sample.
var AcceptAll = AcceptPolicy{MismatchAcceptPct: 100}

// AcceptProbability returns the acceptance percentage of a sample with
// evaluation eval against a dataset whose mean evaluation is mean.
func (p AcceptPolicy) AcceptProbability(eval int32, mean float64) float64 {
	mag := math.Abs(float64(eval))
	if (eval >= 0) == (mean >= 0) {
		if p.MismatchScale <= 0 {
			return p.MismatchAcceptPct
		}
		return p.MismatchAcceptPct * p.MismatchScale / (p.MismatchScale + mag)
	}
	reject := p.FineRejectPct
	if p.FineScale > 0 {
		reject *= math.Min(1, mag/p.FineScale)
	}
	return 100 - reject
}

// Accept draws a uniform percentage and compares it with
// AcceptProbability.
func (p AcceptPolicy) Accept(eval int32, mean float64, rng *rand.Rand) bool {
	return rng.Float64()*100 < p.AcceptProbability(eval, mean)
}
