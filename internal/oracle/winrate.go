package oracle

import "math"

// Engine-native units. Centipawns reported over UCI are scaled by
// PawnValueEg/100 to recover them.
const (
	PawnValueEg = 208
	MateValue   = 32000
)

// Win-rate model coefficients fitted on fishtest game data, as cubic
// polynomials of the game phase.
var (
	winRateA = [4]float64{-1.17202460e-01, 5.94729104e-01, 1.12065546e+01, 1.22606222e+02}
	winRateB = [4]float64{-1.79066759, 11.30759193, -17.43677612, 36.47147479}
)

// WinRate is the probability that the side to move wins from a position
// evaluated at v (engine-native units) after ply half-moves.
func WinRate(v, ply int) float64 {
	m := float64(min(240, ply)) / 64

	a := ((winRateA[0]*m+winRateA[1])*m+winRateA[2])*m + winRateA[3]
	b := ((winRateB[0]*m+winRateB[1])*m+winRateB[2])*m + winRateB[3]

	x := math.Max(-2000, math.Min(2000, 100*float64(v)/PawnValueEg))
	return 1 / (1 + math.Exp((a-x)/b))
}

// NewLabel converts an engine score into a training label.
func NewLabel(v, ply int) Label {
	return Label{
		Win:  WinRate(v, ply),
		Loss: WinRate(-v, ply),
		Eval: int32(v),
	}
}
