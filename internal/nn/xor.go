package nn

import (
	"log"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// TrainXOR is a sanity check for the layer code: a 2-2-1 sigmoid network
// learning exclusive-or with a decaying learning rate. Samples and gradient
// flushes are randomly dropped early on to shake the network out of flat
// regions. It returns the mean squared error of the final iteration.
func TrainXOR(iters int, rng *rand.Rand, logger *log.Logger) float64 {
	hidden := NewLayer(2, 2, Sigmoid{})
	output := NewLayer(2, 1, Sigmoid{})
	hidden.Randomize(-1, 1, rng)
	output.Randomize(-1, 1, rng)

	input := mat.NewVecDense(2, nil)
	var meanErr float64
	for iter := 0; iter < iters; iter++ {
		rate := 1 - float64(iter)/float64(iters)
		hidden.LearnRate, output.LearnRate = rate, rate

		var sum float64
		for a := 0; a < 2; a++ {
			for b := 0; b < 2; b++ {
				if iter < iters-iters/64 && rng.Float64() < 0.25 {
					sum++
					continue
				}
				want := float64(a ^ b)
				input.SetVec(0, float64(a))
				input.SetVec(1, float64(b))

				got := output.Forward(hidden.Forward(input)).AtVec(0)
				hidden.Backward(output.Backward(output.InitBackwards(mat.NewVecDense(1, []float64{want}))))
				sum += (got - want) * (got - want)
			}
		}
		meanErr = sum / 4
		if logger != nil && iter%256 == 0 {
			logger.Printf("xor iter %d error %.6f", iter, meanErr)
		}

		if rng.Float64() > 0.125 {
			output.ApplyBackprop()
		}
		if rng.Float64() > 0.125 {
			hidden.ApplyBackprop()
		}
	}
	return meanErr
}
