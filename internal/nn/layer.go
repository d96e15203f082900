package nn

import (
	"fmt"
	"io"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Default learning parameters for a freshly constructed layer.
const (
	DefaultLearnRate = 0.1
	DefaultBiasLearn = 1.0
)

// Layer is a fully connected layer with In inputs and Out outputs.
//
// Backward only accumulates gradients. Weights and biases change exclusively
// in ApplyBackprop, which averages everything accumulated since the previous
// call.
type Layer struct {
	In, Out int

	Weights *mat.Dense    // Out×In
	Biases  *mat.VecDense // Out

	LearnRate float64
	BiasLearn float64

	act Activation

	weightAcc *mat.Dense
	biasAcc   *mat.VecDense
	backprops int

	input      mat.Vector
	z          *mat.VecDense
	activation *mat.VecDense
}

// NewLayer allocates a zeroed layer.
func NewLayer(in, out int, act Activation) *Layer {
	if in <= 0 || out <= 0 {
		panic(fmt.Sprintf("nn: invalid layer shape %dx%d", out, in))
	}
	if act == nil {
		act = Sigmoid{}
	}
	return &Layer{
		In:         in,
		Out:        out,
		Weights:    mat.NewDense(out, in, nil),
		Biases:     mat.NewVecDense(out, nil),
		LearnRate:  DefaultLearnRate,
		BiasLearn:  DefaultBiasLearn,
		act:        act,
		weightAcc:  mat.NewDense(out, in, nil),
		biasAcc:    mat.NewVecDense(out, nil),
		z:          mat.NewVecDense(out, nil),
		activation: mat.NewVecDense(out, nil),
	}
}

// Randomize draws weights and biases uniformly from [lo, hi).
func (l *Layer) Randomize(lo, hi float64, rng *rand.Rand) {
	Randomize(rawDense(l.Weights), lo, hi, rng)
	Randomize(rawVec(l.Biases), lo, hi, rng)
}

// Forward computes z = W·x + b and the activation of z. x is retained until
// the next Forward so Backward can compute weight gradients.
func (l *Layer) Forward(x mat.Vector) *mat.VecDense {
	if x.Len() != l.In {
		panic(fmt.Errorf("nn: layer expects %d inputs, got %d: %w", l.In, x.Len(), mat.ErrShape))
	}
	l.input = x
	l.z.MulVec(l.Weights, x)
	l.z.AddVec(l.z, l.Biases)
	Apply(l.activation, l.z, l.act.Activate)
	return l.activation
}

// Activation returns the output buffer of the last Forward.
func (l *Layer) Activation() *mat.VecDense {
	return l.activation
}

// InitBackwards seeds backpropagation at an output layer with the derivative
// of the squared error towards desired.
func (l *Layer) InitBackwards(desired mat.Vector) *mat.VecDense {
	if desired.Len() != l.Out {
		panic(mat.ErrShape)
	}
	d := mat.NewVecDense(l.Out, nil)
	for i := 0; i < l.Out; i++ {
		d.SetVec(i, 2*(desired.AtVec(i)-l.activation.AtVec(i)))
	}
	return d
}

// Backward takes the cost gradient with respect to this layer's activation,
// accumulates the weight and bias gradients and returns the gradient with
// respect to the previous layer's activation.
func (l *Layer) Backward(dAct mat.Vector) *mat.VecDense {
	if l.input == nil {
		panic("nn: Backward called before Forward")
	}
	if dAct.Len() != l.Out {
		panic(mat.ErrShape)
	}
	l.backprops++

	dZ := mat.NewVecDense(l.Out, nil)
	for i := 0; i < l.Out; i++ {
		dZ.SetVec(i, dAct.AtVec(i)*l.act.Prime(l.z.AtVec(i)))
	}

	l.biasAcc.AddVec(l.biasAcc, dZ)
	l.weightAcc.RankOne(l.weightAcc, 1, dZ, l.input)

	prev := mat.NewVecDense(l.In, nil)
	prev.MulVec(l.Weights.T(), dZ)
	return prev
}

// Pending returns the number of backward passes accumulated since the last
// ApplyBackprop.
func (l *Layer) Pending() int {
	return l.backprops
}

// ApplyBackprop adds the averaged accumulated gradients into the weights and
// biases and clears the accumulators. It does nothing when no backward pass
// happened since the last call.
func (l *Layer) ApplyBackprop() {
	if l.backprops <= 0 {
		return
	}
	scale := l.LearnRate / float64(l.backprops)

	l.biasAcc.ScaleVec(l.BiasLearn*scale, l.biasAcc)
	l.Biases.AddVec(l.Biases, l.biasAcc)

	l.weightAcc.Scale(scale, l.weightAcc)
	l.Weights.Add(l.Weights, l.weightAcc)

	l.backprops = 0
	l.weightAcc.Zero()
	l.biasAcc.Zero()
}

// Save writes the weights row-major followed by the biases.
func (l *Layer) Save(w io.Writer) error {
	if err := writeFloats(w, rawDense(l.Weights)); err != nil {
		return fmt.Errorf("write weights: %w", err)
	}
	if err := writeFloats(w, rawVec(l.Biases)); err != nil {
		return fmt.Errorf("write biases: %w", err)
	}
	return nil
}

// Load reads what Save wrote. The layer shape must match the saved one.
func (l *Layer) Load(r io.Reader) error {
	if err := readFloats(r, rawDense(l.Weights)); err != nil {
		return fmt.Errorf("read weights: %w", err)
	}
	if err := readFloats(r, rawVec(l.Biases)); err != nil {
		return fmt.Errorf("read biases: %w", err)
	}
	return nil
}

// paramBytes is the size of the layer on disk.
func (l *Layer) paramBytes() int64 {
	return int64(l.In*l.Out+l.Out) * 8
}
