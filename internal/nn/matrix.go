package nn

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// floatChunk bounds the scratch buffer used when streaming matrices to disk.
const floatChunk = 1 << 14

// Randomize fills data with values drawn uniformly from [lo, hi).
func Randomize(data []float64, lo, hi float64, rng *rand.Rand) {
	span := hi - lo
	for i := range data {
		data[i] = lo + rng.Float64()*span
	}
}

// Apply stores fn(src[i]) into dst[i] for every element. dst and src may alias.
func Apply(dst *mat.VecDense, src mat.Vector, fn func(float64) float64) {
	if dst.Len() != src.Len() {
		panic(mat.ErrShape)
	}
	for i := 0; i < src.Len(); i++ {
		dst.SetVec(i, fn(src.AtVec(i)))
	}
}

// rawDense returns the backing slice of a matrix allocated by mat.NewDense.
func rawDense(m *mat.Dense) []float64 {
	raw := m.RawMatrix()
	if raw.Stride != raw.Cols {
		panic("nn: matrix is not contiguous")
	}
	return raw.Data[:raw.Rows*raw.Cols]
}

func rawVec(v *mat.VecDense) []float64 {
	raw := v.RawVector()
	if raw.Inc != 1 {
		panic("nn: vector is not contiguous")
	}
	return raw.Data[:raw.N]
}

// writeFloats writes data as little-endian binary64 values.
func writeFloats(w io.Writer, data []float64) error {
	buf := make([]byte, 8*min(len(data), floatChunk))
	for len(data) > 0 {
		n := min(len(data), floatChunk)
		for i, f := range data[:n] {
			binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(f))
		}
		if _, err := w.Write(buf[:8*n]); err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}

// readFloats fills data from little-endian binary64 values.
func readFloats(r io.Reader, data []float64) error {
	buf := make([]byte, 8*min(len(data), floatChunk))
	for len(data) > 0 {
		n := min(len(data), floatChunk)
		if _, err := io.ReadFull(r, buf[:8*n]); err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return fmt.Errorf("read %d values: %w", n, err)
		}
		for i := range data[:n] {
			data[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[8*i:]))
		}
		data = data[n:]
	}
	return nil
}
