package nn

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"gonum.org/v1/gonum/mat"
)

// NumLayers is the fixed depth of the evaluation network.
const NumLayers = 5

// ErrTopology is returned for topologies other than five layers ending in
// the two-unit [win, loss] output.
var ErrTopology = errors.New("nn: topology must have 6 sizes and 2 outputs")

// Topology lists the input width followed by the width of every layer.
type Topology [NumLayers + 1]int

// DefaultTopology is the production network: input, input-width hidden,
// wide hidden, two narrow hidden layers and the [win, loss] output.
var DefaultTopology = Topology{837, 837, 32768, 512, 64, 2}

func (t Topology) validate() error {
	for _, n := range t {
		if n <= 0 {
			return ErrTopology
		}
	}
	if t[NumLayers] != 2 {
		return ErrTopology
	}
	return nil
}

// fileSize is the exact size of a persisted network with this topology.
func (t Topology) fileSize() int64 {
	var n int64
	for i := 0; i < NumLayers; i++ {
		n += int64(t[i]*t[i+1]+t[i+1]) * 8
	}
	return n
}

// EpochStats summarizes one gradient flush.
type EpochStats struct {
	Epoch     int
	Samples   int
	MeanError float64
}

// Network is the fixed five-layer evaluation network. Output unit 0 is the
// win probability, unit 1 the loss probability; the draw probability is
// implied.
type Network struct {
	Topology Topology

	// Path is where ApplyBackprop persists the weights. Empty disables saving.
	Path string

	// OnEpoch runs after every gradient flush, before the weights are saved.
	OnEpoch func(EpochStats)

	input  *mat.VecDense
	layers [NumLayers]*Layer

	err     float64
	samples int
	epoch   int

	logger *log.Logger
}

// NewNetwork builds a network with weights and biases drawn from [-1, 1).
func NewNetwork(topo Topology, rng *rand.Rand) (*Network, error) {
	if err := topo.validate(); err != nil {
		return nil, err
	}
	n := &Network{
		Topology: topo,
		input:    mat.NewVecDense(topo[0], nil),
		logger:   log.Default(),
	}
	for i := range n.layers {
		n.layers[i] = NewLayer(topo[i], topo[i+1], Sigmoid{})
		n.layers[i].Randomize(-1, 1, rng)
	}
	return n, nil
}

// SetLogger replaces the logger used for epoch and persistence messages.
func (n *Network) SetLogger(l *log.Logger) {
	n.logger = l
}

// SetLearnRate sets the learning rate of every layer.
func (n *Network) SetLearnRate(rate float64) {
	for _, l := range n.layers {
		l.LearnRate = rate
	}
}

// Layer returns layer i, 0 being the one fed by the input vector.
func (n *Network) Layer(i int) *Layer {
	return n.layers[i]
}

// Input returns the raw input buffer for encoders to fill.
func (n *Network) Input() []float64 {
	return rawVec(n.input)
}

// Forward runs every layer in order, feeding each the previous activation.
func (n *Network) Forward() {
	var x mat.Vector = n.input
	for _, l := range n.layers {
		x = l.Forward(x)
	}
}

// Output returns the win and loss activations of the last Forward.
func (n *Network) Output() (win, loss float64) {
	out := n.layers[NumLayers-1].Activation()
	return out.AtVec(0), out.AtVec(1)
}

// Margin is the predicted win probability minus the loss probability.
func (n *Network) Margin() float64 {
	w, l := n.Output()
	return w - l
}

// Backward backpropagates the squared error towards (win, loss) through all
// layers, accumulating gradients only, and records the sample. It returns the
// squared error of the sample.
func (n *Network) Backward(win, loss float64) float64 {
	out := n.layers[NumLayers-1]
	d := out.InitBackwards(mat.NewVecDense(2, []float64{win, loss}))
	for i := NumLayers - 1; i >= 0; i-- {
		d = n.layers[i].Backward(d)
	}

	outW, outL := n.Output()
	sq := (win-outW)*(win-outW) + (loss-outL)*(loss-outL)
	n.err += sq
	n.samples++
	return sq
}

// Samples returns the number of samples accumulated in the current epoch.
func (n *Network) Samples() int { return n.samples }

// Epoch returns the number of completed epochs.
func (n *Network) Epoch() int { return n.epoch }

// SetEpoch continues numbering from a previous run.
func (n *Network) SetEpoch(e int) { n.epoch = e }

// ApplyBackprop ends the epoch: it flushes the accumulated gradients into
// every layer, front to back, and saves the network to Path.
func (n *Network) ApplyBackprop() error {
	stats := EpochStats{Epoch: n.epoch, Samples: n.samples}
	if n.samples > 0 {
		stats.MeanError = n.err / float64(n.samples)
	}
	n.logger.Printf("EPOCH %d DONE: %d samples, error = %g", stats.Epoch, stats.Samples, stats.MeanError)

	n.err = 0
	n.samples = 0
	for _, l := range n.layers {
		l.ApplyBackprop()
	}
	n.epoch++

	if n.OnEpoch != nil {
		n.OnEpoch(stats)
	}
	if n.Path == "" {
		return nil
	}
	return n.Save(n.Path)
}

// WriteTo writes every layer's weights and biases in network order.
func (n *Network) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriterSize(w, 1<<20)
	for i, l := range n.layers {
		if err := l.Save(bw); err != nil {
			return 0, fmt.Errorf("layer %d: %w", i, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return 0, err
	}
	return n.Topology.fileSize(), nil
}

// ReadFrom loads weights written by WriteTo. Trailing data is an error since
// it means the file was written for a different topology.
func (n *Network) ReadFrom(r io.Reader) (int64, error) {
	br := bufio.NewReaderSize(r, 1<<20)
	var read int64
	for i, l := range n.layers {
		if err := l.Load(br); err != nil {
			return read, fmt.Errorf("layer %d: %w", i, err)
		}
		read += l.paramBytes()
	}
	if _, err := br.ReadByte(); err != io.EOF {
		return read, fmt.Errorf("network file larger than topology %v", n.Topology)
	}
	return read, nil
}

// Save writes the network to path through a temporary file.
func (n *Network) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create network file: %w", err)
	}
	size, err := n.WriteTo(f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write network: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	n.logger.Printf("SAVE %s (%s)", path, humanize.Bytes(uint64(size)))
	return nil
}

// Load replaces the weights with the contents of path.
func (n *Network) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open network file: %w", err)
	}
	defer f.Close()

	if info, err := f.Stat(); err == nil && info.Size() != n.Topology.fileSize() {
		return fmt.Errorf("network file %s is %d bytes, topology %v needs %d",
			path, info.Size(), n.Topology, n.Topology.fileSize())
	}
	if _, err := n.ReadFrom(f); err != nil {
		return fmt.Errorf("failed to load network: %w", err)
	}
	n.logger.Printf("LOAD %s", path)
	return nil
}
