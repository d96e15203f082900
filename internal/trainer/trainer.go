// Package trainer drives the network: it picks positions, labels them
// through the dataset cache or the oracle and accumulates gradients.
package trainer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/hailam/chesstrain/internal/board"
	"github.com/hailam/chesstrain/internal/dataset"
	"github.com/hailam/chesstrain/internal/nn"
	"github.com/hailam/chesstrain/internal/oracle"
)

// ErrNoNetwork is returned by operations that train when no network is
// attached.
var ErrNoNetwork = errors.New("trainer: no network attached")

// Checkpoint describes one rewrite of the dataset during generation.
type Checkpoint struct {
	Positions int
	Accepted  int
	MeanEval  float64
	Time      time.Time
}

// Trainer owns the position being trained on. It is not safe for concurrent
// use.
type Trainer struct {
	cfg    Config
	net    *nn.Network
	cache  *dataset.Cache
	oracle oracle.Oracle
	rng    *rand.Rand
	logger *log.Logger

	pos *board.Position

	// OnCheckpoint runs after every generation checkpoint.
	OnCheckpoint func(Checkpoint)

	depth    int
	accepted int
	oracleN  int
}

// New creates a trainer. net may be nil for pure data generation and orc
// may be nil for consumption, which only reads the cache.
func New(cfg Config, net *nn.Network, cache *dataset.Cache, orc oracle.Oracle, rng *rand.Rand, logger *log.Logger) (*Trainer, error) {
	if net != nil && net.Topology[0] != board.InputSize {
		return nil, fmt.Errorf("trainer: network takes %d inputs, positions encode to %d", net.Topology[0], board.InputSize)
	}
	if cache == nil {
		return nil, errors.New("trainer: nil dataset cache")
	}
	if rng == nil {
		return nil, errors.New("trainer: nil random source")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Trainer{
		cfg:    cfg,
		net:    net,
		cache:  cache,
		oracle: orc,
		rng:    rng,
		logger: logger,
		pos:    board.NewPosition(),
	}, nil
}

// Position returns the trainer's current position.
func (t *Trainer) Position() *board.Position {
	return t.pos
}

// SetPosition starts a fresh line from fen.
func (t *Trainer) SetPosition(fen string) error {
	return t.pos.SetFEN(fen)
}

// Accepted returns the number of samples accepted since the last checkpoint.
func (t *Trainer) Accepted() int {
	return t.accepted
}

// OracleCalls returns how many times the oracle has been consulted.
func (t *Trainer) OracleCalls() int {
	return t.oracleN
}

func (t *Trainer) evaluate(ctx context.Context) (oracle.Label, error) {
	if t.oracle == nil {
		return oracle.Label{}, errors.New("trainer: no oracle configured")
	}
	t.oracleN++
	return t.oracle.Evaluate(ctx, t.pos.FEN())
}

// forward encodes the current position into the network and runs it.
func (t *Trainer) forward() {
	t.pos.Encode(t.net.Input())
	t.net.Forward()
}

// TrainPosition runs one training step on the current position. The label
// comes from the cache when present; otherwise the oracle is asked and the
// answer cached. Gradients are only accumulated.
func (t *Trainer) TrainPosition(ctx context.Context) error {
	if t.net == nil {
		return ErrNoNetwork
	}
	t.forward()

	key := t.pos.Key()
	label, ok := t.cache.Lookup(key)
	if !ok {
		t.logger.Print("Cache miss")
		var err error
		if label, err = t.evaluate(ctx); err != nil {
			return err
		}
		t.cache.Insert(key, label)
	}

	samples := t.net.Samples()
	outW, outL := t.net.Output()
	t.net.Backward(label.Win, label.Loss)
	t.logger.Printf("d = %d, s = %d; outp = %g %g, real = %g %g",
		t.depth, samples, outW, outL, label.Win, label.Loss)
	return nil
}

// flushAt applies the accumulated gradient once batch samples are pending.
func (t *Trainer) flushAt(batch int) error {
	if t.net.Samples() < max(1, batch) {
		return nil
	}
	return t.net.ApplyBackprop()
}
