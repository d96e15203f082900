// Package oracle turns positions into training labels by asking an external
// engine, or a tablebase when one applies.
package oracle

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"

	"github.com/hailam/chesstrain/internal/board"
	"github.com/hailam/chesstrain/internal/uci"
)

// Label is the training target of a position: win and loss probabilities for
// the side to move, plus the raw engine evaluation they came from.
type Label struct {
	Win  float64
	Loss float64
	Eval int32
}

// Draw is the implied draw probability.
func (l Label) Draw() float64 {
	return 1 - l.Win - l.Loss
}

// Oracle labels positions given as FEN strings.
type Oracle interface {
	Evaluate(ctx context.Context, fen string) (Label, error)
}

// Func adapts a function to the Oracle interface.
type Func func(ctx context.Context, fen string) (Label, error)

func (f Func) Evaluate(ctx context.Context, fen string) (Label, error) {
	return f(ctx, fen)
}

// Score is an engine-native evaluation from the side to move's point of
// view, with the game ply of the position it belongs to.
type Score struct {
	Value int
	Ply   int
}

// Searcher runs a fixed-limit search on a position.
type Searcher interface {
	Search(ctx context.Context, fen string) (Score, error)
}

// EngineSearcher searches with an external UCI engine.
type EngineSearcher struct {
	Client *uci.Client
	Limits uci.GoOptions
}

// DefaultDepth is the oracle's search depth.
const DefaultDepth = 16

// NewEngineSearcher searches to depth plies, or DefaultDepth when depth is 0.
func NewEngineSearcher(c *uci.Client, depth int) *EngineSearcher {
	if depth <= 0 {
		depth = DefaultDepth
	}
	return &EngineSearcher{Client: c, Limits: uci.GoOptions{Depth: depth}}
}

func (s *EngineSearcher) Search(ctx context.Context, fen string) (Score, error) {
	res, err := s.Client.Search(ctx, fen, s.Limits)
	if err != nil {
		return Score{}, err
	}
	return Score{Value: FromUCI(res.Info.Score), Ply: board.GamePlyOf(fen)}, nil
}

// FromUCI converts a UCI score into engine-native units.
func FromUCI(s uci.Score) int {
	if !s.Mate {
		return s.Value * PawnValueEg / 100
	}
	if s.Value > 0 {
		return MateValue - (2*s.Value - 1)
	}
	return -MateValue + 2*(-s.Value)
}

// flight serializes every oracle search in the process. The engine is a
// single shared resource.
var flight = semaphore.NewWeighted(1)

// Adapter labels positions with a Searcher. Calls are globally serialized.
type Adapter struct {
	Searcher Searcher
}

// NewAdapter wraps s.
func NewAdapter(s Searcher) *Adapter {
	return &Adapter{Searcher: s}
}

// Evaluate searches fen and converts the score with the win-rate model.
func (a *Adapter) Evaluate(ctx context.Context, fen string) (Label, error) {
	if err := flight.Acquire(ctx, 1); err != nil {
		return Label{}, err
	}
	defer flight.Release(1)

	score, err := a.Searcher.Search(ctx, fen)
	if err != nil {
		return Label{}, fmt.Errorf("oracle search %q: %w", fen, err)
	}
	return NewLabel(score.Value, score.Ply), nil
}
