// Package tablebase looks up exact results of positions with few pieces.
package tablebase

import (
	"context"

	"github.com/hailam/chesstrain/internal/board"
)

// WDL represents Win/Draw/Loss result from the side to move's point of view.
type WDL int

const (
	WDLLoss        WDL = -2
	WDLBlessedLoss WDL = -1 // Loss that the 50-move rule turns into a draw
	WDLDraw        WDL = 0
	WDLCursedWin   WDL = 1 // Win that the 50-move rule turns into a draw
	WDLWin         WDL = 2
)

// String returns the Lichess category name of the result.
func (w WDL) String() string {
	switch w {
	case WDLLoss:
		return "loss"
	case WDLBlessedLoss:
		return "blessed-loss"
	case WDLDraw:
		return "draw"
	case WDLCursedWin:
		return "cursed-win"
	case WDLWin:
		return "win"
	}
	return "unknown"
}

// ProbeResult contains the result of a tablebase probe.
type ProbeResult struct {
	Found bool
	WDL   WDL
	DTZ   int // Distance to zeroing move (pawn move or capture)
}

// Prober is the interface for tablebase probing.
type Prober interface {
	// Probe looks up the position given as a FEN string. A position outside
	// the tablebase is reported with Found unset and a nil error.
	Probe(ctx context.Context, fen string) (ProbeResult, error)

	// MaxPieces returns the maximum number of pieces supported.
	MaxPieces() int
}

// WDLToScore converts a WDL result to a search score.
// Uses the convention: positive = winning, negative = losing.
func WDLToScore(wdl WDL, ply int) int {
	const mateScore = 30000

	switch wdl {
	case WDLWin:
		return mateScore - ply
	case WDLCursedWin:
		return mateScore - 100 - ply
	case WDLDraw:
		return 0
	case WDLBlessedLoss:
		return -mateScore + 100 + ply
	case WDLLoss:
		return -mateScore + ply
	default:
		return 0
	}
}

// NoopProber is a prober that always returns "not found".
type NoopProber struct{}

func (NoopProber) Probe(context.Context, string) (ProbeResult, error) {
	return ProbeResult{}, nil
}

func (NoopProber) MaxPieces() int {
	return 0
}

// CountPieces returns the total number of pieces in a FEN.
func CountPieces(fen string) int {
	return board.CountPiecesOf(fen)
}
