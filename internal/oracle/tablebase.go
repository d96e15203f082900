package oracle

import (
	"context"
	"log"

	"github.com/hailam/chesstrain/internal/board"
	"github.com/hailam/chesstrain/internal/tablebase"
)

// Tablebase answers positions with few enough pieces from a tablebase and
// passes everything else, including failed probes, to Next.
type Tablebase struct {
	Prober tablebase.Prober
	Next   Oracle

	// MaxPieces caps the positions sent to the prober. Zero uses the
	// prober's own limit.
	MaxPieces int

	Logger *log.Logger
}

// FromWDL converts an exact result into a label. Results that the 50-move
// rule turns into draws are labelled as draws.
func FromWDL(wdl tablebase.WDL) Label {
	l := Label{Eval: int32(tablebase.WDLToScore(wdl, 0))}
	switch wdl {
	case tablebase.WDLWin:
		l.Win = 1
	case tablebase.WDLLoss:
		l.Loss = 1
	}
	return l
}

func (t *Tablebase) Evaluate(ctx context.Context, fen string) (Label, error) {
	limit := t.MaxPieces
	if limit <= 0 || limit > t.Prober.MaxPieces() {
		limit = t.Prober.MaxPieces()
	}
	if board.CountPiecesOf(fen) <= limit {
		res, err := t.Prober.Probe(ctx, fen)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return Label{}, ctx.Err()
			}
			if t.Logger != nil {
				t.Logger.Printf("tablebase probe failed, using engine: %v", err)
			}
		case res.Found:
			return FromWDL(res.WDL), nil
		}
	}
	return t.Next.Evaluate(ctx, fen)
}
