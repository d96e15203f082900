package trainer

import (
	"context"
	"errors"
	"math"

	"github.com/hailam/chesstrain/internal/board"
	"github.com/hailam/chesstrain/internal/puzzle"
)

// TrainLine trains at the current position and at every non-terminal child,
// then follows the child the network rates best and repeats from there. The
// walk ends at a dead end: a position without legal moves, or one whose
// moves all lead to such positions. The position is restored on return.
func (t *Trainer) TrainLine(ctx context.Context) error {
	if t.net == nil {
		return ErrNoNetwork
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	t.depth++
	defer func() { t.depth-- }()

	moves := t.pos.LegalMoves()
	if len(moves) == 0 {
		t.logger.Printf("DEADEND %s", t.pos.FEN())
		return nil
	}
	if err := t.lineStep(ctx); err != nil {
		return err
	}

	best := math.Inf(-1)
	var bestMove board.Move
	found := false
	for _, m := range moves {
		t.pos.MakeMove(m)
		if t.pos.HasLegalMoves() {
			if err := t.lineStep(ctx); err != nil {
				t.pos.UnmakeMove()
				return err
			}
			if score := t.net.Margin(); score > best {
				best, bestMove, found = score, m, true
			}
		} else {
			t.logger.Printf("DEADEND-INSEARCH %s", t.pos.FEN())
		}
		t.pos.UnmakeMove()
	}

	if !found {
		t.logger.Printf("DEADEND-NO_SELECTION %s", t.pos.FEN())
		return nil
	}
	if t.cfg.MaxLineDepth > 0 && t.depth >= t.cfg.MaxLineDepth {
		return nil
	}

	t.logger.Printf("Plays %s in %s", board.MoveString(bestMove), t.pos.FEN())
	t.pos.MakeMove(bestMove)
	err := t.TrainLine(ctx)
	t.pos.UnmakeMove()
	return err
}

func (t *Trainer) lineStep(ctx context.Context) error {
	if err := t.TrainPosition(ctx); err != nil {
		return err
	}
	return t.flushAt(t.cfg.LineBatch)
}

// TrainLines runs TrainLine from the final position of puzzle lines until
// ctx ends or Config.MaxLines lines were trained.
func (t *Trainer) TrainLines(ctx context.Context, corpus *puzzle.Corpus) error {
	for lines := 0; t.cfg.MaxLines == 0 || lines < t.cfg.MaxLines; lines++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		p, err := corpus.Pick(t.rng, t.cfg.Themes...)
		if err != nil {
			return err
		}

		err = t.pos.Replay(p.FEN, p.Moves, func() error { return nil })
		if errors.Is(err, board.ErrInvalidFEN) {
			t.logger.Printf("puzzle %s: %v", p.ID, err)
			continue
		}
		if errors.Is(err, board.ErrIllegalMove) {
			t.logger.Printf("puzzle %s: %v", p.ID, err)
		} else if err != nil {
			return err
		}

		if err := t.TrainLine(ctx); err != nil {
			return err
		}
	}
	return nil
}
