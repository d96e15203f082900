package trainer

import (
	"context"
	"errors"
	"time"

	"github.com/hailam/chesstrain/internal/board"
	"github.com/hailam/chesstrain/internal/oracle"
	"github.com/hailam/chesstrain/internal/puzzle"
)

// Generate labels positions along puzzle lines until ctx ends or
// Config.MaxLines lines were replayed. Every position of a line is a
// candidate; terminal and already cached positions are skipped, the others
// are labelled by the oracle and filtered by the acceptance policy. When a
// network is attached it trains on each accepted sample.
func (t *Trainer) Generate(ctx context.Context, corpus *puzzle.Corpus) error {
	for lines := 0; t.cfg.MaxLines == 0 || lines < t.cfg.MaxLines; lines++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		p, err := corpus.Pick(t.rng, t.cfg.Themes...)
		if err != nil {
			return err
		}

		err = t.pos.Replay(p.FEN, p.Moves, func() error {
			return t.candidate(ctx)
		})
		switch {
		case errors.Is(err, board.ErrIllegalMove), errors.Is(err, board.ErrInvalidFEN):
			t.logger.Printf("puzzle %s: %v", p.ID, err)
		case err != nil:
			return err
		}
	}
	return nil
}

func (t *Trainer) candidate(ctx context.Context) error {
	key := t.pos.Key()
	if !t.pos.HasLegalMoves() || t.cache.Has(key) {
		return nil
	}

	start := time.Now()
	label, err := t.evaluate(ctx)
	if err != nil {
		return err
	}
	sec := time.Since(start).Seconds()

	if !t.cfg.Policy.Accept(label.Eval, t.cache.MeanEval(), t.rng) {
		t.logger.Printf("reject\t%s\t%d", t.pos.FEN(), label.Eval)
		return nil
	}

	t.cache.Insert(key, label)
	t.logger.Printf("%d\t%s\t%d\twlr %g %g\t%.3fsec\t avg %g",
		t.accepted, t.pos.FEN(), label.Eval, label.Win, label.Loss, sec, t.cache.MeanEval())
	t.accepted++

	if t.net != nil {
		t.trainOn(label)
	}
	if t.accepted > t.cfg.CheckpointEvery {
		return t.checkpoint()
	}
	return nil
}

// trainOn backpropagates a known label for the current position.
func (t *Trainer) trainOn(label oracle.Label) {
	t.forward()
	t.net.Backward(label.Win, label.Loss)
}

// checkpoint rewrites the dataset, flushes the gradient and resets the
// accepted counter.
func (t *Trainer) checkpoint() error {
	if t.cfg.DatasetPath != "" {
		if err := t.cache.Save(t.cfg.DatasetPath); err != nil {
			return err
		}
	}
	if t.net != nil && t.net.Samples() > 0 {
		if err := t.net.ApplyBackprop(); err != nil {
			return err
		}
	}

	cp := Checkpoint{
		Positions: t.cache.Len(),
		Accepted:  t.accepted,
		MeanEval:  t.cache.MeanEval(),
		Time:      time.Now(),
	}
	t.accepted = 0
	if t.OnCheckpoint != nil {
		t.OnCheckpoint(cp)
	}
	return nil
}
