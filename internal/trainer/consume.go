package trainer

import (
	"context"

	"github.com/dustin/go-humanize"
)

// Consume trains on cached labels only. Keys are drawn in random order and
// removed from the working set until it shrinks to Config.ConsumeFloor
// entries; the gradient is flushed every Config.ConsumeBatch samples and
// once more at the end. It returns the number of positions trained on.
func (t *Trainer) Consume(ctx context.Context) (int, error) {
	if t.net == nil {
		return 0, ErrNoNetwork
	}

	keys := t.cache.Keys()
	t.rng.Shuffle(len(keys), func(i, j int) {
		keys[i], keys[j] = keys[j], keys[i]
	})

	trained := 0
	for len(keys) > t.cfg.ConsumeFloor {
		if err := ctx.Err(); err != nil {
			return trained, err
		}
		key := keys[len(keys)-1]
		keys = keys[:len(keys)-1]

		label, ok := t.cache.Lookup(key)
		if !ok {
			continue
		}
		if err := t.pos.SetFEN(key); err != nil {
			t.logger.Printf("skipping cached key %q: %v", key, err)
			continue
		}
		t.trainOn(label)
		trained++

		if err := t.flushAt(t.cfg.ConsumeBatch); err != nil {
			return trained, err
		}
	}

	if t.net.Samples() > 0 {
		if err := t.net.ApplyBackprop(); err != nil {
			return trained, err
		}
	}
	t.logger.Printf("consumed %s positions, %s left", humanize.Comma(int64(trained)), humanize.Comma(int64(len(keys))))
	return trained, nil
}
