// Package dataset keeps every labelled position the trainer has seen, keyed
// by canonical position key, and persists it as a flat binary log.
package dataset

import (
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/hailam/chesstrain/internal/oracle"
)

type entry struct {
	label oracle.Label
	slot  int // index into Cache.evals
}

// Cache maps canonical keys to labels and keeps running statistics over
// them. It is not safe for concurrent use.
type Cache struct {
	entries map[string]entry
	evals   []int32

	sumEval int64
	sumWin  float64
	sumLoss float64

	logger *log.Logger
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{
		entries: make(map[string]entry),
		logger:  log.Default(),
	}
}

// SetLogger replaces the logger used for load, save and corruption messages.
func (c *Cache) SetLogger(l *log.Logger) {
	c.logger = l
}

// Insert adds key with label. It returns false and leaves the cache
// unchanged if key is already present.
func (c *Cache) Insert(key string, label oracle.Label) bool {
	if _, ok := c.entries[key]; ok {
		return false
	}
	c.entries[key] = entry{label: label, slot: len(c.evals)}
	c.evals = append(c.evals, label.Eval)
	c.add(label, 1)
	return true
}

// replace stores label under key, overriding an existing label.
func (c *Cache) replace(key string, label oracle.Label) {
	old, ok := c.entries[key]
	if !ok {
		c.Insert(key, label)
		return
	}
	c.add(old.label, -1)
	c.add(label, 1)
	c.evals[old.slot] = label.Eval
	c.entries[key] = entry{label: label, slot: old.slot}
}

func (c *Cache) add(l oracle.Label, sign int) {
	c.sumEval += int64(sign) * int64(l.Eval)
	c.sumWin += float64(sign) * l.Win
	c.sumLoss += float64(sign) * l.Loss
}

// Lookup returns the label stored for key.
func (c *Cache) Lookup(key string) (oracle.Label, bool) {
	e, ok := c.entries[key]
	return e.label, ok
}

// Has reports whether key is cached.
func (c *Cache) Has(key string) bool {
	_, ok := c.entries[key]
	return ok
}

// Len returns the number of cached positions.
func (c *Cache) Len() int {
	return len(c.entries)
}

// Keys returns every cached key in sorted order.
func (c *Cache) Keys() []string {
	keys := maps.Keys(c.entries)
	slices.Sort(keys)
	return keys
}

// MeanEval is the mean raw evaluation over the cache, 0 when empty.
func (c *Cache) MeanEval() float64 {
	if len(c.entries) == 0 {
		return 0
	}
	return float64(c.sumEval) / float64(len(c.entries))
}

// Means returns the mean evaluation, win and loss probability.
func (c *Cache) Means() (eval, win, loss float64) {
	n := float64(len(c.entries))
	if n == 0 {
		return 0, 0, 0
	}
	return float64(c.sumEval) / n, c.sumWin / n, c.sumLoss / n
}

// MedianEval returns the upper median of the cached evaluations.
func (c *Cache) MedianEval() int32 {
	if len(c.evals) == 0 {
		return 0
	}
	sorted := slices.Clone(c.evals)
	slices.Sort(sorted)
	return sorted[len(sorted)/2]
}

// WinHistogram counts cached win probabilities in bins equal-width buckets
// over [0, 1].
func (c *Cache) WinHistogram(bins int) []int {
	if bins <= 0 {
		return nil
	}
	hist := make([]int, bins)
	for _, e := range c.entries {
		i := int(e.label.Win * float64(bins))
		hist[max(0, min(bins-1, i))]++
	}
	return hist
}

// WriteHistogram renders WinHistogram as one text bar per bucket.
func (c *Cache) WriteHistogram(w io.Writer, bins int) error {
	hist := c.WinHistogram(bins)
	peak := 0
	for _, n := range hist {
		peak = max(peak, n)
	}
	const width = 50
	for i, n := range hist {
		bar := 0
		if peak > 0 {
			bar = n * width / peak
		}
		lo := float64(i) / float64(bins)
		hi := float64(i+1) / float64(bins)
		if _, err := fmt.Fprintf(w, "%.3f-%.3f %10s %s\n", lo, hi, humanize.Comma(int64(n)), strings.Repeat("#", bar)); err != nil {
			return err
		}
	}
	return nil
}

// Print writes a summary of the cache.
func (c *Cache) Print(w io.Writer) error {
	eval, win, loss := c.Means()
	_, err := fmt.Fprintf(w, "Loaded %s positions from previous runs\nAverage eval: %g\nAverage win: %.4f loss: %.4f\nMedian eval: %d\n",
		humanize.Comma(int64(c.Len())), eval, win, loss, c.MedianEval())
	return err
}
