package oracle

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hailam/chesstrain/internal/tablebase"
	"github.com/hailam/chesstrain/internal/uci"
)

func TestWinRateMonotonic(t *testing.T) {
	for _, ply := range []int{0, 20, 60, 120, 240, 400} {
		prev := -1.0
		for v := -5000; v <= 5000; v += 25 {
			w := WinRate(v, ply)
			if w < 0 || w > 1 || math.IsNaN(w) {
				t.Fatalf("WinRate(%d, %d) = %v out of range", v, ply, w)
			}
			if w < prev {
				t.Fatalf("WinRate not monotonic at v=%d ply=%d: %v < %v", v, ply, w, prev)
			}
			prev = w
		}
	}
}

func TestWinRateValues(t *testing.T) {
	// At ply 0 the midpoint sits at a = 122.606 pawns*100/208 units.
	if w := WinRate(255, 0); math.Abs(w-0.5) > 0.01 {
		t.Errorf("WinRate(255, 0) = %v, want about 0.5", w)
	}
	if w := WinRate(0, 0); w >= 0.5 {
		t.Errorf("WinRate(0, 0) = %v, want below 0.5", w)
	}
	// Evaluations are clamped, so huge values saturate identically.
	if WinRate(1_000_000, 30) != WinRate(MateValue*10, 30) {
		t.Errorf("clamped values differ")
	}
	// Plies past 240 all use the same phase.
	if WinRate(300, 240) != WinRate(300, 500) {
		t.Errorf("phase not capped at ply 240")
	}
}

func TestLabelProbabilitiesSumAtMostOne(t *testing.T) {
	for _, ply := range []int{0, 80, 240} {
		for v := -3000; v <= 3000; v += 100 {
			l := NewLabel(v, ply)
			if l.Win+l.Loss > 1+1e-12 {
				t.Errorf("label(%d, %d) = %+v sums above 1", v, ply, l)
			}
			if l.Draw() < -1e-12 {
				t.Errorf("negative draw probability %v", l.Draw())
			}
			if int(l.Eval) != v {
				t.Errorf("Eval = %d, want %d", l.Eval, v)
			}
		}
	}
}

func TestFromUCI(t *testing.T) {
	tests := []struct {
		score uci.Score
		want  int
	}{
		{uci.Score{Value: 100}, 208},
		{uci.Score{Value: -50}, -104},
		{uci.Score{Value: 0}, 0},
		{uci.Score{Mate: true, Value: 1}, MateValue - 1},
		{uci.Score{Mate: true, Value: 3}, MateValue - 5},
		{uci.Score{Mate: true, Value: -2}, -MateValue + 4},
		{uci.Score{Mate: true, Value: 0}, -MateValue},
	}
	for _, tt := range tests {
		if got := FromUCI(tt.score); got != tt.want {
			t.Errorf("FromUCI(%+v) = %d, want %d", tt.score, got, tt.want)
		}
	}
}

type slowSearcher struct {
	active, peak atomic.Int32
	calls        atomic.Int32
}

func (s *slowSearcher) Search(ctx context.Context, fen string) (Score, error) {
	s.calls.Add(1)
	n := s.active.Add(1)
	defer s.active.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(2 * time.Millisecond)
	return Score{Value: 100, Ply: 10}, nil
}

func TestAdapterSingleFlight(t *testing.T) {
	s := &slowSearcher{}
	adapters := []*Adapter{NewAdapter(s), NewAdapter(s)}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(a *Adapter) {
			defer wg.Done()
			if _, err := a.Evaluate(context.Background(), "fen"); err != nil {
				t.Errorf("Evaluate: %v", err)
			}
		}(adapters[i%2])
	}
	wg.Wait()

	if s.peak.Load() != 1 {
		t.Errorf("peak concurrency %d, want 1", s.peak.Load())
	}
	if s.calls.Load() != 16 {
		t.Errorf("searcher called %d times, want 16", s.calls.Load())
	}
}

type scoreSearcher Score

func (s scoreSearcher) Search(context.Context, string) (Score, error) { return Score(s), nil }

func TestAdapterLabel(t *testing.T) {
	a := NewAdapter(scoreSearcher{Value: 400, Ply: 30})
	l, err := a.Evaluate(context.Background(), "fen")
	if err != nil {
		t.Fatal(err)
	}
	if l.Win != WinRate(400, 30) || l.Loss != WinRate(-400, 30) || l.Eval != 400 {
		t.Errorf("label = %+v", l)
	}
	if l.Win <= l.Loss {
		t.Errorf("positive eval should favour a win: %+v", l)
	}
}

func TestAdapterHonoursContext(t *testing.T) {
	if err := flight.Acquire(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	defer flight.Release(1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := NewAdapter(scoreSearcher{}).Evaluate(ctx, "fen")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

type fakeProber struct {
	results map[string]tablebase.ProbeResult
	err     error
	probes  int
}

func (p *fakeProber) Probe(_ context.Context, fen string) (tablebase.ProbeResult, error) {
	p.probes++
	return p.results[fen], p.err
}

func (p *fakeProber) MaxPieces() int { return 5 }

func TestTablebaseDecorator(t *testing.T) {
	const (
		kqk   = "8/8/4k3/8/8/3QK3/8/8 w - - 0 1"
		krk   = "8/8/4k3/8/8/3RK3/8/8 b - - 0 1"
		kk    = "8/8/4k3/8/8/4K3/8/8 w - - 0 1"
		start = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"
	)
	prober := &fakeProber{results: map[string]tablebase.ProbeResult{
		kqk: {Found: true, WDL: tablebase.WDLWin},
		krk: {Found: true, WDL: tablebase.WDLLoss},
		kk:  {Found: true, WDL: tablebase.WDLDraw},
	}}
	engineCalls := 0
	next := Func(func(ctx context.Context, fen string) (Label, error) {
		engineCalls++
		return NewLabel(50, 0), nil
	})
	tb := &Tablebase{Prober: prober, Next: next}

	tests := []struct {
		fen       string
		win, loss float64
	}{
		{kqk, 1, 0},
		{krk, 0, 1},
		{kk, 0, 0},
	}
	for _, tt := range tests {
		l, err := tb.Evaluate(context.Background(), tt.fen)
		if err != nil {
			t.Fatal(err)
		}
		if l.Win != tt.win || l.Loss != tt.loss {
			t.Errorf("Evaluate(%q) = %+v, want win %v loss %v", tt.fen, l, tt.win, tt.loss)
		}
	}
	if engineCalls != 0 {
		t.Errorf("engine called %d times for tablebase positions", engineCalls)
	}

	if _, err := tb.Evaluate(context.Background(), start); err != nil {
		t.Fatal(err)
	}
	if engineCalls != 1 || prober.probes != 3 {
		t.Errorf("start position: engine %d probes %d, want 1 and 3", engineCalls, prober.probes)
	}

	prober.err = errors.New("network down")
	if _, err := tb.Evaluate(context.Background(), kqk); err != nil {
		t.Fatalf("failed probe should fall back: %v", err)
	}
	if engineCalls != 2 {
		t.Errorf("engine calls %d, want 2", engineCalls)
	}
}
