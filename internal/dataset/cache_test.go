package dataset

import (
	"bytes"
	"encoding/binary"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hailam/chesstrain/internal/oracle"
)

func newTestCache() *Cache {
	c := New()
	c.SetLogger(log.New(io.Discard, "", 0))
	return c
}

const (
	keyStart = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq -"
	keyE4    = "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3"
	keyD4    = "rnbqkbnr/pppppppp/8/8/3P4/8/PPP1PPPP/RNBQKBNR b KQkq d3"
)

func record(key string, l oracle.Label) []byte {
	var buf bytes.Buffer
	buf.WriteByte('N')
	buf.WriteString(key)
	buf.WriteByte(',')
	binary.Write(&buf, binary.LittleEndian, math.Float64bits(l.Win))
	binary.Write(&buf, binary.LittleEndian, math.Float64bits(l.Loss))
	binary.Write(&buf, binary.LittleEndian, l.Eval)
	return buf.Bytes()
}

func TestInsertIsIdempotent(t *testing.T) {
	c := newTestCache()
	first := oracle.Label{Win: 0.4, Loss: 0.1, Eval: 120}
	if !c.Insert(keyStart, first) {
		t.Fatal("first insert reported existing key")
	}
	if c.Insert(keyStart, oracle.Label{Win: 0.9, Loss: 0, Eval: 900}) {
		t.Fatal("second insert reported a new key")
	}
	got, ok := c.Lookup(keyStart)
	if !ok || got != first {
		t.Errorf("Lookup = %+v, %v; want %+v", got, ok, first)
	}
	if c.Len() != 1 || c.MeanEval() != 120 {
		t.Errorf("Len %d MeanEval %v after duplicate insert", c.Len(), c.MeanEval())
	}
}

func TestStatistics(t *testing.T) {
	c := newTestCache()
	if c.MeanEval() != 0 || c.MedianEval() != 0 {
		t.Errorf("empty cache statistics not zero")
	}
	c.Insert(keyStart, oracle.Label{Win: 0.05, Loss: 0.2, Eval: 10})
	c.Insert(keyE4, oracle.Label{Win: 0.45, Loss: 0.1, Eval: -50})
	c.Insert(keyD4, oracle.Label{Win: 1.0, Loss: 0.0, Eval: 400})

	eval, win, loss := c.Means()
	if math.Abs(eval-120) > 1e-9 || math.Abs(win-0.5) > 1e-9 || math.Abs(loss-0.1) > 1e-9 {
		t.Errorf("Means = %v %v %v", eval, win, loss)
	}
	if got := c.MedianEval(); got != 10 {
		t.Errorf("MedianEval = %d, want 10", got)
	}
	c.Insert("8/8/8/8/8/8/8/K6k w - -", oracle.Label{Eval: 20})
	if got := c.MedianEval(); got != 20 {
		t.Errorf("upper median = %d, want 20", got)
	}

	hist := c.WinHistogram(5)
	want := []int{2, 0, 1, 0, 1}
	for i := range want {
		if hist[i] != want[i] {
			t.Errorf("WinHistogram = %v, want %v", hist, want)
			break
		}
	}

	var out bytes.Buffer
	if err := c.Print(&out); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "Loaded 4 positions") {
		t.Errorf("Print output %q", out.String())
	}
	out.Reset()
	if err := c.WriteHistogram(&out, 5); err != nil {
		t.Fatal(err)
	}
	if lines := strings.Count(out.String(), "\n"); lines != 5 {
		t.Errorf("WriteHistogram wrote %d lines, want 5", lines)
	}
}

func TestLogRoundTrip(t *testing.T) {
	c := newTestCache()
	labels := map[string]oracle.Label{
		keyStart: {Win: 0.31, Loss: 0.07, Eval: 52},
		keyE4:    {Win: 0.05, Loss: 0.44, Eval: -300},
		keyD4:    {Win: 1.0 / 3, Loss: math.SmallestNonzeroFloat64, Eval: math.MaxInt32},
	}
	for k, l := range labels {
		c.Insert(k, l)
	}

	path := filepath.Join(t.TempDir(), "data", "dataset.bin")
	if err := c.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded := newTestCache()
	if err := loaded.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Len() != len(labels) {
		t.Fatalf("loaded %d positions, want %d", loaded.Len(), len(labels))
	}
	for k, want := range labels {
		got, ok := loaded.Lookup(k)
		if !ok || got != want {
			t.Errorf("Lookup(%q) = %+v, %v; want %+v", k, got, ok, want)
		}
	}
	if loaded.MeanEval() != c.MeanEval() {
		t.Errorf("MeanEval %v, want %v", loaded.MeanEval(), c.MeanEval())
	}

	// Saving again produces identical bytes: records are key-ordered.
	again := filepath.Join(t.TempDir(), "again.bin")
	if err := loaded.Save(again); err != nil {
		t.Fatal(err)
	}
	a, _ := os.ReadFile(path)
	b, _ := os.ReadFile(again)
	if !bytes.Equal(a, b) {
		t.Errorf("re-saved log differs")
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temporary file left behind")
	}
}

func TestRecordLayout(t *testing.T) {
	c := newTestCache()
	l := oracle.Label{Win: 0.5, Loss: 0.25, Eval: -7}
	c.Insert(keyStart, l)

	var buf bytes.Buffer
	n, err := c.WriteTo(&buf)
	if err != nil {
		t.Fatal(err)
	}
	want := record(keyStart, l)
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("record bytes\n got %x\nwant %x", buf.Bytes(), want)
	}
	if n != int64(len(want)) || len(want) != 1+len(keyStart)+1+20 {
		t.Errorf("WriteTo returned %d for %d bytes", n, len(want))
	}
}

func TestLoadSkipsCorruption(t *testing.T) {
	l1 := oracle.Label{Win: 0.1, Loss: 0.2, Eval: 30}
	l2 := oracle.Label{Win: 0.7, Loss: 0.05, Eval: 800}

	var data []byte
	data = append(data, "garbage"...)
	data = append(data, record(keyStart, l1)...)
	data = append(data, '\n', 0, 0xff)
	data = append(data, record(keyE4, l2)...)

	var logs bytes.Buffer
	c := New()
	c.SetLogger(log.New(&logs, "", 0))
	n, err := c.ReadFrom(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}
	if n != int64(len(data)) {
		t.Errorf("consumed %d of %d bytes", n, len(data))
	}
	if c.Len() != 2 {
		t.Fatalf("Len = %d, want 2", c.Len())
	}
	if got, _ := c.Lookup(keyE4); got != l2 {
		t.Errorf("Lookup = %+v, want %+v", got, l2)
	}
	if strings.Count(logs.String(), "corrupt N") != len("garbage")+3 {
		t.Errorf("corruption log:\n%s", logs.String())
	}
}

func TestLoadDropsTruncatedRecord(t *testing.T) {
	l := oracle.Label{Win: 0.3, Loss: 0.3, Eval: 0}
	full := record(keyStart, l)
	partial := record(keyE4, l)

	for _, cut := range []int{1, 10, len(partial) - 20, len(partial) - 1} {
		data := append(append([]byte(nil), full...), partial[:cut]...)
		c := newTestCache()
		if _, err := c.ReadFrom(bytes.NewReader(data)); err != nil {
			t.Fatalf("cut %d: %v", cut, err)
		}
		if c.Len() != 1 || !c.Has(keyStart) || c.Has(keyE4) {
			t.Errorf("cut %d: keys %v", cut, c.Keys())
		}
	}
}

func TestLoadDuplicateReplaces(t *testing.T) {
	old := oracle.Label{Win: 0.1, Loss: 0.1, Eval: 100}
	newer := oracle.Label{Win: 0.5, Loss: 0.2, Eval: 300}
	other := oracle.Label{Win: 0.2, Loss: 0.2, Eval: -100}

	var data []byte
	data = append(data, record(keyStart, old)...)
	data = append(data, record(keyE4, other)...)
	data = append(data, record(keyStart, newer)...)

	c := newTestCache()
	if _, err := c.ReadFrom(bytes.NewReader(data)); err != nil {
		t.Fatal(err)
	}
	if got, _ := c.Lookup(keyStart); got != newer {
		t.Errorf("Lookup = %+v, want %+v", got, newer)
	}
	if c.Len() != 2 || c.MeanEval() != 100 {
		t.Errorf("Len %d MeanEval %v, want 2 and 100", c.Len(), c.MeanEval())
	}
	if c.MedianEval() != 300 {
		t.Errorf("MedianEval = %d, want 300", c.MedianEval())
	}
}

func TestLoadMissingFile(t *testing.T) {
	c := newTestCache()
	if err := c.Load(filepath.Join(t.TempDir(), "nope.bin")); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("Len = %d", c.Len())
	}
}

func TestKeysSorted(t *testing.T) {
	c := newTestCache()
	for _, k := range []string{keyE4, keyStart, keyD4} {
		c.Insert(k, oracle.Label{})
	}
	keys := c.Keys()
	want := []string{keyD4, keyE4, keyStart}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("Keys = %v, want %v", keys, want)
		}
	}
}
