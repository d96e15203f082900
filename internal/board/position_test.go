package board

import (
	"errors"
	"strings"
	"testing"
)

func replayTo(t *testing.T, fen, moves string) *Position {
	t.Helper()
	p := NewPosition()
	if err := p.Replay(fen, moves, func() error { return nil }); err != nil {
		t.Fatalf("Replay(%q): %v", moves, err)
	}
	return p
}

func TestKeyIgnoresMoveCounters(t *testing.T) {
	tests := []struct {
		name string
		a, b string
	}{
		{"knight shuffle then e4", "g1f3 g8f6 f3g1 f6g8 e2e4", "e2e4"},
		{"knight shuffle", "g1f3 g8f6 f3g1 f6g8", ""},
		{"transposed development", "g1f3 g8f6 b1c3 b8c6", "b1c3 b8c6 g1f3 g8f6"},
		{"double push without capture", "e2e4", "e2e4 g8f6 g1f3 f6g8 f3g1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pa := replayTo(t, StartFEN, tt.a)
			pb := replayTo(t, StartFEN, tt.b)
			if pa.Key() != pb.Key() {
				t.Errorf("keys differ:\n%s\n%s", pa.Key(), pb.Key())
			}
			if strings.Count(pa.Key(), " ") != 3 {
				t.Errorf("key %q does not have four fields", pa.Key())
			}
		})
	}

	// The shuffle changes both counters, so the full FENs must differ.
	pa := replayTo(t, StartFEN, "g1f3 g8f6 f3g1 f6g8")
	if pa.FEN() == StartFEN {
		t.Errorf("expected counters to differ from the start position")
	}
}

func TestKeyOf(t *testing.T) {
	tests := []struct {
		fen  string
		want string
	}{
		{StartFEN, "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq -"},
		{"8/8/8/8/8/8/8/K6k  b   -  -  17  60", "8/8/8/8/8/8/8/K6k b - -"},
		{"8/8/8/8/8/8/8/K6k w - -", "8/8/8/8/8/8/8/K6k w - -"},
	}
	for _, tt := range tests {
		if got := KeyOf(tt.fen); got != tt.want {
			t.Errorf("KeyOf(%q) = %q, want %q", tt.fen, got, tt.want)
		}
	}
}

func TestParseFENAcceptsKeys(t *testing.T) {
	key := KeyOf(StartFEN)
	p, err := ParseFEN(key)
	if err != nil {
		t.Fatalf("ParseFEN(%q): %v", key, err)
	}
	if p.FEN() != StartFEN {
		t.Errorf("FEN() = %q, want %q", p.FEN(), StartFEN)
	}
	if p.Key() != key {
		t.Errorf("Key() = %q, want %q", p.Key(), key)
	}
}

func TestParseFENRejectsGarbage(t *testing.T) {
	for _, fen := range []string{
		"",
		"hello world",
		"rnbqkbnr/pppppppp/8/8 w KQkq - 0 1",
		"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR x KQkq - 0 1",
		"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq z9 0 1",
		"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - x 1",
	} {
		if _, err := ParseFEN(fen); !errors.Is(err, ErrInvalidFEN) {
			t.Errorf("ParseFEN(%q) error = %v, want ErrInvalidFEN", fen, err)
		}
	}
}

func TestGamePly(t *testing.T) {
	tests := []struct {
		moves string
		want  int
	}{
		{"", 0},
		{"e2e4", 1},
		{"e2e4 e7e5", 2},
		{"e2e4 e7e5 g1f3", 3},
	}
	for _, tt := range tests {
		p := replayTo(t, StartFEN, tt.moves)
		if got := p.GamePly(); got != tt.want {
			t.Errorf("GamePly after %q = %d, want %d", tt.moves, got, tt.want)
		}
	}
	if got := GamePlyOf("8/8/8/8/8/8/8/K6k b - - 0 40"); got != 79 {
		t.Errorf("GamePlyOf = %d, want 79", got)
	}
}

func TestReplayVisitsEveryPosition(t *testing.T) {
	p := NewPosition()
	var keys []string
	err := p.Replay(StartFEN, "e2e4 e7e5 g1f3", func() error {
		keys = append(keys, p.Key())
		return nil
	})
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(keys) != 4 {
		t.Fatalf("visited %d positions, want 4", len(keys))
	}
	if keys[0] != KeyOf(StartFEN) {
		t.Errorf("first visit %q, want start position", keys[0])
	}
	if p.Ply() != 3 {
		t.Errorf("Ply() = %d, want 3", p.Ply())
	}
}

func TestReplayStopsAtIllegalMove(t *testing.T) {
	p := NewPosition()
	visits := 0
	err := p.Replay(StartFEN, "e2e4 e2e4 d7d5", func() error {
		visits++
		return nil
	})
	if !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("Replay error = %v, want ErrIllegalMove", err)
	}
	if visits != 2 {
		t.Errorf("visited %d positions, want 2", visits)
	}
	if p.Ply() != 1 {
		t.Errorf("Ply() = %d, want 1", p.Ply())
	}
}

func TestReplayPropagatesVisitError(t *testing.T) {
	stop := errors.New("stop")
	p := NewPosition()
	visits := 0
	err := p.Replay(StartFEN, "e2e4 e7e5", func() error {
		visits++
		if visits == 2 {
			return stop
		}
		return nil
	})
	if !errors.Is(err, stop) {
		t.Fatalf("Replay error = %v, want %v", err, stop)
	}
}

func TestParseMovePromotion(t *testing.T) {
	p, err := ParseFEN("8/P7/8/8/8/8/8/k6K w - - 0 1")
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range []string{"a7a8q", "a7a8n", "A7A8R"} {
		m, err := p.ParseMove(s)
		if err != nil {
			t.Errorf("ParseMove(%q): %v", s, err)
			continue
		}
		if got := MoveString(m); got != strings.ToLower(s) {
			t.Errorf("MoveString = %q, want %q", got, strings.ToLower(s))
		}
	}
	if _, err := p.ParseMove("a7a8"); !errors.Is(err, ErrIllegalMove) {
		t.Errorf("promotion without piece: err = %v, want ErrIllegalMove", err)
	}
}

func TestTerminalPositions(t *testing.T) {
	tests := []struct {
		name string
		fen  string
		want bool
	}{
		{"start", StartFEN, true},
		{"fool's mate", "rnb1kbnr/pppp1ppp/8/4p3/6Pq/5P2/PPPPP2P/RNBQKBNR w KQkq - 1 3", false},
		{"stalemate", "7k/5Q2/6K1/8/8/8/8/8 b - - 0 1", false},
	}
	for _, tt := range tests {
		p, err := ParseFEN(tt.fen)
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if got := p.HasLegalMoves(); got != tt.want {
			t.Errorf("%s: HasLegalMoves = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestCountPieces(t *testing.T) {
	p := NewPosition()
	if got := p.CountPieces(); got != 32 {
		t.Errorf("CountPieces = %d, want 32", got)
	}
	if got := CountPiecesOf("8/8/4k3/8/8/3QK3/8/8 w - - 0 1"); got != 3 {
		t.Errorf("CountPiecesOf = %d, want 3", got)
	}
}

func TestEnPassantSquareOnlyWhenCapturable(t *testing.T) {
	tests := []struct {
		name  string
		moves string
		want  string
	}{
		{"no pawn can capture", "e2e4", "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq -"},
		{"adjacent pawn", "e2e4 a7a6 e4e5 d7d5", "rnbqkbnr/1pp1pppp/p7/3pP3/8/8/PPPP1PPP/RNBQKBNR w KQkq d6"},
		{"no pawn alongside", "e2e4 e7e5", "rnbqkbnr/pppp1ppp/8/4p3/4P3/8/PPPP1PPP/RNBQKBNR w KQkq -"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := replayTo(t, StartFEN, tt.moves).Key(); got != tt.want {
				t.Errorf("Key() = %q, want %q", got, tt.want)
			}
		})
	}

	// The d4 pawn is pinned against its king by the rook.
	p := replayTo(t, "3k4/8/8/8/3p4/8/4P3/3R3K w - - 0 1", "e2e4")
	if got, want := p.Key(), "3k4/8/8/8/3pP3/8/8/3R3K b - -"; got != want {
		t.Errorf("Key() = %q, want %q", got, want)
	}
}
