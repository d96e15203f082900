package board

import (
	"errors"
	"fmt"
	"math/bits"
	"strconv"
	"strings"

	"github.com/dylhunn/dragontoothmg"
)

// Move is a move in the generator's packed representation.
type Move = dragontoothmg.Move

// ErrIllegalMove is returned when a move string does not match any legal move.
var ErrIllegalMove = errors.New("illegal move")

// Position is a board plus the undo stack of the moves made on it.
type Position struct {
	b    dragontoothmg.Board
	undo []func()
}

// NewPosition returns the starting position.
func NewPosition() *Position {
	p, err := ParseFEN(StartFEN)
	if err != nil {
		panic(err)
	}
	return p
}

// ParseFEN parses a FEN string or a canonical key.
func ParseFEN(fen string) (*Position, error) {
	p := &Position{}
	if err := p.SetFEN(fen); err != nil {
		return nil, err
	}
	return p, nil
}

// SetFEN replaces the position and drops the undo stack.
func (p *Position) SetFEN(fen string) error {
	b, err := parseBoard(fen)
	if err != nil {
		return err
	}
	p.b = b
	p.undo = nil
	return nil
}

// FEN returns the full FEN including move counters. The en-passant square
// is only written when a pawn of the side to move can legally capture on it,
// so positions reached by different move orders print the same.
func (p *Position) FEN() string {
	fen := p.b.ToFen()
	f := strings.Fields(fen)
	if len(f) <= fieldEnPassant || f[fieldEnPassant] == "-" || p.canCaptureEnPassant(f[fieldEnPassant]) {
		return fen
	}
	f[fieldEnPassant] = "-"
	return strings.Join(f, " ")
}

func (p *Position) canCaptureEnPassant(ep string) bool {
	sq, err := ParseSquare(ep)
	if err != nil {
		return false
	}
	pawns := p.b.White.Pawns
	if !p.b.Wtomove {
		pawns = p.b.Black.Pawns
	}
	moves := p.b.GenerateLegalMoves()
	for i := range moves {
		m := &moves[i]
		if int(m.To()) == sq && pawns&(uint64(1)<<m.From()) != 0 {
			return true
		}
	}
	return false
}

// Key returns the canonical cache key of the position.
func (p *Position) Key() string {
	return KeyOf(p.FEN())
}

// GamePly returns the number of half-moves played before this position.
func (p *Position) GamePly() int {
	return GamePlyOf(p.FEN())
}

// WhiteToMove reports the side to move.
func (p *Position) WhiteToMove() bool {
	return p.b.Wtomove
}

// CountPieces returns the number of pieces on the board.
func (p *Position) CountPieces() int {
	return bits.OnesCount64(p.b.White.All | p.b.Black.All)
}

// LegalMoves generates all legal moves.
func (p *Position) LegalMoves() []Move {
	return p.b.GenerateLegalMoves()
}

// HasLegalMoves reports whether the side to move has any legal move.
func (p *Position) HasLegalMoves() bool {
	return len(p.b.GenerateLegalMoves()) > 0
}

// MakeMove plays m, which must be legal, and pushes its undo record.
func (p *Position) MakeMove(m Move) {
	p.undo = append(p.undo, p.b.Apply(m))
}

// UnmakeMove takes back the most recent move.
func (p *Position) UnmakeMove() {
	n := len(p.undo)
	if n == 0 {
		panic("board: UnmakeMove on empty stack")
	}
	p.undo[n-1]()
	p.undo[n-1] = nil
	p.undo = p.undo[:n-1]
}

// Ply returns the number of moves on the undo stack.
func (p *Position) Ply() int {
	return len(p.undo)
}

// ParseMove finds the legal move written in UCI notation (e2e4, e7e8q).
func (p *Position) ParseMove(s string) (Move, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, m := range p.b.GenerateLegalMoves() {
		if MoveString(m) == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: %s in %s", ErrIllegalMove, s, p.FEN())
}

// MoveString formats m in UCI notation.
func MoveString(m Move) string {
	return m.String()
}

// Replay sets the position to fen and plays the space-separated UCI moves,
// calling visit at the starting position and after every move. Replay stops
// at the first move that is not legal; visit still runs for the position
// reached and the returned error wraps ErrIllegalMove.
func (p *Position) Replay(fen, moves string, visit func() error) error {
	if err := p.SetFEN(fen); err != nil {
		return err
	}

	var bad error
	for _, tok := range strings.Fields(moves) {
		m, err := p.ParseMove(tok)
		if err != nil {
			bad = err
			break
		}
		if err := visit(); err != nil {
			return err
		}
		p.MakeMove(m)
	}
	if err := visit(); err != nil {
		return err
	}
	return bad
}

// fields returns the six FEN fields of the current position.
func (p *Position) fields() []string {
	return strings.Fields(p.FEN())
}

// HalfmoveClock returns the number of half-moves since the last capture or
// pawn move.
func (p *Position) HalfmoveClock() int {
	f := p.fields()
	if len(f) <= fieldHalfmove {
		return 0
	}
	n, _ := strconv.Atoi(f[fieldHalfmove])
	return n
}
