// Package board adapts the dragontoothmg move generator to what the trainer
// needs: FEN handling, a make/unmake stack, move-list replay, a canonical
// position key and the network input encoding.
package board

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dylhunn/dragontoothmg"
)

// StartFEN is the FEN string for the starting position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// ErrInvalidFEN is returned for strings that do not describe a position.
var ErrInvalidFEN = errors.New("invalid FEN")

// FEN field indexes.
const (
	fieldPlacement = iota
	fieldSide
	fieldCastling
	fieldEnPassant
	fieldHalfmove
	fieldFullmove
)

// parseBoard validates the cheap parts of a FEN and hands it to dragontoothmg,
// which panics on malformed input instead of returning an error.
func parseBoard(fen string) (b dragontoothmg.Board, err error) {
	parts := strings.Fields(fen)
	if len(parts) < 4 || len(parts) > 6 {
		return b, fmt.Errorf("%w: need 4 to 6 fields, got %d", ErrInvalidFEN, len(parts))
	}
	if ranks := strings.Split(parts[fieldPlacement], "/"); len(ranks) != 8 {
		return b, fmt.Errorf("%w: need 8 ranks, got %d", ErrInvalidFEN, len(ranks))
	}
	if parts[fieldSide] != "w" && parts[fieldSide] != "b" {
		return b, fmt.Errorf("%w: invalid side to move %q", ErrInvalidFEN, parts[fieldSide])
	}
	if parts[fieldEnPassant] != "-" {
		if _, err := ParseSquare(parts[fieldEnPassant]); err != nil {
			return b, fmt.Errorf("%w: %v", ErrInvalidFEN, err)
		}
	}
	// Keys carry no counters; positions rebuilt from them start a fresh game.
	for len(parts) < 6 {
		if len(parts) == fieldHalfmove {
			parts = append(parts, "0")
		} else {
			parts = append(parts, "1")
		}
	}
	for _, f := range parts[fieldHalfmove:] {
		if _, err := strconv.Atoi(f); err != nil {
			return b, fmt.Errorf("%w: bad move counter %q", ErrInvalidFEN, f)
		}
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrInvalidFEN, r)
		}
	}()
	return dragontoothmg.ParseFen(strings.Join(parts, " ")), nil
}

// ParseSquare converts algebraic notation ("e3") to a square index, a1 = 0.
func ParseSquare(s string) (int, error) {
	if len(s) != 2 || s[0] < 'a' || s[0] > 'h' || s[1] < '1' || s[1] > '8' {
		return 0, fmt.Errorf("invalid square %q", s)
	}
	return int(s[0]-'a') + 8*int(s[1]-'1'), nil
}

// KeyOf returns the canonical key of a FEN string: placement, side to move,
// castling rights and en-passant square separated by single spaces. Move
// counters are dropped so transpositions share one key.
func KeyOf(fen string) string {
	parts := strings.Fields(fen)
	if len(parts) > fieldHalfmove {
		parts = parts[:fieldHalfmove]
	}
	return strings.Join(parts, " ")
}

// GamePlyOf returns the number of half-moves played before the position,
// derived from the full-move number and the side to move.
func GamePlyOf(fen string) int {
	parts := strings.Fields(fen)
	ply := 0
	if len(parts) > fieldFullmove {
		if n, err := strconv.Atoi(parts[fieldFullmove]); err == nil && n > 1 {
			ply = 2 * (n - 1)
		}
	}
	if len(parts) > fieldSide && parts[fieldSide] == "b" {
		ply++
	}
	return ply
}

// CountPiecesOf counts the pieces in the placement field of a FEN.
func CountPiecesOf(fen string) int {
	placement, _, _ := strings.Cut(strings.TrimSpace(fen), " ")
	n := 0
	for _, c := range placement {
		if strings.ContainsRune("pnbrqkPNBRQK", c) {
			n++
		}
	}
	return n
}
