package board

import (
	"fmt"
	"math/bits"
	"strings"

	"github.com/dylhunn/dragontoothmg"
)

// Input layout.
const (
	PlaneSize  = 64
	PieceKinds = 6

	castlingOffset  = PlaneSize * PieceKinds * 2
	enPassantOffset = castlingOffset + 4
	halfmoveOffset  = enPassantOffset + PlaneSize

	// InputSize is the length of an encoded position.
	InputSize = halfmoveOffset + 1
)

// HalfmoveScale normalizes the halfmove clock input.
const HalfmoveScale = 50.0

func pieceBoards(bb *dragontoothmg.Bitboards) [PieceKinds]uint64 {
	return [PieceKinds]uint64{bb.Pawns, bb.Knights, bb.Bishops, bb.Rooks, bb.Queens, bb.Kings}
}

// Encode writes the network input for the position into dst, which must hold
// InputSize values. Pieces of the side to move come first, then the
// opponent's, each as six 64-square planes ordered pawn, knight, bishop,
// rook, queen, king. Four castling bits follow (queen side then king side,
// side to move first), then the en-passant plane and the halfmove clock
// divided by HalfmoveScale.
func (p *Position) Encode(dst []float64) {
	if len(dst) != InputSize {
		panic(fmt.Sprintf("board: encode buffer has %d values, need %d", len(dst), InputSize))
	}
	for i := range dst {
		dst[i] = 0
	}

	us, them := &p.b.White, &p.b.Black
	if !p.b.Wtomove {
		us, them = them, us
	}
	for side, bb := range [2]*dragontoothmg.Bitboards{us, them} {
		for kind, set := range pieceBoards(bb) {
			base := (side*PieceKinds + kind) * PlaneSize
			for set != 0 {
				sq := bits.TrailingZeros64(set)
				dst[base+sq] = 1
				set &= set - 1
			}
		}
	}

	f := p.fields()
	rights := f[fieldCastling]
	queen, king := "Q", "K"
	oppQueen, oppKing := "q", "k"
	if !p.b.Wtomove {
		queen, king, oppQueen, oppKing = oppQueen, oppKing, queen, king
	}
	for i, r := range []string{queen, king, oppQueen, oppKing} {
		if strings.Contains(rights, r) {
			dst[castlingOffset+i] = 1
		}
	}

	if ep := f[fieldEnPassant]; ep != "-" {
		if sq, err := ParseSquare(ep); err == nil {
			dst[enPassantOffset+sq] = 1
		}
	}

	dst[halfmoveOffset] = float64(p.HalfmoveClock()) / HalfmoveScale
}
