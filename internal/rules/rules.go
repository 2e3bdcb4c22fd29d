package rules

import (
	"fmt"
	"strings"

	"github.com/notnil/chess"
	"github.com/pkg/errors"
)

var ErrIllegalPosition = errors.New("illegal position")

// Descriptor is a raw board and side to move. Castling rights, en passant,
// and the move counters are not part of it: positions are always built
// without castling rights, without an en passant target, with a zero
// half-move clock and move number 1.
type Descriptor struct {
	Board map[chess.Square]chess.Piece
	Turn  chess.Color
}

// NewPosition validates the descriptor and builds a position from it.
// Every failure wraps ErrIllegalPosition.
func NewPosition(d Descriptor) (*chess.Position, error) {
	if err := validate(d); err != nil {
		return nil, err
	}

	turn := "w"
	if d.Turn == chess.Black {
		turn = "b"
	}
	fen := fmt.Sprintf("%s %s - - 0 1", chess.NewBoard(d.Board).String(), turn)
	opt, err := chess.FEN(fen)
	if err != nil {
		return nil, errors.Wrapf(ErrIllegalPosition, "decode %q: %v", fen, err)
	}
	return chess.NewGame(opt).Position(), nil
}

// Revalidate runs the construction-time legality check again on pos.
func Revalidate(pos *chess.Position) error {
	return validate(Descriptor{Board: pos.Board().SquareMap(), Turn: pos.Turn()})
}

func validate(d Descriptor) error {
	if d.Turn != chess.White && d.Turn != chess.Black {
		return errors.Wrap(ErrIllegalPosition, "no side to move")
	}

	kings := map[chess.Color]chess.Square{}
	for sq, p := range d.Board {
		if p == chess.NoPiece {
			continue
		}
		switch p.Type() {
		case chess.King:
			if _, dup := kings[p.Color()]; dup {
				return errors.Wrapf(ErrIllegalPosition, "more than one %s king", p.Color().Name())
			}
			kings[p.Color()] = sq
		case chess.Pawn:
			if r := rankOf(sq); r == 0 || r == 7 {
				return errors.Wrapf(ErrIllegalPosition, "pawn on back rank at %s", sq)
			}
		}
	}
	for _, c := range []chess.Color{chess.White, chess.Black} {
		if _, ok := kings[c]; !ok {
			return errors.Wrapf(ErrIllegalPosition, "missing %s king", c.Name())
		}
	}

	them := d.Turn.Other()
	if n := Attackers(d.Board, kings[them], d.Turn); n > 0 {
		return errors.Wrapf(ErrIllegalPosition, "%s to move but %s king is in check", d.Turn.Name(), them.Name())
	}
	if n := Attackers(d.Board, kings[d.Turn], them); n > 2 {
		return errors.Wrapf(ErrIllegalPosition, "%s king attacked by %d pieces", d.Turn.Name(), n)
	}
	return nil
}

// LegalMoves returns every legal move in pos.
func LegalMoves(pos *chess.Position) []*chess.Move {
	return pos.ValidMoves()
}

// Apply returns the successor of pos after mv.
func Apply(pos *chess.Position, mv *chess.Move) *chess.Position {
	return pos.Update(mv)
}

// IsZeroing reports whether mv resets the fifty-move counter.
func IsZeroing(pos *chess.Position, mv *chess.Move) bool {
	if mv.HasTag(chess.Capture) || mv.HasTag(chess.EnPassant) {
		return true
	}
	return pos.Board().Piece(mv.S1()).Type() == chess.Pawn
}

// SAN renders mv in standard algebraic notation.
func SAN(pos *chess.Position, mv *chess.Move) string {
	return chess.AlgebraicNotation{}.Encode(pos, mv)
}

// EPD is the FEN of pos without the move counters.
func EPD(pos *chess.Position) string {
	fields := strings.Fields(pos.String())
	if len(fields) > 4 {
		fields = fields[:4]
	}
	return strings.Join(fields, " ")
}

func PieceCount(pos *chess.Position) int {
	n := 0
	for _, p := range pos.Board().SquareMap() {
		if p != chess.NoPiece {
			n++
		}
	}
	return n
}

// PieceOf maps a role and color to the board piece.
func PieceOf(t chess.PieceType, c chess.Color) chess.Piece {
	white := c == chess.White
	switch t {
	case chess.King:
		if white {
			return chess.WhiteKing
		}
		return chess.BlackKing
	case chess.Queen:
		if white {
			return chess.WhiteQueen
		}
		return chess.BlackQueen
	case chess.Rook:
		if white {
			return chess.WhiteRook
		}
		return chess.BlackRook
	case chess.Bishop:
		if white {
			return chess.WhiteBishop
		}
		return chess.BlackBishop
	case chess.Knight:
		if white {
			return chess.WhiteKnight
		}
		return chess.BlackKnight
	case chess.Pawn:
		if white {
			return chess.WhitePawn
		}
		return chess.BlackPawn
	}
	return chess.NoPiece
}
