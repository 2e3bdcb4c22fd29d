package rules

import "github.com/notnil/chess"

type offset struct{ df, dr int }

var (
	knightOffsets = []offset{{1, 2}, {2, 1}, {2, -1}, {1, -2}, {-1, -2}, {-2, -1}, {-2, 1}, {-1, 2}}
	kingOffsets   = []offset{{0, 1}, {1, 1}, {1, 0}, {1, -1}, {0, -1}, {-1, -1}, {-1, 0}, {-1, 1}}
	rookRays      = []offset{{0, 1}, {1, 0}, {0, -1}, {-1, 0}}
	bishopRays    = []offset{{1, 1}, {1, -1}, {-1, -1}, {-1, 1}}
)

func fileOf(sq chess.Square) int { return int(sq) % 8 }
func rankOf(sq chess.Square) int { return int(sq) / 8 }

func squareAt(file, rank int) (chess.Square, bool) {
	if file < 0 || file > 7 || rank < 0 || rank > 7 {
		return chess.NoSquare, false
	}
	return chess.Square(rank*8 + file), true
}

// Attackers counts the pieces of color by that attack target on board.
func Attackers(board map[chess.Square]chess.Piece, target chess.Square, by chess.Color) int {
	n := 0
	f, r := fileOf(target), rankOf(target)

	for _, o := range knightOffsets {
		if sq, ok := squareAt(f+o.df, r+o.dr); ok && board[sq] == PieceOf(chess.Knight, by) {
			n++
		}
	}
	for _, o := range kingOffsets {
		if sq, ok := squareAt(f+o.df, r+o.dr); ok && board[sq] == PieceOf(chess.King, by) {
			n++
		}
	}

	// a pawn attacks diagonally forward, so look one rank behind the target
	// from the attacker's point of view
	dir := -1
	if by == chess.Black {
		dir = 1
	}
	for _, df := range []int{-1, 1} {
		if sq, ok := squareAt(f+df, r+dir); ok && board[sq] == PieceOf(chess.Pawn, by) {
			n++
		}
	}

	n += slidingAttackers(board, f, r, rookRays, PieceOf(chess.Rook, by), PieceOf(chess.Queen, by))
	n += slidingAttackers(board, f, r, bishopRays, PieceOf(chess.Bishop, by), PieceOf(chess.Queen, by))
	return n
}

func slidingAttackers(board map[chess.Square]chess.Piece, f, r int, rays []offset, slider, queen chess.Piece) int {
	n := 0
	for _, o := range rays {
		for step := 1; ; step++ {
			sq, ok := squareAt(f+o.df*step, r+o.dr*step)
			if !ok {
				break
			}
			p := board[sq]
			if p == chess.NoPiece {
				continue
			}
			if p == slider || p == queen {
				n++
			}
			break
		}
	}
	return n
}
