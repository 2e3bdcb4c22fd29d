package puzgen

import (
	"github.com/notnil/chess"
	"github.com/pkg/errors"

	"github.com/gmkornilov/onlymove-generator/internal/rules"
)

const (
	MinPieces = 3
	MaxPieces = 7
)

// Source is the caller-owned randomness a Sampler draws from. Both
// *math/rand.Rand and *frand.RNG satisfy it.
type Source interface {
	Intn(n int) int
}

var roles = []chess.PieceType{chess.Pawn, chess.Knight, chess.Bishop, chess.Rook, chess.Queen}

// Sampler places NumPieces pieces on distinct random squares and retries
// until the rules accept the arrangement. MaxAttempts bounds the retries;
// zero means retry forever.
type Sampler struct {
	NumPieces   int
	MaxAttempts int
}

func NewSampler(numPieces int) (Sampler, error) {
	if numPieces < MinPieces || numPieces > MaxPieces {
		return Sampler{}, errors.Wrapf(ErrInvalidPieceCount, "got %d", numPieces)
	}
	return Sampler{NumPieces: numPieces}, nil
}

// Sample returns a legal position. It only fails when MaxAttempts is set
// and every attempt produced an illegal arrangement.
func (s Sampler) Sample(rng Source) (*chess.Position, error) {
	for attempt := 1; s.MaxAttempts <= 0 || attempt <= s.MaxAttempts; attempt++ {
		pos, err := rules.NewPosition(s.arrange(rng))
		if err == nil {
			return pos, nil
		}
	}
	return nil, errors.Wrapf(ErrTooManyAttempts, "no legal %d-piece position in %d attempts", s.NumPieces, s.MaxAttempts)
}

func (s Sampler) arrange(rng Source) rules.Descriptor {
	board := make(map[chess.Square]chess.Piece, s.NumPieces)
	place := func(p chess.Piece) {
		for {
			sq := chess.Square(rng.Intn(64))
			if _, taken := board[sq]; !taken {
				board[sq] = p
				return
			}
		}
	}

	place(chess.WhiteKing)
	place(chess.BlackKing)
	for i := 2; i < s.NumPieces; i++ {
		role := roles[rng.Intn(len(roles))]
		place(rules.PieceOf(role, randomColor(rng)))
	}

	return rules.Descriptor{Board: board, Turn: randomColor(rng)}
}

func randomColor(rng Source) chess.Color {
	if rng.Intn(2) == 0 {
		return chess.White
	}
	return chess.Black
}
