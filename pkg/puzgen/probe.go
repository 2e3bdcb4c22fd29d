package puzgen

import (
	"context"
	"fmt"

	"github.com/notnil/chess"
	"github.com/pkg/errors"
)

// Outcome is the tablebase result from the point of view of the side to move.
type Outcome int

const (
	Draw Outcome = iota
	Win
	Loss
)

func (o Outcome) String() string {
	switch o {
	case Win:
		return "win"
	case Loss:
		return "loss"
	}
	return "draw"
}

func (o Outcome) Decisive() bool {
	return o == Win || o == Loss
}

// Prober answers tablebase queries. DTZ is signed: positive when the side
// to move wins, negative when it loses.
type Prober interface {
	ProbeWDL(ctx context.Context, pos *chess.Position) (Outcome, error)
	ProbeDTZ(ctx context.Context, pos *chess.Position) (int, error)
}

var (
	ErrInconsistent      = errors.New("no reply keeps the tablebase outcome")
	ErrTooManyAttempts   = errors.New("attempt limit reached")
	ErrInvalidPieceCount = errors.New("piece count must be between 3 and 7")
)

// ProbeError reports a failed tablebase lookup. It is never recovered from
// inside this package.
type ProbeError struct {
	FEN string
	Err error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe %s: %v", e.FEN, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }

func probeFailed(pos *chess.Position, err error) error {
	var pe *ProbeError
	if errors.As(err, &pe) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &ProbeError{FEN: pos.String(), Err: err}
}
