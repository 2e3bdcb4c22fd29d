package puzgen

import (
	"context"
	"sort"

	"github.com/notnil/chess"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/gmkornilov/onlymove-generator/internal/rules"
)

// separation is the DTZ gap, in plies, between the only move and the
// runner-up.
const separation = 2

type child struct {
	mv  *chess.Move
	dtz int
}

// SingleBestReply returns the one reply from pos that keeps its outcome
// strictly faster (or, when losing, strictly longer) than every other
// reply. dtz is the tablebase DTZ of pos itself. A nil move with a nil
// error means the position has no unique answer.
//
// Successor DTZ is reported from the opponent's side, so a reply c is
// judged by c+dtz. When winning, the fastest reply sums to +1 and the one
// two plies slower to -1. When losing, the most stubborn defence sums to
// -1 and the one two plies shorter to -3. Anything else is not kept.
func SingleBestReply(ctx context.Context, p Prober, pos *chess.Position, dtz int) (*chess.Move, error) {
	if dtz == 0 {
		return nil, nil
	}

	// away from the boundary a zeroing reply restarts the count, so its
	// successor DTZ is not comparable with the others. The optimal reply
	// there is never zeroing, so the filter cannot remove it.
	skipZeroing := abs(dtz) > 1

	children := make([]child, 0)
	for _, mv := range rules.LegalMoves(pos) {
		if skipZeroing && rules.IsZeroing(pos, mv) {
			continue
		}
		next := rules.Apply(pos, mv)
		c, err := p.ProbeDTZ(ctx, next)
		if err != nil {
			return nil, probeFailed(next, err)
		}
		children = append(children, child{mv: mv, dtz: c})
	}

	candidates := lo.Filter(children, func(c child, _ int) bool {
		return inBand(dtz, c.dtz)
	})
	if len(candidates) == 0 {
		return nil, errors.Wrapf(ErrInconsistent, "%s with dtz %d", pos, dtz)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].dtz > candidates[j].dtz
	})

	if len(candidates) > 1 && candidates[0].dtz-candidates[1].dtz == separation {
		return candidates[0].mv, nil
	}
	return nil, nil
}

func inBand(dtz, childDTZ int) bool {
	sum := dtz + childDTZ
	if dtz > 0 {
		return sum == 1 || sum == -1
	}
	return sum == -1 || sum == -3
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
