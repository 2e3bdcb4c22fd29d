package puzgen

import (
	"encoding/json"
	"fmt"

	"github.com/notnil/chess"

	"github.com/gmkornilov/onlymove-generator/internal/rules"
)

// moveRuleBudget is the fifty-move rule expressed in plies.
const moveRuleBudget = 100

type Puzzle struct {
	FEN           string  `json:"fen" bson:"fen"`
	EPD           string  `json:"epd" bson:"epd"`
	Outcome       Outcome `json:"outcome" bson:"outcome"`
	DTZ           int     `json:"dtz" bson:"dtz"`
	Pieces        int     `json:"pieces" bson:"pieces"`
	BestMove      string  `json:"best_move" bson:"best_move"`
	BestMoveUCI   string  `json:"best_move_uci" bson:"best_move_uci"`
	HalfMoveClock int     `json:"hmvc" bson:"hmvc"`
	Rating        int     `json:"rating" bson:"rating"`
	EngineAgrees  bool    `json:"engine_agrees,omitempty" bson:"engine_agrees,omitempty"`
}

func NewPuzzle(pos *chess.Position, outcome Outcome, dtz int, mv *chess.Move) Puzzle {
	p := Puzzle{
		FEN:           pos.String(),
		EPD:           rules.EPD(pos),
		Outcome:       outcome,
		DTZ:           dtz,
		Pieces:        rules.PieceCount(pos),
		BestMove:      rules.SAN(pos, mv),
		BestMoveUCI:   mv.String(),
		HalfMoveClock: HalfMoveClock(outcome, dtz),
	}
	p.Rating = EstimateRating(p, true)
	return p
}

// HalfMoveClock is the clock to put on the position so that the
// runner-up reply no longer converts (or saves) within the fifty-move rule.
func HalfMoveClock(outcome Outcome, dtz int) int {
	if outcome == Win {
		return moveRuleBudget - dtz - 1
	}
	return moveRuleBudget - abs(dtz) + 2
}

// InRange reports whether dtz is strictly between minDTZ and the fifty-move
// budget in magnitude.
func InRange(dtz, minDTZ int) bool {
	d := abs(dtz)
	return d > minDTZ && d < moveRuleBudget
}

// Line renders the puzzle as an EPD record. withEval appends a centipawn
// tag: 10000 for a forced win, 0 for a forced loss.
func (p Puzzle) Line(withEval bool) string {
	line := fmt.Sprintf("%s hmvc %d; bm %s", p.EPD, p.HalfMoveClock, p.BestMove)
	if !withEval {
		return line
	}
	ce := 0
	if p.Outcome == Win {
		ce = 10000
	}
	return fmt.Sprintf("%s; ce %d", line, ce)
}

func (p Puzzle) String() string {
	j, _ := json.MarshalIndent(p, "", "\t")
	return string(j)
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *Outcome) UnmarshalText(text []byte) error {
	switch string(text) {
	case "win":
		*o = Win
	case "loss":
		*o = Loss
	case "draw":
		*o = Draw
	default:
		return fmt.Errorf("unknown outcome %q", text)
	}
	return nil
}
