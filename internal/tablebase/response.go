package tablebase

import (
	"github.com/pkg/errors"

	"github.com/gmkornilov/onlymove-generator/pkg/puzgen"
)

type probeResponse struct {
	Category  string      `json:"category"`
	DTZ       *int        `json:"dtz"`
	Checkmate bool        `json:"checkmate"`
	Stalemate bool        `json:"stalemate"`
	Moves     []probeMove `json:"moves"`
}

// probeMove describes the position after a reply, from the point of view
// of the side to move there.
type probeMove struct {
	UCI      string `json:"uci"`
	SAN      string `json:"san"`
	Category string `json:"category"`
	DTZ      *int   `json:"dtz"`
	Zeroing  bool   `json:"zeroing"`
}

type entry struct {
	outcome puzgen.Outcome
	dtz     int
}

func (r *probeResponse) entry() (entry, error) {
	return toEntry(r.Category, r.DTZ)
}

func (m probeMove) entry() (entry, error) {
	return toEntry(m.Category, m.DTZ)
}

// toEntry maps a service category onto an outcome. Cursed wins, blessed
// losses and the maybe-* categories are draws under the fifty-move rule and
// are not decisive here.
func toEntry(category string, dtz *int) (entry, error) {
	var outcome puzgen.Outcome
	switch category {
	case "win":
		outcome = puzgen.Win
	case "loss":
		outcome = puzgen.Loss
	case "draw", "cursed-win", "blessed-loss", "maybe-win", "maybe-loss":
		outcome = puzgen.Draw
	default:
		return entry{}, errors.Wrapf(ErrMissingTable, "category %q", category)
	}

	if dtz == nil {
		if outcome.Decisive() {
			return entry{}, errors.Wrapf(ErrMissingTable, "no dtz for %s", category)
		}
		return entry{outcome: outcome}, nil
	}
	return entry{outcome: outcome, dtz: *dtz}, nil
}
