package puzgen

const (
	baseRating      = 1200
	pieceBonus      = 100
	dtzBonusPerPly  = 10
	dtzBonusFrom    = 10
	maxDTZBonus     = 500
	defenceBonus    = 100
	engineMissBonus = 300
)

// EstimateRating guesses how hard a puzzle is. More pieces and a longer
// DTZ make it harder, finding the only defence is harder than finding the
// only win, and a puzzle the engine cross-check misses is much harder.
func EstimateRating(p Puzzle, engineFound bool) int {
	rating := baseRating + pieceBonus*max(p.Pieces-MinPieces, 0)

	rating += min(dtzBonusPerPly*max(abs(p.DTZ)-dtzBonusFrom, 0), maxDTZBonus)

	if p.Outcome == Loss {
		rating += defenceBonus
	}
	if !engineFound {
		rating += engineMissBonus
	}
	return rating
}

// RatingBounds is the window of stored puzzles served for a player rating.
func RatingBounds(rating int) (int, int) {
	return rating - 100, rating + 100
}
