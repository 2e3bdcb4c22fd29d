package engine

import (
	"sync"

	"github.com/freeeve/uci"
	"github.com/pkg/errors"

	"github.com/gmkornilov/onlymove-generator/pkg/puzgen"
)

// Searcher returns the engine's preferred move, in UCI notation, for a
// position searched to a fixed depth.
type Searcher interface {
	BestMove(fen string, depth int) (string, error)
	Close()
}

type uciSearcher struct {
	e *uci.Engine
}

func (s uciSearcher) BestMove(fen string, depth int) (string, error) {
	if err := s.e.SetFEN(fen); err != nil {
		return "", errors.Wrap(err, "set position")
	}
	res, err := s.e.GoDepth(depth)
	if err != nil {
		return "", err
	}
	if len(res.Results) == 0 || len(res.Results[0].BestMoves) == 0 {
		return "", nil
	}
	return res.Results[0].BestMoves[0], nil
}

func (s uciSearcher) Close() {
	s.e.Close()
}

// Analyzer cross-checks puzzles against a UCI engine. The engine process
// is shared, so calls are serialised.
type Analyzer struct {
	mu     sync.Mutex
	engine Searcher
	depth  int
}

// SetupEngine starts a UCI engine process.
func SetupEngine(path string, arg ...string) (Searcher, error) {
	e, err := uci.NewEngine(path, arg...)
	if err != nil {
		return nil, errors.Wrapf(err, "start %s", path)
	}

	err = e.SetOptions(uci.Options{
		MultiPV: 1,
		Hash:    128,
		Ponder:  false,
		OwnBook: false,
	})
	if err != nil {
		e.Close()
		return nil, errors.Wrap(err, "set engine options")
	}
	return uciSearcher{e: e}, nil
}

func NewAnalyzer(engine Searcher, depth int) *Analyzer {
	return &Analyzer{engine: engine, depth: depth}
}

// Finds reports whether the engine's best move at the configured depth is
// the puzzle solution.
func (a *Analyzer) Finds(p puzgen.Puzzle) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	best, err := a.engine.BestMove(p.FEN, a.depth)
	if err != nil {
		return false, errors.Wrapf(err, "search %s", p.FEN)
	}
	return best == p.BestMoveUCI, nil
}

// Rate records the cross-check on p and re-estimates its rating.
func (a *Analyzer) Rate(p puzgen.Puzzle) (puzgen.Puzzle, error) {
	found, err := a.Finds(p)
	if err != nil {
		return p, err
	}
	p.EngineAgrees = found
	p.Rating = puzgen.EstimateRating(p, found)
	return p, nil
}

func (a *Analyzer) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.engine.Close()
	return nil
}
