package jobs

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/gmkornilov/onlymove-generator/pkg/puzgen"
)

// GeneratorSources builds one generator per worker. The generators share
// prober, each gets its own random stream derived from seed, the worker
// index and the number of earlier builds, so repeated requests against a
// fixed seed do not replay the same puzzles.
func GeneratorSources(prober puzgen.Prober, workers int, seed int64, log zerolog.Logger) SourceBuilder {
	var builds atomic.Uint64
	return func(req Request) ([]PuzzleSource, error) {
		batch := builds.Add(1) - 1
		sources := make([]PuzzleSource, 0, workers)
		for i := 0; i < workers; i++ {
			g, err := puzgen.NewGenerator(puzgen.GeneratorConfig{
				NumPieces: req.NumPieces,
				MinDTZ:    req.MinDTZ,
				Logger:    log.With().Int("worker", i).Logger(),
			}, prober, NewRNG(seed, batch, i))
			if err != nil {
				return nil, err
			}
			sources = append(sources, g)
		}
		return sources, nil
	}
}

// One generates a single puzzle for req.
func (b SourceBuilder) One(ctx context.Context, req Request) (puzgen.Puzzle, error) {
	sources, err := b(req)
	if err != nil {
		return puzgen.Puzzle{}, err
	}
	var found puzgen.Puzzle
	err = Run(ctx, sources, 1, func(p puzgen.Puzzle) error {
		found = p
		return nil
	})
	return found, err
}
