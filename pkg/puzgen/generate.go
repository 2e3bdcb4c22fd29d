package puzgen

import (
	"context"
	"sync/atomic"

	"github.com/notnil/chess"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// progressEvery is the number of attempts between progress logs.
const progressEvery = 1000

type GeneratorConfig struct {
	NumPieces int
	// MinDTZ is exclusive: a candidate needs |dtz| > MinDTZ.
	MinDTZ int
	// MaxAttempts bounds Next; zero means no bound.
	MaxAttempts int
	Logger      zerolog.Logger
}

type Stats struct {
	Attempts     int64 `json:"attempts"`
	Draws        int64 `json:"draws"`
	OutOfRange   int64 `json:"out_of_range"`
	Ambiguous    int64 `json:"ambiguous"`
	Inconsistent int64 `json:"inconsistent"`
	Accepted     int64 `json:"accepted"`
}

type counters struct {
	attempts, draws, outOfRange, ambiguous, inconsistent, accepted atomic.Int64
}

// Generator runs the sample, probe, filter and select cycle. A Generator
// owns its random source and must not be shared between goroutines; the
// Prober may be.
type Generator struct {
	cfg     GeneratorConfig
	sampler Sampler
	prober  Prober
	rng     Source
	log     zerolog.Logger
	stats   counters
}

func NewGenerator(cfg GeneratorConfig, prober Prober, rng Source) (*Generator, error) {
	sampler, err := NewSampler(cfg.NumPieces)
	if err != nil {
		return nil, err
	}
	if cfg.MinDTZ < 0 {
		return nil, errors.Errorf("minimum dtz must not be negative, got %d", cfg.MinDTZ)
	}
	return &Generator{
		cfg:     cfg,
		sampler: sampler,
		prober:  prober,
		rng:     rng,
		log:     cfg.Logger.With().Int("pieces", cfg.NumPieces).Logger(),
	}, nil
}

// Candidate samples a position and probes its outcome and DTZ.
func (g *Generator) Candidate(ctx context.Context) (*chess.Position, Outcome, int, error) {
	pos, err := g.sampler.Sample(g.rng)
	if err != nil {
		return nil, Draw, 0, err
	}
	wdl, err := g.prober.ProbeWDL(ctx, pos)
	if err != nil {
		return nil, Draw, 0, probeFailed(pos, err)
	}
	dtz, err := g.prober.ProbeDTZ(ctx, pos)
	if err != nil {
		return nil, Draw, 0, probeFailed(pos, err)
	}
	return pos, wdl, dtz, nil
}

// Next generates candidates until one is an only-move puzzle. Rejections
// are silent. A tablebase failure or a cancelled context ends the loop.
func (g *Generator) Next(ctx context.Context) (Puzzle, error) {
	for attempt := 1; g.cfg.MaxAttempts <= 0 || attempt <= g.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Puzzle{}, err
		}
		if n := g.stats.attempts.Add(1); n%progressEvery == 0 {
			g.log.Debug().Interface("stats", g.Stats()).Msg("progress")
		}

		pos, wdl, dtz, err := g.Candidate(ctx)
		if err != nil {
			return Puzzle{}, err
		}
		if !wdl.Decisive() {
			g.stats.draws.Add(1)
			continue
		}
		if !InRange(dtz, g.cfg.MinDTZ) {
			g.stats.outOfRange.Add(1)
			continue
		}

		mv, err := SingleBestReply(ctx, g.prober, pos, dtz)
		switch {
		case errors.Is(err, ErrInconsistent):
			g.stats.inconsistent.Add(1)
			g.log.Error().Err(err).Str("fen", pos.String()).Str("outcome", wdl.String()).Msg("tablebase inconsistency, skipping")
			continue
		case err != nil:
			return Puzzle{}, err
		case mv == nil:
			g.stats.ambiguous.Add(1)
			continue
		}

		g.stats.accepted.Add(1)
		p := NewPuzzle(pos, wdl, dtz, mv)
		g.log.Debug().Str("epd", p.EPD).Str("bm", p.BestMove).Int("attempts", attempt).Msg("puzzle accepted")
		return p, nil
	}
	return Puzzle{}, errors.Wrapf(ErrTooManyAttempts, "no puzzle in %d attempts", g.cfg.MaxAttempts)
}

func (g *Generator) Stats() Stats {
	return Stats{
		Attempts:     g.stats.attempts.Load(),
		Draws:        g.stats.draws.Load(),
		OutOfRange:   g.stats.outOfRange.Load(),
		Ambiguous:    g.stats.ambiguous.Load(),
		Inconsistent: g.stats.inconsistent.Load(),
		Accepted:     g.stats.accepted.Load(),
	}
}
