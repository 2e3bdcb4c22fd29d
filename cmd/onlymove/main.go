package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/gmkornilov/onlymove-generator/internal/config"
	"github.com/gmkornilov/onlymove-generator/internal/dao"
	"github.com/gmkornilov/onlymove-generator/internal/db"
	"github.com/gmkornilov/onlymove-generator/internal/engine"
	"github.com/gmkornilov/onlymove-generator/internal/jobs"
	"github.com/gmkornilov/onlymove-generator/internal/tablebase"
	"github.com/gmkornilov/onlymove-generator/pkg/puzgen"
)

const (
	exitFailure     = 1
	exitUsage       = 64
	exitUnavailable = 66
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cfg, err := config.InitConfig()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	fs := flag.NewFlagSet("onlymove", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.IntVar(&cfg.Generator.NumPieces, "n", cfg.Generator.NumPieces, "number of pieces, kings included (3-7)")
	fs.IntVar(&cfg.Generator.MinDTZ, "d", cfg.Generator.MinDTZ, "only keep positions with |dtz| above this")
	fs.IntVar(&cfg.Generator.Workers, "workers", cfg.Generator.Workers, "parallel generators")
	fs.Int64Var(&cfg.Generator.Seed, "seed", cfg.Generator.Seed, "random seed, 0 for a random one")
	fs.BoolVar(&cfg.Generator.Eval, "ce", cfg.Generator.Eval, "append the ce opcode to each line")
	fs.StringVar(&cfg.Tablebase.Endpoint, "tablebase", cfg.Tablebase.Endpoint, "tablebase probe endpoint")
	count := fs.Int("count", 0, "stop after this many puzzles, 0 for no limit")
	store := fs.Bool("store", false, "also insert puzzles into mongo")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return exitUsage
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}
	if *count < 0 {
		fmt.Fprintln(stderr, "count must not be negative")
		return exitUsage
	}
	log := cfg.Logger(stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gen := &generation{log: log, eval: cfg.Generator.Eval, out: stdout}
	defer func() {
		if err := gen.close(); err != nil {
			log.Error().Err(err).Msg("shutdown")
		}
	}()

	if cfg.Stockfish.Path != "" {
		searcher, err := engine.SetupEngine(cfg.Stockfish.Path, cfg.Stockfish.Args...)
		if err != nil {
			log.Error().Err(err).Msg("engine unavailable")
			return exitFailure
		}
		gen.analyzer = engine.NewAnalyzer(searcher, cfg.Stockfish.Depth)
	}
	if *store {
		client, err := db.NewDbClient(ctx, cfg)
		if err != nil {
			log.Error().Err(err).Msg("mongo unavailable")
			return exitFailure
		}
		gen.db = client
		gen.repo = dao.NewPuzzleRepository(client)
	}

	prober := tablebase.NewClient(tablebase.Config{
		Endpoint:   cfg.Tablebase.Endpoint,
		Timeout:    cfg.Tablebase.Timeout,
		Attempts:   cfg.Tablebase.Attempts,
		RetryDelay: cfg.Tablebase.RetryDelay,
		CacheSize:  cfg.Tablebase.CacheSize,
		Logger:     log,
	})
	build := jobs.GeneratorSources(prober, cfg.Generator.Workers, cfg.Generator.Seed, log)
	sources, err := build(jobs.Request{NumPieces: cfg.Generator.NumPieces, MinDTZ: cfg.Generator.MinDTZ})
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	log.Info().
		Int("pieces", cfg.Generator.NumPieces).
		Int("min_dtz", cfg.Generator.MinDTZ).
		Int("workers", len(sources)).
		Msg("generating")

	err = jobs.Run(ctx, sources, *count, gen.emit(ctx))
	log.Info().Int("emitted", gen.emitted).Msg("stopped")
	for i, src := range sources {
		if g, ok := src.(*puzgen.Generator); ok {
			log.Debug().Int("worker", i).Interface("stats", g.Stats()).Msg("worker stats")
		}
	}

	var pe *puzgen.ProbeError
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return 0
	case errors.As(err, &pe):
		log.Error().Err(err).Msg("tablebase unavailable")
		return exitUnavailable
	default:
		log.Error().Err(err).Msg("generation failed")
		return exitFailure
	}
}

// generation holds the optional collaborators applied to every puzzle.
type generation struct {
	log      zerolog.Logger
	eval     bool
	out      io.Writer
	analyzer *engine.Analyzer
	db       *db.PuzzleDbClient
	repo     dao.PuzzleRepository
	emitted  int
}

func (g *generation) emit(ctx context.Context) func(puzgen.Puzzle) error {
	return func(p puzgen.Puzzle) error {
		if g.analyzer != nil {
			rated, err := g.analyzer.Rate(p)
			if err != nil {
				return err
			}
			p = rated
		}
		if g.repo != nil {
			if err := g.repo.InsertPuzzle(ctx, p); err != nil {
				return errors.Wrap(err, "store puzzle")
			}
		}
		if _, err := fmt.Fprintln(g.out, p.Line(g.eval)); err != nil {
			return err
		}
		g.emitted++
		return nil
	}
}

func (g *generation) close() error {
	var result error
	if g.analyzer != nil {
		if err := g.analyzer.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if g.db != nil {
		if err := g.db.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result
}
