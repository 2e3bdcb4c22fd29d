package jobs

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/gmkornilov/onlymove-generator/internal/dao"
	"github.com/gmkornilov/onlymove-generator/pkg/puzgen"
)

// Worker is a background job polled through the API.
type Worker interface {
	StartWork()
	Result() interface{}
	Progress() float64
	Done() bool
	Error() error
}

// Request describes one batch of puzzles.
type Request struct {
	Count     int `json:"count"`
	NumPieces int `json:"pieces"`
	MinDTZ    int `json:"min_dtz"`
}

// SourceBuilder creates the per-worker puzzle sources for a request.
type SourceBuilder func(req Request) ([]PuzzleSource, error)

// BatchJobFactory builds background batches. Rate, when set, is applied
// to every accepted puzzle; Repo, when set, stores the finished batch.
type BatchJobFactory struct {
	Sources SourceBuilder
	Rate    func(puzgen.Puzzle) (puzgen.Puzzle, error)
	Repo    dao.PuzzleRepository
	Logger  zerolog.Logger
}

func (f *BatchJobFactory) CreateBatchJob(req Request) *BatchJob {
	return &BatchJob{
		req:     req,
		sources: f.Sources,
		rate:    f.Rate,
		repo:    f.Repo,
		log:     f.Logger.With().Int("count", req.Count).Int("pieces", req.NumPieces).Logger(),
	}
}

type BatchJob struct {
	mu      sync.Mutex
	puzzles []puzgen.Puzzle
	err     error
	done    bool

	req     Request
	sources SourceBuilder
	rate    func(puzgen.Puzzle) (puzgen.Puzzle, error)
	repo    dao.PuzzleRepository
	log     zerolog.Logger
}

func (j *BatchJob) Done() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.done
}

func (j *BatchJob) StartWork() {
	go j.Generate(context.Background())
}

func (j *BatchJob) Result() interface{} {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]puzgen.Puzzle(nil), j.puzzles...)
}

func (j *BatchJob) Progress() float64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.req.Count <= 0 {
		return 0
	}
	return float64(len(j.puzzles)) / float64(j.req.Count)
}

func (j *BatchJob) Error() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

func (j *BatchJob) finish(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.err = err
	j.done = true
}

func (j *BatchJob) Generate(ctx context.Context) {
	sources, err := j.sources(j.req)
	if err != nil {
		j.finish(fmt.Errorf("error creating generators: %w", err))
		return
	}

	err = Run(ctx, sources, j.req.Count, func(p puzgen.Puzzle) error {
		if j.rate != nil {
			rated, rerr := j.rate(p)
			if rerr != nil {
				return fmt.Errorf("error rating puzzle: %w", rerr)
			}
			p = rated
		}
		j.mu.Lock()
		j.puzzles = append(j.puzzles, p)
		j.mu.Unlock()
		return nil
	})
	if err != nil {
		j.log.Error().Err(err).Msg("batch failed")
		j.finish(fmt.Errorf("error generating puzzles: %w", err))
		return
	}

	if j.repo != nil {
		if err := j.repo.InsertAllPuzzles(ctx, j.Result().([]puzgen.Puzzle)); err != nil {
			j.log.Error().Err(err).Msg("storing batch failed")
			j.finish(fmt.Errorf("error saving puzzles to db: %w", err))
			return
		}
	}
	j.log.Info().Msg("batch done")
	j.finish(nil)
}
