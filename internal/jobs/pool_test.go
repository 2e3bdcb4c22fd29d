package jobs

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gmkornilov/onlymove-generator/pkg/puzgen"
)

// counterSource yields puzzles tagged with its id and a sequence number.
type counterSource struct {
	id   int
	n    int64
	fail error
	// failAfter makes Next return fail once n reaches it
	failAfter int64
}

func (s *counterSource) Next(ctx context.Context) (puzgen.Puzzle, error) {
	if err := ctx.Err(); err != nil {
		return puzgen.Puzzle{}, err
	}
	n := atomic.AddInt64(&s.n, 1)
	if s.fail != nil && n > s.failAfter {
		return puzgen.Puzzle{}, s.fail
	}
	return puzgen.Puzzle{EPD: fmt.Sprintf("%d/%d", s.id, n)}, nil
}

// blockedSource never produces anything until the context ends.
type blockedSource struct{}

func (blockedSource) Next(ctx context.Context) (puzgen.Puzzle, error) {
	<-ctx.Done()
	return puzgen.Puzzle{}, ctx.Err()
}

func TestRunStopsAtCount(t *testing.T) {
	sources := []PuzzleSource{&counterSource{id: 1}, &counterSource{id: 2}, &counterSource{id: 3}}

	var got []puzgen.Puzzle
	err := Run(context.Background(), sources, 25, func(p puzgen.Puzzle) error {
		got = append(got, p)
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, got, 25)

	seen := map[string]bool{}
	for _, p := range got {
		assert.False(t, seen[p.EPD], "duplicate %s", p.EPD)
		seen[p.EPD] = true
	}
}

func TestRunSingleSourceKeepsOrder(t *testing.T) {
	var got []string
	err := Run(context.Background(), []PuzzleSource{&counterSource{id: 1}}, 5, func(p puzgen.Puzzle) error {
		got = append(got, p.EPD)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"1/1", "1/2", "1/3", "1/4", "1/5"}, got)
}

func TestRunSourceFailureIsFatal(t *testing.T) {
	cause := &puzgen.ProbeError{FEN: "8/8/8/8/8/2k5/8/KQ6 w - - 0 1", Err: errors.New("missing table")}
	sources := []PuzzleSource{
		blockedSource{},
		&counterSource{id: 2, fail: cause, failAfter: 2},
	}

	err := Run(context.Background(), sources, 0, func(puzgen.Puzzle) error { return nil })
	var pe *puzgen.ProbeError
	require.True(t, errors.As(err, &pe), "got %v", err)
}

func TestRunEmitFailure(t *testing.T) {
	stop := errors.New("stdout closed")
	calls := 0
	err := Run(context.Background(), []PuzzleSource{&counterSource{id: 1}, &counterSource{id: 2}}, 0, func(puzgen.Puzzle) error {
		calls++
		if calls == 3 {
			return stop
		}
		return nil
	})
	assert.Equal(t, stop, err)
	assert.Equal(t, 3, calls)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := Run(ctx, []PuzzleSource{blockedSource{}, blockedSource{}}, 10, func(puzgen.Puzzle) error { return nil })
	assert.Equal(t, context.DeadlineExceeded, err)
}

func TestRunWithoutSources(t *testing.T) {
	assert.Error(t, Run(context.Background(), nil, 1, func(puzgen.Puzzle) error { return nil }))
}

func TestNewRNG(t *testing.T) {
	a, b := NewRNG(99, 0, 0), NewRNG(99, 0, 0)
	otherWorker := NewRNG(99, 0, 1)
	otherBatch := NewRNG(99, 1, 0)

	same, workerDiffers, batchDiffers := true, false, false
	for i := 0; i < 32; i++ {
		x, y := a.Intn(64), b.Intn(64)
		if x != y {
			same = false
		}
		if x != otherWorker.Intn(64) {
			workerDiffers = true
		}
		if x != otherBatch.Intn(64) {
			batchDiffers = true
		}
	}
	assert.True(t, same, "equal seeds give equal streams")
	assert.True(t, workerDiffers, "workers get distinct streams")
	assert.True(t, batchDiffers, "batches get distinct streams")

	var src puzgen.Source = NewRNG(0, 0, 0)
	n := src.Intn(5)
	assert.True(t, n >= 0 && n < 5)
}
