package jobs

import (
	"context"
	"encoding/binary"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"lukechampine.com/frand"

	"github.com/gmkornilov/onlymove-generator/pkg/puzgen"
)

// PuzzleSource yields accepted puzzles. Each source is driven by exactly
// one goroutine.
type PuzzleSource interface {
	Next(ctx context.Context) (puzgen.Puzzle, error)
}

// NewRNG returns an independent random stream for one worker of one batch.
// A zero seed draws the key from the system entropy source.
func NewRNG(seed int64, batch uint64, worker int) *frand.RNG {
	key := make([]byte, 32)
	if seed == 0 {
		copy(key, frand.Bytes(32))
	} else {
		binary.LittleEndian.PutUint64(key[0:], uint64(seed))
		binary.LittleEndian.PutUint64(key[8:], batch)
		binary.LittleEndian.PutUint64(key[16:], uint64(worker))
	}
	return frand.NewCustom(key, 1024, 12)
}

// Run drives every source in its own goroutine and hands accepted puzzles
// to emit, first come first served, until count puzzles were emitted
// (zero means no limit), emit fails, a source fails, or ctx is done.
// emit is only ever called from the calling goroutine.
func Run(ctx context.Context, sources []PuzzleSource, count int, emit func(puzgen.Puzzle) error) error {
	if len(sources) == 0 {
		return errors.New("no puzzle sources")
	}
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	found := make(chan puzgen.Puzzle)
	g, gctx := errgroup.WithContext(runCtx)
	for _, src := range sources {
		src := src
		g.Go(func() error {
			for {
				p, err := src.Next(gctx)
				if err != nil {
					if gctx.Err() != nil {
						return nil
					}
					return err
				}
				select {
				case found <- p:
				case <-gctx.Done():
					return nil
				}
			}
		})
	}

	waited := make(chan error, 1)
	go func() {
		waited <- g.Wait()
		close(found)
	}()

	var emitErr error
	emitted := 0
	for p := range found {
		if emitErr = emit(p); emitErr != nil {
			break
		}
		emitted++
		if count > 0 && emitted >= count {
			break
		}
	}
	cancel()
	for range found {
	}

	if err := <-waited; err != nil {
		return err
	}
	if emitErr != nil {
		return emitErr
	}
	if count > 0 && emitted >= count {
		return nil
	}
	return ctx.Err()
}
