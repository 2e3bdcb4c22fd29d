package jobs

import (
	"context"
	"testing"

	"github.com/notnil/chess"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gmkornilov/onlymove-generator/pkg/puzgen"
)

type unreachableProber struct{}

var errUnreachable = errors.New("tablebase unreachable")

func (unreachableProber) ProbeWDL(context.Context, *chess.Position) (puzgen.Outcome, error) {
	return puzgen.Draw, errUnreachable
}

func (unreachableProber) ProbeDTZ(context.Context, *chess.Position) (int, error) {
	return 0, errUnreachable
}

func TestGeneratorSources(t *testing.T) {
	build := GeneratorSources(unreachableProber{}, 3, 7, zerolog.Nop())

	sources, err := build(Request{NumPieces: 5, MinDTZ: 10})
	require.NoError(t, err)
	assert.Len(t, sources, 3)

	_, err = build(Request{NumPieces: 8})
	assert.True(t, errors.Is(err, puzgen.ErrInvalidPieceCount), "got %v", err)
}

type drawProber struct{}

func (drawProber) ProbeWDL(context.Context, *chess.Position) (puzgen.Outcome, error) {
	return puzgen.Draw, nil
}

func (drawProber) ProbeDTZ(context.Context, *chess.Position) (int, error) {
	return 0, nil
}

// firstCandidates returns the first sampled position of each worker.
func firstCandidates(t *testing.T, build SourceBuilder) []string {
	t.Helper()
	sources, err := build(Request{NumPieces: 6, MinDTZ: 10})
	require.NoError(t, err)
	fens := make([]string, 0, len(sources))
	for _, src := range sources {
		pos, _, _, err := src.(*puzgen.Generator).Candidate(context.Background())
		require.NoError(t, err)
		fens = append(fens, pos.String())
	}
	return fens
}

func TestGeneratorSourcesSeeding(t *testing.T) {
	build := GeneratorSources(drawProber{}, 2, 42, zerolog.Nop())
	first := firstCandidates(t, build)
	second := firstCandidates(t, build)
	assert.NotEqual(t, first, second, "a fixed seed must not replay earlier requests")

	replay := GeneratorSources(drawProber{}, 2, 42, zerolog.Nop())
	assert.Equal(t, first, firstCandidates(t, replay))
	assert.Equal(t, second, firstCandidates(t, replay))
}

func TestSourceBuilderOne(t *testing.T) {
	p, err := SourceBuilder(twoSources).One(context.Background(), Request{NumPieces: 5})
	require.NoError(t, err)
	assert.NotEmpty(t, p.EPD)

	_, err = GeneratorSources(unreachableProber{}, 2, 7, zerolog.Nop()).One(context.Background(), Request{NumPieces: 4})
	assert.True(t, errors.Is(err, errUnreachable), "got %v", err)
}
