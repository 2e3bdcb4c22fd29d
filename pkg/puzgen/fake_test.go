package puzgen

import (
	"context"
	"testing"

	"github.com/notnil/chess"
	"github.com/stretchr/testify/require"

	"github.com/gmkornilov/onlymove-generator/internal/rules"
)

// tableProber serves DTZ values keyed by EPD and falls back to def.
type tableProber struct {
	wdl    map[string]Outcome
	dtz    map[string]int
	def    int
	err    error
	probes int
}

func (p *tableProber) ProbeWDL(_ context.Context, pos *chess.Position) (Outcome, error) {
	if p.err != nil {
		return Draw, p.err
	}
	return p.wdl[rules.EPD(pos)], nil
}

func (p *tableProber) ProbeDTZ(_ context.Context, pos *chess.Position) (int, error) {
	p.probes++
	if p.err != nil {
		return 0, p.err
	}
	if d, ok := p.dtz[rules.EPD(pos)]; ok {
		return d, nil
	}
	return p.def, nil
}

// funcProber answers through callbacks.
type funcProber struct {
	wdl func(pos *chess.Position) (Outcome, error)
	dtz func(pos *chess.Position) (int, error)
}

func (p funcProber) ProbeWDL(_ context.Context, pos *chess.Position) (Outcome, error) {
	return p.wdl(pos)
}

func (p funcProber) ProbeDTZ(_ context.Context, pos *chess.Position) (int, error) {
	return p.dtz(pos)
}

func fromFEN(t *testing.T, fen string) *chess.Position {
	t.Helper()
	opt, err := chess.FEN(fen)
	require.NoError(t, err)
	return chess.NewGame(opt).Position()
}

// replyTable maps successor EPDs to DTZ values given by UCI move.
func replyTable(t *testing.T, pos *chess.Position, byMove map[string]int) map[string]int {
	t.Helper()
	table := make(map[string]int, len(byMove))
	seen := 0
	for _, mv := range pos.ValidMoves() {
		if d, ok := byMove[mv.String()]; ok {
			table[rules.EPD(pos.Update(mv))] = d
			seen++
		}
	}
	require.Equal(t, len(byMove), seen, "every listed move must be legal")
	return table
}
