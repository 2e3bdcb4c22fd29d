package tablebase

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/notnil/chess"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gmkornilov/onlymove-generator/pkg/puzgen"
)

const queenWins = "8/8/8/8/8/2k5/8/KQ6 w - - 0 1"

const queenWinsResponse = `{
  "checkmate": false,
  "stalemate": false,
  "category": "win",
  "dtz": 10,
  "precise_dtz": 10,
  "moves": [
    {"uci": "b1b4", "san": "Qb4+", "zeroing": false, "category": "loss", "dtz": -9},
    {"uci": "b1e4", "san": "Qe4", "zeroing": false, "category": "loss", "dtz": -11},
    {"uci": "b1b2", "san": "Qb2+", "zeroing": false, "category": "draw", "dtz": null}
  ]
}`

func fromFEN(t *testing.T, fen string) *chess.Position {
	t.Helper()
	opt, err := chess.FEN(fen)
	require.NoError(t, err)
	return chess.NewGame(opt).Position()
}

func play(t *testing.T, pos *chess.Position, uci string) *chess.Position {
	t.Helper()
	mv, err := chess.UCINotation{}.Decode(pos, uci)
	require.NoError(t, err)
	return pos.Update(mv)
}

func newTestClient(url string) *Client {
	return NewClient(Config{
		Endpoint:   url,
		Attempts:   3,
		RetryDelay: time.Millisecond,
		Logger:     zerolog.Nop(),
	})
}

func TestClientProbe(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		assert.Equal(t, queenWins, r.URL.Query().Get("fen"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(queenWinsResponse))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	pos := fromFEN(t, queenWins)
	ctx := context.Background()

	wdl, err := c.ProbeWDL(ctx, pos)
	require.NoError(t, err)
	assert.Equal(t, puzgen.Win, wdl)

	dtz, err := c.ProbeDTZ(ctx, pos)
	require.NoError(t, err)
	assert.Equal(t, 10, dtz)

	dtz, err = c.ProbeDTZ(ctx, play(t, pos, "b1b4"))
	require.NoError(t, err)
	assert.Equal(t, -9, dtz)

	wdl, err = c.ProbeWDL(ctx, play(t, pos, "b1e4"))
	require.NoError(t, err)
	assert.Equal(t, puzgen.Loss, wdl)

	dtz, err = c.ProbeDTZ(ctx, play(t, pos, "b1b2"))
	require.NoError(t, err)
	assert.Zero(t, dtz)

	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	assert.Equal(t, 4, c.cache.len())
}

func TestClientRetriesRateLimit(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(queenWinsResponse))
	}))
	defer srv.Close()

	dtz, err := newTestClient(srv.URL).ProbeDTZ(context.Background(), fromFEN(t, queenWins))
	require.NoError(t, err)
	assert.Equal(t, 10, dtz)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestClientDoesNotRetryBadRequest(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).ProbeWDL(context.Background(), fromFEN(t, queenWins))
	require.Error(t, err)

	var se statusError
	assert.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadRequest, se.code)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestClientDoesNotRetryMalformedBody(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = w.Write([]byte(`<html>maintenance</html>`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).ProbeWDL(context.Background(), fromFEN(t, queenWins))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestClientGivesUpOnServerErrors(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).ProbeWDL(context.Background(), fromFEN(t, queenWins))
	require.Error(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestClientMissingTable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"category": "unknown", "dtz": null, "moves": []}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).ProbeDTZ(context.Background(), fromFEN(t, queenWins))
	assert.True(t, errors.Is(err, ErrMissingTable), "got %v", err)
}

func TestToEntry(t *testing.T) {
	dtz := func(n int) *int { return &n }

	tests := []struct {
		category string
		dtz      *int
		want     entry
		missing  bool
	}{
		{category: "win", dtz: dtz(15), want: entry{outcome: puzgen.Win, dtz: 15}},
		{category: "loss", dtz: dtz(0), want: entry{outcome: puzgen.Loss}},
		{category: "draw", want: entry{outcome: puzgen.Draw}},
		{category: "cursed-win", dtz: dtz(101), want: entry{outcome: puzgen.Draw, dtz: 101}},
		{category: "blessed-loss", dtz: dtz(-104), want: entry{outcome: puzgen.Draw, dtz: -104}},
		{category: "win", missing: true},
		{category: "unknown", missing: true},
		{category: "", missing: true},
	}
	for _, tt := range tests {
		got, err := toEntry(tt.category, tt.dtz)
		if tt.missing {
			assert.True(t, errors.Is(err, ErrMissingTable), tt.category)
			continue
		}
		require.NoError(t, err, tt.category)
		assert.Equal(t, tt.want, got, tt.category)
	}
}

func TestCacheLimit(t *testing.T) {
	c := newCache(2)
	c.put("a", entry{dtz: 1})
	c.put("b", entry{dtz: 2})
	c.put("c", entry{dtz: 3})

	_, ok := c.get("a")
	assert.False(t, ok)
	e, ok := c.get("c")
	assert.True(t, ok)
	assert.Equal(t, 3, e.dtz)
	assert.Equal(t, 1, c.len())
}
