package tablebase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/notnil/chess"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/gmkornilov/onlymove-generator/internal/rules"
	"github.com/gmkornilov/onlymove-generator/pkg/puzgen"
)

const DefaultEndpoint = "https://tablebase.lichess.ovh/standard"

var ErrMissingTable = errors.New("position not covered by the tablebase")

type Config struct {
	Endpoint   string
	Timeout    time.Duration
	Attempts   uint
	RetryDelay time.Duration
	CacheSize  int
	Logger     zerolog.Logger
}

// Client probes a Lichess-compatible Syzygy tablebase service. It is safe
// for concurrent use.
type Client struct {
	endpoint string
	http     *http.Client
	attempts uint
	delay    time.Duration
	log      zerolog.Logger
	cache    *cache
}

func NewClient(cfg Config) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Attempts == 0 {
		cfg.Attempts = 5
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.CacheSize == 0 {
		cfg.CacheSize = 1 << 16
	}
	return &Client{
		endpoint: cfg.Endpoint,
		http:     &http.Client{Timeout: cfg.Timeout},
		attempts: cfg.Attempts,
		delay:    cfg.RetryDelay,
		log:      cfg.Logger,
		cache:    newCache(cfg.CacheSize),
	}
}

func (c *Client) ProbeWDL(ctx context.Context, pos *chess.Position) (puzgen.Outcome, error) {
	e, err := c.lookup(ctx, pos)
	return e.outcome, err
}

func (c *Client) ProbeDTZ(ctx context.Context, pos *chess.Position) (int, error) {
	e, err := c.lookup(ctx, pos)
	return e.dtz, err
}

func (c *Client) lookup(ctx context.Context, pos *chess.Position) (entry, error) {
	key := rules.EPD(pos)
	if e, ok := c.cache.get(key); ok {
		return e, nil
	}

	resp, err := c.fetch(ctx, pos.String())
	if err != nil {
		return entry{}, err
	}
	e, err := resp.entry()
	if err != nil {
		return entry{}, errors.Wrapf(err, "probe %s", key)
	}
	c.cache.put(key, e)
	c.storeReplies(pos, resp.Moves)
	return e, nil
}

// storeReplies caches the successor entries the service sends along with
// every probe, so the replies of a candidate cost no further requests.
func (c *Client) storeReplies(pos *chess.Position, moves []probeMove) {
	for _, m := range moves {
		mv, err := chess.UCINotation{}.Decode(pos, m.UCI)
		if err != nil {
			c.log.Warn().Err(err).Str("uci", m.UCI).Msg("unknown reply from tablebase")
			continue
		}
		e, err := m.entry()
		if err != nil {
			continue
		}
		c.cache.put(rules.EPD(rules.Apply(pos, mv)), e)
	}
}

type statusError struct {
	code int
}

func (e statusError) Error() string {
	return fmt.Sprintf("tablebase responded %d %s", e.code, http.StatusText(e.code))
}

func retryable(err error) bool {
	var se statusError
	if errors.As(err, &se) {
		return se.code == http.StatusTooManyRequests || se.code >= 500
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func (c *Client) fetch(ctx context.Context, fen string) (*probeResponse, error) {
	u := c.endpoint + "?" + url.Values{"fen": {fen}}.Encode()

	var out probeResponse
	err := retry.Do(
		func() error {
			out = probeResponse{}
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			resp, err := c.http.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return statusError{code: resp.StatusCode}
			}
			if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
				return retry.Unrecoverable(errors.Wrap(err, "decode response"))
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.delay),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryable),
		retry.DelayType(func(n uint, err error, config *retry.Config) time.Duration {
			c.log.Warn().Err(err).Uint("n", n).Str("fen", fen).Msg("tablebase probe failed, retrying")
			return retry.BackOffDelay(n, err, config)
		}),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch %s", fen)
	}
	return &out, nil
}
