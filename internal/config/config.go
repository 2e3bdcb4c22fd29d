package config

import (
	"io"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Configuration struct {
	Server struct {
		Host string `envconfig:"SERVER_HOST" default:"0.0.0.0"`
		Port string `envconfig:"SERVER_PORT" default:"8080"`
	}
	Database struct {
		Address      string `envconfig:"MONGO_ADDRESS"`
		DatabaseName string `envconfig:"MONGO_DATABASE" default:"onlymove"`
		Collection   string `envconfig:"MONGO_COLLECTION" default:"puzzles"`
	}
	Stockfish struct {
		Path  string   `envconfig:"STOCKFISH_PATH"`
		Args  []string `envconfig:"STOCKFISH_ARGS"`
		Depth int      `envconfig:"STOCKFISH_DEPTH" default:"12"`
	}
	Tablebase struct {
		Endpoint   string        `envconfig:"TABLEBASE_ENDPOINT" default:"https://tablebase.lichess.ovh/standard"`
		Timeout    time.Duration `envconfig:"TABLEBASE_TIMEOUT" default:"10s"`
		Attempts   uint          `envconfig:"TABLEBASE_ATTEMPTS" default:"5"`
		RetryDelay time.Duration `envconfig:"TABLEBASE_RETRY_DELAY" default:"1s"`
		CacheSize  int           `envconfig:"TABLEBASE_CACHE_SIZE" default:"65536"`
	}
	Generator struct {
		NumPieces int   `envconfig:"NUM_PIECES" default:"6"`
		MinDTZ    int   `envconfig:"MIN_DTZ" default:"10"`
		Workers   int   `envconfig:"WORKERS" default:"1"`
		Seed      int64 `envconfig:"SEED"`
		Eval      bool  `envconfig:"EVAL" default:"true"`
	}
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

func InitConfig() (*Configuration, error) {
	cfg := &Configuration{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Configuration) Validate() error {
	g := c.Generator
	if g.NumPieces < 3 || g.NumPieces > 7 {
		return errors.Wrapf(ErrInvalidConfig, "number of pieces must be between 3 and 7, got %d", g.NumPieces)
	}
	if g.MinDTZ < 0 {
		return errors.Wrapf(ErrInvalidConfig, "minimum dtz must not be negative, got %d", g.MinDTZ)
	}
	if g.Workers < 1 {
		return errors.Wrapf(ErrInvalidConfig, "need at least one worker, got %d", g.Workers)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrapf(ErrInvalidConfig, "log level %q", c.LogLevel)
	}
	if c.Stockfish.Path != "" && c.Stockfish.Depth < 1 {
		return errors.Wrapf(ErrInvalidConfig, "stockfish depth must be positive, got %d", c.Stockfish.Depth)
	}
	return nil
}

// Logger returns a console logger writing to w at the configured level.
func (c *Configuration) Logger(w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}).
		Level(level).
		With().Timestamp().Logger()
}
