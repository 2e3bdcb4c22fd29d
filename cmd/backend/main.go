package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/gmkornilov/onlymove-generator/internal/api"
	"github.com/gmkornilov/onlymove-generator/internal/config"
	"github.com/gmkornilov/onlymove-generator/internal/dao"
	"github.com/gmkornilov/onlymove-generator/internal/db"
	"github.com/gmkornilov/onlymove-generator/internal/engine"
	"github.com/gmkornilov/onlymove-generator/internal/jobs"
	"github.com/gmkornilov/onlymove-generator/internal/tablebase"
)

func main() {
	cfg, err := config.InitConfig()
	if err != nil {
		panic(err)
	}
	if err := cfg.Validate(); err != nil {
		panic(err)
	}
	log := cfg.Logger(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var closers []func() error
	defer func() {
		if err := closeAll(closers); err != nil {
			log.Error().Err(err).Msg("shutdown")
		}
	}()

	var repo dao.PuzzleRepository
	if cfg.Database.Address != "" {
		client, err := db.NewDbClient(ctx, cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("mongo unavailable")
		}
		closers = append(closers, client.Close)
		repo = dao.NewPuzzleRepository(client)
		if n, err := repo.Count(ctx, 0); err == nil {
			log.Info().Int64("stored", n).Msg("puzzle storage ready")
		}
	}

	factory := &jobs.BatchJobFactory{Repo: repo, Logger: log}
	if cfg.Stockfish.Path != "" {
		searcher, err := engine.SetupEngine(cfg.Stockfish.Path, cfg.Stockfish.Args...)
		if err != nil {
			log.Fatal().Err(err).Msg("engine unavailable")
		}
		analyzer := engine.NewAnalyzer(searcher, cfg.Stockfish.Depth)
		closers = append(closers, analyzer.Close)
		factory.Rate = analyzer.Rate
	}

	prober := tablebase.NewClient(tablebase.Config{
		Endpoint:   cfg.Tablebase.Endpoint,
		Timeout:    cfg.Tablebase.Timeout,
		Attempts:   cfg.Tablebase.Attempts,
		RetryDelay: cfg.Tablebase.RetryDelay,
		CacheSize:  cfg.Tablebase.CacheSize,
		Logger:     log,
	})
	factory.Sources = jobs.GeneratorSources(prober, cfg.Generator.Workers, cfg.Generator.Seed, log)

	puzzleApi := api.NewPuzzleApi(repo, factory, factory.Sources.One, jobs.Request{
		NumPieces: cfg.Generator.NumPieces,
		MinDTZ:    cfg.Generator.MinDTZ,
	})

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log))
	puzzleApi.Register(router)

	srv := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", srv.Addr).Msg("listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("server stopped")
	}
}

func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()
		log.Info().
			Str("method", ctx.Request.Method).
			Str("path", ctx.Request.URL.Path).
			Int("status", ctx.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("request")
	}
}

func closeAll(closers []func() error) error {
	var result error
	for _, c := range closers {
		if err := c(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result
}
