package api

import (
	"context"
	"crypto/md5"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/gmkornilov/onlymove-generator/internal/dao"
	"github.com/gmkornilov/onlymove-generator/internal/jobs"
	"github.com/gmkornilov/onlymove-generator/pkg/puzgen"
)

const (
	generateTimeout = time.Minute
	maxBatch        = 1000
)

// GenerateFunc produces a single puzzle for a request synchronously.
type GenerateFunc func(ctx context.Context, req jobs.Request) (puzgen.Puzzle, error)

type PuzzleApi struct {
	PuzzleRepository dao.PuzzleRepository
	JobFactory       *jobs.BatchJobFactory
	Generate         GenerateFunc
	Defaults         jobs.Request
	activeJobs       map[string]jobs.Worker
	totalJobs        int
	mu               sync.RWMutex
}

func NewPuzzleApi(repo dao.PuzzleRepository, factory *jobs.BatchJobFactory, generate GenerateFunc, defaults jobs.Request) *PuzzleApi {
	return &PuzzleApi{
		PuzzleRepository: repo,
		JobFactory:       factory,
		Generate:         generate,
		Defaults:         defaults,
		activeJobs:       make(map[string]jobs.Worker),
	}
}

func (t *PuzzleApi) Register(r gin.IRouter) {
	r.GET("/puzzle", t.Puzzle)
	r.GET("/puzzles/random", t.RandomPuzzle)
	r.POST("/jobs/:count", t.StartJob)
	r.GET("/jobs/:job_id", t.GetJobStatus)
}

func queryInt(ctx *gin.Context, key string, def int) (int, error) {
	raw, ok := ctx.GetQuery(key)
	if !ok {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s should be an integer", key)
	}
	return v, nil
}

func (t *PuzzleApi) request(ctx *gin.Context) (jobs.Request, error) {
	req := t.Defaults
	var err error
	if req.NumPieces, err = queryInt(ctx, "pieces", req.NumPieces); err != nil {
		return req, err
	}
	if req.MinDTZ, err = queryInt(ctx, "min_dtz", req.MinDTZ); err != nil {
		return req, err
	}
	if req.NumPieces < puzgen.MinPieces || req.NumPieces > puzgen.MaxPieces {
		return req, fmt.Errorf("pieces should be between %d and %d", puzgen.MinPieces, puzgen.MaxPieces)
	}
	if req.MinDTZ < 0 {
		return req, fmt.Errorf("min_dtz should not be negative")
	}
	return req, nil
}

func (t *PuzzleApi) Puzzle(ctx *gin.Context) {
	req, err := t.request(ctx)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	genCtx, cancel := context.WithTimeout(ctx.Request.Context(), generateTimeout)
	defer cancel()

	puzzle, err := t.Generate(genCtx, req)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{
			"error": err.Error(),
		})
		return
	}
	ctx.JSON(http.StatusOK, puzzle)
}

func (t *PuzzleApi) RandomPuzzle(ctx *gin.Context) {
	if t.PuzzleRepository == nil {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": "puzzle storage is not configured"})
		return
	}
	rating, err := queryInt(ctx, "rating", 1500)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	pieces, err := queryInt(ctx, "pieces", 0)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	puzzle, err := t.PuzzleRepository.GetRandomPuzzle(ctx.Request.Context(), rating, pieces)
	if errors.Is(err, dao.ErrNoPuzzle) {
		ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{
			"error": err.Error(),
		})
		return
	}
	ctx.JSON(http.StatusOK, puzzle)
}

func (t *PuzzleApi) StartJob(ctx *gin.Context) {
	req, err := t.request(ctx)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Count, err = strconv.Atoi(ctx.Param("count")); err != nil || req.Count <= 0 || req.Count > maxBatch {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("count should be an integer between 1 and %d", maxBatch),
		})
		return
	}

	worker := t.JobFactory.CreateBatchJob(req)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.totalJobs++
	byteValue := []byte(strconv.Itoa(t.totalJobs))
	id := fmt.Sprintf("%x", md5.Sum(byteValue))
	t.activeJobs[id] = worker
	worker.StartWork()
	ctx.JSON(http.StatusOK, gin.H{
		"job_id": id,
	})
}

func (t *PuzzleApi) GetJobStatus(ctx *gin.Context) {
	id := ctx.Param("job_id")
	t.mu.Lock()
	defer t.mu.Unlock()
	worker, ok := t.activeJobs[id]
	if !ok {
		ctx.AbortWithStatus(http.StatusNotFound)
		return
	}
	done := worker.Done()
	if !done {
		ctx.JSON(http.StatusOK, gin.H{
			"done":     done,
			"progress": worker.Progress(),
		})
		return
	}

	delete(t.activeJobs, id)
	if worker.Error() != nil {
		ctx.JSON(http.StatusOK, gin.H{
			"done":  done,
			"error": worker.Error().Error(),
		})
	} else {
		ctx.JSON(http.StatusOK, gin.H{
			"done":   done,
			"result": worker.Result(),
		})
	}
}
