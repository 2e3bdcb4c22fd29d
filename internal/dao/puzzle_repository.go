package dao

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/gmkornilov/onlymove-generator/internal/db"
	"github.com/gmkornilov/onlymove-generator/pkg/puzgen"
)

const queryTimeout = time.Second

var ErrNoPuzzle = errors.New("no stored puzzle matches")

type PuzzleRepository interface {
	// GetRandomPuzzle samples a puzzle rated within 100 points of rating.
	// pieces filters on the piece count when positive.
	GetRandomPuzzle(ctx context.Context, rating int, pieces int) (puzgen.Puzzle, error)

	InsertPuzzle(ctx context.Context, puzzle puzgen.Puzzle) error

	InsertAllPuzzles(ctx context.Context, puzzles []puzgen.Puzzle) error

	Count(ctx context.Context, pieces int) (int64, error)
}

type puzzleRepository struct {
	collection *mongo.Collection
}

func NewPuzzleRepository(dbClient *db.PuzzleDbClient) PuzzleRepository {
	return &puzzleRepository{dbClient.PuzzleCollection}
}

func piecesFilter(pieces int) bson.D {
	if pieces <= 0 {
		return bson.D{}
	}
	return bson.D{{Key: "pieces", Value: pieces}}
}

func (r *puzzleRepository) GetRandomPuzzle(ctx context.Context, rating int, pieces int) (puzgen.Puzzle, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	lo, hi := puzgen.RatingBounds(rating)
	match := append(piecesFilter(pieces), bson.E{
		Key: "rating", Value: bson.D{{Key: "$gte", Value: lo}, {Key: "$lte", Value: hi}},
	})
	matchStage := bson.D{{Key: "$match", Value: match}}
	sampleStage := bson.D{{Key: "$sample", Value: bson.D{{Key: "size", Value: 1}}}}

	cursor, err := r.collection.Aggregate(ctx, mongo.Pipeline{matchStage, sampleStage})
	if err != nil {
		return puzgen.Puzzle{}, errors.Wrap(err, "sample puzzle")
	}

	var loaded []puzgen.Puzzle
	if err = cursor.All(ctx, &loaded); err != nil {
		return puzgen.Puzzle{}, errors.Wrap(err, "decode puzzle")
	}
	if len(loaded) != 1 {
		return puzgen.Puzzle{}, errors.Wrapf(ErrNoPuzzle, "rating %d pieces %d", rating, pieces)
	}
	return loaded[0], nil
}

func (r *puzzleRepository) InsertPuzzle(ctx context.Context, puzzle puzgen.Puzzle) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.collection.InsertOne(ctx, puzzle)
	return errors.Wrap(err, "insert puzzle")
}

func (r *puzzleRepository) InsertAllPuzzles(ctx context.Context, puzzles []puzgen.Puzzle) error {
	if len(puzzles) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	docs := make([]interface{}, 0, len(puzzles))
	for _, p := range puzzles {
		docs = append(docs, p)
	}
	_, err := r.collection.InsertMany(ctx, docs)
	return errors.Wrap(err, "insert puzzles")
}

func (r *puzzleRepository) Count(ctx context.Context, pieces int) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	n, err := r.collection.CountDocuments(ctx, piecesFilter(pieces))
	return n, errors.Wrap(err, "count puzzles")
}
