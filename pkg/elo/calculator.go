// Package elo provides classical Elo rating calculations for pairwise games.
// It implements the logistic expected-score formula with a configurable
// K-factor and spread, both for a single pair and for a whole population
// recomputed from a tally of results.
package elo

import (
	"errors"
	"math"
)

// Error types for validation
var (
	ErrInvalidOutcome      = errors.New("outcome must be one of win, draw, loss")
	ErrInvalidKFactor      = errors.New("k-factor must be positive")
	ErrInvalidBeta         = errors.New("beta must be positive")
	ErrShapeMismatch       = errors.New("ratings, result and game count dimensions differ")
	ErrNegativeGameCount   = errors.New("game count must not be negative")
	ErrAsymmetricGameCount = errors.New("game count matrix must be symmetric")
)

// Default calculator parameters
const (
	DefaultKFactor = 32
	DefaultBeta    = 200
)

// Config holds the parameters of the Elo calculator
type Config struct {
	KFactor int // Maximum rating change per game
	Beta    int // Half of the rating gap that gives 10:1 odds
}

// DefaultConfig returns K=32 and beta=200
func DefaultConfig() Config {
	return Config{
		KFactor: DefaultKFactor,
		Beta:    DefaultBeta,
	}
}

// Calculator computes Elo updates. It holds no state besides its parameters,
// so a value may be shared freely.
type Calculator struct {
	KFactor int
	Beta    int
}

// NewCalculator creates a calculator with the specified configuration
func NewCalculator(config Config) (Calculator, error) {
	if config.KFactor <= 0 {
		return Calculator{}, ErrInvalidKFactor
	}
	if config.Beta <= 0 {
		return Calculator{}, ErrInvalidBeta
	}
	return Calculator{KFactor: config.KFactor, Beta: config.Beta}, nil
}

// spread is the denominator of the rating gap in the logistic curve
func (c Calculator) spread() float64 {
	return 2.0 * float64(c.Beta)
}

// expected computes the expected score of a player rated a against b
func (c Calculator) expected(a, b float64) float64 {
	return 1.0 / (1.0 + math.Pow(10.0, (b-a)/c.spread()))
}

// ExpectedScore returns the probability-like expected score of A against B.
func (c Calculator) ExpectedScore(ratingA, ratingB int) float64 {
	return c.expected(float64(ratingA), float64(ratingB))
}

// Pairwise calculates new ratings after one game between A and B.
// Both expectations are evaluated separately and results are rounded half
// to even, so tie cases are reproducible.
func (c Calculator) Pairwise(ratingA, ratingB int, outcome Outcome) (int, int, error) {
	scoreA, err := outcome.Score()
	if err != nil {
		return 0, 0, err
	}

	a, b := float64(ratingA), float64(ratingB)
	expectA := c.expected(a, b)
	expectB := c.expected(b, a)

	k := float64(c.KFactor)
	newA := a + k*(scoreA-expectA)
	newB := b + k*((1.0-scoreA)-expectB)

	return int(math.RoundToEven(newA)), int(math.RoundToEven(newB)), nil
}
