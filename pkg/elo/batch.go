package elo

import (
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Batch recomputes the ratings of a whole population from one tally.
//
// result[i][j] is the net outcome between i and j (positive favours i) and
// gameCount[i][j] the number of games they played. The diagonal is ignored.
// Every new rating depends only on the input snapshot, so rows are evaluated
// concurrently.
func (c Calculator) Batch(ratings []float64, result, gameCount [][]int) ([]int, error) {
	if err := validateTally(ratings, result, gameCount); err != nil {
		return nil, err
	}

	n := len(ratings)
	updated := make([]int, n)
	k := float64(c.KFactor)

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range n {
		g.Go(func() error {
			delta := 0.0
			for j := range n {
				games := gameCount[i][j]
				if j == i || games <= 0 {
					continue
				}
				expect := float64(games) * c.expected(ratings[i], ratings[j])
				delta += (float64(result[i][j])+1.0)/2.0 - expect
			}
			updated[i] = int(math.RoundToEven(ratings[i] + k*delta))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return updated, nil
}

// validateTally checks shapes and the game count contract
func validateTally(ratings []float64, result, gameCount [][]int) error {
	n := len(ratings)
	if len(result) != n || len(gameCount) != n {
		return fmt.Errorf("%w: %d ratings, %d result rows, %d game count rows",
			ErrShapeMismatch, n, len(result), len(gameCount))
	}

	for i := range n {
		if len(result[i]) != n || len(gameCount[i]) != n {
			return fmt.Errorf("%w: row %d", ErrShapeMismatch, i)
		}
		for j := range n {
			if gameCount[i][j] < 0 {
				return fmt.Errorf("%w: [%d][%d]=%d", ErrNegativeGameCount, i, j, gameCount[i][j])
			}
		}
	}

	for i := range n {
		for j := i + 1; j < n; j++ {
			if gameCount[i][j] != gameCount[j][i] {
				return fmt.Errorf("%w: [%d][%d]=%d, [%d][%d]=%d",
					ErrAsymmetricGameCount, i, j, gameCount[i][j], j, i, gameCount[j][i])
			}
		}
	}

	return nil
}
