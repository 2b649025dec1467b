// Package tournament runs pairwise matches between candidates and feeds the
// outcomes into a skill.Engine.
//
// A candidate is a sequence of values of any type T, for example the rewards
// of a recorded trajectory. The Simulator samples equally long windows from
// two candidates, an Oracle scores each window, and the higher score wins.
package tournament

import "context"

// Oracle scores one window of a candidate. Scores of two windows are only
// ever compared with each other, so any consistent scale will do.
type Oracle[T any] interface {
	Score(ctx context.Context, window []T) (float64, error)
}

// OracleFunc adapts an ordinary function to the Oracle interface.
type OracleFunc[T any] func(ctx context.Context, window []T) (float64, error)

// Score calls f(ctx, window).
func (f OracleFunc[T]) Score(ctx context.Context, window []T) (float64, error) {
	return f(ctx, window)
}

// Number is the set of element types the reference oracles can add up.
type Number interface {
	~int | ~int32 | ~int64 | ~float32 | ~float64
}

// SumOracle scores a window by the sum of its elements, the undiscounted
// return of a reward trajectory.
func SumOracle[T Number]() Oracle[T] {
	return OracleFunc[T](func(_ context.Context, window []T) (float64, error) {
		var sum float64
		for _, v := range window {
			sum += float64(v)
		}
		return sum, nil
	})
}

// MeanOracle scores a window by the mean of its elements.
func MeanOracle[T Number]() Oracle[T] {
	sum := SumOracle[T]()
	return OracleFunc[T](func(ctx context.Context, window []T) (float64, error) {
		if len(window) == 0 {
			return 0, nil
		}
		total, err := sum.Score(ctx, window)
		if err != nil {
			return 0, err
		}
		return total / float64(len(window)), nil
	})
}
