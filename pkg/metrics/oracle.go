package metrics

import (
	"context"
	"time"

	"github.com/pashagolub/skillrank/pkg/tournament"
)

// TimedOracle wraps an oracle so every call is reported to m.
func TimedOracle[T any](m *Manager, oracle tournament.Oracle[T]) tournament.Oracle[T] {
	return tournament.OracleFunc[T](func(ctx context.Context, window []T) (float64, error) {
		start := time.Now()
		score, err := oracle.Score(ctx, window)
		m.ObserveOracle(time.Since(start), err)
		return score, err
	})
}
