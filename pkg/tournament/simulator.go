package tournament

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/pashagolub/skillrank/pkg/elo"
)

// Error types for match simulation
var (
	ErrInsufficientLength     = errors.New("candidate is shorter than the minimum snippet length")
	ErrOracleFailure          = errors.New("oracle failed to score a snippet")
	ErrInvalidSimulatorConfig = errors.New("invalid simulator configuration")
	ErrInvalidSchedule        = errors.New("rounds, matches and trials must be positive")
	ErrPopulationTooSmall     = errors.New("population needs at least two players")
)

// Default snippet sampling parameters
const (
	DefaultMinSnippetLength = 50
	DefaultMaxSnippetLength = 100
	DefaultStride           = 2
	DefaultSeed             = 42
)

// SimulatorConfig controls how snippets are cut from candidates.
type SimulatorConfig struct {
	MinSnippetLength int    // Shortest window, inclusive
	MaxSnippetLength int    // Longest window, inclusive
	Stride           int    // Take every Stride-th element of a window
	Seed             uint64 // Seed of the sampling source
}

// DefaultSimulatorConfig returns windows of 50 to 100 elements sampled every
// second element with seed 42.
func DefaultSimulatorConfig() SimulatorConfig {
	return SimulatorConfig{
		MinSnippetLength: DefaultMinSnippetLength,
		MaxSnippetLength: DefaultMaxSnippetLength,
		Stride:           DefaultStride,
		Seed:             DefaultSeed,
	}
}

// Validate checks that the configuration describes a non-empty window range
func (c SimulatorConfig) Validate() error {
	if c.MinSnippetLength <= 0 {
		return fmt.Errorf("%w: min snippet length must be positive, got %d",
			ErrInvalidSimulatorConfig, c.MinSnippetLength)
	}
	if c.MaxSnippetLength < c.MinSnippetLength {
		return fmt.Errorf("%w: max snippet length %d is below min %d",
			ErrInvalidSimulatorConfig, c.MaxSnippetLength, c.MinSnippetLength)
	}
	if c.Stride <= 0 {
		return fmt.Errorf("%w: stride must be positive, got %d", ErrInvalidSimulatorConfig, c.Stride)
	}
	return nil
}

// Simulator plays matches between two candidates. Its random source is
// seeded once, so a fixed sequence of calls always produces the same
// outcomes. A Simulator is not safe for concurrent use.
type Simulator[T any] struct {
	cfg SimulatorConfig
	rng *rand.Rand
}

// NewSimulator creates a simulator with the specified configuration
func NewSimulator[T any](cfg SimulatorConfig) (*Simulator[T], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Simulator[T]{
		cfg: cfg,
		rng: rand.New(rand.NewPCG(cfg.Seed, cfg.Seed)),
	}, nil
}

// Config returns the simulator configuration.
func (s *Simulator[T]) Config() SimulatorConfig {
	return s.cfg
}

// SimulatePair plays n trials between candidates a and b and returns the
// outcomes from a's point of view. Every trial draws a window length from
// the configured range, clipped to the shorter candidate, and independent
// start offsets in both candidates. The oracle scores both windows and the
// strictly higher score wins.
func (s *Simulator[T]) SimulatePair(ctx context.Context, a, b []T, oracle Oracle[T], n int) ([]elo.Outcome, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: got %d trials", ErrInvalidSchedule, n)
	}
	if err := s.checkLength(len(a), "a"); err != nil {
		return nil, err
	}
	if err := s.checkLength(len(b), "b"); err != nil {
		return nil, err
	}

	outcomes := make([]elo.Outcome, 0, n)
	for trial := range n {
		length := s.length(min(len(a), len(b)))
		windowA := s.window(a, length)
		windowB := s.window(b, length)

		scoreA, err := oracle.Score(ctx, windowA)
		if err != nil {
			return nil, fmt.Errorf("%w: trial %d, candidate a: %w", ErrOracleFailure, trial, err)
		}
		scoreB, err := oracle.Score(ctx, windowB)
		if err != nil {
			return nil, fmt.Errorf("%w: trial %d, candidate b: %w", ErrOracleFailure, trial, err)
		}
		if !finite(scoreA) || !finite(scoreB) {
			return nil, fmt.Errorf("%w: trial %d, scores %v and %v are not comparable",
				ErrOracleFailure, trial, scoreA, scoreB)
		}

		switch {
		case scoreA > scoreB:
			outcomes = append(outcomes, elo.Win)
		case scoreA == scoreB:
			outcomes = append(outcomes, elo.Draw)
		default:
			outcomes = append(outcomes, elo.Loss)
		}
	}

	return outcomes, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func (s *Simulator[T]) checkLength(n int, name string) error {
	if n == 0 || n < s.cfg.MinSnippetLength {
		return fmt.Errorf("%w: candidate %s has %d elements, need %d",
			ErrInsufficientLength, name, n, s.cfg.MinSnippetLength)
	}
	return nil
}

// length draws a window length in [min, max] and clips it to limit
func (s *Simulator[T]) length(limit int) int {
	span := s.cfg.MaxSnippetLength - s.cfg.MinSnippetLength + 1
	return min(s.cfg.MinSnippetLength+s.rng.IntN(span), limit)
}

// window cuts a strided window of the given length at a random offset
func (s *Simulator[T]) window(candidate []T, length int) []T {
	offset := s.rng.IntN(len(candidate) - length + 1)
	snippet := candidate[offset : offset+length]

	out := make([]T, 0, (length+s.cfg.Stride-1)/s.cfg.Stride)
	for i := 0; i < len(snippet); i += s.cfg.Stride {
		out = append(out, snippet[i])
	}
	return out
}
