package skill

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/pashagolub/skillrank/pkg/elo"
	"github.com/pashagolub/skillrank/pkg/logger"
)

// Error types for validation
var (
	ErrInvalidOutcomeToken = errors.New("invalid outcome token")
	ErrInvalidConfig       = errors.New("invalid skill configuration")
	ErrInvalidRating       = errors.New("rating value is invalid")
)

// Default Bayesian parameters
const (
	DefaultMu              = 25.0
	DefaultSigma           = DefaultMu / 3
	DefaultBeta            = DefaultSigma / 2
	DefaultTau             = DefaultSigma / 100
	DefaultDrawProbability = 0.10
	DefaultEloInit         = 1200
	DefaultSigmaFloor      = 1e-6
)

// Config holds the parameters of the rating engine. They are fixed once the
// engine is built.
type Config struct {
	Mu              float64 // Initial belief mean
	Sigma           float64 // Initial belief standard deviation
	Beta            float64 // Performance variance (standard deviation of a single game)
	Tau             float64 // Dynamics noise added before every update
	DrawProbability float64 // Probability of a draw between equal players, in (0, 1)
	EloInit         int     // Initial Elo score
	SigmaFloor      float64 // Lower bound applied when sigma collapses
}

// DefaultConfig returns the standard TrueSkill parameters and an Elo baseline of 1200
func DefaultConfig() Config {
	return Config{
		Mu:              DefaultMu,
		Sigma:           DefaultSigma,
		Beta:            DefaultBeta,
		Tau:             DefaultTau,
		DrawProbability: DefaultDrawProbability,
		EloInit:         DefaultEloInit,
		SigmaFloor:      DefaultSigmaFloor,
	}
}

// Validate checks that the configuration is usable
func (c Config) Validate() error {
	finite := func(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

	switch {
	case !finite(c.Mu):
		return fmt.Errorf("%w: mu must be finite", ErrInvalidConfig)
	case !finite(c.Sigma) || c.Sigma <= 0:
		return fmt.Errorf("%w: sigma must be positive, got %v", ErrInvalidConfig, c.Sigma)
	case !finite(c.Beta) || c.Beta <= 0:
		return fmt.Errorf("%w: beta must be positive, got %v", ErrInvalidConfig, c.Beta)
	case !finite(c.Tau) || c.Tau < 0:
		return fmt.Errorf("%w: tau must not be negative, got %v", ErrInvalidConfig, c.Tau)
	case !(c.DrawProbability > 0 && c.DrawProbability < 1):
		return fmt.Errorf("%w: draw probability must be in (0, 1), got %v", ErrInvalidConfig, c.DrawProbability)
	case !(c.SigmaFloor > 0) || c.SigmaFloor >= c.Sigma:
		return fmt.Errorf("%w: sigma floor must be in (0, sigma), got %v", ErrInvalidConfig, c.SigmaFloor)
	}
	return nil
}

// ClampObserver is notified every time a collapsed sigma is clamped to the floor.
type ClampObserver interface {
	ObserveSigmaClamp(before float64)
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithCalculator replaces the default Elo calculator. NewEngine rejects a
// calculator with a non-positive K-factor or beta.
func WithCalculator(calc elo.Calculator) Option {
	return func(e *Engine) {
		e.calc = calc
	}
}

// WithLogger sets the logger used to report numeric degeneracies.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithClampObserver registers an observer for sigma clamps.
func WithClampObserver(o ClampObserver) Option {
	return func(e *Engine) {
		if o != nil {
			e.clamps = append(e.clamps, o)
		}
	}
}

// Engine updates Bayesian beliefs and Elo scores in lockstep.
type Engine struct {
	cfg    Config
	margin float64 // Draw margin in performance units
	calc   elo.Calculator
	log    logger.Logger
	clamps []ClampObserver
}

// NewEngine creates a rating engine with the specified configuration
func NewEngine(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	calc, err := elo.NewCalculator(elo.DefaultConfig())
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:    cfg,
		margin: drawMargin(cfg.DrawProbability, cfg.Beta, 2),
		calc:   calc,
		log:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if _, err := elo.NewCalculator(elo.Config{KFactor: e.calc.KFactor, Beta: e.calc.Beta}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return e, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Calculator returns the Elo calculator driven by the engine.
func (e *Engine) Calculator() elo.Calculator {
	return e.calc
}

// CreateRating returns a Rating with engine defaults for every field not
// overridden by an option.
func (e *Engine) CreateRating(opts ...RatingOption) (Rating, error) {
	r := Rating{Mu: e.cfg.Mu, Sigma: e.cfg.Sigma, Elo: e.cfg.EloInit}
	for _, opt := range opts {
		opt(&r)
	}
	if err := r.validate(); err != nil {
		return Rating{}, err
	}
	return r, nil
}

// Expose returns the conservative skill estimate of r.
func (e *Engine) Expose(r Rating) float64 {
	return r.Exposure()
}

// Quality returns the probability of a draw between a and b, a measure of how
// balanced the pairing is.
func (e *Engine) Quality(a, b Rating) float64 {
	beta2 := 2 * e.cfg.Beta * e.cfg.Beta
	c2 := beta2 + a.Sigma*a.Sigma + b.Sigma*b.Sigma
	diff := a.Mu - b.Mu
	return math.Sqrt(beta2/c2) * math.Exp(-diff*diff/(2*c2))
}

// RateOneVsOne applies outcomes in order and returns both updated Ratings.
// Every game sees the Ratings produced by the previous one. With no outcomes
// a single win of a over b is applied.
func (e *Engine) RateOneVsOne(a, b Rating, outcomes []elo.Outcome) (Rating, Rating, error) {
	if err := e.validate(a, b, outcomes); err != nil {
		return Rating{}, Rating{}, err
	}

	if len(outcomes) == 0 {
		return e.rate(a, b, false)
	}

	var err error
	for _, o := range outcomes {
		switch o {
		case elo.Win:
			a, b, err = e.rate(a, b, false)
		case elo.Draw:
			a, b, err = e.rate(a, b, true)
		case elo.Loss:
			b, a, err = e.rate(b, a, false)
		}
		if err != nil {
			return Rating{}, Rating{}, err
		}
	}

	return a, b, nil
}

// RateOneVsOneTokens parses tokens such as "wins" or "draw" and applies them
// with RateOneVsOne. Nothing is applied if any token is unknown.
func (e *Engine) RateOneVsOneTokens(a, b Rating, tokens []string) (Rating, Rating, error) {
	outcomes, err := elo.ParseOutcomes(tokens)
	if err != nil {
		return Rating{}, Rating{}, fmt.Errorf("%w: %w", ErrInvalidOutcomeToken, err)
	}
	return e.RateOneVsOne(a, b, outcomes)
}

// RateOneVsMany rates a against a fixed opponent that does not adapt: every
// outcome is scored against the original opponent snapshot and only a
// carries its updates forward.
func (e *Engine) RateOneVsMany(a, fixed Rating, outcomes []elo.Outcome) (Rating, error) {
	if err := e.validate(a, fixed, outcomes); err != nil {
		return Rating{}, err
	}

	var err error
	for _, o := range outcomes {
		switch o {
		case elo.Win:
			a, _, err = e.rate(a, fixed, false)
		case elo.Draw:
			a, _, err = e.rate(a, fixed, true)
		case elo.Loss:
			_, a, err = e.rate(fixed, a, false)
		}
		if err != nil {
			return Rating{}, err
		}
	}

	return a, nil
}

// RateOneVsManyTokens parses tokens and applies them with RateOneVsMany.
// Nothing is applied if any token is unknown.
func (e *Engine) RateOneVsManyTokens(a, fixed Rating, tokens []string) (Rating, error) {
	outcomes, err := elo.ParseOutcomes(tokens)
	if err != nil {
		return Rating{}, fmt.Errorf("%w: %w", ErrInvalidOutcomeToken, err)
	}
	return e.RateOneVsMany(a, fixed, outcomes)
}

// validate rejects malformed inputs before anything is applied
func (e *Engine) validate(a, b Rating, outcomes []elo.Outcome) error {
	if err := a.validate(); err != nil {
		return err
	}
	if err := b.validate(); err != nil {
		return err
	}
	for i, o := range outcomes {
		if !o.Valid() {
			return fmt.Errorf("%w: %q at position %d", ErrInvalidOutcomeToken, string(o), i)
		}
	}
	return nil
}

// rate performs one game where winner beats loser, or a draw between them
func (e *Engine) rate(winner, loser Rating, drawn bool) (Rating, Rating, error) {
	outcome := elo.Win
	if drawn {
		outcome = elo.Draw
	}
	eloW, eloL, err := e.calc.Pairwise(winner.Elo, loser.Elo, outcome)
	if err != nil {
		return Rating{}, Rating{}, err
	}

	tau2 := e.cfg.Tau * e.cfg.Tau
	varW := winner.Sigma*winner.Sigma + tau2
	varL := loser.Sigma*loser.Sigma + tau2
	c2 := 2*e.cfg.Beta*e.cfg.Beta + varW + varL
	c := math.Sqrt(c2)

	t := (winner.Mu - loser.Mu) / c
	eps := e.margin / c

	var v, w float64
	if drawn {
		v, w = vDraw(t, eps), wDraw(t, eps)
	} else {
		v, w = vWin(t, eps), wWin(t, eps)
	}
	w = math.Max(0, math.Min(1, w))

	newW := Rating{
		Mu:    winner.Mu + varW/c*v,
		Sigma: e.shrink(varW, c2, w),
		Elo:   eloW,
	}
	newL := Rating{
		Mu:    loser.Mu - varL/c*v,
		Sigma: e.shrink(varL, c2, w),
		Elo:   eloL,
	}

	return newW, newL, nil
}

// shrink computes the posterior standard deviation and clamps it to the floor
func (e *Engine) shrink(variance, c2, w float64) float64 {
	sigma := math.Sqrt(variance * (1 - variance/c2*w))
	if sigma >= e.cfg.SigmaFloor && !math.IsInf(sigma, 0) {
		return sigma
	}

	e.log.Warn(context.Background(), "sigma clamped to floor",
		logger.Float64("sigma", sigma),
		logger.Float64("floor", e.cfg.SigmaFloor))
	for _, o := range e.clamps {
		o.ObserveSigmaClamp(sigma)
	}
	return e.cfg.SigmaFloor
}
