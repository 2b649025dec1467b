// Package skill keeps a Bayesian skill belief and a classical Elo score for
// every player and updates both together from pairwise game outcomes.
//
// The Bayesian part is the two-player case of the TrueSkill factor graph:
// a Gaussian belief (mu, sigma) per player, a performance variance beta,
// a dynamics noise tau and a draw margin derived from the draw probability.
// For two players the message passing converges in a single pass, so the
// update is evaluated in closed form.
package skill

import (
	"fmt"
	"math"
)

// ExposureK is the number of standard deviations subtracted from the mean to
// obtain the conservative exposure estimate.
const ExposureK = 3.0

// Rating is one player's skill record. It is a value: every update returns
// new Ratings and never touches the ones passed in, so a sequence of Ratings
// is a faithful history.
type Rating struct {
	Mu    float64 `json:"mu" yaml:"mu"`       // Belief mean
	Sigma float64 `json:"sigma" yaml:"sigma"` // Belief standard deviation, always > 0
	Elo   int     `json:"elo" yaml:"elo"`     // Classical score
}

// Exposure returns the conservative estimate mu - 3*sigma used for ranking.
func (r Rating) Exposure() float64 {
	return r.Mu - ExposureK*r.Sigma
}

func (r Rating) String() string {
	return fmt.Sprintf("Rating(mu=%.3f, sigma=%.3f, exposure=%.3f, elo=%d)",
		r.Mu, r.Sigma, r.Exposure(), r.Elo)
}

// validate checks the invariants of a Rating
func (r Rating) validate() error {
	if math.IsNaN(r.Mu) || math.IsInf(r.Mu, 0) {
		return fmt.Errorf("%w: mu=%v", ErrInvalidRating, r.Mu)
	}
	if !(r.Sigma > 0) || math.IsInf(r.Sigma, 0) {
		return fmt.Errorf("%w: sigma=%v", ErrInvalidRating, r.Sigma)
	}
	return nil
}

// RatingOption overrides one field of a Rating created by the engine.
type RatingOption func(*Rating)

// WithMu sets the belief mean.
func WithMu(mu float64) RatingOption {
	return func(r *Rating) { r.Mu = mu }
}

// WithSigma sets the belief standard deviation.
func WithSigma(sigma float64) RatingOption {
	return func(r *Rating) { r.Sigma = sigma }
}

// WithElo sets the starting Elo score.
func WithElo(elo int) RatingOption {
	return func(r *Rating) { r.Elo = elo }
}
