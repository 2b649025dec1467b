package skill

import "math"

var sqrt2Pi = math.Sqrt(2 * math.Pi)

// pdf is the standard normal density.
func pdf(x float64) float64 {
	return math.Exp(-x*x/2) / sqrt2Pi
}

// cdf is the standard normal cumulative distribution.
func cdf(x float64) float64 {
	return 0.5 * math.Erfc(-x/math.Sqrt2)
}

// ppf is the inverse of cdf.
func ppf(p float64) float64 {
	return -math.Sqrt2 * math.Erfcinv(2*p)
}

// drawMargin converts a draw probability into a performance margin for a
// game with the given number of players.
func drawMargin(drawProbability, beta float64, players int) float64 {
	return ppf((drawProbability+1)/2) * math.Sqrt(float64(players)) * beta
}

// vWin is the additive mean correction of a truncated Gaussian when the
// first player won. t is the normalised mean difference, eps the normalised
// draw margin.
func vWin(t, eps float64) float64 {
	x := t - eps
	denom := cdf(x)
	if denom == 0 {
		return -x
	}
	return pdf(x) / denom
}

// wWin is the multiplicative variance correction matching vWin.
func wWin(t, eps float64) float64 {
	x := t - eps
	if cdf(x) == 0 {
		if t < 0 {
			return 1
		}
		return 0
	}
	v := vWin(t, eps)
	return v * (v + x)
}

// vDraw is the mean correction for a drawn game.
func vDraw(t, eps float64) float64 {
	abs := math.Abs(t)
	a := eps - abs
	b := -eps - abs
	denom := cdf(a) - cdf(b)
	v := a
	if denom != 0 {
		v = (pdf(b) - pdf(a)) / denom
	}
	if t < 0 {
		return -v
	}
	return v
}

// wDraw is the variance correction for a drawn game.
func wDraw(t, eps float64) float64 {
	abs := math.Abs(t)
	a := eps - abs
	b := -eps - abs
	denom := cdf(a) - cdf(b)
	if denom == 0 {
		return 1
	}
	v := vDraw(abs, eps)
	return v*v + (a*pdf(a)-b*pdf(b))/denom
}
