package skill

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGaussianHelpers(t *testing.T) {
	assert.InDelta(t, 0.5, cdf(0), 1e-12)
	assert.InDelta(t, 0.3989422804, pdf(0), 1e-9)
	assert.InDelta(t, 0.8413447461, cdf(1), 1e-9)

	for _, x := range []float64{-2.5, -1, -0.1, 0, 0.3, 1.7} {
		assert.InDelta(t, x, ppf(cdf(x)), 1e-9)
	}
}

func TestDrawMargin(t *testing.T) {
	assert.InDelta(t, 0.740466, drawMargin(DefaultDrawProbability, DefaultBeta, 2), 1e-5)
	assert.Equal(t, 0.0, drawMargin(0, DefaultBeta, 2))
}

func TestTruncationCorrections(t *testing.T) {
	t.Run("win corrections stay in range", func(t *testing.T) {
		for _, x := range []float64{-40, -5, -1, 0, 1, 5, 40} {
			v := vWin(x, 0.05)
			w := wWin(x, 0.05)
			assert.GreaterOrEqual(t, v, 0.0, "v at %v", x)
			assert.GreaterOrEqual(t, w, 0.0, "w at %v", x)
			assert.LessOrEqual(t, w, 1.0, "w at %v", x)
		}
	})

	t.Run("unlikely wins move more", func(t *testing.T) {
		assert.Greater(t, vWin(-2, 0.05), vWin(0, 0.05))
		assert.Greater(t, vWin(0, 0.05), vWin(2, 0.05))
	})

	t.Run("draw correction is antisymmetric", func(t *testing.T) {
		assert.InDelta(t, 0.0, vDraw(0, 0.05), 1e-12)
		assert.InDelta(t, -vDraw(0.7, 0.05), vDraw(-0.7, 0.05), 1e-12)
		assert.InDelta(t, wDraw(0.7, 0.05), wDraw(-0.7, 0.05), 1e-12)
	})
}
