package risk

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVolatility_PopulationStdAnnualized(t *testing.T) {
	r := []float64{0.01, -0.01, 0.01, -0.01}
	// mean 0, every deviation 0.01
	assert.InDelta(t, 0.01*math.Sqrt(365), Volatility(r), 1e-12)
	assert.Equal(t, 0.0, Volatility([]float64{0.02, 0.02}))
}

func TestSharpe(t *testing.T) {
	r := []float64{0.01, -0.01, 0.01, -0.01}
	vol := Volatility(r)
	assert.InDelta(t, -0.02/vol, Sharpe(r, vol), 1e-12)
	assert.Equal(t, 0.0, Sharpe([]float64{0.01}, 0))
}

func TestMaxDrawdown(t *testing.T) {
	assert.Equal(t, 0.0, MaxDrawdown([]float64{0.01, 0, 0.05, 0.2}))

	// 1 -> 1.1 -> 0.88 -> 0.968
	assert.InDelta(t, 0.2, MaxDrawdown([]float64{0.1, -0.2, 0.1}), 1e-12)
}

func TestVaR95(t *testing.T) {
	returns := make([]float64, 40)
	for i := range returns {
		returns[i] = float64(i-10) / 100
	}
	// floor(0.05*40)=2 -> third smallest is -0.08
	assert.InDelta(t, 0.08, VaR95(returns), 1e-12)
	assert.InDelta(t, 0.03, VaR95([]float64{0.05, -0.03}), 1e-12)

	// every return positive: no loss at the 5th percentile
	assert.Zero(t, VaR95([]float64{0.01, 0.02, 0.03}))
	m, err := Compute([]float64{0.01, 0.02, 0.03})
	require.NoError(t, err)
	assert.Zero(t, m.VaR95)
}

func TestCompute_BetaIsFlaggedPlaceholder(t *testing.T) {
	m, err := Compute([]float64{0.01, 0.02, -0.01})
	require.NoError(t, err)
	assert.Equal(t, 1.0, m.Beta)
	assert.True(t, m.BetaIsPlaceholder)
	assert.Greater(t, m.Volatility, 0.0)

	_, err = Compute(nil)
	assert.ErrorIs(t, err, ErrNoReturns)
}
